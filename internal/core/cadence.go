package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/propelhq/propel/pkg/models"
)

// CadenceMeeting is a recurring meeting definition driven by a cron
// schedule, such as a daily standup.
type CadenceMeeting struct {
	Name         string             `yaml:"name" mapstructure:"name"`
	Type         models.MeetingType `yaml:"type" mapstructure:"type"`
	Schedule     string             `yaml:"schedule" mapstructure:"schedule"`
	Agenda       []string           `yaml:"agenda" mapstructure:"agenda"`
	Participants []string           `yaml:"participants" mapstructure:"participants"`
}

// CadenceRunner registers cadence meetings as cron entries and schedules
// a fresh meeting through the MeetingScheduler each time one fires.
type CadenceRunner struct {
	scheduler *MeetingScheduler
	cron      *cron.Cron
	logger    *slog.Logger
}

// cadenceParser accepts both standard 5-field cron expressions and
// 6-field expressions with an optional seconds field.
var cadenceParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewCadenceRunner creates a runner that schedules meetings via the
// given scheduler.
func NewCadenceRunner(scheduler *MeetingScheduler, logger *slog.Logger) *CadenceRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CadenceRunner{
		scheduler: scheduler,
		cron:      cron.New(cron.WithParser(cadenceParser)),
		logger:    logger,
	}
}

// Register adds cadence meetings as cron entries. Definitions with an
// invalid schedule or no participants are logged and skipped.
func (r *CadenceRunner) Register(meetings []CadenceMeeting) {
	for _, def := range meetings {
		def := def
		if len(def.Participants) == 0 {
			r.logger.Error("skipping cadence meeting without participants", "name", def.Name)
			continue
		}
		_, err := r.cron.AddFunc(def.Schedule, func() {
			r.fire(def)
		})
		if err != nil {
			r.logger.Error("invalid cadence schedule", "name", def.Name, "schedule", def.Schedule, "error", err)
			continue
		}
		r.logger.Info("cadence meeting registered", "name", def.Name, "schedule", def.Schedule)
	}
}

// Start begins the cron ticker.
func (r *CadenceRunner) Start() {
	r.cron.Start()
}

// Stop stops the ticker and waits for an in-flight firing to finish.
func (r *CadenceRunner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *CadenceRunner) fire(def CadenceMeeting) {
	builder := NewMeetingBuilder(def.Type).
		Title(def.Name).
		At(time.Now().UTC()).
		Require(def.Participants...)
	for _, item := range def.Agenda {
		builder.AgendaItem(item)
	}

	meeting, err := builder.Build()
	if err != nil {
		r.logger.Error("building cadence meeting", "name", def.Name, "error", err)
		return
	}
	if _, err := r.scheduler.ScheduleMeeting(context.Background(), meeting, "cadence"); err != nil {
		r.logger.Error("scheduling cadence meeting", "name", def.Name, "error", err)
	}
}
