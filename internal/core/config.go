// Package core contains the coordination logic: the ticket orchestrator,
// escalation policy, meeting scheduler, PROPEL plan executor, and the
// knowledge memory with relevance-ranked recall.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/propelhq/propel/pkg/models"
)

// Config holds the runtime settings read from .propelrc.
type Config struct {
	// DataDir is where the YAML stores and the event log live.
	DataDir string

	// Agents is the roster of agent names the runner supervises.
	Agents []string

	// ReasoningTimeout bounds every reasoning collaborator call.
	ReasoningTimeout time.Duration

	// ReasoningAttempts caps the retries for transient reasoning
	// failures.
	ReasoningAttempts int

	// RecallWeights tunes the knowledge relevance score.
	RecallWeights RecallWeights

	// Cadence holds the recurring meeting definitions.
	Cadence []CadenceMeeting
}

// ConfigurationManager loads and validates the .propelrc configuration.
type ConfigurationManager interface {
	LoadConfig() (*Config, error)
	ValidateConfig(cfg *Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file.
type viperConfigManager struct {
	// basePath is the directory where .propelrc resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .propelrc relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultConfig returns a Config populated with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		DataDir:           ".propel",
		Agents:            []string{"builder"},
		ReasoningTimeout:  30 * time.Second,
		ReasoningAttempts: 3,
		RecallWeights:     DefaultRecallWeights(),
	}
}

// LoadConfig reads .propelrc using Viper. A missing file returns the
// defaults.
func (cm *viperConfigManager) LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName(".propelrc")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("agents", cfg.Agents)
	v.SetDefault("reasoning.timeout", cfg.ReasoningTimeout.String())
	v.SetDefault("reasoning.max_attempts", cfg.ReasoningAttempts)
	v.SetDefault("recall.description", cfg.RecallWeights.Description)
	v.SetDefault("recall.tags", cfg.RecallWeights.Tags)
	v.SetDefault("recall.task_type", cfg.RecallWeights.TaskType)
	v.SetDefault("recall.recency", cfg.RecallWeights.Recency)
	v.SetDefault("recall.complexity", cfg.RecallWeights.Complexity)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .propelrc: %w", err)
	}

	cfg.DataDir = v.GetString("data_dir")
	cfg.Agents = v.GetStringSlice("agents")
	cfg.ReasoningTimeout = v.GetDuration("reasoning.timeout")
	cfg.ReasoningAttempts = v.GetInt("reasoning.max_attempts")
	cfg.RecallWeights = RecallWeights{
		Description: v.GetFloat64("recall.description"),
		Tags:        v.GetFloat64("recall.tags"),
		TaskType:    v.GetFloat64("recall.task_type"),
		Recency:     v.GetFloat64("recall.recency"),
		Complexity:  v.GetFloat64("recall.complexity"),
	}

	if v.IsSet("cadence") {
		var cadence []CadenceMeeting
		if err := v.UnmarshalKey("cadence", &cadence); err != nil {
			return nil, fmt.Errorf("reading .propelrc: parsing cadence: %w", err)
		}
		cfg.Cadence = cadence
	}

	return cfg, nil
}

// validMeetingTypes is the set of allowed cadence meeting types.
var validMeetingTypes = map[models.MeetingType]bool{
	models.MeetingEscalation: true,
	models.MeetingStandup:    true,
	models.MeetingPlanning:   true,
	models.MeetingReview:     true,
}

// ValidateConfig checks the configuration for invalid values and returns
// a clear error message identifying each problem.
func (cm *viperConfigManager) ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.DataDir == "" {
		errs = append(errs, "data_dir must not be empty")
	}
	if len(cfg.Agents) == 0 {
		errs = append(errs, "agents must name at least one agent")
	}
	if cfg.ReasoningTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("reasoning.timeout must be positive, got %s", cfg.ReasoningTimeout))
	}
	if cfg.ReasoningAttempts <= 0 {
		errs = append(errs, fmt.Sprintf("reasoning.max_attempts must be positive, got %d", cfg.ReasoningAttempts))
	}

	weights := []struct {
		name  string
		value float64
	}{
		{"recall.description", cfg.RecallWeights.Description},
		{"recall.tags", cfg.RecallWeights.Tags},
		{"recall.task_type", cfg.RecallWeights.TaskType},
		{"recall.recency", cfg.RecallWeights.Recency},
		{"recall.complexity", cfg.RecallWeights.Complexity},
	}
	for _, w := range weights {
		if w.value < 0 || w.value > 1 {
			errs = append(errs, fmt.Sprintf("%s %v is invalid, must be between 0 and 1", w.name, w.value))
		}
	}

	for _, meeting := range cfg.Cadence {
		if meeting.Name == "" {
			errs = append(errs, "cadence meeting name must not be empty")
		}
		if meeting.Schedule == "" {
			errs = append(errs, fmt.Sprintf("cadence meeting %q has no schedule", meeting.Name))
		}
		if !validMeetingTypes[meeting.Type] {
			errs = append(errs, fmt.Sprintf(
				"cadence meeting %q type %q is invalid, must be one of: escalation, standup, planning, review",
				meeting.Name, meeting.Type,
			))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
