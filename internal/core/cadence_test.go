package core

import (
	"testing"

	"github.com/propelhq/propel/pkg/models"
)

func TestCadenceFireSchedulesMeeting(t *testing.T) {
	scheduler, meetings, _, bus := newTestScheduler()
	runner := NewCadenceRunner(scheduler, nil)

	runner.fire(CadenceMeeting{
		Name:         "daily-standup",
		Type:         models.MeetingStandup,
		Schedule:     "0 9 * * 1-5",
		Agenda:       []string{"yesterday", "today", "blockers"},
		Participants: []string{"builder", "reviewer"},
	})

	scheduled, err := meetings.ListMeetings(models.MeetingScheduled)
	if err != nil {
		t.Fatalf("ListMeetings() error = %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("scheduled %d meetings, want 1", len(scheduled))
	}
	meeting := scheduled[0]
	if meeting.Type != models.MeetingStandup || meeting.Invitation.Title != "daily-standup" {
		t.Errorf("meeting = %+v", meeting)
	}
	if len(meeting.Invitation.Agenda) != 3 {
		t.Errorf("agenda has %d items, want 3", len(meeting.Invitation.Agenda))
	}
	if got := bus.byType(models.EventMeetingScheduled); len(got) != 1 {
		t.Errorf("published %d MeetingScheduled events, want 1", len(got))
	}
}

func TestCadenceFireSkipsInvalidDefinition(t *testing.T) {
	scheduler, meetings, _, _ := newTestScheduler()
	runner := NewCadenceRunner(scheduler, nil)

	// No participants: the builder rejects it and nothing is scheduled.
	runner.fire(CadenceMeeting{Name: "ghost", Type: models.MeetingStandup})

	if scheduled, _ := meetings.ListMeetings(models.MeetingScheduled); len(scheduled) != 0 {
		t.Errorf("scheduled %d meetings, want 0", len(scheduled))
	}
}

func TestCadenceRegisterSkipsBadEntries(t *testing.T) {
	scheduler, _, _, _ := newTestScheduler()
	runner := NewCadenceRunner(scheduler, nil)

	// Neither entry should panic or register a firing goroutine; the
	// runner logs and keeps going.
	runner.Register([]CadenceMeeting{
		{Name: "no-participants", Type: models.MeetingStandup, Schedule: "@daily"},
		{Name: "bad-schedule", Type: models.MeetingStandup, Schedule: "not cron", Participants: []string{"builder"}},
		{Name: "good", Type: models.MeetingReview, Schedule: "@weekly", Participants: []string{"builder"}},
	})
	runner.Start()
	runner.Stop()
}
