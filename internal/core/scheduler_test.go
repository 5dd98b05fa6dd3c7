package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

func buildTestMeeting(t *testing.T) *models.Meeting {
	t.Helper()
	meeting, err := NewMeetingBuilder(models.MeetingStandup).
		Title("daily standup").
		At(time.Now().UTC().Add(time.Hour)).
		Require("builder").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return meeting
}

func newTestScheduler() (*MeetingScheduler, *memMeetingStore, *recordingThreads, *recordingBus) {
	store := newMemMeetingStore()
	threads := newRecordingThreads()
	bus := &recordingBus{}
	return NewMeetingScheduler(store, threads, bus, nil), store, threads, bus
}

func TestScheduleMeetingAttachesChannelAndPublishes(t *testing.T) {
	scheduler, store, _, bus := newTestScheduler()

	scheduled, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}
	if scheduled.ChannelID == "" {
		t.Error("no channel attached to scheduled meeting")
	}

	persisted, err := store.GetMeeting(scheduled.ID)
	if err != nil {
		t.Fatalf("GetMeeting() error = %v", err)
	}
	if persisted.ChannelID != scheduled.ChannelID {
		t.Errorf("persisted channel = %s, want %s", persisted.ChannelID, scheduled.ChannelID)
	}
	if got := bus.byType(models.EventMeetingScheduled); len(got) != 1 {
		t.Errorf("published %d MeetingScheduled events, want 1", len(got))
	}
}

func TestScheduleMeetingRejectsNonScheduledStatus(t *testing.T) {
	scheduler, _, _, _ := newTestScheduler()

	meeting := buildTestMeeting(t)
	meeting.Status = models.MeetingInProgress
	_, err := scheduler.ScheduleMeeting(context.Background(), meeting, "builder")
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ScheduleMeeting() error = %v, want ValidationError", err)
	}
}

func TestScheduleMeetingStoreFailure(t *testing.T) {
	scheduler, store, _, _ := newTestScheduler()
	store.saveErr = fmt.Errorf("disk full")

	_, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	var perr *models.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("ScheduleMeeting() error = %v, want PersistenceError", err)
	}
}

func TestStartMeetingStampsStartedAt(t *testing.T) {
	scheduler, store, _, bus := newTestScheduler()
	scheduled, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}

	if err := scheduler.StartMeeting(context.Background(), scheduled.ID, "builder"); err != nil {
		t.Fatalf("StartMeeting() error = %v", err)
	}

	meeting, _ := store.GetMeeting(scheduled.ID)
	if meeting.Status != models.MeetingInProgress {
		t.Errorf("status = %s, want %s", meeting.Status, models.MeetingInProgress)
	}
	if meeting.StartedAt == nil {
		t.Error("StartedAt not stamped")
	}
	if got := bus.byType(models.EventMeetingStarted); len(got) != 1 {
		t.Errorf("published %d MeetingStarted events, want 1", len(got))
	}
}

func TestDelayMeetingMovesScheduledTime(t *testing.T) {
	scheduler, store, _, _ := newTestScheduler()
	scheduled, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}

	until := time.Now().UTC().Add(4 * time.Hour).Truncate(time.Second)
	if err := scheduler.DelayMeeting(context.Background(), scheduled.ID, until, "builder"); err != nil {
		t.Fatalf("DelayMeeting() error = %v", err)
	}

	meeting, _ := store.GetMeeting(scheduled.ID)
	if meeting.Status != models.MeetingDelayed {
		t.Errorf("status = %s, want %s", meeting.Status, models.MeetingDelayed)
	}
	if !meeting.ScheduledFor.Equal(until) {
		t.Errorf("scheduled for = %s, want %s", meeting.ScheduledFor, until)
	}

	// A delayed meeting cannot be delayed again.
	err = scheduler.DelayMeeting(context.Background(), scheduled.ID, until.Add(time.Hour), "builder")
	var terr *models.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("second DelayMeeting() error = %v, want InvalidTransitionError", err)
	}
}

func TestCompleteMeetingRequiresAttendees(t *testing.T) {
	scheduler, _, _, _ := newTestScheduler()
	scheduled, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}
	if err := scheduler.StartMeeting(context.Background(), scheduled.ID, "builder"); err != nil {
		t.Fatalf("StartMeeting() error = %v", err)
	}

	err = scheduler.CompleteMeeting(context.Background(), scheduled.ID, nil, []string{"decided"}, "builder")
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CompleteMeeting() without attendees error = %v, want ValidationError", err)
	}
}

func TestCompleteMeetingRecordsAttendeesAndOutcomes(t *testing.T) {
	scheduler, store, _, bus := newTestScheduler()
	scheduled, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}
	if err := scheduler.StartMeeting(context.Background(), scheduled.ID, "builder"); err != nil {
		t.Fatalf("StartMeeting() error = %v", err)
	}

	attendees := []string{"builder", "reviewer"}
	outcomes := []string{"ship the fix", "add a regression test"}
	if err := scheduler.CompleteMeeting(context.Background(), scheduled.ID, attendees, outcomes, "builder"); err != nil {
		t.Fatalf("CompleteMeeting() error = %v", err)
	}

	meeting, _ := store.GetMeeting(scheduled.ID)
	if meeting.Status != models.MeetingCompleted {
		t.Errorf("status = %s, want %s", meeting.Status, models.MeetingCompleted)
	}
	if len(meeting.Attendees) != 2 || len(meeting.Outcomes) != 2 {
		t.Errorf("attendees = %v, outcomes = %v; want both recorded", meeting.Attendees, meeting.Outcomes)
	}
	if got := bus.byType(models.EventMeetingCompleted); len(got) != 1 {
		t.Errorf("published %d MeetingCompleted events, want 1", len(got))
	}
}

func TestCompletedMeetingIsTerminal(t *testing.T) {
	scheduler, _, _, _ := newTestScheduler()
	scheduled, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}
	if err := scheduler.StartMeeting(context.Background(), scheduled.ID, "builder"); err != nil {
		t.Fatalf("StartMeeting() error = %v", err)
	}
	if err := scheduler.CompleteMeeting(context.Background(), scheduled.ID, []string{"builder"}, nil, "builder"); err != nil {
		t.Fatalf("CompleteMeeting() error = %v", err)
	}

	err = scheduler.CancelMeeting(context.Background(), scheduled.ID, nil, "builder")
	var terr *models.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("CancelMeeting() after complete error = %v, want InvalidTransitionError", err)
	}
	if len(terr.ValidTargets) != 0 {
		t.Errorf("ValidTargets = %v, want none for terminal state", terr.ValidTargets)
	}
}

func TestInvalidTransitionNamesValidTargets(t *testing.T) {
	scheduler, _, _, _ := newTestScheduler()
	scheduled, err := scheduler.ScheduleMeeting(context.Background(), buildTestMeeting(t), "builder")
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}

	// Scheduled -> Completed skips InProgress.
	err = scheduler.CompleteMeeting(context.Background(), scheduled.ID, []string{"builder"}, nil, "builder")
	var terr *models.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("CompleteMeeting() from scheduled error = %v, want InvalidTransitionError", err)
	}
	want := []string{"canceled", "delayed", "in_progress"}
	if len(terr.ValidTargets) != len(want) {
		t.Fatalf("ValidTargets = %v, want %v", terr.ValidTargets, want)
	}
	for i, target := range want {
		if terr.ValidTargets[i] != target {
			t.Errorf("ValidTargets[%d] = %s, want %s", i, terr.ValidTargets[i], target)
		}
	}
}
