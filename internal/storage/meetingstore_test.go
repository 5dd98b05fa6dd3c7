package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

func seedMeeting(id string, scheduledFor time.Time) models.Meeting {
	return models.Meeting{
		ID:     id,
		Type:   models.MeetingStandup,
		Status: models.MeetingScheduled,
		Invitation: models.Invitation{
			Title:                "meeting " + id,
			RequiredParticipants: []string{"builder"},
		},
		ScheduledFor: scheduledFor,
	}
}

func TestMeetingStoreSaveAndGet(t *testing.T) {
	store := NewMeetingStore(t.TempDir())

	if err := store.SaveMeeting(seedMeeting("m-1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveMeeting() error = %v", err)
	}
	got, err := store.GetMeeting("m-1")
	if err != nil {
		t.Fatalf("GetMeeting() error = %v", err)
	}
	if got.Invitation.Title != "meeting m-1" {
		t.Errorf("meeting = %+v", got)
	}

	if err := store.SaveMeeting(models.Meeting{}); err == nil {
		t.Error("SaveMeeting() accepted a meeting without an ID")
	}
}

func TestMeetingStoreUpdateStatusAppliesMutation(t *testing.T) {
	store := NewMeetingStore(t.TempDir())
	if err := store.SaveMeeting(seedMeeting("m-1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveMeeting() error = %v", err)
	}

	// Status change and record mutation land in one write.
	err := store.UpdateMeetingStatus("m-1", models.MeetingCompleted, func(m *models.Meeting) {
		m.Attendees = []string{"builder", "reviewer"}
		m.Outcomes = []string{"ship it"}
	})
	if err != nil {
		t.Fatalf("UpdateMeetingStatus() error = %v", err)
	}

	got, _ := store.GetMeeting("m-1")
	if got.Status != models.MeetingCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if len(got.Attendees) != 2 || len(got.Outcomes) != 1 {
		t.Errorf("record = attendees %v outcomes %v", got.Attendees, got.Outcomes)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestMeetingStoreUpdateStatusNilMutate(t *testing.T) {
	store := NewMeetingStore(t.TempDir())
	if err := store.SaveMeeting(seedMeeting("m-1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveMeeting() error = %v", err)
	}
	if err := store.UpdateMeetingStatus("m-1", models.MeetingInProgress, nil); err != nil {
		t.Errorf("UpdateMeetingStatus(nil mutate) error = %v", err)
	}
}

func TestMeetingStoreNotFound(t *testing.T) {
	store := NewMeetingStore(t.TempDir())

	var nferr *models.NotFoundError
	if _, err := store.GetMeeting("missing"); !errors.As(err, &nferr) {
		t.Errorf("GetMeeting error = %v, want NotFoundError", err)
	}
	if err := store.UpdateMeetingStatus("missing", models.MeetingCanceled, nil); !errors.As(err, &nferr) {
		t.Errorf("UpdateMeetingStatus error = %v, want NotFoundError", err)
	}
}

func TestMeetingStoreListFiltersAndSortsBySchedule(t *testing.T) {
	store := NewMeetingStore(t.TempDir())
	base := time.Now().UTC()

	later := seedMeeting("m-later", base.Add(2*time.Hour))
	sooner := seedMeeting("m-sooner", base.Add(time.Hour))
	done := seedMeeting("m-done", base)
	done.Status = models.MeetingCompleted
	for _, meeting := range []models.Meeting{later, done, sooner} {
		if err := store.SaveMeeting(meeting); err != nil {
			t.Fatalf("SaveMeeting(%s) error = %v", meeting.ID, err)
		}
	}

	scheduled, err := store.ListMeetings(models.MeetingScheduled)
	if err != nil {
		t.Fatalf("ListMeetings() error = %v", err)
	}
	if len(scheduled) != 2 || scheduled[0].ID != "m-sooner" || scheduled[1].ID != "m-later" {
		t.Errorf("scheduled = %v", scheduled)
	}

	all, _ := store.ListMeetings("")
	if len(all) != 3 || all[0].ID != "m-done" {
		t.Errorf("all = %v", all)
	}
}

func TestMeetingStoreReload(t *testing.T) {
	dir := t.TempDir()
	store := NewMeetingStore(dir)
	if err := store.SaveMeeting(seedMeeting("m-1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveMeeting() error = %v", err)
	}

	reloaded := NewMeetingStore(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := reloaded.GetMeeting("m-1")
	if err != nil {
		t.Fatalf("GetMeeting() after reload error = %v", err)
	}
	if len(got.Invitation.RequiredParticipants) != 1 {
		t.Errorf("reloaded meeting = %+v", got)
	}
}
