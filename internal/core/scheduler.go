package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/propelhq/propel/internal/messaging"
	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

// Publisher is the slice of the event bus core components publish on.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// MeetingScheduler is the sole mutation path for meeting status. Every
// transition is checked against the meeting lifecycle table and
// announced on the bus.
type MeetingScheduler struct {
	meetings storage.MeetingStore
	threads  messaging.ThreadManager
	bus      Publisher
	logger   *slog.Logger
}

// NewMeetingScheduler creates a scheduler over the given collaborators.
// threads may be nil when no messaging channel should be attached.
func NewMeetingScheduler(meetings storage.MeetingStore, threads messaging.ThreadManager, bus Publisher, logger *slog.Logger) *MeetingScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeetingScheduler{meetings: meetings, threads: threads, bus: bus, logger: logger}
}

// ScheduleMeeting persists the meeting, attaches a messaging channel,
// publishes MeetingScheduled, and returns the enriched meeting.
func (s *MeetingScheduler) ScheduleMeeting(ctx context.Context, meeting *models.Meeting, scheduledBy string) (*models.Meeting, error) {
	if meeting == nil {
		return nil, &models.ValidationError{Field: "meeting", Reason: "must not be nil"}
	}
	if meeting.Status != models.MeetingScheduled {
		return nil, &models.ValidationError{Field: "status", Reason: fmt.Sprintf("new meetings must be scheduled, got %s", meeting.Status)}
	}

	enriched := *meeting
	if s.threads != nil {
		participants := append([]string{}, enriched.Invitation.RequiredParticipants...)
		participants = append(participants, enriched.Invitation.OptionalParticipants...)
		thread, err := s.threads.CreateThread(ctx, enriched.Invitation.Title, enriched.TicketID, participants)
		if err != nil {
			return nil, fmt.Errorf("scheduling meeting %s: creating channel: %w", enriched.ID, err)
		}
		enriched.ChannelID = thread.ID
	}

	if err := s.meetings.SaveMeeting(enriched); err != nil {
		return nil, &models.PersistenceError{Op: "save meeting", Err: err}
	}

	s.publishMeetingEvent(ctx, models.AgentSource(scheduledBy), models.EventMeetingScheduled, enriched)
	s.logger.Info("meeting scheduled",
		"meeting_id", enriched.ID,
		"type", enriched.Type,
		"scheduled_for", enriched.ScheduledFor,
		"scheduled_by", scheduledBy)
	return &enriched, nil
}

// StartMeeting moves a meeting into InProgress and stamps StartedAt.
func (s *MeetingScheduler) StartMeeting(ctx context.Context, id string, actor string) error {
	now := time.Now().UTC()
	if err := s.transition(id, models.MeetingInProgress, func(m *models.Meeting) {
		m.StartedAt = &now
	}); err != nil {
		return err
	}
	meeting, err := s.meetings.GetMeeting(id)
	if err != nil {
		return err
	}
	s.publishMeetingEvent(ctx, models.AgentSource(actor), models.EventMeetingStarted, *meeting)
	return nil
}

// DelayMeeting pushes the scheduled time back. Allowed from Scheduled
// only; a delayed meeting stays delayed until started or canceled.
func (s *MeetingScheduler) DelayMeeting(ctx context.Context, id string, until time.Time, actor string) error {
	if err := s.transition(id, models.MeetingDelayed, func(m *models.Meeting) {
		m.ScheduledFor = until
	}); err != nil {
		return err
	}
	meeting, err := s.meetings.GetMeeting(id)
	if err != nil {
		return err
	}
	s.publishMeetingEvent(ctx, models.AgentSource(actor), models.EventMeetingScheduled, *meeting)
	return nil
}

// CompleteMeeting records attendees and outcomes atomically with the
// status change.
func (s *MeetingScheduler) CompleteMeeting(ctx context.Context, id string, attendees, outcomes []string, actor string) error {
	if len(attendees) == 0 {
		return &models.ValidationError{Field: "attendees", Reason: "completing a meeting requires attendees"}
	}
	if err := s.transition(id, models.MeetingCompleted, func(m *models.Meeting) {
		m.Attendees = attendees
		m.Outcomes = outcomes
	}); err != nil {
		return err
	}
	meeting, err := s.meetings.GetMeeting(id)
	if err != nil {
		return err
	}
	s.publishMeetingEvent(ctx, models.AgentSource(actor), models.EventMeetingCompleted, *meeting)
	return nil
}

// CancelMeeting cancels a not-yet-completed meeting, recording any
// outcomes gathered so far.
func (s *MeetingScheduler) CancelMeeting(ctx context.Context, id string, outcomes []string, actor string) error {
	if err := s.transition(id, models.MeetingCanceled, func(m *models.Meeting) {
		m.Outcomes = outcomes
	}); err != nil {
		return err
	}
	meeting, err := s.meetings.GetMeeting(id)
	if err != nil {
		return err
	}
	s.publishMeetingEvent(ctx, models.AgentSource(actor), models.EventMeetingCanceled, *meeting)
	return nil
}

// transition applies one legal status change plus its mutation in a
// single store write.
func (s *MeetingScheduler) transition(id string, to models.MeetingStatus, mutate func(*models.Meeting)) error {
	meeting, err := s.meetings.GetMeeting(id)
	if err != nil {
		return err
	}
	if !CanTransitionMeeting(meeting.Status, to) {
		return &models.InvalidTransitionError{
			EntityID:     id,
			From:         string(meeting.Status),
			To:           string(to),
			ValidTargets: meetingStatusStrings(ValidMeetingTransitions(meeting.Status)),
		}
	}
	if err := s.meetings.UpdateMeetingStatus(id, to, mutate); err != nil {
		return &models.PersistenceError{Op: "update meeting status", Err: err}
	}
	return nil
}

func (s *MeetingScheduler) publishMeetingEvent(ctx context.Context, source models.EventSource, eventType models.EventType, meeting models.Meeting) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, models.Event{
		Source: source,
		Type:   eventType,
		Payload: models.MarshalPayload(models.MeetingPayload{
			MeetingID: meeting.ID,
			Type:      string(meeting.Type),
			Title:     meeting.Invitation.Title,
			Status:    string(meeting.Status),
		}),
	})
	if err != nil {
		s.logger.Error("publishing meeting event", "type", eventType, "meeting_id", meeting.ID, "error", err)
	}
}

func meetingStatusStrings(statuses []models.MeetingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
