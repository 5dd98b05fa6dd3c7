package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/propelhq/propel/pkg/models"
)

// MeetingBuilder assembles a Meeting and validates it at build time.
// Partially-initialized meetings never escape: Build is the only way to
// obtain one, and it fails unless type, title, scheduled time, and at
// least one required participant are set.
type MeetingBuilder struct {
	meetingType models.MeetingType
	title       string
	agenda      []string
	required    []string
	optional    []string
	ticketID    string
	scheduled   time.Time
}

// NewMeetingBuilder starts a builder for the given meeting type.
func NewMeetingBuilder(meetingType models.MeetingType) *MeetingBuilder {
	return &MeetingBuilder{meetingType: meetingType}
}

// Title sets the invitation title.
func (b *MeetingBuilder) Title(title string) *MeetingBuilder {
	b.title = title
	return b
}

// AgendaItem appends one agenda item.
func (b *MeetingBuilder) AgendaItem(item string) *MeetingBuilder {
	b.agenda = append(b.agenda, item)
	return b
}

// Require adds required participants, skipping empty names.
func (b *MeetingBuilder) Require(participants ...string) *MeetingBuilder {
	for _, p := range participants {
		if p != "" {
			b.required = append(b.required, p)
		}
	}
	return b
}

// Invite adds optional participants, skipping empty names.
func (b *MeetingBuilder) Invite(participants ...string) *MeetingBuilder {
	for _, p := range participants {
		if p != "" {
			b.optional = append(b.optional, p)
		}
	}
	return b
}

// ForTicket links the meeting to the ticket that triggered it.
func (b *MeetingBuilder) ForTicket(ticketID string) *MeetingBuilder {
	b.ticketID = ticketID
	return b
}

// At sets the scheduled time.
func (b *MeetingBuilder) At(t time.Time) *MeetingBuilder {
	b.scheduled = t
	return b
}

// Build validates the collected fields and returns the meeting in
// Scheduled status.
func (b *MeetingBuilder) Build() (*models.Meeting, error) {
	if b.meetingType == "" {
		return nil, &models.ValidationError{Field: "type", Reason: "must be set"}
	}
	if b.title == "" {
		return nil, &models.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if b.scheduled.IsZero() {
		return nil, &models.ValidationError{Field: "scheduled_for", Reason: "must be set"}
	}
	if len(b.required) == 0 {
		return nil, &models.ValidationError{Field: "required_participants", Reason: "must not be empty"}
	}

	now := time.Now().UTC()
	return &models.Meeting{
		ID:     uuid.NewString(),
		Type:   b.meetingType,
		Status: models.MeetingScheduled,
		Invitation: models.Invitation{
			Title:                b.title,
			Agenda:               b.agenda,
			RequiredParticipants: b.required,
			OptionalParticipants: b.optional,
		},
		TicketID:     b.ticketID,
		ScheduledFor: b.scheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
