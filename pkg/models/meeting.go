package models

import "time"

// MeetingType describes why a meeting exists.
type MeetingType string

const (
	MeetingEscalation MeetingType = "escalation"
	MeetingStandup    MeetingType = "standup"
	MeetingPlanning   MeetingType = "planning"
	MeetingReview     MeetingType = "review"
)

// MeetingStatus represents the lifecycle state of a meeting. Transitions
// happen only through the meeting scheduler.
type MeetingStatus string

const (
	MeetingScheduled  MeetingStatus = "scheduled"
	MeetingDelayed    MeetingStatus = "delayed"
	MeetingInProgress MeetingStatus = "in_progress"
	MeetingCompleted  MeetingStatus = "completed"
	MeetingCanceled   MeetingStatus = "canceled"
)

// Invitation carries the agenda and participant lists for a meeting.
// RequiredParticipants must be non-empty for a meeting to be built.
type Invitation struct {
	Title                string   `yaml:"title" json:"title"`
	Agenda               []string `yaml:"agenda,omitempty" json:"agenda,omitempty"`
	RequiredParticipants []string `yaml:"required_participants" json:"required_participants"`
	OptionalParticipants []string `yaml:"optional_participants,omitempty" json:"optional_participants,omitempty"`
}

// Meeting is a scheduled coordination event, triggered by escalation or by
// cadence. Completing a meeting records attendees and outcomes together with
// the status change.
type Meeting struct {
	ID           string        `yaml:"id" json:"id"`
	Type         MeetingType   `yaml:"type" json:"type"`
	Status       MeetingStatus `yaml:"status" json:"status"`
	Invitation   Invitation    `yaml:"invitation" json:"invitation"`
	TicketID     string        `yaml:"ticket_id,omitempty" json:"ticket_id,omitempty"`
	ScheduledFor time.Time     `yaml:"scheduled_for" json:"scheduled_for"`
	StartedAt    *time.Time    `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	ChannelID    string        `yaml:"channel_id,omitempty" json:"channel_id,omitempty"`
	Attendees    []string      `yaml:"attendees,omitempty" json:"attendees,omitempty"`
	Outcomes     []string      `yaml:"outcomes,omitempty" json:"outcomes,omitempty"`
	CreatedAt    time.Time     `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `yaml:"updated_at" json:"updated_at"`
}
