package models

import "time"

// ThreadState tracks whether a discussion thread is available for agent
// messages or is parked while a human weighs in.
type ThreadState string

const (
	ThreadOpen            ThreadState = "open"
	ThreadWaitingForHuman ThreadState = "waiting_for_human"
	ThreadResolved        ThreadState = "resolved"
)

// Message is a single entry in a discussion thread.
type Message struct {
	ID        string      `yaml:"id" json:"id"`
	Author    EventSource `yaml:"author" json:"author"`
	Body      string      `yaml:"body" json:"body"`
	CreatedAt time.Time   `yaml:"created_at" json:"created_at"`
}

// Thread is a discussion attached to a ticket or meeting. Threads start
// open; escalating to a human parks them until a human reply reopens
// them.
type Thread struct {
	ID           string      `yaml:"id" json:"id"`
	Topic        string      `yaml:"topic" json:"topic"`
	TicketID     string      `yaml:"ticket_id,omitempty" json:"ticket_id,omitempty"`
	State        ThreadState `yaml:"state" json:"state"`
	Participants []string    `yaml:"participants,omitempty" json:"participants,omitempty"`
	Messages     []Message   `yaml:"messages,omitempty" json:"messages,omitempty"`
	CreatedAt    time.Time   `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `yaml:"updated_at" json:"updated_at"`
}
