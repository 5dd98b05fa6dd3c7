package models

import "time"

// TicketType represents the kind of work a ticket tracks.
type TicketType string

const (
	TicketFeature TicketType = "feature"
	TicketBug     TicketType = "bug"
	TicketTask    TicketType = "task"
	TicketSpike   TicketType = "spike"
)

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusBacklog    TicketStatus = "backlog"
	StatusReady      TicketStatus = "ready"
	StatusInProgress TicketStatus = "in_progress"
	StatusBlocked    TicketStatus = "blocked"
	StatusInReview   TicketStatus = "in_review"
	StatusDone       TicketStatus = "done"
)

// Priority represents the urgency level of a ticket.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Ticket is a unit of work with a validated lifecycle. Status and
// AssignedAgentID are mutated only through the orchestrator so that event
// emission and permission checks cannot be bypassed.
type Ticket struct {
	ID               string       `yaml:"id" json:"id"`
	Title            string       `yaml:"title" json:"title"`
	Description      string       `yaml:"description,omitempty" json:"description,omitempty"`
	Type             TicketType   `yaml:"type" json:"type"`
	Priority         Priority     `yaml:"priority" json:"priority"`
	Status           TicketStatus `yaml:"status" json:"status"`
	AssignedAgentID  string       `yaml:"assigned_agent,omitempty" json:"assigned_agent,omitempty"`
	CreatedByAgentID string       `yaml:"created_by" json:"created_by"`
	ThreadID         string       `yaml:"thread_id,omitempty" json:"thread_id,omitempty"`
	CreatedAt        time.Time    `yaml:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `yaml:"updated_at" json:"updated_at"`
	DueDate          *time.Time   `yaml:"due_date,omitempty" json:"due_date,omitempty"`
}
