package models

import (
	"encoding/json"
	"time"
)

// Urgency represents how quickly an event should be acted upon.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// SourceKind distinguishes events produced by agents from those produced
// by a human operator.
type SourceKind string

const (
	SourceAgent SourceKind = "agent"
	SourceHuman SourceKind = "human"
)

// EventSource identifies the producer of an event. AgentID is set only
// when Kind is SourceAgent.
type EventSource struct {
	Kind    SourceKind `json:"kind" yaml:"kind"`
	AgentID string     `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
}

// AgentSource returns an EventSource for the given agent.
func AgentSource(agentID string) EventSource {
	return EventSource{Kind: SourceAgent, AgentID: agentID}
}

// HumanSource returns the EventSource for human-originated events.
func HumanSource() EventSource {
	return EventSource{Kind: SourceHuman}
}

// String returns a stable textual form used for filtering and telemetry.
func (s EventSource) String() string {
	if s.Kind == SourceAgent {
		return "agent:" + s.AgentID
	}
	return string(SourceHuman)
}

// EventType tags an event with its registered kind. The set of types is
// closed: every type carried by an Event must exist in the bus registry.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketStatusChanged EventType = "ticket.status_changed"
	EventTicketAssigned      EventType = "ticket.assigned"
	EventTicketBlocked       EventType = "ticket.blocked"
	EventMeetingScheduled    EventType = "meeting.scheduled"
	EventMeetingStarted      EventType = "meeting.started"
	EventMeetingCompleted    EventType = "meeting.completed"
	EventMeetingCanceled     EventType = "meeting.canceled"
	EventMessagePosted       EventType = "message.posted"
	EventNotification        EventType = "notification.raised"
	EventKnowledgeStored     EventType = "memory.knowledge_stored"
	EventToolInvoked         EventType = "tool.invoked"
	EventFileChanged         EventType = "filesystem.changed"
	EventPlanCompleted       EventType = "product.plan_completed"
)

// Event is the immutable envelope delivered through the bus. Payload is an
// opaque JSON document; subscribers filter on envelope fields only.
type Event struct {
	ID        string          `json:"id" yaml:"id"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Source    EventSource     `json:"source" yaml:"source"`
	Urgency   Urgency         `json:"urgency" yaml:"urgency"`
	Type      EventType       `json:"type" yaml:"type"`
	Payload   json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// --- Typed payloads ---
// Payload structs are marshalled into Event.Payload by producers. The bus
// never inspects them.

// TicketCreatedPayload accompanies EventTicketCreated.
type TicketCreatedPayload struct {
	TicketID string `json:"ticket_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
}

// TicketStatusChangedPayload accompanies EventTicketStatusChanged.
type TicketStatusChangedPayload struct {
	TicketID string `json:"ticket_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Actor    string `json:"actor"`
}

// TicketAssignedPayload accompanies EventTicketAssigned.
type TicketAssignedPayload struct {
	TicketID string `json:"ticket_id"`
	AgentID  string `json:"agent_id,omitempty"`
	Actor    string `json:"actor"`
}

// TicketBlockedPayload accompanies EventTicketBlocked.
type TicketBlockedPayload struct {
	TicketID   string `json:"ticket_id"`
	Reason     string `json:"reason"`
	Escalation string `json:"escalation"`
	Process    string `json:"process"`
	Reporter   string `json:"reporter"`
}

// MeetingPayload accompanies the meeting.* event family.
type MeetingPayload struct {
	MeetingID string `json:"meeting_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

// KnowledgeStoredPayload accompanies EventKnowledgeStored.
type KnowledgeStoredPayload struct {
	KnowledgeID string   `json:"knowledge_id"`
	TaskType    string   `json:"task_type,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Outcome     string   `json:"outcome"`
}

// PlanCompletedPayload accompanies EventPlanCompleted.
type PlanCompletedPayload struct {
	PlanID    string `json:"plan_id"`
	TicketID  string `json:"ticket_id"`
	AgentID   string `json:"agent_id"`
	Outcome   string `json:"outcome"`
	StepCount int    `json:"step_count"`
}

// MarshalPayload encodes a typed payload for embedding in an Event.
func MarshalPayload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
