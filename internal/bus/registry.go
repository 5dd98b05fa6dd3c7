// Package bus implements the in-process event bus: a registry of event
// types, publish/subscribe fan-out with a single serialization point, and
// historical replay from the persisted event log.
package bus

import (
	"sort"

	"github.com/propelhq/propel/pkg/models"
)

// EventMeta describes a registered event type. The registry is the closed
// set of types the bus will accept; it lets subscribers filter on envelope
// fields without deserializing payloads.
type EventMeta struct {
	Type        models.EventType
	Category    string
	Description string
}

// registry is populated once at process start and read-only thereafter.
var registry = map[models.EventType]EventMeta{
	models.EventTicketCreated:       {models.EventTicketCreated, "ticket", "a ticket was created in the backlog"},
	models.EventTicketStatusChanged: {models.EventTicketStatusChanged, "ticket", "a ticket moved to a new lifecycle status"},
	models.EventTicketAssigned:      {models.EventTicketAssigned, "ticket", "a ticket was assigned or unassigned"},
	models.EventTicketBlocked:       {models.EventTicketBlocked, "ticket", "a ticket was blocked with an escalation reason"},
	models.EventMeetingScheduled:    {models.EventMeetingScheduled, "meeting", "a meeting was scheduled"},
	models.EventMeetingStarted:      {models.EventMeetingStarted, "meeting", "a meeting moved to in progress"},
	models.EventMeetingCompleted:    {models.EventMeetingCompleted, "meeting", "a meeting completed with attendees and outcomes"},
	models.EventMeetingCanceled:     {models.EventMeetingCanceled, "meeting", "a meeting was canceled"},
	models.EventMessagePosted:       {models.EventMessagePosted, "message", "a message was posted to a ticket thread"},
	models.EventNotification:        {models.EventNotification, "notification", "an operator-facing notification was raised"},
	models.EventKnowledgeStored:     {models.EventKnowledgeStored, "memory", "a knowledge entry was written to memory"},
	models.EventToolInvoked:         {models.EventToolInvoked, "tool", "an external tool was invoked by an agent"},
	models.EventFileChanged:         {models.EventFileChanged, "filesystem", "a watched file changed"},
	models.EventPlanCompleted:       {models.EventPlanCompleted, "product", "a plan run finished with an aggregate outcome"},
}

// Registered reports whether the event type is part of the closed set.
func Registered(t models.EventType) bool {
	_, ok := registry[t]
	return ok
}

// Lookup returns the metadata for a registered event type.
func Lookup(t models.EventType) (EventMeta, bool) {
	meta, ok := registry[t]
	return meta, ok
}

// RegisteredTypes returns all registered types sorted by name.
func RegisteredTypes() []EventMeta {
	metas := make([]EventMeta, 0, len(registry))
	for _, m := range registry {
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Type < metas[j].Type })
	return metas
}
