package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propelhq/propel/internal/messaging"
	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

// escalationMeetingLead is how far ahead an escalation-triggered meeting
// is scheduled.
const escalationMeetingLead = 15 * time.Minute

// humanParticipant is the placeholder participant representing the human
// operator in escalation meetings.
const humanParticipant = "human"

// TicketOrchestrator is the single authority over ticket status and
// assignment. Every mutation checks the creator-or-assignee rule,
// validates the lifecycle table, persists, and announces the change on
// the bus and in the ticket's discussion thread.
type TicketOrchestrator struct {
	tickets   storage.TicketStore
	threads   messaging.ThreadManager
	scheduler *MeetingScheduler
	bus       Publisher
	logger    *slog.Logger
}

// NewTicketOrchestrator wires an orchestrator over its collaborators.
func NewTicketOrchestrator(tickets storage.TicketStore, threads messaging.ThreadManager, scheduler *MeetingScheduler, bus Publisher, logger *slog.Logger) *TicketOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketOrchestrator{
		tickets:   tickets,
		threads:   threads,
		scheduler: scheduler,
		bus:       bus,
		logger:    logger,
	}
}

// CreateTicket validates the title, persists a Backlog ticket, opens its
// discussion thread, and publishes TicketCreated.
func (o *TicketOrchestrator) CreateTicket(ctx context.Context, title, description string, ticketType models.TicketType, priority models.Priority, createdBy string) (*models.Ticket, *models.Thread, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil, &models.ValidationError{Field: "title", Reason: "must not be blank"}
	}

	now := time.Now().UTC()
	ticket := models.Ticket{
		ID:               uuid.NewString(),
		Title:            title,
		Description:      description,
		Type:             ticketType,
		Priority:         priority,
		Status:           models.StatusBacklog,
		CreatedByAgentID: createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := o.tickets.SaveTicket(ticket); err != nil {
		return nil, nil, &models.PersistenceError{Op: "save ticket", Err: err}
	}

	thread, err := o.threads.CreateThread(ctx, title, ticket.ID, []string{createdBy})
	if err != nil {
		return nil, nil, fmt.Errorf("creating ticket %s: opening thread: %w", ticket.ID, err)
	}
	if err := o.tickets.SetThread(ticket.ID, thread.ID); err != nil {
		return nil, nil, &models.PersistenceError{Op: "attach thread", Err: err}
	}
	ticket.ThreadID = thread.ID

	o.publish(ctx, models.AgentSource(createdBy), models.EventTicketCreated, models.MarshalPayload(models.TicketCreatedPayload{
		TicketID: ticket.ID,
		Title:    ticket.Title,
		Type:     string(ticket.Type),
		Priority: string(ticket.Priority),
	}))
	o.logger.Info("ticket created", "ticket_id", ticket.ID, "title", title, "created_by", createdBy)
	return &ticket, thread, nil
}

// TransitionTicketStatus moves a ticket along the lifecycle table. Only
// the creator or the assigned agent may transition. Leaving Blocked
// reopens the discussion thread before the status message is posted.
func (o *TicketOrchestrator) TransitionTicketStatus(ctx context.Context, id string, newStatus models.TicketStatus, actor string) error {
	ticket, err := o.tickets.GetTicket(id)
	if err != nil {
		return err
	}
	if err := o.authorize(*ticket, actor, "transition"); err != nil {
		return err
	}
	if !CanTransitionTicket(ticket.Status, newStatus) {
		return &models.InvalidTransitionError{
			EntityID:     id,
			From:         string(ticket.Status),
			To:           string(newStatus),
			ValidTargets: ticketStatusStrings(ValidTicketTransitions(ticket.Status)),
		}
	}

	previous := ticket.Status
	if err := o.tickets.UpdateStatus(id, newStatus); err != nil {
		return &models.PersistenceError{Op: "update ticket status", Err: err}
	}

	o.publish(ctx, models.AgentSource(actor), models.EventTicketStatusChanged, models.MarshalPayload(models.TicketStatusChangedPayload{
		TicketID: id,
		From:     string(previous),
		To:       string(newStatus),
		Actor:    actor,
	}))

	// Blocking parks the thread pending human input; moving out of
	// Blocked reopens it so the status message can land.
	if previous == models.StatusBlocked {
		if err := o.threads.ReopenThread(ctx, ticket.ThreadID); err != nil {
			o.logger.Warn("reopening thread", "ticket_id", id, "thread_id", ticket.ThreadID, "error", err)
		}
	}
	o.post(ctx, ticket.ThreadID, actor, fmt.Sprintf("status changed from %s to %s", previous, newStatus))
	return nil
}

// AssignTicket sets or clears the assigned agent. An empty target
// unassigns.
func (o *TicketOrchestrator) AssignTicket(ctx context.Context, id, targetAgent, actor string) error {
	ticket, err := o.tickets.GetTicket(id)
	if err != nil {
		return err
	}
	if err := o.authorize(*ticket, actor, "assign"); err != nil {
		return err
	}
	if err := o.tickets.AssignTicket(id, targetAgent); err != nil {
		return &models.PersistenceError{Op: "assign ticket", Err: err}
	}

	o.publish(ctx, models.AgentSource(actor), models.EventTicketAssigned, models.MarshalPayload(models.TicketAssignedPayload{
		TicketID: id,
		AgentID:  targetAgent,
		Actor:    actor,
	}))

	message := fmt.Sprintf("assigned to %s", targetAgent)
	if targetAgent == "" {
		message = "unassigned"
	}
	o.post(ctx, ticket.ThreadID, actor, message)
	return nil
}

// BlockTicket transitions a ticket into Blocked for a cataloged
// escalation reason. When the escalation process requires a meeting, the
// meeting is scheduled before the thread is escalated to a human:
// escalating first would park the thread before the meeting notice could
// be posted into it.
func (o *TicketOrchestrator) BlockTicket(ctx context.Context, id, reason string, escalation models.Escalation, reporter, assignee string) error {
	ticket, err := o.tickets.GetTicket(id)
	if err != nil {
		return err
	}
	if err := o.authorize(*ticket, reporter, "block"); err != nil {
		return err
	}
	if !CanTransitionTicket(ticket.Status, models.StatusBlocked) {
		return &models.InvalidTransitionError{
			EntityID:     id,
			From:         string(ticket.Status),
			To:           string(models.StatusBlocked),
			ValidTargets: ticketStatusStrings(ValidTicketTransitions(ticket.Status)),
		}
	}
	binding, err := LookupEscalation(escalation)
	if err != nil {
		return err
	}

	if err := o.tickets.UpdateStatus(id, models.StatusBlocked); err != nil {
		return &models.PersistenceError{Op: "update ticket status", Err: err}
	}
	assigned := ticket.AssignedAgentID
	if assignee != "" && assignee != ticket.AssignedAgentID {
		if err := o.tickets.AssignTicket(id, assignee); err != nil {
			return &models.PersistenceError{Op: "assign ticket", Err: err}
		}
		assigned = assignee
	}

	o.publish(ctx, models.AgentSource(reporter), models.EventTicketBlocked, models.MarshalPayload(models.TicketBlockedPayload{
		TicketID:   id,
		Reason:     reason,
		Escalation: string(escalation),
		Process:    string(binding.Process),
		Reporter:   reporter,
	}))

	if binding.Process.RequiresMeeting() {
		o.scheduleEscalationMeeting(ctx, *ticket, reason, escalation, binding, reporter, assigned)
	}

	// Escalate last so the meeting notice lands in the open thread.
	if err := o.threads.EscalateToHuman(ctx, ticket.ThreadID, reason); err != nil {
		o.logger.Error("escalating thread", "ticket_id", id, "thread_id", ticket.ThreadID, "error", err)
	}
	o.logger.Info("ticket blocked",
		"ticket_id", id,
		"escalation", escalation,
		"process", binding.Process,
		"reporter", reporter)
	return nil
}

// GetTicket returns a ticket by id.
func (o *TicketOrchestrator) GetTicket(id string) (*models.Ticket, error) {
	return o.tickets.GetTicket(id)
}

// ListTickets returns tickets matching the filter, oldest first.
func (o *TicketOrchestrator) ListTickets(filter storage.TicketFilter) ([]models.Ticket, error) {
	return o.tickets.ListTickets(filter)
}

// scheduleEscalationMeeting builds and schedules the meeting an
// escalation process demands. A meeting with no resolvable participant
// is skipped with an error log rather than failing the block.
func (o *TicketOrchestrator) scheduleEscalationMeeting(ctx context.Context, ticket models.Ticket, reason string, escalation models.Escalation, binding models.EscalationBinding, reporter, assigned string) {
	builder := NewMeetingBuilder(models.MeetingEscalation).
		Title(fmt.Sprintf("Escalation: %s", ticket.Title)).
		AgendaItem(reason).
		ForTicket(ticket.ID).
		At(time.Now().UTC().Add(escalationMeetingLead)).
		Require(assigned)
	if binding.Process.RequiresHuman() {
		builder.Require(humanParticipant)
	}
	builder.Invite(reporter)

	meeting, err := builder.Build()
	if err != nil {
		o.logger.Error("skipping escalation meeting: no resolvable participant",
			"ticket_id", ticket.ID,
			"escalation", escalation,
			"error", err)
		return
	}
	if _, err := o.scheduler.ScheduleMeeting(ctx, meeting, reporter); err != nil {
		o.logger.Error("scheduling escalation meeting", "ticket_id", ticket.ID, "error", err)
		return
	}
	o.post(ctx, ticket.ThreadID, reporter,
		fmt.Sprintf("meeting scheduled for %s at %s", escalation, meeting.ScheduledFor.Format(time.RFC3339)))
}

// authorize enforces the single permission rule: creator or assignee.
func (o *TicketOrchestrator) authorize(ticket models.Ticket, actor, action string) error {
	if actor == ticket.CreatedByAgentID || (ticket.AssignedAgentID != "" && actor == ticket.AssignedAgentID) {
		return nil
	}
	return &models.PermissionError{Actor: actor, EntityID: ticket.ID, Action: action}
}

func (o *TicketOrchestrator) publish(ctx context.Context, source models.EventSource, eventType models.EventType, payload []byte) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, models.Event{Source: source, Type: eventType, Payload: payload}); err != nil {
		o.logger.Error("publishing event", "type", eventType, "error", err)
	}
}

func (o *TicketOrchestrator) post(ctx context.Context, threadID, actor, body string) {
	if threadID == "" {
		return
	}
	if _, err := o.threads.PostMessage(ctx, threadID, models.AgentSource(actor), body); err != nil {
		o.logger.Warn("posting thread message", "thread_id", threadID, "error", err)
	}
}

func ticketStatusStrings(statuses []models.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
