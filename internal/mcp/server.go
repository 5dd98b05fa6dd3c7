// Package mcp provides an MCP (Model Context Protocol) server that exposes
// propel functionality as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

// Server wraps propel services and exposes them as MCP tools.
type Server struct {
	server       *gomcp.Server
	orchestrator *core.TicketOrchestrator
	meetings     storage.MeetingStore
	knowledge    core.KnowledgeManager
	caller       string
}

// NewServer creates an MCP server over the given services. caller names
// the agent identity used for mutations issued through MCP.
func NewServer(orchestrator *core.TicketOrchestrator, meetings storage.MeetingStore, knowledge core.KnowledgeManager, caller, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if caller == "" {
		caller = "mcp"
	}

	s := &Server{
		orchestrator: orchestrator,
		meetings:     meetings,
		knowledge:    knowledge,
		caller:       caller,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "propel", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type createTicketInput struct {
	Title       string `json:"title" jsonschema:"required,the ticket title"`
	Description string `json:"description,omitempty" jsonschema:"the ticket description"`
	Type        string `json:"type,omitempty" jsonschema:"ticket type (feature, bug, task, spike); defaults to task"`
	Priority    string `json:"priority,omitempty" jsonschema:"priority (low, medium, high, critical); defaults to medium"`
}

type ticketOutput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Assignee string `json:"assignee,omitempty"`
	Creator  string `json:"creator"`
	ThreadID string `json:"thread_id,omitempty"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

type listTicketsInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter by status (backlog, ready, in_progress, blocked, in_review, done)"`
}

type listTicketsOutput struct {
	Tickets []ticketOutput `json:"tickets"`
	Count   int            `json:"count"`
}

type transitionTicketInput struct {
	TicketID string `json:"ticket_id" jsonschema:"required,the ticket identifier"`
	Status   string `json:"status" jsonschema:"required,the target status (ready, in_progress, blocked, in_review, done)"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type assignTicketInput struct {
	TicketID string `json:"ticket_id" jsonschema:"required,the ticket identifier"`
	AgentID  string `json:"agent_id,omitempty" jsonschema:"the agent to assign; empty unassigns"`
}

type blockTicketInput struct {
	TicketID   string `json:"ticket_id" jsonschema:"required,the ticket identifier"`
	Reason     string `json:"reason" jsonschema:"required,why the work is blocked"`
	Escalation string `json:"escalation" jsonschema:"required,the escalation reason name (e.g. architecture_discussion)"`
}

type listMeetingsInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter by status (scheduled, delayed, in_progress, completed, canceled)"`
}

type meetingOutput struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Title        string   `json:"title"`
	TicketID     string   `json:"ticket_id,omitempty"`
	ScheduledFor string   `json:"scheduled_for"`
	Required     []string `json:"required_participants"`
}

type listMeetingsOutput struct {
	Meetings []meetingOutput `json:"meetings"`
	Count    int             `json:"count"`
}

type recallKnowledgeInput struct {
	Description string   `json:"description,omitempty" jsonschema:"free text describing the work at hand"`
	Tags        []string `json:"tags,omitempty" jsonschema:"tags to match against stored knowledge"`
	TaskType    string   `json:"task_type,omitempty" jsonschema:"the task type to match (feature, bug, task, spike)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum entries to return; defaults to 10"`
}

type knowledgeOutput struct {
	ID        string  `json:"id"`
	Approach  string  `json:"approach"`
	Learnings string  `json:"learnings"`
	TaskType  string  `json:"task_type,omitempty"`
	Outcome   string  `json:"outcome"`
	Score     float64 `json:"score"`
}

type recallKnowledgeOutput struct {
	Entries []knowledgeOutput `json:"entries"`
	Count   int               `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_ticket",
		Description: "Create a new ticket in the backlog. Opens a discussion thread and announces the ticket on the event bus.",
	}, s.handleCreateTicket)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tickets",
		Description: "List tickets with an optional status filter. Returns an array of ticket summaries.",
	}, s.handleListTickets)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "transition_ticket",
		Description: "Move a ticket along its lifecycle. Valid statuses: ready, in_progress, blocked, in_review, done; the transition table decides legality.",
	}, s.handleTransitionTicket)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "assign_ticket",
		Description: "Assign a ticket to an agent, or unassign it by passing an empty agent_id.",
	}, s.handleAssignTicket)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "block_ticket",
		Description: "Block a ticket for a cataloged escalation reason. Schedules a meeting when the escalation process requires one.",
	}, s.handleBlockTicket)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_meetings",
		Description: "List meetings with an optional status filter, ordered by scheduled time.",
	}, s.handleListMeetings)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "recall_knowledge",
		Description: "Recall stored knowledge ranked by relevance to a description, tags, and task type.",
	}, s.handleRecallKnowledge)
}

// --- Tool handlers ---

func (s *Server) handleCreateTicket(ctx context.Context, _ *gomcp.CallToolRequest, input createTicketInput) (*gomcp.CallToolResult, ticketOutput, error) {
	if input.Title == "" {
		return errorResult("title is required"), ticketOutput{}, nil
	}

	ticketType := models.TicketType(input.Type)
	if input.Type == "" {
		ticketType = models.TicketTask
	}
	priority := models.Priority(input.Priority)
	if input.Priority == "" {
		priority = models.PriorityMedium
	}

	ticket, _, err := s.orchestrator.CreateTicket(ctx, input.Title, input.Description, ticketType, priority, s.caller)
	if err != nil {
		return errorResult(fmt.Sprintf("creating ticket: %s", err)), ticketOutput{}, nil
	}
	return nil, ticketToOutput(ticket), nil
}

func (s *Server) handleListTickets(_ context.Context, _ *gomcp.CallToolRequest, input listTicketsInput) (*gomcp.CallToolResult, listTicketsOutput, error) {
	filter := storage.TicketFilter{}
	if input.Status != "" {
		filter.Status = []models.TicketStatus{models.TicketStatus(input.Status)}
	}

	tickets, err := s.orchestrator.ListTickets(filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tickets: %s", err)), listTicketsOutput{}, nil
	}

	out := listTicketsOutput{
		Tickets: make([]ticketOutput, len(tickets)),
		Count:   len(tickets),
	}
	for i := range tickets {
		out.Tickets[i] = ticketToOutput(&tickets[i])
	}
	return nil, out, nil
}

func (s *Server) handleTransitionTicket(ctx context.Context, _ *gomcp.CallToolRequest, input transitionTicketInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TicketID == "" {
		return errorResult("ticket_id is required"), messageOutput{}, nil
	}
	if input.Status == "" {
		return errorResult("status is required"), messageOutput{}, nil
	}

	err := s.orchestrator.TransitionTicketStatus(ctx, input.TicketID, models.TicketStatus(input.Status), s.caller)
	if err != nil {
		return errorResult(fmt.Sprintf("transitioning ticket %s: %s", input.TicketID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("ticket %s moved to %s", input.TicketID, input.Status)}, nil
}

func (s *Server) handleAssignTicket(ctx context.Context, _ *gomcp.CallToolRequest, input assignTicketInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TicketID == "" {
		return errorResult("ticket_id is required"), messageOutput{}, nil
	}

	if err := s.orchestrator.AssignTicket(ctx, input.TicketID, input.AgentID, s.caller); err != nil {
		return errorResult(fmt.Sprintf("assigning ticket %s: %s", input.TicketID, err)), messageOutput{}, nil
	}

	message := fmt.Sprintf("ticket %s assigned to %s", input.TicketID, input.AgentID)
	if input.AgentID == "" {
		message = fmt.Sprintf("ticket %s unassigned", input.TicketID)
	}
	return nil, messageOutput{Message: message}, nil
}

func (s *Server) handleBlockTicket(ctx context.Context, _ *gomcp.CallToolRequest, input blockTicketInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TicketID == "" {
		return errorResult("ticket_id is required"), messageOutput{}, nil
	}
	if input.Reason == "" {
		return errorResult("reason is required"), messageOutput{}, nil
	}

	escalation, err := core.ParseEscalation(input.Escalation)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing escalation: %s", err)), messageOutput{}, nil
	}

	if err := s.orchestrator.BlockTicket(ctx, input.TicketID, input.Reason, escalation, s.caller, ""); err != nil {
		return errorResult(fmt.Sprintf("blocking ticket %s: %s", input.TicketID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("ticket %s blocked (%s)", input.TicketID, escalation)}, nil
}

func (s *Server) handleListMeetings(_ context.Context, _ *gomcp.CallToolRequest, input listMeetingsInput) (*gomcp.CallToolResult, listMeetingsOutput, error) {
	meetings, err := s.meetings.ListMeetings(models.MeetingStatus(input.Status))
	if err != nil {
		return errorResult(fmt.Sprintf("listing meetings: %s", err)), listMeetingsOutput{}, nil
	}

	out := listMeetingsOutput{
		Meetings: make([]meetingOutput, len(meetings)),
		Count:    len(meetings),
	}
	for i, m := range meetings {
		out.Meetings[i] = meetingOutput{
			ID:           m.ID,
			Type:         string(m.Type),
			Status:       string(m.Status),
			Title:        m.Invitation.Title,
			TicketID:     m.TicketID,
			ScheduledFor: m.ScheduledFor.Format(time.RFC3339),
			Required:     m.Invitation.RequiredParticipants,
		}
	}
	return nil, out, nil
}

func (s *Server) handleRecallKnowledge(_ context.Context, _ *gomcp.CallToolRequest, input recallKnowledgeInput) (*gomcp.CallToolResult, recallKnowledgeOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	scored, err := s.knowledge.Recall(models.KnowledgeQuery{
		Description: input.Description,
		Tags:        input.Tags,
		TaskType:    input.TaskType,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("recalling knowledge: %s", err)), recallKnowledgeOutput{}, nil
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}

	out := recallKnowledgeOutput{
		Entries: make([]knowledgeOutput, len(scored)),
		Count:   len(scored),
	}
	for i, entry := range scored {
		out.Entries[i] = knowledgeOutput{
			ID:        entry.Knowledge.ID,
			Approach:  entry.Knowledge.Approach,
			Learnings: entry.Knowledge.Learnings,
			TaskType:  entry.Knowledge.TaskType,
			Outcome:   string(entry.Knowledge.Outcome),
			Score:     entry.Score,
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func ticketToOutput(t *models.Ticket) ticketOutput {
	return ticketOutput{
		ID:       t.ID,
		Title:    t.Title,
		Type:     string(t.Type),
		Status:   string(t.Status),
		Priority: string(t.Priority),
		Assignee: t.AssignedAgentID,
		Creator:  t.CreatedByAgentID,
		ThreadID: t.ThreadID,
		Created:  t.CreatedAt.Format(time.RFC3339),
		Updated:  t.UpdatedAt.Format(time.RFC3339),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
