// Package agent runs the per-agent work loops. Each agent is one
// goroutine supervised by an errgroup: it watches the bus for tickets
// assigned to it, walks them into progress, runs the PROPEL loop, and
// reports the result back through the orchestrator.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/propelhq/propel/internal/bus"
	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/pkg/models"
)

// Runner supervises one goroutine per named agent.
type Runner struct {
	bus          *bus.Bus
	orchestrator *core.TicketOrchestrator
	executor     *core.Executor
	logger       *slog.Logger
}

// NewRunner creates a Runner over the shared bus, orchestrator, and
// executor.
func NewRunner(b *bus.Bus, orchestrator *core.TicketOrchestrator, executor *core.Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{bus: b, orchestrator: orchestrator, executor: executor, logger: logger}
}

// Run starts one goroutine per agent and blocks until the context is
// canceled or an agent loop fails. Cancellation is cooperative: an
// in-flight plan run finishes before the loop exits.
func (r *Runner) Run(ctx context.Context, agents []string) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, name := range agents {
		name := name
		group.Go(func() error {
			return r.runAgent(ctx, name)
		})
	}
	return group.Wait()
}

func (r *Runner) runAgent(ctx context.Context, name string) error {
	sub := r.bus.Subscribe("agent:"+name, bus.Filter{
		Types: []models.EventType{models.EventTicketAssigned},
	})
	defer sub.Close()

	r.logger.Info("agent started", "agent", name)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("agent stopping", "agent", name)
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			r.handleAssignment(ctx, name, event)
		}
	}
}

// handleAssignment picks up a ticket newly assigned to this agent,
// moves it into progress, runs PROPEL, and advances it to review on
// success.
func (r *Runner) handleAssignment(ctx context.Context, name string, event models.Event) {
	var payload models.TicketAssignedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		r.logger.Error("decoding assignment payload", "agent", name, "error", err)
		return
	}
	if payload.AgentID != name {
		return
	}

	ticket, err := r.orchestrator.GetTicket(payload.TicketID)
	if err != nil {
		r.logger.Error("loading assigned ticket", "agent", name, "ticket_id", payload.TicketID, "error", err)
		return
	}

	if ticket.Status == models.StatusBacklog {
		if err := r.orchestrator.TransitionTicketStatus(ctx, ticket.ID, models.StatusReady, name); err != nil {
			r.logger.Error("readying ticket", "agent", name, "ticket_id", ticket.ID, "error", err)
			return
		}
		ticket.Status = models.StatusReady
	}
	if ticket.Status == models.StatusReady {
		if err := r.orchestrator.TransitionTicketStatus(ctx, ticket.ID, models.StatusInProgress, name); err != nil {
			r.logger.Error("starting ticket", "agent", name, "ticket_id", ticket.ID, "error", err)
			return
		}
	}

	outcome, err := r.executor.Run(ctx, models.WorkItem{Ticket: *ticket, AgentID: name})
	if err != nil {
		r.logger.Error("plan run failed", "agent", name, "ticket_id", ticket.ID, "error", err)
		return
	}

	r.logger.Info("plan run finished",
		"agent", name,
		"ticket_id", ticket.ID,
		"outcome", outcome.Kind,
		"steps", len(outcome.Steps))

	if outcome.Kind == models.OutcomeSuccess {
		if err := r.orchestrator.TransitionTicketStatus(ctx, ticket.ID, models.StatusInReview, name); err != nil {
			r.logger.Error("moving ticket to review", "agent", name, "ticket_id", ticket.ID, "error", err)
		}
	}
}
