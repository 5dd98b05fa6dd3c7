package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/propelhq/propel/internal/bus"
	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/internal/messaging"
	"github.com/propelhq/propel/internal/reasoning"
	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

// memEventStore keeps published events in memory for the bus.
type memEventStore struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *memEventStore) SaveEvent(ctx context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memEventStore) QueryEventsInRange(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Event
	for _, e := range s.events {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

type runnerFixture struct {
	runner       *Runner
	bus          *bus.Bus
	orchestrator *core.TicketOrchestrator
	tickets      storage.TicketStore
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	dir := t.TempDir()

	b := bus.New(&memEventStore{}, nil)
	t.Cleanup(b.Close)

	tickets := storage.NewTicketStore(dir)
	meetings := storage.NewMeetingStore(dir)
	knowledge := storage.NewKnowledgeStore(dir)
	threads := messaging.NewThreadManager(dir, b)

	scheduler := core.NewMeetingScheduler(meetings, threads, b, nil)
	orchestrator := core.NewTicketOrchestrator(tickets, threads, scheduler, b, nil)
	manager := core.NewKnowledgeManager(knowledge, b, core.RecallWeights{}, nil)

	reasoner := reasoning.NewHeuristicReasoner()
	planner := core.NewPlanner(reasoner, manager, nil)
	executor := core.NewExecutor(reasoner, planner, manager, b, nil)

	return &runnerFixture{
		runner:       NewRunner(b, orchestrator, executor, nil),
		bus:          b,
		orchestrator: orchestrator,
		tickets:      tickets,
	}
}

// waitForStatus polls until the ticket reaches the wanted status or the
// deadline passes.
func waitForStatus(t *testing.T, store storage.TicketStore, id string, want models.TicketStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ticket, err := store.GetTicket(id)
		if err != nil {
			t.Fatalf("GetTicket() error = %v", err)
		}
		if ticket.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	ticket, _ := store.GetTicket(id)
	t.Fatalf("ticket never reached %s, stuck at %s", want, ticket.Status)
}

func TestRunnerWorksAssignedTicketToReview(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx, []string{"builder"}) }()
	// Give the agent loop a moment to attach its subscription.
	time.Sleep(100 * time.Millisecond)

	ticket, _, err := f.orchestrator.CreateTicket(ctx, "Add auth", "Wire the middleware. Write tests", models.TicketTask, models.PriorityMedium, "planner")
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	if err := f.orchestrator.AssignTicket(ctx, ticket.ID, "builder", "planner"); err != nil {
		t.Fatalf("AssignTicket() error = %v", err)
	}

	// The agent readies, starts, runs the plan, and moves to review.
	waitForStatus(t, f.tickets, ticket.ID, models.StatusInReview)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}
}

func TestRunnerIgnoresOtherAgentsAssignments(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx, []string{"builder"}) }()
	time.Sleep(100 * time.Millisecond)

	ticket, _, err := f.orchestrator.CreateTicket(ctx, "Not for builder", "", models.TicketTask, models.PriorityLow, "planner")
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	if err := f.orchestrator.AssignTicket(ctx, ticket.ID, "reviewer", "planner"); err != nil {
		t.Fatalf("AssignTicket() error = %v", err)
	}

	// Nobody works the ticket: it stays in backlog.
	time.Sleep(300 * time.Millisecond)
	got, _ := f.tickets.GetTicket(ticket.ID)
	if got.Status != models.StatusBacklog {
		t.Errorf("status = %s, want backlog untouched", got.Status)
	}

	cancel()
	<-done
}

func TestRunnerStopsCleanlyWithoutWork(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx, []string{"builder", "reviewer"}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}
}
