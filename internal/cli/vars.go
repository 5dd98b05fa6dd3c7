package cli

import (
	"github.com/propelhq/propel/internal/agent"
	"github.com/propelhq/propel/internal/bus"
	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/internal/storage"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath     string
	Config       *core.Config
	Bus          *bus.Bus
	Orchestrator *core.TicketOrchestrator
	Scheduler    *core.MeetingScheduler
	MeetingStore storage.MeetingStore
	EventStore   *storage.SQLiteEventStore
	KnowledgeMgr core.KnowledgeManager
	Runner       *agent.Runner
	Cadence      *core.CadenceRunner
)
