// Package internal provides the App struct that wires all components of
// the propel coordination substrate together and initializes the CLI
// layer.
package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/propelhq/propel/internal/agent"
	"github.com/propelhq/propel/internal/bus"
	"github.com/propelhq/propel/internal/cli"
	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/internal/messaging"
	"github.com/propelhq/propel/internal/observability"
	"github.com/propelhq/propel/internal/reasoning"
	"github.com/propelhq/propel/internal/storage"
)

// App holds all service dependencies for the propel system.
type App struct {
	BasePath string
	Config   *core.Config

	// Storage layer
	TicketStore    storage.TicketStore
	MeetingStore   storage.MeetingStore
	KnowledgeStore storage.KnowledgeStore
	EventStore     *storage.SQLiteEventStore

	// Event bus and telemetry
	Bus       *bus.Bus
	Telemetry observability.Sink

	// Messaging
	Threads messaging.ThreadManager

	// Core services
	ConfigMgr    core.ConfigurationManager
	Scheduler    *core.MeetingScheduler
	Orchestrator *core.TicketOrchestrator
	KnowledgeMgr core.KnowledgeManager
	Planner      *core.Planner
	Executor     *core.Executor
	Cadence      *core.CadenceRunner

	// Reasoning collaborator
	Reasoner reasoning.Reasoner

	// Agents
	Runner *agent.Runner
}

// NewApp creates and wires all components of the propel system.
// basePath is the directory where .propelrc resides; data lives under
// the configured data directory below it.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}
	logger := slog.Default()

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	app.Config = cfg

	dataDir := cfg.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(basePath, dataDir)
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("initializing app: creating data dir: %w", err)
	}

	// --- Telemetry ---
	sink, err := observability.NewJSONLSink(filepath.Join(dataDir, "telemetry.jsonl"))
	if err != nil {
		// Non-fatal: run without the sink if the file can't be created.
		logger.Warn("telemetry sink disabled", "error", err)
		sink = nil
	}
	app.Telemetry = sink

	// --- Storage layer ---
	app.EventStore, err = storage.OpenEventStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	app.TicketStore = storage.NewTicketStore(dataDir)
	app.MeetingStore = storage.NewMeetingStore(dataDir)
	app.KnowledgeStore = storage.NewKnowledgeStore(dataDir)
	for name, load := range map[string]func() error{
		"tickets":   app.TicketStore.Load,
		"meetings":  app.MeetingStore.Load,
		"knowledge": app.KnowledgeStore.Load,
	} {
		if err := load(); err != nil {
			return nil, fmt.Errorf("initializing app: loading %s: %w", name, err)
		}
	}

	// --- Event bus ---
	app.Bus = bus.New(app.EventStore, app.Telemetry)

	// --- Messaging ---
	app.Threads = messaging.NewThreadManager(dataDir, app.Bus)
	if err := app.Threads.Load(); err != nil {
		return nil, fmt.Errorf("initializing app: loading threads: %w", err)
	}

	// --- Core services ---
	app.Scheduler = core.NewMeetingScheduler(app.MeetingStore, app.Threads, app.Bus, logger)
	app.Orchestrator = core.NewTicketOrchestrator(app.TicketStore, app.Threads, app.Scheduler, app.Bus, logger)
	app.KnowledgeMgr = core.NewKnowledgeManager(app.KnowledgeStore, app.Bus, cfg.RecallWeights, logger)

	retryPolicy := reasoning.DefaultRetryPolicy()
	retryPolicy.MaxAttempts = cfg.ReasoningAttempts
	app.Reasoner = reasoning.WithRetry(
		reasoning.WithTimeout(reasoning.NewHeuristicReasoner(), cfg.ReasoningTimeout),
		retryPolicy,
	)
	app.Planner = core.NewPlanner(app.Reasoner, app.KnowledgeMgr, logger)
	app.Executor = core.NewExecutor(app.Reasoner, app.Planner, app.KnowledgeMgr, app.Bus, logger)

	app.Cadence = core.NewCadenceRunner(app.Scheduler, logger)
	app.Cadence.Register(cfg.Cadence)

	// --- Agents ---
	app.Runner = agent.NewRunner(app.Bus, app.Orchestrator, app.Executor, logger)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Bus = app.Bus
	cli.Orchestrator = app.Orchestrator
	cli.Scheduler = app.Scheduler
	cli.MeetingStore = app.MeetingStore
	cli.EventStore = app.EventStore
	cli.KnowledgeMgr = app.KnowledgeMgr
	cli.Runner = app.Runner
	cli.Cadence = app.Cadence

	return app, nil
}

// Close releases resources held by the App: the event log database and
// the telemetry sink, and shuts the bus down.
func (a *App) Close() error {
	if a.Cadence != nil {
		a.Cadence.Stop()
	}
	if a.Bus != nil {
		a.Bus.Close()
	}
	var firstErr error
	if a.EventStore != nil {
		if err := a.EventStore.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the base path for the propel data
// directory: PROPEL_HOME if set, otherwise the nearest ancestor
// directory containing .propelrc, otherwise the working directory.
func ResolveBasePath() string {
	if home := os.Getenv("PROPEL_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".propelrc")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
