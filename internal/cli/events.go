package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/propelhq/propel/internal/bus"
	"github.com/propelhq/propel/pkg/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the event log (tail, replay, watch)",
	Long: `Event log commands.

Every state change in the system is published as an event and persisted
in publish order. Tail shows the most recent entries, replay queries a
time window, and watch streams live events to the terminal.`,
}

var eventsTailCount int

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if EventStore == nil {
			return fmt.Errorf("event store not initialized")
		}

		events, err := EventStore.TailEvents(cmd.Context(), eventsTailCount)
		if err != nil {
			return fmt.Errorf("tailing events: %w", err)
		}
		renderEvents(events)
		return nil
	},
}

var (
	eventsReplayFrom  string
	eventsReplayTo    string
	eventsReplayTypes []string
)

var eventsReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay persisted events from a time window",
	Long: `Replay persisted events with timestamps inside [--from, --to],
optionally filtered by type. Events are returned in the order they were
originally published.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Bus == nil {
			return fmt.Errorf("event bus not initialized")
		}

		from := time.Now().UTC().Add(-24 * time.Hour)
		to := time.Now().UTC()
		var err error
		if eventsReplayFrom != "" {
			if from, err = time.Parse(time.RFC3339, eventsReplayFrom); err != nil {
				return fmt.Errorf("replaying events: parsing --from: %w", err)
			}
		}
		if eventsReplayTo != "" {
			if to, err = time.Parse(time.RFC3339, eventsReplayTo); err != nil {
				return fmt.Errorf("replaying events: parsing --to: %w", err)
			}
		}

		filter := bus.Filter{}
		for _, t := range eventsReplayTypes {
			filter.Types = append(filter.Types, models.EventType(t))
		}

		events, err := Bus.Replay(cmd.Context(), from, to, filter)
		if err != nil {
			return fmt.Errorf("replaying events: %w", err)
		}
		renderEvents(events)
		return nil
	},
}

var eventsWatchTypes []string

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live events to the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Bus == nil {
			return fmt.Errorf("event bus not initialized")
		}

		filter := bus.Filter{}
		for _, t := range eventsWatchTypes {
			filter.Types = append(filter.Types, models.EventType(t))
		}

		sub := Bus.Subscribe("cli:watch", filter)
		defer sub.Close()

		fmt.Println("Watching events (Ctrl-C to stop)...")
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-sub.Events():
				if !ok {
					return nil
				}
				fmt.Printf("%s  %-24s %-12s %s\n",
					event.Timestamp.Local().Format("15:04:05"),
					event.Type,
					event.Source,
					string(event.Payload))
			}
		}
	},
}

func renderEvents(events []models.Event) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Time", "Type", "Source", "Urgency", "Payload"})
	for _, e := range events {
		payload := string(e.Payload)
		if len(payload) > 60 {
			payload = payload[:57] + "..."
		}
		tw.AppendRow(table.Row{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Type,
			e.Source,
			e.Urgency,
			payload,
		})
	}
	tw.Render()
}

func init() {
	eventsTailCmd.Flags().IntVarP(&eventsTailCount, "count", "n", 20, "Number of events to show")

	eventsReplayCmd.Flags().StringVar(&eventsReplayFrom, "from", "", "Window start (RFC3339, default 24h ago)")
	eventsReplayCmd.Flags().StringVar(&eventsReplayTo, "to", "", "Window end (RFC3339, default now)")
	eventsReplayCmd.Flags().StringSliceVar(&eventsReplayTypes, "type", nil, "Filter by event type (repeatable)")

	eventsWatchCmd.Flags().StringSliceVar(&eventsWatchTypes, "type", nil, "Filter by event type (repeatable)")

	eventsCmd.AddCommand(eventsTailCmd)
	eventsCmd.AddCommand(eventsReplayCmd)
	eventsCmd.AddCommand(eventsWatchCmd)

	rootCmd.AddCommand(eventsCmd)
}
