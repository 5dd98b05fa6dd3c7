package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/propelhq/propel/internal/bus"
	"github.com/propelhq/propel/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for tickets, meetings, and events",
	Long: `Launch an interactive terminal dashboard showing ticket status,
upcoming meetings, and the live event feed.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Bus == nil || Orchestrator == nil || MeetingStore == nil {
			return fmt.Errorf("services not initialized")
		}

		sub := Bus.Subscribe("cli:dashboard", bus.Filter{})
		defer sub.Close()

		p := tea.NewProgram(dashboard.New(sub, Orchestrator, MeetingStore), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
