package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Run the configured agents",
	Long: `Agent runtime commands.

Agents subscribe to the event bus, pick up tickets assigned to them, and
work each one through the perceive-plan-execute-learn loop.`,
}

var agentsRunNames []string

var agentsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run agents until interrupted",
	Long: `Run the configured agents in the foreground. Each agent subscribes to
ticket assignment events and executes assigned work. Cadence meetings
fire while the runner is up. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Runner == nil {
			return fmt.Errorf("agent runner not initialized")
		}

		names := agentsRunNames
		if len(names) == 0 && Config != nil {
			names = Config.Agents
		}
		if len(names) == 0 {
			return fmt.Errorf("no agents configured")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if Cadence != nil {
			Cadence.Start()
			defer Cadence.Stop()
		}

		fmt.Printf("Running agents: %s (Ctrl-C to stop)\n", strings.Join(names, ", "))
		return Runner.Run(ctx, names)
	},
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return fmt.Errorf("config not initialized")
		}
		for _, name := range Config.Agents {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	agentsRunCmd.Flags().StringSliceVar(&agentsRunNames, "agent", nil, "Agents to run (default: all configured)")

	agentsCmd.AddCommand(agentsRunCmd)
	agentsCmd.AddCommand(agentsListCmd)
	rootCmd.AddCommand(agentsCmd)
}
