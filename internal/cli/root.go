package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Version returns the version string set at build time.
func Version() string {
	return appVersion
}

var rootCmd = &cobra.Command{
	Use:   "propel",
	Short: "Propel - event-driven coordination substrate for agent teams",
	Long: `Propel coordinates a team of autonomous agents around a shared event
bus. It manages ticket lifecycles, escalates blockers into meetings or
human decisions, runs work through a perceive-plan-execute-learn loop,
and accumulates knowledge that biases future plans.

Every state change flows through the bus, so agents, dashboards, and
external tools observe the same ordered stream of events.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("propel %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
