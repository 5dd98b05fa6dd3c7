package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultConfig = `# propel configuration
data_dir: .propel

agents:
  - builder

reasoning:
  timeout: 30s

recall:
  description: 0.30
  tags: 0.25
  task_type: 0.20
  recency: 0.15
  complexity: 0.10

# cadence:
#   - name: Daily standup
#     type: standup
#     schedule: "0 9 * * 1-5"
#     participants: [builder]
`

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a propel workspace",
	Long: `Initialize a new or existing directory as a propel workspace: a
.propelrc configuration file and the data directory it points at.

Safe to run on existing workspaces -- files that already exist are
skipped and not overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		basePath := "."
		if len(args) > 0 {
			basePath = args[0]
		}
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		configPath := filepath.Join(absPath, ".propelrc")
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Skipped %s (already exists)\n", configPath)
		} else {
			if err := os.MkdirAll(absPath, 0o750); err != nil {
				return fmt.Errorf("initializing workspace: %w", err)
			}
			if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
				return fmt.Errorf("initializing workspace: writing config: %w", err)
			}
			fmt.Printf("Created %s\n", configPath)
		}

		dataDir := filepath.Join(absPath, ".propel")
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return fmt.Errorf("initializing workspace: creating data dir: %w", err)
		}

		fmt.Printf("\nWorkspace initialized at %s\n", absPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
