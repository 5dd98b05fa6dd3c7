package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/propelhq/propel/pkg/models"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Query and add accumulated knowledge",
	Long: `Knowledge memory commands.

Agents store learnings after every plan run; recall scores entries
against a work description and surfaces the most relevant ones. Entries
are append-only and never mutated.`,
}

var (
	knowledgeRecallTags     []string
	knowledgeRecallTaskType string
	knowledgeRecallLimit    int
)

var knowledgeRecallCmd = &cobra.Command{
	Use:   "recall <description>",
	Short: "Recall knowledge relevant to a work description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if KnowledgeMgr == nil {
			return fmt.Errorf("knowledge manager not initialized")
		}

		scored, err := KnowledgeMgr.Recall(models.KnowledgeQuery{
			Description: args[0],
			Tags:        knowledgeRecallTags,
			TaskType:    knowledgeRecallTaskType,
		})
		if err != nil {
			return fmt.Errorf("recalling knowledge: %w", err)
		}
		if knowledgeRecallLimit > 0 && len(scored) > knowledgeRecallLimit {
			scored = scored[:knowledgeRecallLimit]
		}

		if len(scored) == 0 {
			fmt.Printf("No knowledge found for %q.\n", args[0])
			return nil
		}

		fmt.Printf("%d result(s) for %q:\n\n", len(scored), args[0])
		for _, s := range scored {
			k := s.Knowledge
			fmt.Printf("  %s  score %.2f  [%s/%s]\n", shortID(k.ID), s.Score, k.Outcome, k.TaskType)
			fmt.Printf("    approach:  %s\n", k.Approach)
			fmt.Printf("    learnings: %s\n", k.Learnings)
			if len(k.Tags) > 0 {
				fmt.Printf("    tags: %s\n", strings.Join(k.Tags, ", "))
			}
			fmt.Println()
		}
		return nil
	},
}

var (
	knowledgeAddLearnings  string
	knowledgeAddTags       []string
	knowledgeAddTaskType   string
	knowledgeAddOutcome    string
	knowledgeAddComplexity int
)

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <approach>",
	Short: "Record a knowledge entry manually",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if KnowledgeMgr == nil {
			return fmt.Errorf("knowledge manager not initialized")
		}

		entry, err := KnowledgeMgr.Store(cmd.Context(), models.Knowledge{
			Approach:   args[0],
			Learnings:  knowledgeAddLearnings,
			Tags:       knowledgeAddTags,
			TaskType:   knowledgeAddTaskType,
			Outcome:    models.OutcomeKind(knowledgeAddOutcome),
			Complexity: knowledgeAddComplexity,
		})
		if err != nil {
			return fmt.Errorf("adding knowledge: %w", err)
		}

		fmt.Printf("Stored knowledge entry %s.\n", entry.ID)
		return nil
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all knowledge entries in insertion order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if KnowledgeMgr == nil {
			return fmt.Errorf("knowledge manager not initialized")
		}

		entries, err := KnowledgeMgr.All()
		if err != nil {
			return fmt.Errorf("listing knowledge: %w", err)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Outcome", "Task Type", "Complexity", "Approach"})
		for _, k := range entries {
			approach := k.Approach
			if len(approach) > 50 {
				approach = approach[:47] + "..."
			}
			tw.AppendRow(table.Row{shortID(k.ID), k.Outcome, k.TaskType, k.Complexity, approach})
		}
		tw.Render()
		return nil
	},
}

func init() {
	knowledgeRecallCmd.Flags().StringSliceVar(&knowledgeRecallTags, "tags", nil, "Tags to match against")
	knowledgeRecallCmd.Flags().StringVar(&knowledgeRecallTaskType, "task-type", "", "Task type to match against")
	knowledgeRecallCmd.Flags().IntVar(&knowledgeRecallLimit, "limit", 10, "Maximum number of results")

	knowledgeAddCmd.Flags().StringVar(&knowledgeAddLearnings, "learnings", "", "What was learned")
	knowledgeAddCmd.Flags().StringSliceVar(&knowledgeAddTags, "tags", nil, "Comma-separated tags")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddTaskType, "task-type", "", "Task type the entry applies to")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddOutcome, "outcome", "success", "Outcome: success or failure")
	knowledgeAddCmd.Flags().IntVar(&knowledgeAddComplexity, "complexity", 5, "Complexity on a 1-10 scale")

	knowledgeCmd.AddCommand(knowledgeRecallCmd)
	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
