package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Manage tickets (create, list, assign, move, block)",
	Long: `Ticket lifecycle commands.

Create tickets, list them by status or assignee, hand them to agents,
move them through the lifecycle, and block them with an escalation
reason when work cannot continue.`,
}

var (
	ticketCreateType        string
	ticketCreatePriority    string
	ticketCreateDescription string
	ticketCreateAs          string
)

var ticketCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new ticket",
	Long: `Create a ticket in the backlog. A dedicated discussion thread is
opened alongside it and a creation event is published on the bus.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}

		ticket, thread, err := Orchestrator.CreateTicket(cmd.Context(),
			args[0],
			ticketCreateDescription,
			models.TicketType(ticketCreateType),
			models.Priority(ticketCreatePriority),
			ticketCreateAs,
		)
		if err != nil {
			return fmt.Errorf("creating ticket: %w", err)
		}

		fmt.Printf("Created ticket %s\n", ticket.ID)
		fmt.Printf("  Type:     %s\n", ticket.Type)
		fmt.Printf("  Priority: %s\n", ticket.Priority)
		fmt.Printf("  Status:   %s\n", ticket.Status)
		fmt.Printf("  Thread:   %s\n", thread.ID)
		return nil
	},
}

var (
	ticketListStatus   string
	ticketListAssignee string
)

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}

		filter := storage.TicketFilter{Assignee: ticketListAssignee}
		if ticketListStatus != "" {
			filter.Status = []models.TicketStatus{models.TicketStatus(ticketListStatus)}
		}
		tickets, err := Orchestrator.ListTickets(filter)
		if err != nil {
			return fmt.Errorf("listing tickets: %w", err)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Title", "Type", "Priority", "Status", "Assignee"})
		for _, t := range tickets {
			tw.AppendRow(table.Row{shortID(t.ID), t.Title, t.Type, t.Priority, t.Status, t.AssignedAgentID})
		}
		tw.Render()
		return nil
	},
}

var ticketAssignAs string

var ticketAssignCmd = &cobra.Command{
	Use:   "assign <ticket-id> [agent-id]",
	Short: "Assign a ticket to an agent",
	Long: `Assign a ticket to an agent, or unassign it by omitting the agent ID.
Only the ticket's creator or current assignee may reassign it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}

		target := ""
		if len(args) == 2 {
			target = args[1]
		}
		if err := Orchestrator.AssignTicket(cmd.Context(), args[0], target, ticketAssignAs); err != nil {
			return fmt.Errorf("assigning ticket: %w", err)
		}
		if target == "" {
			fmt.Printf("Unassigned ticket %s\n", args[0])
		} else {
			fmt.Printf("Assigned ticket %s to %s\n", args[0], target)
		}
		return nil
	},
}

var ticketMoveAs string

var ticketMoveCmd = &cobra.Command{
	Use:   "move <ticket-id> <status>",
	Short: "Move a ticket to a new lifecycle status",
	Long: `Move a ticket to a new status. Invalid transitions are rejected, and
the error names the statuses that are reachable from the current one.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}

		if err := Orchestrator.TransitionTicketStatus(cmd.Context(), args[0], models.TicketStatus(args[1]), ticketMoveAs); err != nil {
			return fmt.Errorf("moving ticket: %w", err)
		}
		fmt.Printf("Moved ticket %s to %s\n", args[0], args[1])
		return nil
	},
}

var (
	ticketBlockAs       string
	ticketBlockReassign string
)

var ticketBlockCmd = &cobra.Command{
	Use:   "block <ticket-id> <escalation-reason> [details]",
	Short: "Block a ticket with an escalation reason",
	Long: `Block a ticket because work cannot continue. The escalation reason
determines what happens next: a meeting is scheduled, the discussion
thread is escalated to a human, or the ticket waits on an external
dependency.

Run "propel ticket escalations" to see the recognized reasons.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orchestrator == nil {
			return fmt.Errorf("orchestrator not initialized")
		}

		escalation, err := core.ParseEscalation(args[1])
		if err != nil {
			return fmt.Errorf("blocking ticket: %w", err)
		}
		reason := string(escalation)
		if len(args) == 3 {
			reason = args[2]
		}
		if err := Orchestrator.BlockTicket(cmd.Context(), args[0], reason, escalation, ticketBlockAs, ticketBlockReassign); err != nil {
			return fmt.Errorf("blocking ticket: %w", err)
		}
		fmt.Printf("Blocked ticket %s (%s)\n", args[0], escalation)
		return nil
	},
}

var ticketEscalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "List recognized escalation reasons and their processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Reason", "Group", "Process", "Meeting", "Human"})
		for _, reason := range core.EscalationCatalog() {
			binding, err := core.LookupEscalation(reason)
			if err != nil {
				continue
			}
			tw.AppendRow(table.Row{
				reason,
				binding.Group,
				binding.Process,
				yesNo(binding.Process.RequiresMeeting()),
				yesNo(binding.Process.RequiresHuman()),
			})
		}
		tw.Render()
		return nil
	},
}

// shortID truncates a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func init() {
	ticketCreateCmd.Flags().StringVar(&ticketCreateType, "type", "task", "Ticket type: feature, bug, task, or spike")
	ticketCreateCmd.Flags().StringVar(&ticketCreatePriority, "priority", "medium", "Priority: low, medium, high, or critical")
	ticketCreateCmd.Flags().StringVarP(&ticketCreateDescription, "description", "d", "", "Ticket description")
	ticketCreateCmd.Flags().StringVar(&ticketCreateAs, "as", "cli", "Agent identity performing the operation")

	ticketListCmd.Flags().StringVar(&ticketListStatus, "status", "", "Filter by status (backlog, ready, in_progress, blocked, in_review, done)")
	ticketListCmd.Flags().StringVar(&ticketListAssignee, "assignee", "", "Filter by assigned agent")

	ticketAssignCmd.Flags().StringVar(&ticketAssignAs, "as", "cli", "Agent identity performing the operation")
	ticketMoveCmd.Flags().StringVar(&ticketMoveAs, "as", "cli", "Agent identity performing the operation")
	ticketBlockCmd.Flags().StringVar(&ticketBlockAs, "as", "cli", "Agent identity performing the operation")
	ticketBlockCmd.Flags().StringVar(&ticketBlockReassign, "reassign", "", "Reassign the ticket while blocking it")

	ticketCmd.AddCommand(ticketCreateCmd)
	ticketCmd.AddCommand(ticketListCmd)
	ticketCmd.AddCommand(ticketAssignCmd)
	ticketCmd.AddCommand(ticketMoveCmd)
	ticketCmd.AddCommand(ticketBlockCmd)
	ticketCmd.AddCommand(ticketEscalationsCmd)

	rootCmd.AddCommand(ticketCmd)
}
