package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/pkg/models"
)

var meetingCmd = &cobra.Command{
	Use:   "meeting",
	Short: "Manage meetings (schedule, list, start, delay, complete, cancel)",
	Long: `Meeting lifecycle commands.

Escalations and cadence timers create most meetings automatically; these
commands schedule ad-hoc ones and walk any meeting through its lifecycle.`,
}

var (
	meetingScheduleType     string
	meetingScheduleAt       string
	meetingScheduleRequire  []string
	meetingScheduleInvite   []string
	meetingScheduleAgenda   []string
	meetingScheduleTicketID string
	meetingScheduleAs       string
)

var meetingScheduleCmd = &cobra.Command{
	Use:   "schedule <title>",
	Short: "Schedule a new meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil {
			return fmt.Errorf("scheduler not initialized")
		}

		at := time.Now().UTC().Add(15 * time.Minute)
		if meetingScheduleAt != "" {
			parsed, err := time.Parse(time.RFC3339, meetingScheduleAt)
			if err != nil {
				return fmt.Errorf("scheduling meeting: parsing --at: %w", err)
			}
			at = parsed
		}

		builder := core.NewMeetingBuilder(models.MeetingType(meetingScheduleType)).
			Title(args[0]).
			At(at).
			Require(meetingScheduleRequire...).
			Invite(meetingScheduleInvite...).
			ForTicket(meetingScheduleTicketID)
		for _, item := range meetingScheduleAgenda {
			builder.AgendaItem(item)
		}

		meeting, err := builder.Build()
		if err != nil {
			return fmt.Errorf("scheduling meeting: %w", err)
		}
		scheduled, err := Scheduler.ScheduleMeeting(cmd.Context(), meeting, meetingScheduleAs)
		if err != nil {
			return fmt.Errorf("scheduling meeting: %w", err)
		}

		fmt.Printf("Scheduled meeting %s\n", scheduled.ID)
		fmt.Printf("  Title: %s\n", scheduled.Invitation.Title)
		fmt.Printf("  When:  %s\n", scheduled.ScheduledFor.Format(time.RFC3339))
		if scheduled.ChannelID != "" {
			fmt.Printf("  Thread: %s\n", scheduled.ChannelID)
		}
		return nil
	},
}

var meetingListStatus string

var meetingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List meetings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MeetingStore == nil {
			return fmt.Errorf("meeting store not initialized")
		}

		meetings, err := MeetingStore.ListMeetings(models.MeetingStatus(meetingListStatus))
		if err != nil {
			return fmt.Errorf("listing meetings: %w", err)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Title", "Type", "Status", "Scheduled For", "Required"})
		for _, m := range meetings {
			tw.AppendRow(table.Row{
				shortID(m.ID),
				m.Invitation.Title,
				m.Type,
				m.Status,
				m.ScheduledFor.Local().Format("2006-01-02 15:04"),
				len(m.Invitation.RequiredParticipants),
			})
		}
		tw.Render()
		return nil
	},
}

var meetingActorFlag string

var meetingStartCmd = &cobra.Command{
	Use:   "start <meeting-id>",
	Short: "Start a scheduled meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil {
			return fmt.Errorf("scheduler not initialized")
		}
		if err := Scheduler.StartMeeting(cmd.Context(), args[0], meetingActorFlag); err != nil {
			return fmt.Errorf("starting meeting: %w", err)
		}
		fmt.Printf("Started meeting %s\n", args[0])
		return nil
	},
}

var meetingDelayCmd = &cobra.Command{
	Use:   "delay <meeting-id> <until-rfc3339>",
	Short: "Delay a scheduled meeting to a later time",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil {
			return fmt.Errorf("scheduler not initialized")
		}
		until, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			return fmt.Errorf("delaying meeting: parsing time: %w", err)
		}
		if err := Scheduler.DelayMeeting(cmd.Context(), args[0], until, meetingActorFlag); err != nil {
			return fmt.Errorf("delaying meeting: %w", err)
		}
		fmt.Printf("Delayed meeting %s until %s\n", args[0], until.Format(time.RFC3339))
		return nil
	},
}

var (
	meetingCompleteAttendees []string
	meetingCompleteOutcomes  []string
)

var meetingCompleteCmd = &cobra.Command{
	Use:   "complete <meeting-id>",
	Short: "Complete a meeting, recording attendees and outcomes",
	Long: `Complete an in-progress meeting. Attendees are required; the status
change, attendee list, and outcomes are recorded together.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil {
			return fmt.Errorf("scheduler not initialized")
		}
		if err := Scheduler.CompleteMeeting(cmd.Context(), args[0], meetingCompleteAttendees, meetingCompleteOutcomes, meetingActorFlag); err != nil {
			return fmt.Errorf("completing meeting: %w", err)
		}
		fmt.Printf("Completed meeting %s (%d attendees, %d outcomes)\n",
			args[0], len(meetingCompleteAttendees), len(meetingCompleteOutcomes))
		return nil
	},
}

var meetingCancelOutcomes []string

var meetingCancelCmd = &cobra.Command{
	Use:   "cancel <meeting-id>",
	Short: "Cancel a meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil {
			return fmt.Errorf("scheduler not initialized")
		}
		if err := Scheduler.CancelMeeting(cmd.Context(), args[0], meetingCancelOutcomes, meetingActorFlag); err != nil {
			return fmt.Errorf("canceling meeting: %w", err)
		}
		fmt.Printf("Canceled meeting %s\n", args[0])
		return nil
	},
}

func init() {
	meetingScheduleCmd.Flags().StringVar(&meetingScheduleType, "type", "planning", "Meeting type: escalation, standup, planning, or review")
	meetingScheduleCmd.Flags().StringVar(&meetingScheduleAt, "at", "", "Scheduled time (RFC3339, default 15m from now)")
	meetingScheduleCmd.Flags().StringSliceVar(&meetingScheduleRequire, "require", nil, "Required participants")
	meetingScheduleCmd.Flags().StringSliceVar(&meetingScheduleInvite, "invite", nil, "Optional participants")
	meetingScheduleCmd.Flags().StringSliceVar(&meetingScheduleAgenda, "agenda", nil, "Agenda items")
	meetingScheduleCmd.Flags().StringVar(&meetingScheduleTicketID, "ticket", "", "Ticket the meeting is about")
	meetingScheduleCmd.Flags().StringVar(&meetingScheduleAs, "as", "cli", "Agent identity scheduling the meeting")

	meetingListCmd.Flags().StringVar(&meetingListStatus, "status", "", "Filter by status (scheduled, delayed, in_progress, completed, canceled)")

	meetingCompleteCmd.Flags().StringSliceVar(&meetingCompleteAttendees, "attendees", nil, "Who attended (required)")
	meetingCompleteCmd.Flags().StringSliceVar(&meetingCompleteOutcomes, "outcomes", nil, "Decisions and action items")
	meetingCancelCmd.Flags().StringSliceVar(&meetingCancelOutcomes, "outcomes", nil, "Reason or notes for the cancellation")

	for _, sub := range []*cobra.Command{meetingStartCmd, meetingDelayCmd, meetingCompleteCmd, meetingCancelCmd} {
		sub.Flags().StringVar(&meetingActorFlag, "as", "cli", "Agent identity performing the operation")
	}

	meetingCmd.AddCommand(meetingScheduleCmd)
	meetingCmd.AddCommand(meetingListCmd)
	meetingCmd.AddCommand(meetingStartCmd)
	meetingCmd.AddCommand(meetingDelayCmd)
	meetingCmd.AddCommand(meetingCompleteCmd)
	meetingCmd.AddCommand(meetingCancelCmd)

	rootCmd.AddCommand(meetingCmd)
}
