package core

import (
	"sort"

	"github.com/propelhq/propel/pkg/models"
)

// ticketTransitions is the ticket lifecycle table. Done is terminal.
var ticketTransitions = map[models.TicketStatus][]models.TicketStatus{
	models.StatusBacklog:    {models.StatusReady},
	models.StatusReady:      {models.StatusInProgress},
	models.StatusInProgress: {models.StatusBlocked, models.StatusInReview},
	models.StatusBlocked:    {models.StatusReady, models.StatusInProgress},
	models.StatusInReview:   {models.StatusInProgress, models.StatusDone},
	models.StatusDone:       {},
}

// meetingTransitions is the meeting lifecycle table. Completed and
// Canceled are terminal.
var meetingTransitions = map[models.MeetingStatus][]models.MeetingStatus{
	models.MeetingScheduled:  {models.MeetingDelayed, models.MeetingInProgress, models.MeetingCanceled},
	models.MeetingDelayed:    {models.MeetingInProgress, models.MeetingCanceled},
	models.MeetingInProgress: {models.MeetingCompleted, models.MeetingCanceled},
	models.MeetingCompleted:  {},
	models.MeetingCanceled:   {},
}

// ValidTicketTransitions returns the statuses a ticket may move to from
// the given status, sorted for stable error messages.
func ValidTicketTransitions(from models.TicketStatus) []models.TicketStatus {
	targets := make([]models.TicketStatus, len(ticketTransitions[from]))
	copy(targets, ticketTransitions[from])
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// CanTransitionTicket reports whether from→to is in the ticket table.
func CanTransitionTicket(from, to models.TicketStatus) bool {
	for _, target := range ticketTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// ValidMeetingTransitions returns the statuses a meeting may move to
// from the given status, sorted for stable error messages.
func ValidMeetingTransitions(from models.MeetingStatus) []models.MeetingStatus {
	targets := make([]models.MeetingStatus, len(meetingTransitions[from]))
	copy(targets, meetingTransitions[from])
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// CanTransitionMeeting reports whether from→to is in the meeting table.
func CanTransitionMeeting(from, to models.MeetingStatus) bool {
	for _, target := range meetingTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
