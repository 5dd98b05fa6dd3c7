// Package dashboard renders a live terminal view of the substrate: ticket
// counts, upcoming meetings, and the event feed from a bus subscription.
// The input loop stays responsive while agents run; rendering never
// blocks the bus.
package dashboard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/propelhq/propel/internal/bus"
	"github.com/propelhq/propel/internal/core"
	"github.com/propelhq/propel/internal/storage"
	"github.com/propelhq/propel/pkg/models"
)

// Panel indices.
const (
	panelTickets = iota
	panelMeetings
	panelEvents
	panelCount
)

// feedSize caps the number of events kept in the live feed.
const feedSize = 50

// Model is the bubbletea model for the live dashboard.
type Model struct {
	sub          *bus.Subscription
	orchestrator *core.TicketOrchestrator
	meetings     storage.MeetingStore

	activePanel int
	width       int
	height      int

	ticketCounts map[models.TicketStatus]int
	upcoming     []models.Meeting
	feed         []models.Event

	loading bool
	err     error
}

type busEventMsg struct {
	event models.Event
	ok    bool
}

// dataLoadedMsg carries loaded ticket and meeting data back to the model.
type dataLoadedMsg struct {
	ticketCounts map[models.TicketStatus]int
	upcoming     []models.Meeting
	err          error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusBlocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusInReview   = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusNeutral    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	urgencyHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	urgencyMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	urgencyLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// New builds a dashboard model fed by the given bus subscription.
func New(sub *bus.Subscription, orchestrator *core.TicketOrchestrator, meetings storage.MeetingStore) Model {
	return Model{
		sub:          sub,
		orchestrator: orchestrator,
		meetings:     meetings,
		activePanel:  panelTickets,
		loading:      true,
		ticketCounts: make(map[models.TicketStatus]int),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadData, m.waitForEvent)
}

// waitForEvent blocks on the subscription channel in a tea command, so
// the update loop never blocks on the bus itself.
func (m Model) waitForEvent() tea.Msg {
	event, ok := <-m.sub.Events()
	return busEventMsg{event: event, ok: ok}
}

func (m Model) loadData() tea.Msg {
	result := dataLoadedMsg{ticketCounts: make(map[models.TicketStatus]int)}

	tickets, err := m.orchestrator.ListTickets(storage.TicketFilter{})
	if err != nil {
		result.err = fmt.Errorf("loading tickets: %w", err)
		return result
	}
	for _, t := range tickets {
		result.ticketCounts[t.Status]++
	}

	if m.meetings != nil {
		upcoming, err := m.meetings.ListMeetings(models.MeetingScheduled)
		if err != nil {
			result.err = fmt.Errorf("loading meetings: %w", err)
			return result
		}
		result.upcoming = upcoming
	}
	return result
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, m.loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case busEventMsg:
		if !msg.ok {
			return m, nil
		}
		m.feed = append(m.feed, msg.event)
		if len(m.feed) > feedSize {
			m.feed = m.feed[len(m.feed)-feedSize:]
		}
		// Ticket and meeting events change the panel data.
		return m, tea.Batch(m.loadData, m.waitForEvent)

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ticketCounts = msg.ticketCounts
		m.upcoming = msg.upcoming
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Propel Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	ticketsPanel := m.renderTicketsPanel()
	meetingsPanel := m.renderMeetingsPanel()
	eventsPanel := m.renderEventsPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		ticketsPanel = m.applyPanelStyle(panelTickets, ticketsPanel, colWidth-4)
		meetingsPanel = m.applyPanelStyle(panelMeetings, meetingsPanel, colWidth-4)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, ticketsPanel, meetingsPanel, eventsPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		ticketsPanel = m.applyPanelStyle(panelTickets, ticketsPanel, panelWidth)
		meetingsPanel = m.applyPanelStyle(panelMeetings, meetingsPanel, panelWidth)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, ticketsPanel, meetingsPanel, eventsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m Model) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m Model) renderTicketsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tickets"))
	b.WriteString("\n")

	if len(m.ticketCounts) == 0 {
		b.WriteString("  No tickets found.")
		return b.String()
	}

	// Display in lifecycle order.
	order := []models.TicketStatus{
		models.StatusInProgress,
		models.StatusBlocked,
		models.StatusInReview,
		models.StatusReady,
		models.StatusBacklog,
		models.StatusDone,
	}
	total := 0
	for _, status := range order {
		count, ok := m.ticketCounts[status]
		if !ok || count == 0 {
			continue
		}
		total += count
		label := fmt.Sprintf("  %-14s %d", status, count)
		b.WriteString(styleForStatus(status).Render(label))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", total))
	return b.String()
}

func (m Model) renderMeetingsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Meetings"))
	b.WriteString("\n")

	if len(m.upcoming) == 0 {
		b.WriteString("  No scheduled meetings.")
		return b.String()
	}
	for _, meeting := range m.upcoming {
		b.WriteString(fmt.Sprintf("  %s %s (%s)\n",
			meeting.ScheduledFor.Format("15:04"),
			meeting.Invitation.Title,
			meeting.Type))
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d meeting(s)", len(m.upcoming)))
	return b.String()
}

func (m Model) renderEventsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Events"))
	b.WriteString("\n")

	if len(m.feed) == 0 {
		b.WriteString("  Waiting for events...")
		return b.String()
	}

	// Newest last, trimmed to what fits.
	start := 0
	if len(m.feed) > 15 {
		start = len(m.feed) - 15
	}
	for _, event := range m.feed[start:] {
		line := fmt.Sprintf("  %s %-24s %s",
			event.Timestamp.Format("15:04:05"),
			event.Type,
			event.Source)
		b.WriteString(styleForUrgency(event.Urgency).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func styleForStatus(status models.TicketStatus) lipgloss.Style {
	switch status {
	case models.StatusInProgress:
		return statusInProgress
	case models.StatusDone:
		return statusDone
	case models.StatusBlocked:
		return statusBlocked
	case models.StatusInReview:
		return statusInReview
	default:
		return statusNeutral
	}
}

func styleForUrgency(urgency models.Urgency) lipgloss.Style {
	switch urgency {
	case models.UrgencyHigh:
		return urgencyHigh
	case models.UrgencyMedium:
		return urgencyMedium
	case models.UrgencyLow:
		return urgencyLow
	default:
		return lipgloss.NewStyle()
	}
}
