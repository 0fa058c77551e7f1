package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

const (
	refreshInterval = 2 * time.Second
	healthInterval  = 5 * time.Second
	rowLimit        = 100
)

// Model is the main BubbleTea model for the delivery watch TUI.
type Model struct {
	source    Source
	healthURL string

	width  int
	height int

	// State
	health     HealthState
	deliveries []*ledger.Delivery
	counts     map[ledger.Status]int
	newestID   string

	heartbeat Heartbeat
	activity  Activity

	// UI state
	theme Theme
	table table.Model

	// Error display
	lastError string
}

// New creates a watch model over src. healthURL is the base URL of a
// running server; empty skips health polling.
func New(src Source, healthURL string) Model {
	return Model{
		source:    src,
		healthURL: healthURL,
		counts:    make(map[ledger.Status]int),
		theme:     NewDefaultTheme(),
		table:     newDeliveryTable(),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.refresh(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	}
	if m.healthURL != "" {
		cmds = append(cmds, func() tea.Msg { return fetchHealth(m.healthURL) })
	}
	return tea.Batch(cmds...)
}

func (m Model) refresh() tea.Cmd {
	src := m.source
	return func() tea.Msg { return fetchDeliveries(src, rowLimit) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 6)
		if h := m.height - 14; h > 3 {
			m.table.SetHeight(h)
		}

	case tickMsg:
		m.heartbeat.Beat()
		m.activity.Prune(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case deliveriesMsg:
		if len(msg.deliveries) > 0 {
			// The first load is history, not activity.
			if m.newestID != "" {
				now := time.Now()
				for _, d := range newSince(msg.deliveries, m.newestID) {
					m.activity.Record(d.Status, now)
				}
			}
			m.newestID = msg.deliveries[0].ID
		}
		m.deliveries = msg.deliveries
		m.counts = msg.counts
		m.table.SetRows(deliveryRows(msg.deliveries))
		m.lastError = ""
		return m, tea.Tick(refreshInterval, func(time.Time) tea.Msg {
			return fetchDeliveries(m.source, rowLimit)
		})

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Channel = msg.Channel
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		return m, m.pollHealth()

	case healthErrMsg:
		m.health.Connected = false
		return m, m.pollHealth()

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(refreshInterval, func(time.Time) tea.Msg {
			return fetchDeliveries(m.source, rowLimit)
		})
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) pollHealth() tea.Cmd {
	if m.healthURL == "" {
		return nil
	}
	url := m.healthURL
	return tea.Tick(healthInterval, func(time.Time) tea.Msg { return fetchHealth(url) })
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing intake watch..."
	}

	header := renderHeader(m.health, m.counts, m.heartbeat, m.activity, m.theme, m.width)
	body := m.theme.Frame.Render(m.table.View())

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.Alert.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [r] Refresh • [↑/↓] Scroll")

	parts := []string{header, body}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
