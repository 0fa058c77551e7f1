// Package watch implements the intake-gw delivery watch TUI.
package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

// Theme holds the styles shared by the header, the table frame and the
// activity meter.
type Theme struct {
	statuses map[ledger.Status]lipgloss.Style
	unknown  lipgloss.Style

	Frame  lipgloss.Style
	Muted  lipgloss.Style
	Accent lipgloss.Style
	Alert  lipgloss.Style
	Idle   lipgloss.Style
}

func fg(hex string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}

func NewDefaultTheme() Theme {
	muted := fg("#8B949E")
	return Theme{
		statuses: map[ledger.Status]lipgloss.Style{
			ledger.StatusSent:      fg("#3FB950"),
			ledger.StatusFailed:    fg("#F85149"),
			ledger.StatusDuplicate: fg("#D29922"),
			ledger.StatusEmpty:     muted,
		},
		unknown: muted,
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2F81F7")),
		Muted:  muted,
		Accent: fg("#E3B341").Bold(true),
		Alert:  fg("#F85149").Bold(true),
		Idle:   fg("#30363D"),
	}
}

// StatusStyle picks the color for a delivery status.
func (t Theme) StatusStyle(status ledger.Status) lipgloss.Style {
	if s, ok := t.statuses[status]; ok {
		return s
	}
	return t.unknown
}
