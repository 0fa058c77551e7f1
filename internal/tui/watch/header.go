package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

// HealthState is the last /healthz result.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Channel       string
	Connected     bool
	LastCheck     time.Time
}

var countOrder = []ledger.Status{
	ledger.StatusSent,
	ledger.StatusFailed,
	ledger.StatusDuplicate,
	ledger.StatusEmpty,
}

func renderHeader(health HealthState, counts map[ledger.Status]int, beat Heartbeat, activity Activity, theme Theme, width int) string {
	inner := width - 4

	server := theme.StatusStyle(ledger.StatusSent).Render("● up")
	details := fmt.Sprintf("uptime %s · channel %s",
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second), health.Channel)
	switch {
	case !health.Connected:
		server = theme.Muted.Render("○ unreachable")
		details = theme.Muted.Render("no /healthz response")
	case health.Status != "ok" && health.Status != "":
		server = theme.Alert.Render("● " + health.Status)
	}

	title := fmt.Sprintf(" %s %s", theme.Accent.Render("intake-gw watch"), theme.Accent.Render(beat.Frame()))
	clock := theme.Muted.Render(time.Now().Format("15:04:05"))
	gap := inner - lipgloss.Width(title) - lipgloss.Width(clock) - 4
	if gap < 1 {
		gap = 1
	}

	tallies := make([]string, 0, len(countOrder))
	for _, s := range countOrder {
		tallies = append(tallies, fmt.Sprintf("%s %d", theme.StatusStyle(s).Render(string(s)), counts[s]))
	}

	seen := "none yet"
	if last := activity.LastSeen(); !last.IsZero() {
		seen = time.Since(last).Round(time.Second).String() + " ago"
	}

	lines := []string{
		title + strings.Repeat(" ", gap) + clock,
		fmt.Sprintf(" server %s  %s", server, details),
		" " + strings.Join(tallies, "   "),
		fmt.Sprintf(" recent %s  last new delivery %s", activity.Render(theme), seen),
	}
	return theme.Frame.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
