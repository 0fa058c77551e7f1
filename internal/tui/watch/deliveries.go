package watch

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

func newDeliveryTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 19},
			{Title: "Status", Width: 10},
			{Title: "Route", Width: 24},
			{Title: "Fields", Width: 6},
			{Title: "Channel", Width: 8},
			{Title: "Provider ID", Width: 24},
			{Title: "Error", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// deliveryRows converts ledger rows into table rows, newest first.
func deliveryRows(deliveries []*ledger.Delivery) []table.Row {
	rows := make([]table.Row, 0, len(deliveries))
	for _, d := range deliveries {
		rows = append(rows, table.Row{
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			string(d.Status),
			d.Route,
			strconv.Itoa(d.FieldCount),
			d.Channel,
			d.ProviderID,
			truncate(d.LastError, 30),
		})
	}
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
