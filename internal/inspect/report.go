// Package inspect renders ledger rows for the delivery commands.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

// Store is the ledger read surface the reports need.
type Store interface {
	Get(ctx context.Context, id string) (*ledger.Delivery, error)
	ByFingerprint(ctx context.Context, fingerprint string) ([]*ledger.Delivery, error)
}

// Report is the structured JSON representation of a delivery report.
type Report struct {
	Delivery *ledger.Delivery `json:"delivery"`
	// History lists every delivery of the same body, oldest first.
	History []Step `json:"history"`
}

// Step is one entry in a payload's delivery history.
type Step struct {
	Attempt    int           `json:"attempt"`
	ID         string        `json:"id"`
	Status     ledger.Status `json:"status"`
	ProviderID string        `json:"provider_id,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	Current    bool          `json:"current,omitempty"`
}

// BuildReport renders a terminal-friendly report for one delivery.
func BuildReport(ctx context.Context, store Store, id string) (string, error) {
	report, err := gatherReportData(ctx, store, id)
	if err != nil {
		return "", err
	}
	d := report.Delivery

	var out strings.Builder
	fmt.Fprintf(&out, "Delivery Report\n")
	fmt.Fprintf(&out, "ID          : %s\n", d.ID)
	fmt.Fprintf(&out, "Request ID  : %s\n", renderUnset(d.RequestID, "<none>"))
	fmt.Fprintf(&out, "Route       : %s\n", d.Route)
	fmt.Fprintf(&out, "Status      : %s\n", d.Status)
	fmt.Fprintf(&out, "Channel     : %s\n", d.Channel)
	fmt.Fprintf(&out, "Provider ID : %s\n", renderUnset(d.ProviderID, "<none>"))
	fmt.Fprintf(&out, "Fields      : %d\n", d.FieldCount)
	fmt.Fprintf(&out, "Fingerprint : %s\n", d.Fingerprint)
	fmt.Fprintf(&out, "Created     : %s\n", d.CreatedAt.Local().Format(time.RFC3339))
	if d.LastError != "" {
		fmt.Fprintf(&out, "Error       : %s\n", d.LastError)
	}

	fmt.Fprintf(&out, "\nHistory (%d attempt(s) with this body)\n", len(report.History))
	for _, step := range report.History {
		marker := " "
		if step.Current {
			marker = "*"
		}
		fmt.Fprintf(&out, "%s[%d] %s  %-9s %s\n", marker, step.Attempt,
			step.CreatedAt.Local().Format("2006-01-02 15:04:05"), step.Status, step.ID)
		if step.LastError != "" {
			fmt.Fprintf(&out, "      error: %s\n", step.LastError)
		}
	}
	return out.String(), nil
}

// BuildJSONReport returns the report as indented JSON.
func BuildJSONReport(ctx context.Context, store Store, id string) (string, error) {
	report, err := gatherReportData(ctx, store, id)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data) + "\n", nil
}

func gatherReportData(ctx context.Context, store Store, id string) (*Report, error) {
	d, err := store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup delivery %s: %w", id, err)
	}
	history, err := store.ByFingerprint(ctx, d.Fingerprint)
	if err != nil {
		return nil, err
	}

	report := &Report{Delivery: d, History: make([]Step, 0, len(history))}
	for i, h := range history {
		report.History = append(report.History, Step{
			Attempt:    i + 1,
			ID:         h.ID,
			Status:     h.Status,
			ProviderID: h.ProviderID,
			LastError:  h.LastError,
			CreatedAt:  h.CreatedAt,
			Current:    h.ID == d.ID,
		})
	}
	return report, nil
}

// FormatList renders deliveries as an aligned table.
func FormatList(deliveries []*ledger.Delivery) string {
	if len(deliveries) == 0 {
		return "No deliveries recorded.\n"
	}

	var out strings.Builder
	tw := tabwriter.NewWriter(&out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSTATUS\tROUTE\tFIELDS\tCHANNEL\tPROVIDER ID\tID")
	for _, d := range deliveries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			d.Status,
			d.Route,
			d.FieldCount,
			d.Channel,
			renderUnset(d.ProviderID, "-"),
			d.ID,
		)
	}
	_ = tw.Flush()
	return out.String()
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
