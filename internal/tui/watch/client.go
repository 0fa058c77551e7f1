package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

// Source is the read side of the delivery ledger.
type Source interface {
	Recent(ctx context.Context, limit int) ([]*ledger.Delivery, error)
	Counts(ctx context.Context) (map[ledger.Status]int, error)
}

// --- Message types ---

type deliveriesMsg struct {
	deliveries []*ledger.Delivery
	counts     map[ledger.Status]int
}

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Channel       string `json:"channel"`
}

type tickMsg time.Time

type errMsg error

// healthErrMsg reports a failed /healthz poll.
type healthErrMsg struct{ err error }

// --- Commands ---

// fetchDeliveries reads the newest rows and the per-status counts.
func fetchDeliveries(src Source, limit int) tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rows, err := src.Recent(ctx, limit)
	if err != nil {
		return errMsg(err)
	}
	counts, err := src.Counts(ctx)
	if err != nil {
		return errMsg(err)
	}
	return deliveriesMsg{deliveries: rows, counts: counts}
}

// fetchHealth queries the /healthz endpoint of a running server.
func fetchHealth(baseURL string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		return healthErrMsg{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return healthErrMsg{fmt.Errorf("healthz: status %d", resp.StatusCode)}
	}
	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return healthErrMsg{err}
	}
	return h
}
