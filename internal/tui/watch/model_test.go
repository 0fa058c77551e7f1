package watch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

type fakeSource struct {
	rows   []*ledger.Delivery
	counts map[ledger.Status]int
	err    error
}

func (f *fakeSource) Recent(context.Context, int) ([]*ledger.Delivery, error) {
	return f.rows, f.err
}

func (f *fakeSource) Counts(context.Context) (map[ledger.Status]int, error) {
	return f.counts, f.err
}

func sampleRows() []*ledger.Delivery {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*ledger.Delivery{
		{ID: "b", Route: "/api/elevenlabs-webhook", Status: ledger.StatusFailed, Channel: "resend", FieldCount: 4, LastError: "notification dispatch failed: resend: 422", CreatedAt: at.Add(time.Minute)},
		{ID: "a", Route: "/api/elevenlabs-webhook", Status: ledger.StatusSent, Channel: "resend", ProviderID: "re_1", FieldCount: 6, CreatedAt: at},
	}
}

func TestFetchDeliveries(t *testing.T) {
	src := &fakeSource{rows: sampleRows(), counts: map[ledger.Status]int{ledger.StatusSent: 1, ledger.StatusFailed: 1}}
	msg := fetchDeliveries(src, 10)
	got, ok := msg.(deliveriesMsg)
	require.True(t, ok)
	assert.Len(t, got.deliveries, 2)
	assert.Equal(t, 1, got.counts[ledger.StatusSent])

	src.err = errors.New("db locked")
	_, ok = fetchDeliveries(src, 10).(errMsg)
	assert.True(t, ok)
}

func TestUpdate_Deliveries(t *testing.T) {
	m := New(&fakeSource{}, "")
	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	m = updated.(Model)
	assert.Nil(t, cmd)

	updated, cmd = m.Update(deliveriesMsg{deliveries: sampleRows(), counts: map[ledger.Status]int{ledger.StatusSent: 1, ledger.StatusFailed: 1}})
	m = updated.(Model)
	require.NotNil(t, cmd, "schedules the next refresh")

	assert.Equal(t, "b", m.newestID)
	assert.Zero(t, m.activity.Len(), "first load does not count as activity")
	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "failed", rows[0][1])
	assert.Equal(t, "6", rows[1][3])

	newer := append([]*ledger.Delivery{{ID: "c", Status: ledger.StatusSent, CreatedAt: time.Now()}}, sampleRows()...)
	updated, _ = m.Update(deliveriesMsg{deliveries: newer})
	m = updated.(Model)
	assert.Equal(t, "c", m.newestID)
	assert.Equal(t, 1, m.activity.Len())
	assert.False(t, m.activity.LastSeen().IsZero())

	view := m.View()
	assert.Contains(t, view, "intake-gw watch")
	assert.Contains(t, view, "unreachable")
}

func TestUpdate_ErrorsAndQuit(t *testing.T) {
	m := New(&fakeSource{}, "")
	updated, _ := m.Update(errMsg(errors.New("db locked")))
	m = updated.(Model)
	assert.Equal(t, "db locked", m.lastError)

	updated, _ = m.Update(deliveriesMsg{})
	m = updated.(Model)
	assert.Empty(t, m.lastError)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestFetchHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","uptime_seconds":75,"channel":"dir"}`))
	}))
	defer srv.Close()

	msg := fetchHealth(srv.URL)
	h, ok := msg.(healthMsg)
	require.True(t, ok)
	assert.Equal(t, int64(75), h.UptimeSeconds)

	m := New(&fakeSource{}, srv.URL)
	updated, _ := m.Update(h)
	m = updated.(Model)
	assert.True(t, m.health.Connected)
	assert.Equal(t, "dir", m.health.Channel)

	updated, _ = m.Update(healthErrMsg{errors.New("refused")})
	assert.False(t, updated.(Model).health.Connected)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 1m", formatDuration(61*time.Minute))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestActivity(t *testing.T) {
	var a Activity
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 7 {
		a.Record(ledger.StatusSent, base.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, activitySlots, a.Len(), "keeps only the newest marks")
	assert.Equal(t, base.Add(6*time.Second), a.LastSeen())

	a.Prune(base.Add(6*time.Second + activityWindow))
	assert.Equal(t, 1, a.Len())
	a.Prune(base.Add(time.Hour))
	assert.Zero(t, a.Len())
}

func TestNewSince(t *testing.T) {
	rows := []*ledger.Delivery{{ID: "d"}, {ID: "c"}, {ID: "b"}, {ID: "a"}}

	fresh := newSince(rows, "b")
	require.Len(t, fresh, 2)
	assert.Equal(t, "c", fresh[0].ID, "oldest first")
	assert.Equal(t, "d", fresh[1].ID)

	assert.Empty(t, newSince(rows, "d"))
	assert.Len(t, newSince(rows, "gone"), 4)
}

func TestHeartbeat(t *testing.T) {
	var h Heartbeat
	first := h.Frame()
	h.Beat()
	assert.NotEqual(t, first, h.Frame())
	for range len(heartbeatFrames) - 1 {
		h.Beat()
	}
	assert.Equal(t, first, h.Frame())
}
