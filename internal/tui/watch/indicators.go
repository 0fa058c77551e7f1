package watch

import (
	"strings"
	"time"

	"github.com/mattjoyce/intake-gw/internal/ledger"
)

const (
	activitySlots  = 5
	activityWindow = 30 * time.Second
)

var heartbeatFrames = []string{"◐", "◓", "◑", "◒"}

// Heartbeat advances once per tick. A frame that stops turning means the
// refresh loop has stalled.
type Heartbeat struct {
	beat int
}

func (h *Heartbeat) Beat() { h.beat++ }

func (h Heartbeat) Frame() string {
	return heartbeatFrames[h.beat%len(heartbeatFrames)]
}

type mark struct {
	status ledger.Status
	at     time.Time
}

// Activity remembers the outcome of the last few deliveries seen while
// watching. Marks older than activityWindow fade out.
type Activity struct {
	marks    []mark
	lastSeen time.Time
}

// Record adds one delivery outcome observed at now.
func (a *Activity) Record(status ledger.Status, now time.Time) {
	a.marks = append(a.marks, mark{status: status, at: now})
	if len(a.marks) > activitySlots {
		a.marks = a.marks[len(a.marks)-activitySlots:]
	}
	a.lastSeen = now
}

// Prune drops marks that have aged past the window.
func (a *Activity) Prune(now time.Time) {
	kept := a.marks[:0]
	for _, m := range a.marks {
		if now.Sub(m.at) <= activityWindow {
			kept = append(kept, m)
		}
	}
	a.marks = kept
}

// LastSeen is when a new delivery was last observed; zero if never.
func (a Activity) LastSeen() time.Time { return a.lastSeen }

// Len reports how many marks are lit.
func (a Activity) Len() int { return len(a.marks) }

// Render draws newest first, one dot per delivery colored by status.
func (a Activity) Render(theme Theme) string {
	var b strings.Builder
	for i := len(a.marks) - 1; i >= 0; i-- {
		b.WriteString(theme.StatusStyle(a.marks[i].status).Render("●"))
	}
	for range activitySlots - len(a.marks) {
		b.WriteString(theme.Idle.Render("○"))
	}
	return b.String()
}

// newSince returns the rows above the one with id, oldest first. rows are
// newest first; when id is not among them every row is new.
func newSince(rows []*ledger.Delivery, id string) []*ledger.Delivery {
	var fresh []*ledger.Delivery
	for _, d := range rows {
		if d.ID == id {
			break
		}
		fresh = append(fresh, d)
	}
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	return fresh
}
