// Package ledger records the outcome of every verified intake request.
//
// Rows carry a BLAKE3 fingerprint of the raw body and delivery metadata. They
// never carry payload content or extracted field values, so the ledger is
// safe to keep next to the service without becoming a patient-data store.
package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Status is the outcome of one delivery attempt.
type Status string

const (
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusEmpty     Status = "empty"
	StatusDuplicate Status = "duplicate"
)

// Delivery is one ledger row.
type Delivery struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id,omitempty"`
	Route       string    `json:"route"`
	Fingerprint string    `json:"fingerprint"`
	Status      Status    `json:"status"`
	Channel     string    `json:"channel"`
	ProviderID  string    `json:"provider_id,omitempty"`
	FieldCount  int       `json:"field_count"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

var ErrNotFound = errors.New("delivery not found")

// timeLayout is fixed width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Fingerprint returns the BLAKE3-256 hex digest of body.
func Fingerprint(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Ledger is a SQLite-backed delivery log.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Record inserts d and returns its id. ID and CreatedAt are filled in when
// empty.
func (l *Ledger) Record(ctx context.Context, d Delivery) (string, error) {
	if d.Fingerprint == "" {
		return "", fmt.Errorf("fingerprint is empty")
	}
	if d.Status == "" {
		return "", fmt.Errorf("status is empty")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = l.now()
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO deliveries(
  id, request_id, route, fingerprint, status, channel, provider_id, field_count, last_error, created_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, d.ID, nullable(d.RequestID), d.Route, d.Fingerprint, string(d.Status), d.Channel,
		nullable(d.ProviderID), d.FieldCount, nullable(d.LastError), d.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("record delivery: %w", err)
	}
	return d.ID, nil
}

// SentSince reports whether a body with this fingerprint was delivered
// successfully at or after since.
func (l *Ledger) SentSince(ctx context.Context, fingerprint string, since time.Time) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM deliveries
WHERE fingerprint = ? AND status = ? AND created_at >= ?;
`, fingerprint, string(StatusSent), since.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return n > 0, nil
}

// Get returns a single delivery by id.
func (l *Ledger) Get(ctx context.Context, id string) (*Delivery, error) {
	row := l.db.QueryRowContext(ctx, selectDeliveries+` WHERE id = ?;`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// Recent returns up to limit deliveries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, selectDeliveries+` ORDER BY created_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return collect(rows)
}

// ByFingerprint returns every delivery of the same body, oldest first.
func (l *Ledger) ByFingerprint(ctx context.Context, fingerprint string) ([]*Delivery, error) {
	rows, err := l.db.QueryContext(ctx, selectDeliveries+` WHERE fingerprint = ? ORDER BY created_at ASC, rowid ASC;`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list deliveries by fingerprint: %w", err)
	}
	return collect(rows)
}

// Counts returns the number of deliveries per status.
func (l *Ledger) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM deliveries GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("count deliveries: %w", err)
		}
		out[Status(s)] = n
	}
	return out, rows.Err()
}

const selectDeliveries = `
SELECT id, request_id, route, fingerprint, status, channel, provider_id, field_count, last_error, created_at
FROM deliveries`

type scanner interface {
	Scan(dest ...any) error
}

func scanDelivery(s scanner) (*Delivery, error) {
	var (
		d          Delivery
		requestID  sql.NullString
		providerID sql.NullString
		lastError  sql.NullString
		status     string
		createdAtS string
	)
	if err := s.Scan(&d.ID, &requestID, &d.Route, &d.Fingerprint, &status, &d.Channel,
		&providerID, &d.FieldCount, &lastError, &createdAtS); err != nil {
		return nil, err
	}
	d.Status = Status(status)
	d.RequestID = requestID.String
	d.ProviderID = providerID.String
	d.LastError = lastError.String
	if t, err := time.Parse(timeLayout, createdAtS); err == nil {
		d.CreatedAt = t
	}
	return &d, nil
}

func collect(rows *sql.Rows) ([]*Delivery, error) {
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
