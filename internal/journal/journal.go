// Package journal persists a durable audit trail of connection and focus
// transitions, for the
// --replay-journal diagnostic flag. Grounded on the teacher's
// peer/topology.go topologyStore: a single *sql.DB handle, a small
// embedded schema-migration step run once at Open, and INSERT-only
// writes from the owning goroutine.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS connection_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at TEXT NOT NULL,
	peer TEXT NOT NULL,
	kind TEXT NOT NULL,
	detail TEXT
);
CREATE TABLE IF NOT EXISTS focus_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at TEXT NOT NULL,
	phase TEXT NOT NULL,
	peer TEXT NOT NULL,
	edge TEXT
);
`

// Journal wraps the sqlite-backed event log. Like the teacher's
// topologyStore, all access goes through the one *sql.DB handle; sqlite's
// own locking serializes concurrent writers, so no extra owner-goroutine
// indirection is needed here (unlike internal/fingerprint's JSON file,
// which has no such built-in serialization).
type Journal struct {
	db *sql.DB
}

// Open creates (or reopens) the sqlite database at path and ensures the
// schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// ConnectionEventKind names the connection lifecycle transitions worth
// recording.
type ConnectionEventKind string

const (
	ConnectionDialing       ConnectionEventKind = "dialing"
	ConnectionAuthenticated ConnectionEventKind = "authenticated"
	ConnectionDegraded      ConnectionEventKind = "degraded"
	ConnectionClosed        ConnectionEventKind = "closed"
	ConnectionAuthRejected  ConnectionEventKind = "auth_rejected"
)

// RecordConnectionEvent appends one connection lifecycle row.
func (j *Journal) RecordConnectionEvent(peer string, kind ConnectionEventKind, detail string, at time.Time) error {
	_, err := j.db.Exec(
		`INSERT INTO connection_events (at, peer, kind, detail) VALUES (?, ?, ?, ?)`,
		at.UTC().Format(time.RFC3339Nano), peer, string(kind), detail,
	)
	if err != nil {
		return fmt.Errorf("journal: record connection event: %w", err)
	}
	return nil
}

// RecordFocusEvent appends one focus-transition row.
func (j *Journal) RecordFocusEvent(phase, peer, edge string, at time.Time) error {
	_, err := j.db.Exec(
		`INSERT INTO focus_events (at, phase, peer, edge) VALUES (?, ?, ?, ?)`,
		at.UTC().Format(time.RFC3339Nano), phase, peer, edge,
	)
	if err != nil {
		return fmt.Errorf("journal: record focus event: %w", err)
	}
	return nil
}

// ConnectionEvent is one row read back for replay/diagnostics.
type ConnectionEvent struct {
	At     time.Time
	Peer   string
	Kind   ConnectionEventKind
	Detail string
}

// FocusEvent is one row read back for replay/diagnostics.
type FocusEvent struct {
	At    time.Time
	Phase string
	Peer  string
	Edge  string
}

// RecentConnectionEvents returns up to limit of the most recent
// connection events, oldest first.
func (j *Journal) RecentConnectionEvents(limit int) ([]ConnectionEvent, error) {
	rows, err := j.db.Query(
		`SELECT at, peer, kind, detail FROM connection_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query connection events: %w", err)
	}
	defer rows.Close()

	var out []ConnectionEvent
	for rows.Next() {
		var atRaw, peer, kind, detail string
		if err := rows.Scan(&atRaw, &peer, &kind, &detail); err != nil {
			return nil, fmt.Errorf("journal: scan connection event: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, atRaw)
		if err != nil {
			return nil, fmt.Errorf("journal: parse timestamp: %w", err)
		}
		out = append(out, ConnectionEvent{At: at, Peer: peer, Kind: ConnectionEventKind(kind), Detail: detail})
	}
	reverse(out)
	return out, rows.Err()
}

// RecentFocusEvents returns up to limit of the most recent focus events,
// oldest first.
func (j *Journal) RecentFocusEvents(limit int) ([]FocusEvent, error) {
	rows, err := j.db.Query(
		`SELECT at, phase, peer, edge FROM focus_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query focus events: %w", err)
	}
	defer rows.Close()

	var out []FocusEvent
	for rows.Next() {
		var atRaw, phase, peer, edge string
		if err := rows.Scan(&atRaw, &phase, &peer, &edge); err != nil {
			return nil, fmt.Errorf("journal: scan focus event: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, atRaw)
		if err != nil {
			return nil, fmt.Errorf("journal: parse timestamp: %w", err)
		}
		out = append(out, FocusEvent{At: at, Phase: phase, Peer: peer, Edge: edge})
	}
	reverse(out)
	return out, rows.Err()
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
