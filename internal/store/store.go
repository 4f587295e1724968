// Package store keeps a SQLite log of finished fishing sessions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sweeney/fishing-bot/internal/logic"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	session    INTEGER NOT NULL,
	outcome    TEXT NOT NULL,
	result     TEXT NOT NULL DEFAULT '',
	history    TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_created_at ON sessions(created_at);
`

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Outcome classifies how a session ended.
type Outcome string

const (
	OutcomeCaught  Outcome = "caught"
	OutcomeForced  Outcome = "forced"
	OutcomeTimeout Outcome = "timeout"
)

// Record is one finished session.
type Record struct {
	ID      string
	Session int
	Outcome Outcome
	Result  string
	History string
	Reason  string
	At      time.Time
}

// ResultCount is the number of catches with a given result text.
type ResultCount struct {
	Result string
	Count  int
}

// Store is the catch log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; the loop is the only caller that writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a completed or timed-out session. Other events are rejected.
func (s *Store) Record(ctx context.Context, ev logic.Event) (Record, error) {
	rec := Record{
		ID:      uuid.New().String(),
		Session: ev.Session,
		Result:  ev.Result,
		History: ev.History,
		Reason:  ev.Reason,
		At:      ev.Timestamp.UTC(),
	}
	switch {
	case ev.Type == logic.EventSessionComplete && ev.Forced:
		rec.Outcome = OutcomeForced
	case ev.Type == logic.EventSessionComplete:
		rec.Outcome = OutcomeCaught
	case ev.Type == logic.EventSessionTimeout:
		rec.Outcome = OutcomeTimeout
	default:
		return Record{}, fmt.Errorf("record: %s is not a session outcome", ev.Type)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, session, outcome, result, history, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Session, string(rec.Outcome), rec.Result, rec.History, rec.Reason,
		rec.At.Format(timeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert session: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit completed sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session, outcome, result, history, reason, created_at
		 FROM sessions
		 WHERE outcome != ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		string(OutcomeTimeout), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			outcome string
			at      string
		)
		if err := rows.Scan(&rec.ID, &rec.Session, &outcome, &rec.Result, &rec.History, &rec.Reason, &at); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		rec.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", at, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Tally counts catches per recognised result, most frequent first.
func (s *Store) Tally(ctx context.Context) ([]ResultCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result, COUNT(*) AS n
		 FROM sessions
		 WHERE outcome != ? AND result != ''
		 GROUP BY result
		 ORDER BY n DESC, result ASC`,
		string(OutcomeTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("query tally: %w", err)
	}
	defer rows.Close()

	var out []ResultCount
	for rows.Next() {
		var rc ResultCount
		if err := rows.Scan(&rc.Result, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// Outcomes counts sessions by outcome across the whole log.
func (s *Store) Outcomes(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM sessions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[Outcome]int)
	for rows.Next() {
		var (
			o string
			n int
		)
		if err := rows.Scan(&o, &n); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out[Outcome(o)] = n
	}
	return out, rows.Err()
}
