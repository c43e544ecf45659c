package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/engine"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
	id           TEXT PRIMARY KEY,
	ts           TEXT NOT NULL,
	type         TEXT NOT NULL,
	actor_id     TEXT,
	subject_id   TEXT,
	payload      TEXT,
	game_minutes REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_subject ON lifecycle_events(subject_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON lifecycle_events(type);

CREATE TABLE IF NOT EXISTS snapshots (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	data     TEXT NOT NULL,
	saved_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS criminal_records (
	subject_id TEXT PRIMARY KEY,
	entries    TEXT NOT NULL,
	violations INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteRepository stores lifecycle state in an embedded SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the database at path.
func NewSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// The event write-through runs off the dispatcher; a single writer keeps
	// SQLite honest.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// AppendEvent durably records one lifecycle event.
func (r *SQLiteRepository) AppendEvent(ctx context.Context, event events.GameEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO lifecycle_events (id, ts, type, actor_id, subject_id, payload, game_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.Format(time.RFC3339Nano), string(event.Type),
		event.ActorID, event.SubjectID, string(payload), event.GameMinutes)
	return err
}

// SaveSnapshot overwrites the single durable snapshot row.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, data, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// LoadSnapshot returns the persisted snapshot, if one exists.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (engine.Snapshot, bool, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, err
	}
	var snap engine.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// SaveHistory overwrites one subject's criminal record.
func (r *SQLiteRepository) SaveHistory(ctx context.Context, row HistoryRow) error {
	entries, err := json.Marshal(row.Entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO criminal_records (subject_id, entries, violations) VALUES (?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET entries = excluded.entries, violations = excluded.violations`,
		string(row.SubjectID), string(entries), row.Violations)
	return err
}

// LoadHistories returns every persisted criminal record.
func (r *SQLiteRepository) LoadHistories(ctx context.Context) ([]HistoryRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT subject_id, entries, violations FROM criminal_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var id, entriesJSON string
		var violations int
		if err := rows.Scan(&id, &entriesJSON, &violations); err != nil {
			return nil, err
		}
		var entries []engine.RecordEntry
		if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
			return nil, fmt.Errorf("decode history for %s: %w", id, err)
		}
		out = append(out, HistoryRow{
			SubjectID:  subject.ID(id),
			Entries:    entries,
			Violations: violations,
		})
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() {
	r.db.Close()
}
