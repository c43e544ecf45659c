package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/engine"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
	id           TEXT PRIMARY KEY,
	ts           TIMESTAMPTZ NOT NULL,
	type         TEXT NOT NULL,
	actor_id     TEXT,
	subject_id   TEXT,
	payload      JSONB,
	game_minutes DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_subject ON lifecycle_events(subject_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON lifecycle_events(type);

CREATE TABLE IF NOT EXISTS snapshots (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	data     JSONB NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS criminal_records (
	subject_id TEXT PRIMARY KEY,
	entries    JSONB NOT NULL,
	violations INTEGER NOT NULL DEFAULT 0
);
`

// PostgresRepository stores lifecycle state in Postgres via a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and ensures the schema.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// AppendEvent durably records one lifecycle event.
func (r *PostgresRepository) AppendEvent(ctx context.Context, event events.GameEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO lifecycle_events (id, ts, type, actor_id, subject_id, payload, game_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Timestamp, string(event.Type),
		event.ActorID, event.SubjectID, payload, event.GameMinutes)
	return err
}

// SaveSnapshot overwrites the single durable snapshot row.
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO snapshots (id, data, saved_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, saved_at = now()`,
		data)
	return err
}

// LoadSnapshot returns the persisted snapshot, if one exists.
func (r *PostgresRepository) LoadSnapshot(ctx context.Context) (engine.Snapshot, bool, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM snapshots WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, err
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// SaveHistory overwrites one subject's criminal record.
func (r *PostgresRepository) SaveHistory(ctx context.Context, row HistoryRow) error {
	entries, err := json.Marshal(row.Entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO criminal_records (subject_id, entries, violations) VALUES ($1, $2, $3)
		ON CONFLICT (subject_id) DO UPDATE SET entries = EXCLUDED.entries, violations = EXCLUDED.violations`,
		string(row.SubjectID), entries, row.Violations)
	return err
}

// LoadHistories returns every persisted criminal record.
func (r *PostgresRepository) LoadHistories(ctx context.Context) ([]HistoryRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT subject_id, entries, violations FROM criminal_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var id string
		var entriesJSON []byte
		var violations int
		if err := rows.Scan(&id, &entriesJSON, &violations); err != nil {
			return nil, err
		}
		var entries []engine.RecordEntry
		if err := json.Unmarshal(entriesJSON, &entries); err != nil {
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

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}
