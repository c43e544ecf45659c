// Package storage persists lifecycle state. Two backends implement the same
// repository contract: embedded SQLite for single-host deployments and
// Postgres for anything shared. Events append forever; snapshots and
// criminal histories overwrite in place.
package storage

import (
	"context"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/engine"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
)

// HistoryRow is one subject's persisted criminal record.
type HistoryRow struct {
	SubjectID  subject.ID
	Entries    []engine.RecordEntry
	Violations int
}

// Repository is the persistence contract for the lifecycle server.
type Repository interface {
	AppendEvent(ctx context.Context, event events.GameEvent) error
	SaveSnapshot(ctx context.Context, snap engine.Snapshot) error
	LoadSnapshot(ctx context.Context) (engine.Snapshot, bool, error)
	SaveHistory(ctx context.Context, row HistoryRow) error
	LoadHistories(ctx context.Context) ([]HistoryRow, error)
	Close()
}

// EventPersister adapts a repository to the event log's write-through hook.
type EventPersister struct {
	repo Repository
}

// NewEventPersister wraps a repository for the event log.
func NewEventPersister(repo Repository) *EventPersister {
	return &EventPersister{repo: repo}
}

// Append satisfies events.EventPersister.
func (p *EventPersister) Append(event events.GameEvent) error {
	return p.repo.AppendEvent(context.Background(), event)
}
