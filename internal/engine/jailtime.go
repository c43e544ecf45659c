package engine

import (
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// JailTimeRecord counts down one subject's remaining sentence in game
// minutes. At most one live record exists per subject.
type JailTimeRecord struct {
	SubjectID        subject.ID          `json:"subject_id"`
	Sentence         sentence.Descriptor `json:"sentence"`
	TotalMinutes     float64             `json:"total_minutes"`
	RemainingMinutes float64             `json:"remaining_minutes"`
	StartedAtMinutes float64             `json:"started_at_minutes"`
}

// ServedMinutes returns how much of the sentence has been consumed,
// including reductions.
func (r *JailTimeRecord) ServedMinutes() float64 {
	return r.TotalMinutes - r.RemainingMinutes
}

// JailTimeTracker decrements live sentences on every clock tick and reports
// completion. It never initiates a release itself; the engine wires the
// served callback into the release manager.
type JailTimeTracker struct {
	records map[subject.ID]*JailTimeRecord

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics

	// onServed fires when a sentence reaches zero on a tick.
	onServed func(id subject.ID, servedMinutes, nowMinutes float64)
}

// NewJailTimeTracker creates an empty tracker.
func NewJailTimeTracker(eventLog *events.EventLog, log *logger.Logger, m *metrics.Metrics) *JailTimeTracker {
	return &JailTimeTracker{
		records:  make(map[subject.ID]*JailTimeRecord),
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
	}
}

// SetServedCallback wires the sentence-complete hook.
func (t *JailTimeTracker) SetServedCallback(fn func(id subject.ID, servedMinutes, nowMinutes float64)) {
	t.onServed = fn
}

// Start opens a countdown for a freshly placed detainee. Starting over an
// existing record is a logged no-op; the live sentence always wins.
func (t *JailTimeTracker) Start(id subject.ID, desc sentence.Descriptor, nowMinutes float64) {
	if _, ok := t.records[id]; ok {
		t.logger.Warnf("jail time already running for %s, ignoring new start", id)
		return
	}
	t.records[id] = &JailTimeRecord{
		SubjectID:        id,
		Sentence:         desc,
		TotalMinutes:     desc.JailMinutes,
		RemainingMinutes: desc.JailMinutes,
		StartedAtMinutes: nowMinutes,
	}
	t.metrics.DetaineesJailed.Set(float64(len(t.records)))
	t.logger.Infof("jail time started for %s: %.0f minutes", id, desc.JailMinutes)
}

// OnTick advances every live countdown by elapsed game minutes. Records that
// reach zero are closed and reported served.
func (t *JailTimeTracker) OnTick(nowMinutes, elapsed float64) {
	var served []*JailTimeRecord
	for _, rec := range t.records {
		rec.RemainingMinutes -= elapsed
		if rec.RemainingMinutes <= 0 {
			rec.RemainingMinutes = 0
			served = append(served, rec)
		}
	}
	for _, rec := range served {
		delete(t.records, rec.SubjectID)
		t.metrics.DetaineesJailed.Set(float64(len(t.records)))
		t.eventLog.Append(events.GameEvent{
			Type:        events.EventTypeSentenceServed,
			SubjectID:   string(rec.SubjectID),
			Payload:     map[string]float64{"served_minutes": rec.ServedMinutes()},
			GameMinutes: nowMinutes,
		})
		t.logger.Infof("sentence served for %s after %.0f minutes", rec.SubjectID, rec.ServedMinutes())
		if t.onServed != nil {
			t.onServed(rec.SubjectID, rec.ServedMinutes(), nowMinutes)
		}
	}
}

// Reduce shortens the remaining sentence, clamped at zero. A zeroed record
// completes on the next tick rather than synchronously, so callers that need
// an immediate release use CloseEarly instead.
func (t *JailTimeTracker) Reduce(id subject.ID, minutes float64) error {
	rec, ok := t.records[id]
	if !ok {
		return ErrMissingRecord
	}
	rec.RemainingMinutes -= minutes
	if rec.RemainingMinutes < 0 {
		rec.RemainingMinutes = 0
	}
	t.logger.Infof("sentence for %s reduced by %.0f, %.0f remaining", id, minutes, rec.RemainingMinutes)
	return nil
}

// Extend lengthens the remaining sentence, clamped at the original total.
func (t *JailTimeTracker) Extend(id subject.ID, minutes float64) error {
	rec, ok := t.records[id]
	if !ok {
		return ErrMissingRecord
	}
	rec.RemainingMinutes += minutes
	if rec.RemainingMinutes > rec.TotalMinutes {
		rec.RemainingMinutes = rec.TotalMinutes
	}
	t.logger.Infof("sentence for %s extended by %.0f, %.0f remaining", id, minutes, rec.RemainingMinutes)
	return nil
}

// CloseEarly destroys the record before natural expiry (bail payment) and
// returns the minutes served. A missing record means the sentence already
// expired; the caller treats that as losing the race, not an error.
func (t *JailTimeTracker) CloseEarly(id subject.ID) (float64, error) {
	rec, ok := t.records[id]
	if !ok {
		return 0, ErrMissingRecord
	}
	delete(t.records, id)
	t.metrics.DetaineesJailed.Set(float64(len(t.records)))
	return rec.ServedMinutes(), nil
}

// Get returns a copy of the live record.
func (t *JailTimeTracker) Get(id subject.ID) (JailTimeRecord, bool) {
	rec, ok := t.records[id]
	if !ok {
		return JailTimeRecord{}, false
	}
	return *rec, true
}

// All returns copies of every live record, for persistence snapshots.
func (t *JailTimeTracker) All() []JailTimeRecord {
	out := make([]JailTimeRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}

// Restore loads a persisted countdown at boot. Invalid records are rejected
// with ErrPersistenceCorrupt and the subject boots without one.
func (t *JailTimeTracker) Restore(rec JailTimeRecord) error {
	if rec.SubjectID == "" || rec.TotalMinutes <= 0 ||
		rec.RemainingMinutes < 0 || rec.RemainingMinutes > rec.TotalMinutes {
		return ErrPersistenceCorrupt
	}
	copied := rec
	t.records[rec.SubjectID] = &copied
	t.metrics.DetaineesJailed.Set(float64(len(t.records)))
	return nil
}
