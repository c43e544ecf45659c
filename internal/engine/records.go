package engine

import (
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

// RecordEntry is one arrest-to-release span on a subject's criminal record.
// Entries are append-only: an open entry gets its release fields filled
// exactly once and is never rewritten after that.
type RecordEntry struct {
	ID                string              `json:"id"`
	SubjectID         subject.ID          `json:"subject_id"`
	ArrestMinutes     float64             `json:"arrest_minutes"`
	ReleaseMinutes    *float64            `json:"release_minutes,omitempty"`
	Sentence          sentence.Descriptor `json:"sentence"`
	FinePaid          bool                `json:"fine_paid"`
	BailPaid          *float64            `json:"bail_paid,omitempty"`
	TimeServedMinutes float64             `json:"time_served_minutes"`
	Notes             []string            `json:"notes,omitempty"`
}

// Open reports whether the entry is still awaiting its release fill.
func (e *RecordEntry) Open() bool {
	return e.ReleaseMinutes == nil
}

// CriminalRecordStore keeps per-subject arrest history. Parole qualification
// and risk scoring read from here; nothing ever deletes an entry.
type CriminalRecordStore struct {
	entries    map[subject.ID][]*RecordEntry
	violations map[subject.ID]int // lifetime parole violations

	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewCriminalRecordStore creates an empty store.
func NewCriminalRecordStore(eventLog *events.EventLog, log *logger.Logger) *CriminalRecordStore {
	return &CriminalRecordStore{
		entries:    make(map[subject.ID][]*RecordEntry),
		violations: make(map[subject.ID]int),
		eventLog:   eventLog,
		logger:     log,
	}
}

// OpenEntry appends a new open entry for an arrest and returns its ID.
func (s *CriminalRecordStore) OpenEntry(id subject.ID, arrestMinutes float64, desc sentence.Descriptor) string {
	entry := &RecordEntry{
		ID:            events.GenerateEventID(),
		SubjectID:     id,
		ArrestMinutes: arrestMinutes,
		Sentence:      desc,
	}
	s.entries[id] = append(s.entries[id], entry)
	s.logger.Infof("record opened for %s: %s", id, desc.Description)
	return entry.ID
}

// FillRelease completes the most recent open entry with release data.
func (s *CriminalRecordStore) FillRelease(id subject.ID, releaseMinutes, servedMinutes float64, note string) error {
	entry := s.latestOpen(id)
	if entry == nil {
		return ErrMissingRecord
	}
	entry.ReleaseMinutes = &releaseMinutes
	entry.TimeServedMinutes = servedMinutes
	if note != "" {
		entry.Notes = append(entry.Notes, note)
	}
	return nil
}

// MarkFinePaid flags the open entry as resolved by fine payment.
func (s *CriminalRecordStore) MarkFinePaid(id subject.ID) error {
	entry := s.latestOpen(id)
	if entry == nil {
		return ErrMissingRecord
	}
	entry.FinePaid = true
	return nil
}

// MarkBailPaid records the accepted bail amount on the open entry.
func (s *CriminalRecordStore) MarkBailPaid(id subject.ID, amount float64) error {
	entry := s.latestOpen(id)
	if entry == nil {
		return ErrMissingRecord
	}
	entry.BailPaid = &amount
	return nil
}

// AppendNote attaches a free-form note to the most recent entry, open or not.
func (s *CriminalRecordStore) AppendNote(id subject.ID, note string) {
	history := s.entries[id]
	if len(history) == 0 {
		s.logger.Debugf("note for %s dropped, no record: %s", id, note)
		return
	}
	last := history[len(history)-1]
	last.Notes = append(last.Notes, note)
}

// RecordParoleViolation bumps the lifetime violation counter used by risk
// scoring on future parole terms.
func (s *CriminalRecordStore) RecordParoleViolation(id subject.ID) {
	s.violations[id]++
}

// ParoleViolationCount returns the lifetime violation count.
func (s *CriminalRecordStore) ParoleViolationCount(id subject.ID) int {
	return s.violations[id]
}

// History returns a deep copy of the subject's record, oldest first.
func (s *CriminalRecordStore) History(id subject.ID) []RecordEntry {
	history := s.entries[id]
	out := make([]RecordEntry, 0, len(history))
	for _, e := range history {
		copied := *e
		if e.ReleaseMinutes != nil {
			rel := *e.ReleaseMinutes
			copied.ReleaseMinutes = &rel
		}
		if e.BailPaid != nil {
			bail := *e.BailPaid
			copied.BailPaid = &bail
		}
		copied.Notes = append([]string(nil), e.Notes...)
		out = append(out, copied)
	}
	return out
}

// ArrestCount returns the subject's total arrests on record.
func (s *CriminalRecordStore) ArrestCount(id subject.ID) int {
	return len(s.entries[id])
}

// ArrestsSince counts arrests at or after the given game minute.
func (s *CriminalRecordStore) ArrestsSince(id subject.ID, sinceMinutes float64) int {
	n := 0
	for _, e := range s.entries[id] {
		if e.ArrestMinutes >= sinceMinutes {
			n++
		}
	}
	return n
}

// SevereArrestsSince counts arrests at the given tier or worse at or after
// the given game minute.
func (s *CriminalRecordStore) SevereArrestsSince(id subject.ID, sinceMinutes float64, tier sentence.SeverityTier) int {
	n := 0
	for _, e := range s.entries[id] {
		if e.ArrestMinutes >= sinceMinutes && e.Sentence.Tier.AtLeast(tier) {
			n++
		}
	}
	return n
}

// SubjectHistory bundles one subject's full record for persistence.
type SubjectHistory struct {
	SubjectID  subject.ID    `json:"subject_id"`
	Entries    []RecordEntry `json:"entries"`
	Violations int           `json:"violations"`
}

// AllHistories returns a deep copy of every subject's record.
func (s *CriminalRecordStore) AllHistories() []SubjectHistory {
	out := make([]SubjectHistory, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, SubjectHistory{
			SubjectID:  id,
			Entries:    s.History(id),
			Violations: s.violations[id],
		})
	}
	return out
}

// RestoreHistory loads persisted entries for a subject at boot. Existing
// in-memory history for the subject is replaced.
func (s *CriminalRecordStore) RestoreHistory(id subject.ID, entries []RecordEntry, violations int) {
	restored := make([]*RecordEntry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		restored = append(restored, &e)
	}
	s.entries[id] = restored
	s.violations[id] = violations
}

func (s *CriminalRecordStore) latestOpen(id subject.ID) *RecordEntry {
	history := s.entries[id]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Open() {
			return history[i]
		}
	}
	return nil
}
