package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	mu     sync.Mutex
	stored []GameEvent
}

func (p *recordingPersister) Append(event GameEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = append(p.stored, event)
	return nil
}

func (p *recordingPersister) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stored)
}

func TestAppendAssignsIdentityAndTimestamp(t *testing.T) {
	log := NewEventLog(nil)
	log.Append(GameEvent{Type: EventTypeArrestReported, SubjectID: "sub-a"})

	all := log.Replay()
	require.Len(t, all, 1)
	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].Timestamp.IsZero())
}

func TestAppendPreservesProvidedIdentity(t *testing.T) {
	log := NewEventLog(nil)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log.Append(GameEvent{ID: "evt-1", Timestamp: ts, Type: EventTypeBailPaid})

	all := log.Replay()
	assert.Equal(t, "evt-1", all[0].ID)
	assert.Equal(t, ts, all[0].Timestamp)
}

func TestFilters(t *testing.T) {
	log := NewEventLog(nil)
	log.Append(GameEvent{Type: EventTypeArrestReported, SubjectID: "sub-a"})
	log.Append(GameEvent{Type: EventTypeBookingStage, SubjectID: "sub-a"})
	log.Append(GameEvent{Type: EventTypeArrestReported, SubjectID: "sub-b"})

	assert.Len(t, log.GetBySubject("sub-a"), 2)
	assert.Len(t, log.GetBySubject("ghost"), 0)
	assert.Len(t, log.GetByType(EventTypeArrestReported), 2)
	assert.Equal(t, 3, log.Len())
}

func TestWriteThroughPersistence(t *testing.T) {
	persister := &recordingPersister{}
	log := NewEventLog(persister)
	log.Append(GameEvent{Type: EventTypeSentenceIssued, SubjectID: "sub-a"})

	// The write-through is asynchronous.
	assert.Eventually(t, func() bool { return persister.len() == 1 },
		time.Second, 10*time.Millisecond)
}
