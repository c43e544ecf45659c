package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

func TestRecordOpenAndFill(t *testing.T) {
	env := newTestEnv(t)
	desc := moderateSentence()
	id := env.records.OpenEntry("sub-a", 100, desc)
	assert.NotEmpty(t, id)

	history := env.records.History("sub-a")
	require.Len(t, history, 1)
	assert.True(t, history[0].Open())
	assert.Equal(t, desc, history[0].Sentence)

	require.NoError(t, env.records.FillRelease("sub-a", 300, 192, "served in full"))
	history = env.records.History("sub-a")
	require.NotNil(t, history[0].ReleaseMinutes)
	assert.Equal(t, 300.0, *history[0].ReleaseMinutes)
	assert.Equal(t, 192.0, history[0].TimeServedMinutes)
	assert.Contains(t, history[0].Notes, "served in full")

	// No open entry remains; a second fill is a missing-record error.
	assert.ErrorIs(t, env.records.FillRelease("sub-a", 400, 0, ""), ErrMissingRecord)
}

func TestRecordFillTargetsLatestOpenEntry(t *testing.T) {
	env := newTestEnv(t)
	env.records.OpenEntry("sub-a", 100, moderateSentence())
	require.NoError(t, env.records.FillRelease("sub-a", 200, 100, ""))
	env.records.OpenEntry("sub-a", 500, severeSentence())

	require.NoError(t, env.records.FillRelease("sub-a", 900, 400, ""))
	history := env.records.History("sub-a")
	require.Len(t, history, 2)
	assert.Equal(t, 200.0, *history[0].ReleaseMinutes)
	assert.Equal(t, 900.0, *history[1].ReleaseMinutes)
}

func TestRecordPaymentMarks(t *testing.T) {
	env := newTestEnv(t)
	env.records.OpenEntry("sub-a", 100, moderateSentence())

	require.NoError(t, env.records.MarkFinePaid("sub-a"))
	require.NoError(t, env.records.MarkBailPaid("sub-a", 859.38))
	history := env.records.History("sub-a")
	assert.True(t, history[0].FinePaid)
	require.NotNil(t, history[0].BailPaid)
	assert.Equal(t, 859.38, *history[0].BailPaid)

	assert.ErrorIs(t, env.records.MarkFinePaid("ghost"), ErrMissingRecord)
	assert.ErrorIs(t, env.records.MarkBailPaid("ghost", 1), ErrMissingRecord)
}

func TestRecordArrestCounting(t *testing.T) {
	env := newTestEnv(t)
	for _, minute := range []float64{100, 5000, 9000} {
		env.records.OpenEntry("sub-a", minute, moderateSentence())
	}
	assert.Equal(t, 3, env.records.ArrestCount("sub-a"))
	assert.Equal(t, 2, env.records.ArrestsSince("sub-a", 5000))
	assert.Equal(t, 0, env.records.ArrestsSince("sub-a", 10000))
	assert.Equal(t, 0, env.records.ArrestCount("ghost"))
}

func TestRecordHistoryIsACopy(t *testing.T) {
	env := newTestEnv(t)
	env.records.OpenEntry("sub-a", 100, moderateSentence())

	history := env.records.History("sub-a")
	history[0].Notes = append(history[0].Notes, "tampered")
	history[0].FinePaid = true

	fresh := env.records.History("sub-a")
	assert.Empty(t, fresh[0].Notes)
	assert.False(t, fresh[0].FinePaid)
}

func TestRecordRestoreRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.records.OpenEntry("sub-a", 100, moderateSentence())
	require.NoError(t, env.records.FillRelease("sub-a", 300, 192, ""))
	env.records.RecordParoleViolation("sub-a")

	histories := env.records.AllHistories()
	require.Len(t, histories, 1)

	restored := NewCriminalRecordStore(env.eventLog, logger.NewLogger(false))
	restored.RestoreHistory(histories[0].SubjectID, histories[0].Entries, histories[0].Violations)
	assert.Equal(t, 1, restored.ArrestCount("sub-a"))
	assert.Equal(t, 1, restored.ParoleViolationCount("sub-a"))
}
