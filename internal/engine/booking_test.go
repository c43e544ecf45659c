package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/item"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/officer"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
)

func TestBookingFullWalk(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	desc := moderateSentence()

	env.booking.Begin("sub-a", desc, 0)
	st, ok := env.booking.Get("sub-a")
	require.True(t, ok)
	assert.Equal(t, StageAwaitingPickup, st.Stage)
	assert.Equal(t, -1, st.CellIndex, "no cell before pickup")

	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))
	st, _ = env.booking.Get("sub-a")
	assert.Equal(t, StageMugshot, st.Stage)
	assert.GreaterOrEqual(t, st.CellIndex, 0, "cell claimed at pickup")

	require.NoError(t, env.booking.ConfirmStage("sub-a", StageMugshot, 2))
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageScan, 3))
	st, _ = env.booking.Get("sub-a")
	assert.Equal(t, StageInventoryExchange, st.Stage)

	// First confirm stores property, second issues the kit and advances.
	env.inventory.Add("sub-a", item.ItemCash, 50)
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageInventoryExchange, 4))
	st, _ = env.booking.Get("sub-a")
	assert.Equal(t, StageInventoryExchange, st.Stage)
	assert.True(t, st.InventoryDropDone)
	assert.NotEmpty(t, env.inventory.Stored("sub-a"))

	require.NoError(t, env.booking.ConfirmStage("sub-a", StageInventoryExchange, 5))
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageCellPlacement, 6))

	_, ok = env.booking.Get("sub-a")
	assert.False(t, ok, "booking state destroyed at completion")
	rec, ok := env.tracker.Get("sub-a")
	require.True(t, ok, "jail countdown starts at placement")
	assert.Equal(t, desc.JailMinutes, rec.RemainingMinutes)
	assert.True(t, env.cells.Snapshot()[0].DoorLocked)
}

func TestBookingShortSentenceSkipsInventory(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")

	env.booking.Begin("sub-a", shortSentence(), 0)
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageMugshot, 2))
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageScan, 3))

	st, ok := env.booking.Get("sub-a")
	require.True(t, ok)
	assert.Equal(t, StageCellPlacement, st.Stage, "short stays keep their pockets")
}

func TestBookingInertWithoutOfficer(t *testing.T) {
	env := newTestEnv(t)
	// No guards registered at all.
	env.booking.Begin("sub-a", moderateSentence(), 0)

	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))
	st, _ := env.booking.Get("sub-a")
	assert.Equal(t, StageAwaitingPickup, st.Stage, "confirm must be inert without an escort")
}

func TestBookingInertWithOfficerAway(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", moderateSentence(), 0)

	// Walk the guard out of presence range.
	env.officers.Upsert(*officer.New("g1", "Guard g1", officer.RoleGuard, subject.Vector3{X: 100}))
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))
	st, _ := env.booking.Get("sub-a")
	assert.Equal(t, StageAwaitingPickup, st.Stage)

	// Guard returns, stage confirms normally.
	env.officers.Upsert(*officer.New("g1", "Guard g1", officer.RoleGuard, subject.Vector3{}))
	env.booking.OnTick(2)
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 3))
	st, _ = env.booking.Get("sub-a")
	assert.Equal(t, StageMugshot, st.Stage)
}

func TestBookingWrongStageAndUnknownSubjectAreInert(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", moderateSentence(), 0)

	require.NoError(t, env.booking.ConfirmStage("sub-a", StageCellPlacement, 1))
	st, _ := env.booking.Get("sub-a")
	assert.Equal(t, StageAwaitingPickup, st.Stage, "out-of-order confirm must not advance")

	require.NoError(t, env.booking.ConfirmStage("ghost", StageMugshot, 1))
}

func TestBookingBlockedOnFullPoolRetriesOnVacancy(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")

	// Fill the pool.
	var cellIdx int
	for i := 0; i < env.cells.Capacity(); i++ {
		idx, err := env.cells.Assign(subject.ID(fmt.Sprintf("filler-%d", i)), 0)
		require.NoError(t, err)
		cellIdx = idx
	}

	env.booking.Begin("sub-a", moderateSentence(), 0)
	err := env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1)
	assert.ErrorIs(t, err, ErrNoCellsAvailable)
	st, _ := env.booking.Get("sub-a")
	assert.Equal(t, StageAwaitingPickup, st.Stage)
	assert.True(t, st.PickupBlocked)

	// A vacancy resumes the pickup through the cell manager callback.
	env.cells.Release(cellIdx, 2)
	st, _ = env.booking.Get("sub-a")
	assert.Equal(t, StageMugshot, st.Stage)
	assert.False(t, st.PickupBlocked)
}

func TestBookingDoubleArrestKeepsLiveBooking(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", moderateSentence(), 0)
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))

	env.booking.Begin("sub-a", severeSentence(), 2)
	st, _ := env.booking.Get("sub-a")
	assert.Equal(t, StageMugshot, st.Stage, "second arrest must not reset the pipeline")
	assert.Equal(t, moderateSentence().JailMinutes, st.Sentence.JailMinutes)
}

func TestBookingAbortReleasesCell(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", moderateSentence(), 0)
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))
	assert.Equal(t, 1, env.cells.OccupiedCount())

	require.NoError(t, env.booking.Abort("sub-a", "escaped custody", 2))
	assert.Equal(t, 0, env.cells.OccupiedCount())
	_, ok := env.booking.Get("sub-a")
	assert.False(t, ok)

	assert.ErrorIs(t, env.booking.Abort("sub-a", "again", 3), ErrMissingRecord)
}

func TestBookingStuckBeforePickupAborts(t *testing.T) {
	env := newTestEnv(t)
	// No guard: booking sits at AwaitingPickup until the timeout trips.
	env.booking.Begin("sub-a", moderateSentence(), 0)

	env.booking.OnTick(env.cfg.BookingStuckTimeoutMin + 1)
	_, ok := env.booking.Get("sub-a")
	assert.False(t, ok, "stuck pre-pickup booking must abort")
}

func TestBookingStuckWithCellForcesPlacement(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", moderateSentence(), 0)
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))

	// Guard wanders off; the pipeline stalls at Mugshot past the timeout.
	env.officers.Upsert(*officer.New("g1", "Guard g1", officer.RoleGuard, subject.Vector3{X: 500}))
	env.booking.OnTick(env.cfg.BookingStuckTimeoutMin + 2)

	_, ok := env.booking.Get("sub-a")
	assert.False(t, ok)
	_, jailed := env.tracker.Get("sub-a")
	assert.True(t, jailed, "stuck booking with a cell must force-complete placement")
}

func TestBookingResolveWithFine(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", moderateSentence(), 0)

	require.NoError(t, env.booking.ResolveWithFine("sub-a", 1))
	_, ok := env.booking.Get("sub-a")
	assert.False(t, ok)
	assert.Equal(t, 0, env.cells.OccupiedCount(), "fine path must never claim a cell")
}

func TestBookingFineWindowClosesAfterPickup(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", moderateSentence(), 0)
	require.NoError(t, env.booking.ConfirmStage("sub-a", StageAwaitingPickup, 1))

	assert.ErrorIs(t, env.booking.ResolveWithFine("sub-a", 2), ErrFineNotPayable)
}

func TestBookingFineNotPayableOnSevere(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	env.booking.Begin("sub-a", severeSentence(), 0)

	assert.ErrorIs(t, env.booking.ResolveWithFine("sub-a", 1), ErrFineNotPayable)
}
