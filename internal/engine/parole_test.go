package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/item"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// fixedSource pins the search roll: 0 always passes, highRoll always fails.
type fixedSource struct{ v int64 }

func (s fixedSource) Int63() int64 { return s.v }
func (s fixedSource) Seed(int64)   {}

const highRoll = int64(7) << 60 // Float64() == 0.875, above every tier's probability

// paroleWithRoll rebuilds the supervision subsystem with a pinned rng.
func (env *testEnv) paroleWithRoll(roll int64) *ParoleSupervision {
	log := logger.NewLogger(false)
	p := NewParoleSupervision(env.records, env.presence, env.positions,
		env.inventory, rand.New(fixedSource{v: roll}), env.eventLog, log, metrics.Nop(), env.cfg)
	env.parole = p
	return p
}

// arrestAt opens and immediately closes a record entry at the given minute.
func (env *testEnv) arrestAt(id subject.ID, minute float64) {
	env.records.OpenEntry(id, minute, moderateSentence())
	_ = env.records.FillRelease(id, minute+100, 100, "")
}

// standAtSupervisingPost puts the subject next to the stationary post so
// every search evaluation is in detection range.
func (env *testEnv) standAtSupervisingPost(id subject.ID) {
	env.positions.Set(id, env.layout.Routes[0].Points[0])
}

func TestParoleQualification(t *testing.T) {
	env := newTestEnv(t)
	now := 50000.0
	window := env.cfg.ParoleRecentWindowDays * 24 * 60

	tests := []struct {
		name    string
		arrests []float64 // arrest minutes
		want    bool
	}{
		{"no record", nil, false},
		{"single arrest", []float64{now - 100}, false},
		{"two recent arrests", []float64{now - 200, now - 100}, true},
		{"two arrests but only one recent", []float64{now - window - 1000, now - 100}, false},
		{"many old arrests", []float64{now - window - 3000, now - window - 2000, now - window - 1000}, false},
		{"old record with recent pair", []float64{now - window - 1000, now - 300, now - 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := subjectID(tt.name)
			for _, m := range tt.arrests {
				env.arrestAt(id, m)
			}
			assert.Equal(t, tt.want, env.parole.Qualifies(id, now))
		})
	}
}

func TestParoleBeginAndGrace(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(0)
	env.arrestAt("sub-a", 100)
	env.arrestAt("sub-a", 300)

	p.Begin("sub-a", 1000)
	rec, ok := p.Get("sub-a")
	require.True(t, ok)
	assert.Equal(t, RiskMinimum, rec.Tier)
	assert.Equal(t, env.cfg.ParoleBaseDurationMin, rec.DurationMinutes)
	assert.Equal(t, 1030.0, rec.GraceUntilMin)

	// Inside grace: countdown frozen, no searches even with contraband in
	// detection range.
	env.inventory.Add("sub-a", item.ItemShiv, 1)
	env.standAtSupervisingPost("sub-a")
	p.OnTick(1010, 10)
	rec, _ = p.Get("sub-a")
	assert.Equal(t, rec.DurationMinutes, rec.RemainingMinutes)
	assert.Zero(t, rec.ViolationCount)

	// After grace the countdown strictly decreases; the pinned roll also
	// lands a search, which extends both duration and remaining in lockstep.
	p.OnTick(1040, 10)
	rec, _ = p.Get("sub-a")
	assert.Equal(t, 1, rec.ViolationCount)
	assert.Equal(t, rec.DurationMinutes-10, rec.RemainingMinutes)
}

func TestParoleCountdownDecreasesAfterGrace(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(highRoll) // searches never fire
	env.arrestAt("sub-a", 100)
	env.arrestAt("sub-a", 300)

	p.Begin("sub-a", 1000)
	p.OnTick(1040, 10)
	rec, _ := p.Get("sub-a")
	assert.Equal(t, env.cfg.ParoleBaseDurationMin-10, rec.RemainingMinutes)
}

func TestParoleSearchFindsContraband(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(0)
	env.arrestAt("sub-a", 100)
	p.Begin("sub-a", 1000)

	env.inventory.Add("sub-a", item.ItemNarcotics, 2)
	env.standAtSupervisingPost("sub-a")

	p.OnTick(1040, 10)
	rec, ok := p.Get("sub-a")
	require.True(t, ok)
	assert.Equal(t, 1, rec.ViolationCount)
	assert.Equal(t, RiskMedium, rec.Tier, "violation escalates the tier")
	assert.Equal(t, env.cfg.ParoleBaseDurationMin+env.cfg.ParoleViolationExtendMin, rec.DurationMinutes)
	assert.Equal(t, 1, env.records.ParoleViolationCount("sub-a"))
}

func TestParoleSearchCooldown(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(0)
	env.arrestAt("sub-a", 100)
	p.Begin("sub-a", 1000)
	env.inventory.Add("sub-a", item.ItemShiv, 1)
	env.standAtSupervisingPost("sub-a")

	p.OnTick(1040, 10)
	p.OnTick(1041, 1) // inside the cooldown, no second search
	rec, _ := p.Get("sub-a")
	assert.Equal(t, 1, rec.ViolationCount)

	p.OnTick(1040+env.cfg.ParoleSearchCooldownMin+1, 1)
	rec, _ = p.Get("sub-a")
	assert.Equal(t, 2, rec.ViolationCount)
}

func TestParoleCleanSearchRecordsNoViolation(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(0)
	env.arrestAt("sub-a", 100)
	p.Begin("sub-a", 1000)
	env.standAtSupervisingPost("sub-a")

	p.OnTick(1040, 10)
	rec, _ := p.Get("sub-a")
	assert.Zero(t, rec.ViolationCount)
	assert.Equal(t, RiskMinimum, rec.Tier)

	searches := env.eventLog.GetByType(events.EventTypeParoleSearch)
	assert.NotEmpty(t, searches)
}

func TestParoleSearchRequiresProximity(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(0)
	env.arrestAt("sub-a", 100)
	p.Begin("sub-a", 1000)
	env.inventory.Add("sub-a", item.ItemShiv, 1)

	// Far outside every presence's detection radius.
	env.positions.Set("sub-a", subject.Vector3{X: 1000})
	p.OnTick(1040, 10)
	rec, _ := p.Get("sub-a")
	assert.Zero(t, rec.ViolationCount)
}

func TestParoleRevocationAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(0)
	var revoked subject.ID
	p.SetRevokedCallback(func(id subject.ID, now float64) { revoked = id })

	env.arrestAt("sub-a", 100)
	p.Begin("sub-a", 1000)
	env.inventory.Add("sub-a", item.ItemShiv, 1)
	env.standAtSupervisingPost("sub-a")

	now := 1040.0
	for i := 0; i < env.cfg.ParoleRevokeViolations; i++ {
		p.OnTick(now, 1)
		now += env.cfg.ParoleSearchCooldownMin + 1
	}

	_, ok := p.Get("sub-a")
	assert.False(t, ok, "record destroyed on revocation")
	assert.Equal(t, subject.ID("sub-a"), revoked)
	assert.NotEmpty(t, env.eventLog.GetByType(events.EventTypeParoleRevoked))
}

func TestParoleCompletion(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(highRoll)
	env.arrestAt("sub-a", 100)
	p.Begin("sub-a", 1000)

	p.OnTick(1030+env.cfg.ParoleBaseDurationMin+10, env.cfg.ParoleBaseDurationMin+10)
	_, ok := p.Get("sub-a")
	assert.False(t, ok)
	assert.NotEmpty(t, env.eventLog.GetByType(events.EventTypeParoleComplete))
	assert.Equal(t, 0, env.presence.ActiveCount(), "presences stand down with the last parolee")
}

func TestParoleTierFromRecord(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(highRoll)

	// Four lifetime violations push the starting tier up two steps.
	env.arrestAt("sub-b", 100)
	for i := 0; i < 4; i++ {
		env.records.RecordParoleViolation("sub-b")
	}
	p.Begin("sub-b", 1000)
	rec, _ := p.Get("sub-b")
	assert.Equal(t, RiskHigh, rec.Tier)

	// A recent severe conviction adds another step.
	env.records.OpenEntry("sub-c", 900, severeSentence())
	_ = env.records.FillRelease("sub-c", 950, 50, "")
	p.Begin("sub-c", 1000)
	rec, _ = p.Get("sub-c")
	assert.Equal(t, RiskMedium, rec.Tier)
}

func TestParoleRestore(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(highRoll)

	tests := []struct {
		name    string
		rec     ParoleRecord
		wantErr bool
	}{
		{"valid", ParoleRecord{SubjectID: "a", Tier: RiskMedium, DurationMinutes: 1000, RemainingMinutes: 400}, false},
		{"expired completes cleanly", ParoleRecord{SubjectID: "b", Tier: RiskMinimum, DurationMinutes: 1000, RemainingMinutes: 0}, false},
		{"unknown tier", ParoleRecord{SubjectID: "c", Tier: "EXTREME", DurationMinutes: 1000, RemainingMinutes: 400}, true},
		{"missing subject", ParoleRecord{Tier: RiskMinimum, DurationMinutes: 1000, RemainingMinutes: 400}, true},
		{"remaining above duration", ParoleRecord{SubjectID: "d", Tier: RiskHigh, DurationMinutes: 100, RemainingMinutes: 400}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Restore(tt.rec, 5000)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPersistenceCorrupt)
				return
			}
			require.NoError(t, err)
		})
	}

	_, ok := p.Get("a")
	assert.True(t, ok)
	_, ok = p.Get("b")
	assert.False(t, ok, "expired term must not resurrect")
}

func TestParoleCorruptFallback(t *testing.T) {
	env := newTestEnv(t)
	p := env.paroleWithRoll(highRoll)

	err := p.Restore(ParoleRecord{SubjectID: "a", Tier: "BOGUS", DurationMinutes: 10, RemainingMinutes: 5}, 5000)
	require.ErrorIs(t, err, ErrPersistenceCorrupt)

	p.BeginDefault("a", 5000)
	rec, ok := p.Get("a")
	require.True(t, ok)
	assert.Equal(t, RiskMinimum, rec.Tier)
	assert.Equal(t, env.cfg.ParoleBaseDurationMin, rec.DurationMinutes)
}
