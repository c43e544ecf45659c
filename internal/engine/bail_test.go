package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
)

func TestBailOfferScalesWithWealth(t *testing.T) {
	env := newTestEnv(t)
	desc := moderateSentence() // fine 275

	tests := []struct {
		name       string
		wealthTier int
		wantBase   float64
	}{
		{"broke", 0, 687.5},
		{"modest", 1, 859.38},
		{"comfortable", 2, 1031.25},
		{"rich", 3, 1375},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := subjectID(tt.name)
			offer := env.bail.OpenOffer(id, desc, tt.wealthTier, 0)
			require.NotNil(t, offer)
			assert.InDelta(t, tt.wantBase, offer.BaseAmount, 0.01)
			assert.InDelta(t, tt.wantBase*0.8, offer.MinAmount, 0.01)
			assert.InDelta(t, tt.wantBase*1.2, offer.MaxAmount, 0.01)
			assert.Equal(t, offer.BaseAmount, offer.CurrentAmount)
		})
	}
}

func TestBailNotOfferedOnSevere(t *testing.T) {
	env := newTestEnv(t)
	offer := env.bail.OpenOffer("sub-a", severeSentence(), 2, 0)
	assert.Nil(t, offer)
	_, ok := env.bail.Offer("sub-a")
	assert.False(t, ok)
}

func TestBailNegotiationBounds(t *testing.T) {
	env := newTestEnv(t)
	offer := env.bail.OpenOffer("sub-a", moderateSentence(), 0, 0)
	require.NotNil(t, offer)

	// Inside the band moves the current amount.
	require.NoError(t, env.bail.Negotiate("sub-a", offer.MinAmount))
	got, _ := env.bail.Offer("sub-a")
	assert.Equal(t, offer.MinAmount, got.CurrentAmount)

	// Outside the band is rejected with no state change.
	assert.ErrorIs(t, env.bail.Negotiate("sub-a", offer.MinAmount-1), ErrInvalidNegotiation)
	assert.ErrorIs(t, env.bail.Negotiate("sub-a", offer.MaxAmount+1), ErrInvalidNegotiation)
	got, _ = env.bail.Offer("sub-a")
	assert.Equal(t, offer.MinAmount, got.CurrentAmount)

	assert.ErrorIs(t, env.bail.Negotiate("ghost", 100), ErrMissingRecord)
}

func TestBailPayOpensReleaseAtExitScan(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	desc := moderateSentence()
	env.bookThrough(t, "sub-a", desc, 0)
	env.tracker.OnTick(40, 40)

	offer := env.bail.OpenOffer("sub-a", desc, 1, 40)
	require.NotNil(t, offer)
	require.NoError(t, env.bail.Pay("sub-a", 41))

	got, _ := env.bail.Offer("sub-a")
	assert.True(t, got.Paid)
	assert.Equal(t, got.CurrentAmount, got.PaidAmount)

	_, jailed := env.tracker.Get("sub-a")
	assert.False(t, jailed, "bail closes the countdown")

	ticket, ok := env.release.Get("sub-a")
	require.True(t, ok)
	assert.Equal(t, StageExitScan, ticket.Stage)
	assert.Equal(t, PathBail, ticket.Path)
	assert.Equal(t, 40.0, ticket.ServedMinutes)
}

func TestBailPayIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	desc := moderateSentence()
	env.bookThrough(t, "sub-a", desc, 0)
	env.bail.OpenOffer("sub-a", desc, 0, 0)

	require.NoError(t, env.bail.Pay("sub-a", 1))
	require.NoError(t, env.bail.Pay("sub-a", 2), "second payment must be a no-op")
	got, _ := env.bail.Offer("sub-a")
	assert.True(t, got.Paid)
}

func TestBailPayLosesRaceAgainstExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.addGuard("g1")
	desc := shortSentence()
	env.bookThrough(t, "sub-a", desc, 0)
	env.bail.OpenOffer("sub-a", desc, 0, 0)

	// Sentence expires first; the served release path wins.
	env.tracker.OnTick(desc.JailMinutes+1, desc.JailMinutes+1)
	ticket, ok := env.release.Get("sub-a")
	require.True(t, ok)
	assert.Equal(t, PathServed, ticket.Path)

	require.NoError(t, env.bail.Pay("sub-a", desc.JailMinutes+2))
	_, stillOffered := env.bail.Offer("sub-a")
	assert.False(t, stillOffered, "losing offer is dropped without charging")
	ticket, _ = env.release.Get("sub-a")
	assert.Equal(t, PathServed, ticket.Path, "release path must not change")
}

func TestBailPayWithoutOffer(t *testing.T) {
	env := newTestEnv(t)
	assert.ErrorIs(t, env.bail.Pay("ghost", 0), ErrMissingRecord)
}

func subjectID(s string) subject.ID {
	return subject.ID("sub-" + s)
}
