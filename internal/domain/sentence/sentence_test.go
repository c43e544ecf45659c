package sentence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		tags []OffenseTag
		want SeverityTier
	}{
		{"empty report defaults to minor", nil, TierMinor},
		{"single minor", []OffenseTag{OffenseTrespassing}, TierMinor},
		{"highest tag wins", []OffenseTag{OffensePettyTheft, OffenseAssault}, TierMajor},
		{"severe dominates everything", []OffenseTag{OffenseTrespassing, OffenseMurder, OffenseTheft}, TierSevere},
		{"unknown tags ignored", []OffenseTag{"Jaywalking", OffenseTheft}, TierModerate},
		{"all unknown falls back to minor", []OffenseTag{"Jaywalking", "Loitering"}, TierMinor},
		{"order does not matter", []OffenseTag{OffenseAssault, OffensePossession}, TierMajor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.tags))
		})
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		report      CrimeReport
		wantTier    SeverityTier
		wantJail    float64
		wantFine    float64
		wantPayable bool
	}{
		{
			name:        "assault with possession at level five",
			report:      CrimeReport{Tags: []OffenseTag{OffenseAssault, OffensePossession}, OffenderLevel: 5},
			wantTier:    TierMajor,
			wantJail:    480,
			wantFine:    750,
			wantPayable: true,
		},
		{
			name:        "minor at level one",
			report:      CrimeReport{Tags: []OffenseTag{OffenseTrespassing}, OffenderLevel: 1},
			wantTier:    TierMinor,
			wantJail:    66,
			wantFine:    110,
			wantPayable: true,
		},
		{
			name:        "severe has no payable fine",
			report:      CrimeReport{Tags: []OffenseTag{OffenseMurder}, OffenderLevel: 10},
			wantTier:    TierSevere,
			wantJail:    1200,
			wantFine:    2200,
			wantPayable: false,
		},
		{
			name:        "level clamps up to one",
			report:      CrimeReport{Tags: []OffenseTag{OffenseTheft}, OffenderLevel: 0},
			wantTier:    TierModerate,
			wantJail:    192,
			wantFine:    275,
			wantPayable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.report)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantJail, got.JailMinutes)
			assert.Equal(t, tt.wantFine, got.FineAmount)
			assert.Equal(t, tt.wantPayable, got.FinePayable)
			assert.NotEmpty(t, got.Description)
		})
	}
}

func TestEvaluateMonotonicInLevel(t *testing.T) {
	for _, tier := range []OffenseTag{OffenseTrespassing, OffenseTheft, OffenseAssault, OffenseMurder} {
		prev := Evaluate(CrimeReport{Tags: []OffenseTag{tier}, OffenderLevel: 1})
		for level := 2; level <= 30; level++ {
			got := Evaluate(CrimeReport{Tags: []OffenseTag{tier}, OffenderLevel: level})
			assert.Greater(t, got.JailMinutes, prev.JailMinutes, "jail must grow with level for %s", tier)
			assert.Greater(t, got.FineAmount, prev.FineAmount, "fine must grow with level for %s", tier)
			prev = got
		}
	}
}

func TestEvaluateMonotonicInTier(t *testing.T) {
	byTier := []OffenseTag{OffenseTrespassing, OffenseTheft, OffenseAssault, OffenseMurder}
	prev := Evaluate(CrimeReport{Tags: []OffenseTag{byTier[0]}, OffenderLevel: 5})
	for _, tag := range byTier[1:] {
		got := Evaluate(CrimeReport{Tags: []OffenseTag{tag}, OffenderLevel: 5})
		assert.Greater(t, got.JailMinutes, prev.JailMinutes)
		assert.Greater(t, got.FineAmount, prev.FineAmount)
		prev = got
	}
}
