// Package sentence contains the pure calculation logic for crime severity
// and sentencing. This package is PURE and must NOT import any infrastructure
// packages; Evaluate is a pure function of the crime report.
package sentence

import (
	"fmt"
	"sort"
	"strings"
)

// SeverityTier classifies how serious a crime is. Tier drives sentence
// magnitude monotonically.
type SeverityTier string

const (
	TierMinor    SeverityTier = "MINOR"
	TierModerate SeverityTier = "MODERATE"
	TierMajor    SeverityTier = "MAJOR"
	TierSevere   SeverityTier = "SEVERE"
)

// severityRank orders tiers for comparisons and tie-breaking.
var severityRank = map[SeverityTier]int{
	TierMinor:    0,
	TierModerate: 1,
	TierMajor:    2,
	TierSevere:   3,
}

// Rank returns the numeric order of the tier (Minor=0 .. Severe=3).
func (t SeverityTier) Rank() int {
	return severityRank[t]
}

// AtLeast reports whether t is as severe as other or more.
func (t SeverityTier) AtLeast(other SeverityTier) bool {
	return t.Rank() >= other.Rank()
}

// OffenseTag identifies a specific offense on a crime report.
type OffenseTag string

const (
	OffenseTrespassing    OffenseTag = "Trespassing"
	OffenseVandalism      OffenseTag = "Vandalism"
	OffensePettyTheft     OffenseTag = "PettyTheft"
	OffensePossession     OffenseTag = "Possession"
	OffenseTheft          OffenseTag = "Theft"
	OffenseEvasion        OffenseTag = "Evasion"
	OffenseAssault        OffenseTag = "Assault"
	OffenseDistribution   OffenseTag = "Distribution"
	OffenseArmedRobbery   OffenseTag = "ArmedRobbery"
	OffenseKidnapping     OffenseTag = "Kidnapping"
	OffenseMurder         OffenseTag = "Murder"
	OffenseParoleBreach   OffenseTag = "ParoleBreach"
	OffenseEscapeCustody  OffenseTag = "EscapeCustody"
	OffenseOfficerAssault OffenseTag = "OfficerAssault"
)

// OffenseDefinition provides metadata about an offense tag.
type OffenseDefinition struct {
	Name string
	Tier SeverityTier
}

// Registry contains all known offenses and their configured severity.
// The highest-severity tag present on a report wins classification.
var Registry = map[OffenseTag]OffenseDefinition{
	OffenseTrespassing:    {Name: "Trespassing", Tier: TierMinor},
	OffenseVandalism:      {Name: "Vandalism", Tier: TierMinor},
	OffensePettyTheft:     {Name: "Petty Theft", Tier: TierMinor},
	OffensePossession:     {Name: "Possession of Contraband", Tier: TierModerate},
	OffenseTheft:          {Name: "Theft", Tier: TierModerate},
	OffenseEvasion:        {Name: "Evading Arrest", Tier: TierModerate},
	OffenseParoleBreach:   {Name: "Parole Breach", Tier: TierModerate},
	OffenseAssault:        {Name: "Assault", Tier: TierMajor},
	OffenseDistribution:   {Name: "Distribution", Tier: TierMajor},
	OffenseArmedRobbery:   {Name: "Armed Robbery", Tier: TierMajor},
	OffenseEscapeCustody:  {Name: "Escape from Custody", Tier: TierMajor},
	OffenseOfficerAssault: {Name: "Assault on an Officer", Tier: TierSevere},
	OffenseKidnapping:     {Name: "Kidnapping", Tier: TierSevere},
	OffenseMurder:         {Name: "Murder", Tier: TierSevere},
}

// CrimeReport is the normalized input from the crime-detection layer.
type CrimeReport struct {
	Tags          []OffenseTag `json:"tags"`
	OffenderLevel int          `json:"offender_level"`
	WealthTier    int          `json:"wealth_tier"`
}

// Descriptor is the immutable sentencing outcome for one arrest.
type Descriptor struct {
	Tier        SeverityTier `json:"severity_tier"`
	JailMinutes float64      `json:"jail_minutes"`
	FineAmount  float64      `json:"fine_amount"`
	FinePayable bool         `json:"fine_payable"`
	Description string       `json:"description"`
}

// penaltyScale defines the per-tier sentencing curve. Both columns grow with
// level so higher-level offenders never receive a lighter sentence.
type penaltyScale struct {
	baseJail    float64
	jailPerLvl  float64
	baseFine    float64
	finePerLvl  float64
	finePayable bool
}

var penaltyTable = map[SeverityTier]penaltyScale{
	TierMinor:    {baseJail: 60, jailPerLvl: 6, baseFine: 100, finePerLvl: 10, finePayable: true},
	TierModerate: {baseJail: 180, jailPerLvl: 12, baseFine: 250, finePerLvl: 25, finePayable: true},
	TierMajor:    {baseJail: 360, jailPerLvl: 24, baseFine: 500, finePerLvl: 50, finePayable: true},
	TierSevere:   {baseJail: 720, jailPerLvl: 48, baseFine: 1200, finePerLvl: 100, finePayable: false},
}

// Classify resolves a tag set to a severity tier. The highest-severity tag
// present wins; unknown tags are ignored. An empty or fully-unknown set
// classifies as Minor.
func Classify(tags []OffenseTag) SeverityTier {
	tier := TierMinor
	for _, tag := range tags {
		def, ok := Registry[tag]
		if !ok {
			continue
		}
		if def.Tier.Rank() > tier.Rank() {
			tier = def.Tier
		}
	}
	return tier
}

// Evaluate produces the sentence descriptor for a crime report. Pure: no
// state is read or mutated beyond the arguments.
func Evaluate(report CrimeReport) Descriptor {
	level := report.OffenderLevel
	if level < 1 {
		level = 1
	}

	tier := Classify(report.Tags)
	scale := penaltyTable[tier]

	return Descriptor{
		Tier:        tier,
		JailMinutes: scale.baseJail + scale.jailPerLvl*float64(level),
		FineAmount:  scale.baseFine + scale.finePerLvl*float64(level),
		FinePayable: scale.finePayable,
		Description: describe(report.Tags, tier),
	}
}

func describe(tags []OffenseTag, tier SeverityTier) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		if def, ok := Registry[tag]; ok {
			names = append(names, def.Name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Unspecified offense (%s)", tier)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s (%s)", strings.Join(names, ", "), tier)
}
