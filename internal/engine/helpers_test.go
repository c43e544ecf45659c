package engine

import (
	"math/rand"
	"testing"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/officer"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// testLifecycleConfig mirrors the production defaults so tests exercise the
// same numbers the server ships with.
func testLifecycleConfig() config.LifecycleConfig {
	return config.LifecycleConfig{
		CellCount:                  4,
		OfficerPresenceRadius:      4.0,
		ShortSentenceMinutes:       120,
		BookingStuckTimeoutMin:     45,
		ReleaseStuckTimeoutMin:     30,
		BailMultiplier:             2.5,
		BailNegotiationBound:       0.20,
		ParoleMinArrests:           2,
		ParoleRecentArrests:        2,
		ParoleRecentWindowDays:     30,
		ParoleGraceMinutes:         30,
		ParoleSearchCooldownMin:    2,
		ParoleBaseDurationMin:      2880,
		ParoleViolationExtendMin:   360,
		ParoleRevokeViolations:     3,
		PresenceActivationRadius:   60,
		PresenceDeactivationRadius: 80,
	}
}

// testLayout collapses every station onto the origin so a single officer at
// the origin satisfies all presence gates.
func testLayout() Layout {
	origin := subject.Vector3{}
	return Layout{
		BookingStations: map[BookingStage]subject.Vector3{
			StageAwaitingPickup:    origin,
			StageMugshot:           origin,
			StageScan:              origin,
			StageInventoryExchange: origin,
			StageCellPlacement:     origin,
		},
		ReleaseStations: map[ReleaseStage]subject.Vector3{
			StageStorageReturn: origin,
			StageExitScan:      origin,
			StageDoorUnlock:    origin,
			StageEgress:        origin,
		},
		ExitZone:     subject.Zone{Center: subject.Vector3{Z: -12}, Radius: 3},
		ReleasePoint: subject.Vector3{Z: -15},
		Routes: []Route{
			{Key: "office", Kind: RouteSupervising, Points: []subject.Vector3{{X: 5}}},
			{Key: "patrol", Kind: RoutePatrol, Points: []subject.Vector3{
				{X: 100, Z: 100}, {X: 200, Z: 100},
			}},
		},
	}
}

// testEnv wires every subsystem the way the engine does, minus the
// dispatcher, so tests drive them synchronously with explicit game minutes.
type testEnv struct {
	cfg    config.LifecycleConfig
	layout Layout

	eventLog  *events.EventLog
	positions *PositionRegistry
	officers  *OfficerRegistry
	cells     *CellManager
	inventory *InventoryLedger
	records   *CriminalRecordStore
	tracker   *JailTimeTracker
	booking   *BookingPipeline
	bail      *BailDesk
	release   *ReleaseManager
	presence  *PresenceManager
	parole    *ParoleSupervision
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testLifecycleConfig()
	layout := testLayout()
	log := logger.NewLogger(false)
	m := metrics.Nop()
	eventLog := events.NewEventLog(nil)

	env := &testEnv{cfg: cfg, layout: layout, eventLog: eventLog}
	env.positions = NewPositionRegistry()
	env.officers = NewOfficerRegistry(log)
	env.cells = NewCellManager(cfg.CellCount, eventLog, log, m)
	env.inventory = NewInventoryLedger(eventLog, log)
	env.records = NewCriminalRecordStore(eventLog, log)
	env.tracker = NewJailTimeTracker(eventLog, log, m)
	env.booking = NewBookingPipeline(env.cells, env.officers, env.inventory, env.tracker,
		layout.BookingStations, eventLog, log, m, cfg)
	env.release = NewReleaseManager(env.cells, env.officers, env.inventory, env.records,
		env.positions, env.positions, layout.ReleaseStations, layout.ExitZone,
		layout.ReleasePoint, eventLog, log, m, cfg)
	env.bail = NewBailDesk(env.tracker, env.release, env.records, eventLog, log, m, cfg)
	env.presence = NewPresenceManager(layout.Routes, env.positions, nil, eventLog, log, cfg)
	env.parole = NewParoleSupervision(env.records, env.presence, env.positions,
		env.inventory, rand.New(rand.NewSource(1)), eventLog, log, m, cfg)

	env.cells.SetVacancyCallback(env.booking.RetryBlocked)
	env.tracker.SetServedCallback(func(id subject.ID, served, now float64) {
		env.release.Begin(id, StageStorageReturn, PathServed, served, now)
	})
	return env
}

// addGuard registers an on-duty guard standing at the origin.
func (env *testEnv) addGuard(id string) {
	env.officers.Upsert(*officer.New(id, "Guard "+id, officer.RoleGuard, subject.Vector3{}))
}

// moderateSentence is a 192-minute, 275-fine descriptor.
func moderateSentence() sentence.Descriptor {
	return sentence.Evaluate(sentence.CrimeReport{
		Tags: []sentence.OffenseTag{sentence.OffenseTheft}, OffenderLevel: 1,
	})
}

// shortSentence is below the inventory-exchange threshold.
func shortSentence() sentence.Descriptor {
	return sentence.Evaluate(sentence.CrimeReport{
		Tags: []sentence.OffenseTag{sentence.OffenseTrespassing}, OffenderLevel: 1,
	})
}

// severeSentence has no payable fine.
func severeSentence() sentence.Descriptor {
	return sentence.Evaluate(sentence.CrimeReport{
		Tags: []sentence.OffenseTag{sentence.OffenseMurder}, OffenderLevel: 1,
	})
}

// bookThrough walks a subject through the whole intake pipeline with a guard
// present and returns the claimed cell index.
func (env *testEnv) bookThrough(t *testing.T, id subject.ID, desc sentence.Descriptor, now float64) int {
	t.Helper()
	env.booking.Begin(id, desc, now)
	stages := []BookingStage{StageAwaitingPickup, StageMugshot, StageScan}
	for _, s := range stages {
		if err := env.booking.ConfirmStage(id, s, now); err != nil {
			t.Fatalf("confirm %s for %s: %v", s, id, err)
		}
	}
	if desc.JailMinutes >= env.cfg.ShortSentenceMinutes {
		// Drop-off, then pickup.
		_ = env.booking.ConfirmStage(id, StageInventoryExchange, now)
		_ = env.booking.ConfirmStage(id, StageInventoryExchange, now)
	}
	_ = env.booking.ConfirmStage(id, StageCellPlacement, now)
	idx, ok := env.cells.CellOf(id)
	if !ok {
		t.Fatalf("subject %s has no cell after booking", id)
	}
	return idx
}
