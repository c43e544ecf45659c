// Package engine implements the detention lifecycle: sentencing, booking,
// jail time, bail, release and parole. All lifecycle state is owned by a
// single dispatcher goroutine fed through a command channel; subsystems are
// plain structs that never spawn goroutines of their own.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/item"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/officer"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// Layout fixes the facility geometry: stage supervision points, the exit
// zone and the post-release drop point. Deployments override the defaults
// to match their map.
type Layout struct {
	BookingStations map[BookingStage]subject.Vector3
	ReleaseStations map[ReleaseStage]subject.Vector3
	ExitZone        subject.Zone
	ReleasePoint    subject.Vector3
	Routes          []Route
}

// DefaultLayout returns a small facility layout usable out of the box.
func DefaultLayout() Layout {
	return Layout{
		BookingStations: map[BookingStage]subject.Vector3{
			StageAwaitingPickup:    {X: 0, Y: 0, Z: 0},
			StageMugshot:           {X: 5, Y: 0, Z: 0},
			StageScan:              {X: 10, Y: 0, Z: 0},
			StageInventoryExchange: {X: 15, Y: 0, Z: 0},
			StageCellPlacement:     {X: 20, Y: 0, Z: 5},
		},
		ReleaseStations: map[ReleaseStage]subject.Vector3{
			StageStorageReturn: {X: 15, Y: 0, Z: 0},
			StageExitScan:      {X: 10, Y: 0, Z: -5},
			StageDoorUnlock:    {X: 20, Y: 0, Z: 5},
			StageEgress:        {X: 0, Y: 0, Z: -10},
		},
		ExitZone:     subject.Zone{Center: subject.Vector3{X: 0, Y: 0, Z: -12}, Radius: 3},
		ReleasePoint: subject.Vector3{X: 0, Y: 0, Z: -15},
		Routes: []Route{
			{Key: "parole-office", Kind: RouteSupervising, Points: []subject.Vector3{{X: -10, Y: 0, Z: -20}}},
			{Key: "district-patrol", Kind: RoutePatrol, Points: []subject.Vector3{
				{X: -50, Y: 0, Z: -50}, {X: 50, Y: 0, Z: -50}, {X: 50, Y: 0, Z: -150},
			}},
		},
	}
}

// Engine is the public face of the lifecycle. External callers never touch a
// subsystem directly; every operation is scheduled onto the dispatcher.
type Engine struct {
	commands chan func()

	subjects map[subject.ID]*subject.Subject

	clock     *Clock
	positions *PositionRegistry
	officers  *OfficerRegistry
	cells     *CellManager
	inventory *InventoryLedger
	records   *CriminalRecordStore
	tracker   *JailTimeTracker
	booking   *BookingPipeline
	bail      *BailDesk
	release   *ReleaseManager
	parole    *ParoleSupervision
	presence  *PresenceManager

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cfg      *config.Config
}

// New wires a complete engine. The rng feeds parole search rolls; pass a
// seeded source in tests for determinism.
func New(cfg *config.Config, layout Layout, eventLog *events.EventLog, log *logger.Logger, m *metrics.Metrics, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Engine{
		commands: make(chan func(), 256),
		subjects: make(map[subject.ID]*subject.Subject),
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
		cfg:      cfg,
	}

	lc := cfg.Lifecycle
	e.positions = NewPositionRegistry()
	e.officers = NewOfficerRegistry(log)
	e.cells = NewCellManager(lc.CellCount, eventLog, log, m)
	e.inventory = NewInventoryLedger(eventLog, log)
	e.records = NewCriminalRecordStore(eventLog, log)
	e.tracker = NewJailTimeTracker(eventLog, log, m)
	e.booking = NewBookingPipeline(e.cells, e.officers, e.inventory, e.tracker,
		layout.BookingStations, eventLog, log, m, lc)
	e.release = NewReleaseManager(e.cells, e.officers, e.inventory, e.records,
		e.positions, e.positions, layout.ReleaseStations, layout.ExitZone,
		layout.ReleasePoint, eventLog, log, m, lc)
	e.bail = NewBailDesk(e.tracker, e.release, e.records, eventLog, log, m, lc)
	e.presence = NewPresenceManager(layout.Routes, e.positions, nil, eventLog, log, lc)
	e.parole = NewParoleSupervision(e.records, e.presence, e.positions,
		e.inventory, rng, eventLog, log, m, lc)

	e.cells.SetVacancyCallback(e.booking.RetryBlocked)
	e.tracker.SetServedCallback(func(id subject.ID, served, now float64) {
		e.release.Begin(id, StageStorageReturn, PathServed, served, now)
	})
	e.booking.SetCompleteCallback(func(id subject.ID, desc sentence.Descriptor, now float64) {
		wealth := 0
		if sub, ok := e.subjects[id]; ok {
			wealth = sub.WealthTier
		}
		e.bail.OpenOffer(id, desc, wealth, now)
	})
	e.release.SetReleasedCallback(func(id subject.ID, path string, now float64) {
		e.bail.Clear(id)
		if e.parole.Qualifies(id, now) {
			e.parole.Begin(id, now)
		}
	})
	e.parole.SetRevokedCallback(func(id subject.ID, now float64) {
		e.fileArrest(id, "", sentence.CrimeReport{
			Tags: []sentence.OffenseTag{sentence.OffenseParoleBreach},
		}, now)
	})

	e.clock = NewClock(cfg.TickInterval, cfg.MinutesPerTick, eventLog, log, func(now, elapsed float64) {
		e.do(func() { e.tick(now, elapsed) })
	})
	return e
}

// Start runs the dispatcher and the clock until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.dispatch(ctx)
	go e.clock.Run(ctx)
	e.logger.Info("lifecycle engine started")
}

func (e *Engine) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("lifecycle engine stopped")
			return
		case cmd := <-e.commands:
			cmd()
		}
	}
}

// do schedules fire-and-forget work onto the dispatcher.
func (e *Engine) do(fn func()) {
	e.commands <- fn
}

// call schedules work and waits for its result.
func call[T any](e *Engine, fn func() T) T {
	result := make(chan T, 1)
	e.commands <- func() { result <- fn() }
	return <-result
}

// tick runs one engine step. Ordering matters: sentences expire before
// release recovery so a freshly opened ticket is never judged stuck, and
// presences re-evaluate before parole searches read them.
func (e *Engine) tick(now, elapsed float64) {
	start := time.Now()
	e.booking.OnTick(now)
	e.tracker.OnTick(now, elapsed)
	e.release.OnTick(now)
	e.presence.OnTick(now)
	e.parole.OnTick(now, elapsed)
	e.metrics.GameMinutes.Set(now)
	e.metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// GameMinutes returns the current in-game minute. Safe from any goroutine.
func (e *Engine) GameMinutes() float64 {
	return e.clock.GameMinutes()
}

// AdvanceClock moves game time forward synchronously. Test and tooling hook;
// production time comes from the clock goroutine.
func (e *Engine) AdvanceClock(minutes float64) {
	e.clock.Advance(minutes)
	// Drain the tick command so callers observe its effects.
	call(e, func() struct{} { return struct{}{} })
}

// ReportArrest sentences a subject and opens their booking. The reporting
// officer may be empty for system-initiated arrests such as parole breaches.
func (e *Engine) ReportArrest(sub subject.Subject, officerID string, report sentence.CrimeReport) sentence.Descriptor {
	return call(e, func() sentence.Descriptor {
		now := e.clock.GameMinutes()
		copied := sub
		e.subjects[sub.ID] = &copied
		report.OffenderLevel = sub.Level
		report.WealthTier = sub.WealthTier
		return e.fileArrest(sub.ID, officerID, report, now)
	})
}

// fileArrest runs on the dispatcher. A repeat arrest for a subject already
// moving through booking, jail or release is a logged no-op: the live record
// wins and nothing new is opened.
func (e *Engine) fileArrest(id subject.ID, officerID string, report sentence.CrimeReport, now float64) sentence.Descriptor {
	if sub, ok := e.subjects[id]; ok {
		report.OffenderLevel = sub.Level
		report.WealthTier = sub.WealthTier
	}
	desc := sentence.Evaluate(report)
	if e.inCustody(id) {
		e.logger.Warnf("arrest for %s while already in custody ignored, live record wins", id)
		return desc
	}
	e.metrics.ArrestsTotal.WithLabelValues(string(desc.Tier)).Inc()
	e.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeArrestReported,
		ActorID:     officerID,
		SubjectID:   string(id),
		Payload:     report,
		GameMinutes: now,
	})
	e.records.OpenEntry(id, now, desc)
	e.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeSentenceIssued,
		SubjectID:   string(id),
		Payload:     desc,
		GameMinutes: now,
	})
	e.logger.Event(string(events.EventTypeSentenceIssued), string(id), desc.Description)
	e.booking.Begin(id, desc, now)
	return desc
}

// inCustody reports whether the subject is anywhere between pickup and the
// facility door. Parolees are not in custody; a breach files a fresh arrest.
func (e *Engine) inCustody(id subject.ID) bool {
	if _, ok := e.booking.Get(id); ok {
		return true
	}
	if _, ok := e.tracker.Get(id); ok {
		return true
	}
	if _, ok := e.release.Get(id); ok {
		return true
	}
	return false
}

// ConfirmBookingStage forwards a booking station interaction.
func (e *Engine) ConfirmBookingStage(id subject.ID, stage BookingStage) error {
	return call(e, func() error {
		return e.booking.ConfirmStage(id, stage, e.clock.GameMinutes())
	})
}

// ConfirmReleaseStage forwards a release station interaction.
func (e *Engine) ConfirmReleaseStage(id subject.ID, stage ReleaseStage) error {
	return call(e, func() error {
		return e.release.ConfirmStage(id, stage, e.clock.GameMinutes())
	})
}

// PayFine settles a payable sentence on the spot, before booking leaves
// AwaitingPickup. No cell is ever claimed on this path.
func (e *Engine) PayFine(id subject.ID) error {
	return call(e, func() error {
		now := e.clock.GameMinutes()
		if err := e.booking.ResolveWithFine(id, now); err != nil {
			return err
		}
		if err := e.records.MarkFinePaid(id); err != nil {
			e.logger.Warnf("fine record for %s: %v", id, err)
		}
		if err := e.records.FillRelease(id, now, 0, "resolved by fine payment"); err != nil {
			e.logger.Warnf("fine release fill for %s: %v", id, err)
		}
		e.metrics.FinePaymentsTotal.Inc()
		e.eventLog.Append(events.GameEvent{
			Type:        events.EventTypeFinePaid,
			SubjectID:   string(id),
			GameMinutes: now,
		})
		e.logger.Infof("fine paid by %s, custody closed", id)
		return nil
	})
}

// NegotiateBail counters the standing bail offer.
func (e *Engine) NegotiateBail(id subject.ID, amount float64) error {
	return call(e, func() error {
		return e.bail.Negotiate(id, amount)
	})
}

// PayBail settles bail at the negotiated amount and starts the release.
func (e *Engine) PayBail(id subject.ID) error {
	return call(e, func() error {
		return e.bail.Pay(id, e.clock.GameMinutes())
	})
}

// ReduceSentence shortens a live sentence (good behavior, labor credit).
func (e *Engine) ReduceSentence(id subject.ID, minutes float64) error {
	return call(e, func() error {
		return e.tracker.Reduce(id, minutes)
	})
}

// ExtendSentence lengthens a live sentence (infractions inside).
func (e *Engine) ExtendSentence(id subject.ID, minutes float64) error {
	return call(e, func() error {
		return e.tracker.Extend(id, minutes)
	})
}

// UpdateOfficer registers or refreshes an officer.
func (e *Engine) UpdateOfficer(o officer.Officer) {
	e.do(func() { e.officers.Upsert(o) })
}

// UpdatePosition records a subject position report. Bypasses the dispatcher;
// the position registry carries its own lock.
func (e *Engine) UpdatePosition(id subject.ID, pos subject.Vector3) {
	e.positions.Set(id, pos)
}

// GiveItem places an item in a subject's carried inventory.
func (e *Engine) GiveItem(id subject.ID, itemType string, qty int) {
	e.do(func() { e.inventory.Add(id, itemTypeOf(itemType), qty) })
}

// History returns the subject's criminal record.
func (e *Engine) History(id subject.ID) []RecordEntry {
	return call(e, func() []RecordEntry {
		return e.records.History(id)
	})
}

// CustodyStatus is the external snapshot of where a subject stands.
type CustodyStatus struct {
	SubjectID        subject.ID `json:"subject_id"`
	Name             string     `json:"name,omitempty"`
	State            string     `json:"state"`
	Detail           string     `json:"detail,omitempty"`
	CellIndex        *int       `json:"cell_index,omitempty"`
	RemainingMinutes *float64   `json:"remaining_minutes,omitempty"`
	BailAmount       *float64   `json:"bail_amount,omitempty"`
	ParoleTier       string     `json:"parole_tier,omitempty"`
	ParoleViolations int        `json:"parole_violations,omitempty"`
	Arrests          int        `json:"arrests"`
}

// Status reports the subject's current lifecycle position.
func (e *Engine) Status(id subject.ID) CustodyStatus {
	return call(e, func() CustodyStatus {
		st := CustodyStatus{SubjectID: id, State: "free", Arrests: e.records.ArrestCount(id)}
		if sub, ok := e.subjects[id]; ok {
			st.Name = sub.Name
		}
		if b, ok := e.booking.Get(id); ok {
			st.State = "booking"
			st.Detail = string(b.Stage)
		}
		if rec, ok := e.tracker.Get(id); ok {
			st.State = "jailed"
			rem := rec.RemainingMinutes
			st.RemainingMinutes = &rem
		}
		if idx, ok := e.cells.CellOf(id); ok {
			st.CellIndex = &idx
		}
		if offer, ok := e.bail.Offer(id); ok && !offer.Paid {
			amt := offer.CurrentAmount
			st.BailAmount = &amt
		}
		if t, ok := e.release.Get(id); ok {
			st.State = "releasing"
			st.Detail = string(t.Stage)
		}
		if p, ok := e.parole.Get(id); ok {
			st.State = "parole"
			st.Detail = string(p.Tier)
			rem := p.RemainingMinutes
			st.RemainingMinutes = &rem
			st.ParoleTier = string(p.Tier)
			st.ParoleViolations = p.ViolationCount
		}
		return st
	})
}

// Snapshot is the persistable slice of engine state.
type Snapshot struct {
	GameMinutes float64          `json:"game_minutes"`
	JailTime    []JailTimeRecord `json:"jail_time"`
	Parole      []ParoleRecord   `json:"parole"`
}

// Snapshot captures current durable state for the periodic backup.
func (e *Engine) Snapshot() Snapshot {
	return call(e, func() Snapshot {
		return Snapshot{
			GameMinutes: e.clock.GameMinutes(),
			JailTime:    e.tracker.All(),
			Parole:      e.parole.All(),
		}
	})
}

// Restore loads durable state at boot, before Start. Corrupt jail records
// are dropped; corrupt parole records fall back to a fresh minimum-risk
// term.
func (e *Engine) Restore(snap Snapshot) error {
	e.clock.SetGameMinutes(snap.GameMinutes)
	now := e.clock.GameMinutes()
	var firstErr error
	for _, rec := range snap.JailTime {
		if err := e.tracker.Restore(rec); err != nil {
			e.logger.Errorf("jail time restore for %s: %v", rec.SubjectID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("jail time for %s: %w", rec.SubjectID, err)
			}
		}
	}
	for _, rec := range snap.Parole {
		if err := e.parole.Restore(rec, now); err != nil {
			e.logger.Errorf("parole restore for %s: %v", rec.SubjectID, err)
			e.parole.BeginDefault(rec.SubjectID, now)
			if firstErr == nil {
				firstErr = fmt.Errorf("parole for %s: %w", rec.SubjectID, err)
			}
		}
	}
	return firstErr
}

// RestoreRecords loads persisted criminal history at boot, before Start.
func (e *Engine) RestoreRecords(id subject.ID, entries []RecordEntry, violations int) {
	e.records.RestoreHistory(id, entries, violations)
}

// AllHistories snapshots every criminal record for the persistence job.
func (e *Engine) AllHistories() []SubjectHistory {
	return call(e, func() []SubjectHistory {
		return e.records.AllHistories()
	})
}

func itemTypeOf(s string) item.ItemType {
	return item.ItemType(strings.ToUpper(s))
}
