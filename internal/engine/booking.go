package engine

import (
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/officer"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// BookingStage enumerates the intake pipeline in order.
type BookingStage string

const (
	StageAwaitingPickup    BookingStage = "AWAITING_PICKUP"
	StageMugshot           BookingStage = "MUGSHOT"
	StageScan              BookingStage = "SCAN"
	StageInventoryExchange BookingStage = "INVENTORY_EXCHANGE"
	StageCellPlacement     BookingStage = "CELL_PLACEMENT"
	StageBookingComplete   BookingStage = "COMPLETE"
)

// BookingState is one detainee's position in the intake pipeline. Stages
// advance strictly forward; there is no way back except a full abort.
type BookingState struct {
	SubjectID       subject.ID          `json:"subject_id"`
	Stage           BookingStage        `json:"stage"`
	Sentence        sentence.Descriptor `json:"sentence"`
	EscortOfficerID string              `json:"escort_officer_id,omitempty"`

	// CellIndex is -1 until a cell is claimed at pickup.
	CellIndex int `json:"cell_index"`

	// InventoryDropDone splits the exchange stage into drop-off then pickup.
	InventoryDropDone bool `json:"inventory_drop_done"`

	// PickupBlocked marks a pickup that failed on cell capacity, retried on
	// each vacancy and each tick.
	PickupBlocked bool `json:"pickup_blocked"`

	StartedAtMinutes    float64 `json:"started_at_minutes"`
	LastProgressMinutes float64 `json:"last_progress_minutes"`
}

// BookingPipeline runs intake from arrest drop-off to cell placement. Stage
// confirmations arrive from the presentation layer; each is gated on the
// escort officer standing at the stage's supervision point.
type BookingPipeline struct {
	bookings map[subject.ID]*BookingState

	cells     *CellManager
	officers  *OfficerRegistry
	inventory *InventoryLedger
	tracker   *JailTimeTracker

	// stations maps each confirmable stage to its supervision point.
	stations map[BookingStage]subject.Vector3

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cfg      config.LifecycleConfig

	// onComplete fires when a detainee lands in their cell.
	onComplete func(id subject.ID, desc sentence.Descriptor, nowMinutes float64)
}

// NewBookingPipeline wires the intake pipeline.
func NewBookingPipeline(
	cells *CellManager,
	officers *OfficerRegistry,
	inventory *InventoryLedger,
	tracker *JailTimeTracker,
	stations map[BookingStage]subject.Vector3,
	eventLog *events.EventLog,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg config.LifecycleConfig,
) *BookingPipeline {
	return &BookingPipeline{
		bookings:  make(map[subject.ID]*BookingState),
		cells:     cells,
		officers:  officers,
		inventory: inventory,
		tracker:   tracker,
		stations:  stations,
		eventLog:  eventLog,
		logger:    log,
		metrics:   m,
		cfg:       cfg,
	}
}

// SetCompleteCallback wires the post-placement hook.
func (p *BookingPipeline) SetCompleteCallback(fn func(id subject.ID, desc sentence.Descriptor, nowMinutes float64)) {
	p.onComplete = fn
}

// Begin opens a booking at AwaitingPickup. A second arrest while a booking is
// live is a logged no-op; the live booking always wins.
func (p *BookingPipeline) Begin(id subject.ID, desc sentence.Descriptor, nowMinutes float64) {
	if _, ok := p.bookings[id]; ok {
		p.logger.Warnf("booking already live for %s, ignoring new arrest intake", id)
		return
	}
	st := &BookingState{
		SubjectID:           id,
		Stage:               StageAwaitingPickup,
		Sentence:            desc,
		CellIndex:           -1,
		StartedAtMinutes:    nowMinutes,
		LastProgressMinutes: nowMinutes,
	}
	p.bookings[id] = st
	p.assignEscort(st)
	p.emitStage(st, nowMinutes)
	p.logger.Infof("booking opened for %s at %s", id, st.Stage)
}

// ConfirmStage processes a stage interaction from the presentation layer.
// Confirmations for the wrong stage or an unknown subject are inert, as is
// any confirmation while the escort officer is away from the station; only
// cell exhaustion at pickup surfaces as an error.
func (p *BookingPipeline) ConfirmStage(id subject.ID, stage BookingStage, nowMinutes float64) error {
	st, ok := p.bookings[id]
	if !ok {
		p.logger.Debugf("booking confirm for unknown subject %s ignored", id)
		return nil
	}
	if st.Stage != stage {
		p.logger.Debugf("booking confirm for %s at %s ignored, pipeline is at %s", id, stage, st.Stage)
		return nil
	}
	if !p.escortPresent(st) {
		p.logger.Debugf("booking confirm for %s at %s inert, escort not at station", id, stage)
		return nil
	}

	switch st.Stage {
	case StageAwaitingPickup:
		return p.confirmPickup(st, nowMinutes)

	case StageMugshot:
		p.advance(st, StageScan, nowMinutes)

	case StageScan:
		if st.Sentence.JailMinutes < p.cfg.ShortSentenceMinutes {
			// Short stays keep their pockets; nothing to exchange.
			p.advance(st, StageCellPlacement, nowMinutes)
		} else {
			p.advance(st, StageInventoryExchange, nowMinutes)
		}

	case StageInventoryExchange:
		if !st.InventoryDropDone {
			p.inventory.StoreForIntake(st.SubjectID, nowMinutes)
			st.InventoryDropDone = true
			st.LastProgressMinutes = nowMinutes
			p.emitStage(st, nowMinutes)
		} else {
			p.inventory.IssueIntakeKit(st.SubjectID, nowMinutes)
			p.advance(st, StageCellPlacement, nowMinutes)
		}

	case StageCellPlacement:
		p.completePlacement(st, nowMinutes)
	}
	return nil
}

// confirmPickup claims a cell and moves the detainee into processing. A full
// pool leaves the booking parked at AwaitingPickup and flagged for retry.
func (p *BookingPipeline) confirmPickup(st *BookingState, nowMinutes float64) error {
	idx, err := p.cells.Assign(st.SubjectID, nowMinutes)
	if err != nil {
		st.PickupBlocked = true
		p.logger.Warnf("pickup for %s blocked: %v", st.SubjectID, err)
		return err
	}
	st.CellIndex = idx
	st.PickupBlocked = false
	p.advance(st, StageMugshot, nowMinutes)
	return nil
}

// completePlacement locks the detainee into their cell and hands off to the
// jail time tracker.
func (p *BookingPipeline) completePlacement(st *BookingState, nowMinutes float64) {
	if err := p.cells.SetDoorLocked(st.CellIndex, true); err != nil {
		p.logger.Errorf("door lock on cell %d failed: %v", st.CellIndex, err)
	}
	p.tracker.Start(st.SubjectID, st.Sentence, nowMinutes)
	st.Stage = StageBookingComplete
	st.LastProgressMinutes = nowMinutes
	p.emitStage(st, nowMinutes)
	p.clearEscort(st)
	delete(p.bookings, st.SubjectID)

	p.metrics.BookingsCompleted.Inc()
	p.logger.Infof("booking complete for %s, cell %d, %.0f minutes", st.SubjectID, st.CellIndex, st.Sentence.JailMinutes)
	if p.onComplete != nil {
		p.onComplete(st.SubjectID, st.Sentence, nowMinutes)
	}
}

// Abort tears down a live booking, releasing any claimed cell.
func (p *BookingPipeline) Abort(id subject.ID, reason string, nowMinutes float64) error {
	st, ok := p.bookings[id]
	if !ok {
		return ErrMissingRecord
	}
	if st.CellIndex >= 0 {
		p.cells.Release(st.CellIndex, nowMinutes)
	}
	p.clearEscort(st)
	delete(p.bookings, id)
	p.metrics.BookingsAborted.Inc()
	p.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeBookingAborted,
		SubjectID:   string(id),
		Payload:     map[string]string{"reason": reason, "stage": string(st.Stage)},
		GameMinutes: nowMinutes,
	})
	p.logger.Warnf("booking aborted for %s at %s: %s", id, st.Stage, reason)
	return nil
}

// ResolveWithFine closes a booking that ended with an on-the-spot fine.
// Only valid at AwaitingPickup, before any cell is claimed.
func (p *BookingPipeline) ResolveWithFine(id subject.ID, nowMinutes float64) error {
	st, ok := p.bookings[id]
	if !ok {
		return ErrMissingRecord
	}
	if st.Stage != StageAwaitingPickup || !st.Sentence.FinePayable {
		return ErrFineNotPayable
	}
	p.clearEscort(st)
	delete(p.bookings, id)
	p.logger.Infof("booking for %s resolved by fine payment", id)
	return nil
}

// OnTick retries blocked pickups, fills missing escorts, and force-recovers
// bookings that have sat idle past the stuck timeout.
func (p *BookingPipeline) OnTick(nowMinutes float64) {
	for _, st := range p.bookings {
		if st.EscortOfficerID == "" || !p.escortReachable(st) {
			p.assignEscort(st)
		}
		if st.PickupBlocked && p.escortPresent(st) {
			if err := p.confirmPickup(st, nowMinutes); err == nil {
				p.logger.Infof("blocked pickup for %s resumed", st.SubjectID)
			}
			continue
		}
		if nowMinutes-st.LastProgressMinutes > p.cfg.BookingStuckTimeoutMin {
			p.recoverStuck(st, nowMinutes)
		}
	}
}

// RetryBlocked re-attempts pickups parked on cell exhaustion. The cell
// manager fires this on every vacancy.
func (p *BookingPipeline) RetryBlocked(nowMinutes float64) {
	for _, st := range p.bookings {
		if st.PickupBlocked && p.escortPresent(st) {
			if err := p.confirmPickup(st, nowMinutes); err == nil {
				p.logger.Infof("blocked pickup for %s resumed on vacancy", st.SubjectID)
			}
		}
	}
}

// recoverStuck resolves a booking that stopped progressing. With a cell in
// hand the detainee is placed directly; before pickup the booking aborts.
func (p *BookingPipeline) recoverStuck(st *BookingState, nowMinutes float64) {
	p.logger.Warnf("booking for %s stuck at %s for %.0f minutes, forcing recovery",
		st.SubjectID, st.Stage, nowMinutes-st.LastProgressMinutes)
	if st.CellIndex >= 0 {
		p.completePlacement(st, nowMinutes)
		return
	}
	_ = p.Abort(st.SubjectID, "stuck before pickup", nowMinutes)
}

// Get returns a copy of a live booking state.
func (p *BookingPipeline) Get(id subject.ID) (BookingState, bool) {
	st, ok := p.bookings[id]
	if !ok {
		return BookingState{}, false
	}
	return *st, true
}

// Len returns the number of live bookings.
func (p *BookingPipeline) Len() int {
	return len(p.bookings)
}

func (p *BookingPipeline) assignEscort(st *BookingState) {
	station := p.stations[st.Stage]
	esc := p.officers.FindAvailable(officer.RoleGuard, station)
	if esc == nil {
		p.logger.Debugf("no guard available to escort %s", st.SubjectID)
		return
	}
	if st.EscortOfficerID != "" {
		p.officers.Release(st.EscortOfficerID)
	}
	esc.AssignEscort(st.SubjectID)
	st.EscortOfficerID = esc.ID
	p.logger.Infof("guard %s escorting %s", esc.ID, st.SubjectID)
}

func (p *BookingPipeline) clearEscort(st *BookingState) {
	if st.EscortOfficerID != "" {
		p.officers.Release(st.EscortOfficerID)
		st.EscortOfficerID = ""
	}
}

func (p *BookingPipeline) escortPresent(st *BookingState) bool {
	if st.EscortOfficerID == "" {
		return false
	}
	return p.officers.PresentAt(st.EscortOfficerID, p.stations[st.Stage], p.cfg.OfficerPresenceRadius)
}

func (p *BookingPipeline) escortReachable(st *BookingState) bool {
	o, ok := p.officers.Get(st.EscortOfficerID)
	return ok && o.Reachable()
}

func (p *BookingPipeline) advance(st *BookingState, to BookingStage, nowMinutes float64) {
	st.Stage = to
	st.LastProgressMinutes = nowMinutes
	p.emitStage(st, nowMinutes)
}

func (p *BookingPipeline) emitStage(st *BookingState, nowMinutes float64) {
	p.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeBookingStage,
		ActorID:     st.EscortOfficerID,
		SubjectID:   string(st.SubjectID),
		Payload:     map[string]string{"stage": string(st.Stage)},
		GameMinutes: nowMinutes,
	})
}
