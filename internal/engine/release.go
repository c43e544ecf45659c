package engine

import (
	"fmt"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/officer"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// ReleaseStage enumerates the exit pipeline in order.
type ReleaseStage string

const (
	StageStorageReturn ReleaseStage = "STORAGE_RETURN"
	StageExitScan      ReleaseStage = "EXIT_SCAN"
	StageDoorUnlock    ReleaseStage = "DOOR_UNLOCK"
	StageEgress        ReleaseStage = "EGRESS"
	StageReleaseDone   ReleaseStage = "DONE"
)

// Release paths, recorded on the RELEASE_DONE event and the path metric.
const (
	PathServed = "served"
	PathBail   = "bail"
	PathForced = "forced"
)

// ReleaseTicket walks one subject out of the facility. Tickets are created
// by sentence expiry or bail payment and destroyed at Done; a ticket that
// stops progressing is force-completed rather than left to dangle.
type ReleaseTicket struct {
	ID              string       `json:"id"`
	SubjectID       subject.ID   `json:"subject_id"`
	Stage           ReleaseStage `json:"stage"`
	Path            string       `json:"path"`
	EscortOfficerID string       `json:"escort_officer_id,omitempty"`

	ServedMinutes       float64 `json:"served_minutes"`
	CreatedAtMinutes    float64 `json:"created_at_minutes"`
	LastProgressMinutes float64 `json:"last_progress_minutes"`
}

// ReleaseManager owns the exit pipeline. Every incarceration ends here, on
// one path or another; a subject must never be marooned half-released.
type ReleaseManager struct {
	tickets map[subject.ID]*ReleaseTicket

	cells     *CellManager
	officers  *OfficerRegistry
	inventory *InventoryLedger
	records   *CriminalRecordStore
	positions PositionSource
	relocator Relocator

	stations     map[ReleaseStage]subject.Vector3
	exitZone     subject.Zone
	releasePoint subject.Vector3

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cfg      config.LifecycleConfig

	// onReleased fires after Done, carrying the path taken.
	onReleased func(id subject.ID, path string, nowMinutes float64)
}

// NewReleaseManager wires the exit pipeline.
func NewReleaseManager(
	cells *CellManager,
	officers *OfficerRegistry,
	inventory *InventoryLedger,
	records *CriminalRecordStore,
	positions PositionSource,
	relocator Relocator,
	stations map[ReleaseStage]subject.Vector3,
	exitZone subject.Zone,
	releasePoint subject.Vector3,
	eventLog *events.EventLog,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg config.LifecycleConfig,
) *ReleaseManager {
	return &ReleaseManager{
		tickets:      make(map[subject.ID]*ReleaseTicket),
		cells:        cells,
		officers:     officers,
		inventory:    inventory,
		records:      records,
		positions:    positions,
		relocator:    relocator,
		stations:     stations,
		exitZone:     exitZone,
		releasePoint: releasePoint,
		eventLog:     eventLog,
		logger:       log,
		metrics:      m,
		cfg:          cfg,
	}
}

// SetReleasedCallback wires the post-release hook.
func (r *ReleaseManager) SetReleasedCallback(fn func(id subject.ID, path string, nowMinutes float64)) {
	r.onReleased = fn
}

// Begin opens a release ticket at the given stage. Sentence expiry enters at
// StorageReturn; bail enters at ExitScan since the detainee settles property
// at the counter. Idempotent: a live ticket wins over any later Begin, which
// is how the bail-versus-expiry race resolves to exactly one release.
func (r *ReleaseManager) Begin(id subject.ID, stage ReleaseStage, path string, servedMinutes, nowMinutes float64) {
	if _, ok := r.tickets[id]; ok {
		r.logger.Debugf("release already underway for %s, ignoring %s begin", id, path)
		return
	}
	t := &ReleaseTicket{
		ID:                  events.GenerateEventID(),
		SubjectID:           id,
		Stage:               stage,
		Path:                path,
		ServedMinutes:       servedMinutes,
		CreatedAtMinutes:    nowMinutes,
		LastProgressMinutes: nowMinutes,
	}
	r.tickets[id] = t
	r.assignEscort(t)
	r.emitStage(t, nowMinutes)
	r.notify(t, nowMinutes, "Release processing has begun.")
	r.logger.Infof("release ticket opened for %s at %s (%s)", id, stage, path)
}

// Active reports whether a release is underway for the subject.
func (r *ReleaseManager) Active(id subject.ID) bool {
	_, ok := r.tickets[id]
	return ok
}

// ConfirmStage processes a stage interaction. Same gating discipline as
// booking: unknown subjects and wrong stages are inert, as is a confirmation
// with the escort away from the station.
func (r *ReleaseManager) ConfirmStage(id subject.ID, stage ReleaseStage, nowMinutes float64) error {
	t, ok := r.tickets[id]
	if !ok {
		r.logger.Debugf("release confirm for unknown subject %s ignored", id)
		return nil
	}
	if t.Stage != stage {
		r.logger.Debugf("release confirm for %s at %s ignored, ticket is at %s", id, stage, t.Stage)
		return nil
	}
	if !r.escortPresent(t) {
		r.logger.Debugf("release confirm for %s at %s inert, escort not at station", id, stage)
		return nil
	}

	switch t.Stage {
	case StageStorageReturn:
		r.inventory.ReturnStored(id, nowMinutes)
		r.advance(t, StageExitScan, nowMinutes)

	case StageExitScan:
		r.advance(t, StageDoorUnlock, nowMinutes)

	case StageDoorUnlock:
		if idx, had := r.cells.ReleaseBySubject(id, nowMinutes); had {
			r.logger.Infof("cell %d opened for releasing subject %s", idx, id)
		}
		r.advance(t, StageEgress, nowMinutes)
	}
	return nil
}

// OnTick completes egress when the subject reaches the exit zone and
// force-recovers tickets that have sat idle past the stuck timeout.
func (r *ReleaseManager) OnTick(nowMinutes float64) {
	for _, t := range r.tickets {
		if t.EscortOfficerID == "" || !r.escortReachable(t) {
			r.assignEscort(t)
		}
		if t.Stage == StageEgress {
			if pos, ok := r.positions.CurrentPosition(t.SubjectID); ok && r.exitZone.Contains(pos) {
				r.complete(t, false, nowMinutes)
				continue
			}
		}
		if nowMinutes-t.LastProgressMinutes > r.cfg.ReleaseStuckTimeoutMin {
			r.forceComplete(t, nowMinutes)
		}
	}
}

// forceComplete recovers a stalled ticket: whatever stages remain are applied
// in one shot and the subject is relocated to the release point.
func (r *ReleaseManager) forceComplete(t *ReleaseTicket, nowMinutes float64) {
	r.logger.Warnf("release for %s stuck at %s for %.0f minutes, forcing completion",
		t.SubjectID, t.Stage, nowMinutes-t.LastProgressMinutes)
	r.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeReleaseStuck,
		SubjectID:   string(t.SubjectID),
		Payload:     map[string]string{"stage": string(t.Stage)},
		GameMinutes: nowMinutes,
	})
	r.relocator.Relocate(t.SubjectID, r.releasePoint)
	r.complete(t, true, nowMinutes)
}

// complete closes the ticket, sweeping up any step a forced completion
// skipped: stored property comes back and the cell is vacated regardless of
// where the pipeline stalled.
func (r *ReleaseManager) complete(t *ReleaseTicket, forced bool, nowMinutes float64) {
	if len(r.inventory.Stored(t.SubjectID)) > 0 {
		r.inventory.ReturnStored(t.SubjectID, nowMinutes)
	}
	r.cells.ReleaseBySubject(t.SubjectID, nowMinutes)
	r.clearEscort(t)
	delete(r.tickets, t.SubjectID)

	path := t.Path
	if forced {
		path = PathForced
	}
	note := fmt.Sprintf("released (%s) after %.0f minutes", path, t.ServedMinutes)
	if err := r.records.FillRelease(t.SubjectID, nowMinutes, t.ServedMinutes, note); err != nil {
		r.logger.Warnf("release fill for %s: %v", t.SubjectID, err)
	}

	t.Stage = StageReleaseDone
	r.metrics.ReleasesTotal.WithLabelValues(path).Inc()
	r.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeReleaseDone,
		SubjectID:   string(t.SubjectID),
		Payload:     map[string]interface{}{"path": path, "served_minutes": t.ServedMinutes},
		GameMinutes: nowMinutes,
	})
	r.notify(t, nowMinutes, "You are free to go.")
	r.logger.Infof("release done for %s (%s)", t.SubjectID, path)
	if r.onReleased != nil {
		r.onReleased(t.SubjectID, path, nowMinutes)
	}
}

// Get returns a copy of the live ticket.
func (r *ReleaseManager) Get(id subject.ID) (ReleaseTicket, bool) {
	t, ok := r.tickets[id]
	if !ok {
		return ReleaseTicket{}, false
	}
	return *t, true
}

func (r *ReleaseManager) assignEscort(t *ReleaseTicket) {
	station := r.stations[t.Stage]
	esc := r.officers.FindAvailable(officer.RoleReleaseEscort, station)
	if esc == nil {
		// A guard can walk someone out when no dedicated escort is on duty.
		esc = r.officers.FindAvailable(officer.RoleGuard, station)
	}
	if esc == nil {
		r.logger.Debugf("no escort available for releasing subject %s", t.SubjectID)
		return
	}
	if t.EscortOfficerID != "" {
		r.officers.Release(t.EscortOfficerID)
	}
	esc.AssignEscort(t.SubjectID)
	t.EscortOfficerID = esc.ID
	r.logger.Infof("officer %s escorting %s out", esc.ID, t.SubjectID)
}

func (r *ReleaseManager) clearEscort(t *ReleaseTicket) {
	if t.EscortOfficerID != "" {
		r.officers.Release(t.EscortOfficerID)
		t.EscortOfficerID = ""
	}
}

func (r *ReleaseManager) escortPresent(t *ReleaseTicket) bool {
	if t.EscortOfficerID == "" {
		return false
	}
	return r.officers.PresentAt(t.EscortOfficerID, r.stations[t.Stage], r.cfg.OfficerPresenceRadius)
}

func (r *ReleaseManager) escortReachable(t *ReleaseTicket) bool {
	o, ok := r.officers.Get(t.EscortOfficerID)
	return ok && o.Reachable()
}

func (r *ReleaseManager) advance(t *ReleaseTicket, to ReleaseStage, nowMinutes float64) {
	t.Stage = to
	t.LastProgressMinutes = nowMinutes
	r.emitStage(t, nowMinutes)
}

func (r *ReleaseManager) emitStage(t *ReleaseTicket, nowMinutes float64) {
	r.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeReleaseStage,
		ActorID:     t.EscortOfficerID,
		SubjectID:   string(t.SubjectID),
		Payload:     map[string]string{"stage": string(t.Stage), "path": t.Path},
		GameMinutes: nowMinutes,
	})
}

func (r *ReleaseManager) notify(t *ReleaseTicket, nowMinutes float64, msg string) {
	r.eventLog.Append(events.GameEvent{
		Type:      events.EventTypeUINotice,
		SubjectID: string(t.SubjectID),
		Payload: events.UINoticePayload{
			Kind:    "RELEASE_NOTICE",
			Message: msg,
			Data:    map[string]string{"stage": string(t.Stage)},
		},
		GameMinutes: nowMinutes,
	})
}
