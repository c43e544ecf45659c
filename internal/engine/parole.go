package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// RiskTier drives how aggressively a parolee is supervised.
type RiskTier string

const (
	RiskMinimum RiskTier = "MINIMUM"
	RiskMedium  RiskTier = "MEDIUM"
	RiskHigh    RiskTier = "HIGH"
	RiskSevere  RiskTier = "SEVERE"
)

// riskParams fixes detection reach and search probability per tier. Radius
// and probability both grow monotonically with risk.
type riskParamSet struct {
	rank              int
	detectionRadius   float64 // meters from an active presence
	searchProbability float64 // per eligible evaluation
}

var riskParams = map[RiskTier]riskParamSet{
	RiskMinimum: {rank: 0, detectionRadius: 17, searchProbability: 0.10},
	RiskMedium:  {rank: 1, detectionRadius: 25, searchProbability: 0.30},
	RiskHigh:    {rank: 2, detectionRadius: 33, searchProbability: 0.50},
	RiskSevere:  {rank: 3, detectionRadius: 40, searchProbability: 0.70},
}

var riskOrder = [4]RiskTier{RiskMinimum, RiskMedium, RiskHigh, RiskSevere}

// escalate returns the next tier up, capped at Severe.
func escalate(t RiskTier) RiskTier {
	r := riskParams[t].rank
	if r >= len(riskOrder)-1 {
		return RiskSevere
	}
	return riskOrder[r+1]
}

// ParoleRecord tracks one active supervision term. The countdown only runs
// once the post-release grace window has elapsed.
type ParoleRecord struct {
	SubjectID        subject.ID `json:"subject_id"`
	Tier             RiskTier   `json:"tier"`
	StartedAtMinutes float64    `json:"started_at_minutes"`
	DurationMinutes  float64    `json:"duration_minutes"`
	RemainingMinutes float64    `json:"remaining_minutes"`
	GraceUntilMin    float64    `json:"grace_until_minutes"`
	ViolationCount   int        `json:"violation_count"`
	LastSearchMin    float64    `json:"last_search_minutes"`
	NextSearchMin    float64    `json:"next_search_minutes"`
}

// ParoleSupervision runs post-release supervision: qualification, the risk
// model, contraband searches near active presences, violations and
// revocation.
type ParoleSupervision struct {
	records map[subject.ID]*ParoleRecord

	store      *CriminalRecordStore
	presence   *PresenceManager
	positions  PositionSource
	contraband ContrabandChecker
	rng        *rand.Rand

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cfg      config.LifecycleConfig

	// onRevoked fires after the record is torn down so the engine can file
	// the breach arrest.
	onRevoked func(id subject.ID, nowMinutes float64)
}

// NewParoleSupervision wires the supervision subsystem. The rng is injected
// so tests can pin the search roll.
func NewParoleSupervision(
	store *CriminalRecordStore,
	presence *PresenceManager,
	positions PositionSource,
	contraband ContrabandChecker,
	rng *rand.Rand,
	eventLog *events.EventLog,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg config.LifecycleConfig,
) *ParoleSupervision {
	return &ParoleSupervision{
		records:    make(map[subject.ID]*ParoleRecord),
		store:      store,
		presence:   presence,
		positions:  positions,
		contraband: contraband,
		rng:        rng,
		eventLog:   eventLog,
		logger:     log,
		metrics:    m,
		cfg:        cfg,
	}
}

// SetRevokedCallback wires the revocation hook.
func (s *ParoleSupervision) SetRevokedCallback(fn func(id subject.ID, nowMinutes float64)) {
	s.onRevoked = fn
}

// Qualifies reports whether a freshly released subject enters supervision:
// enough lifetime arrests, enough of them recent.
func (s *ParoleSupervision) Qualifies(id subject.ID, nowMinutes float64) bool {
	if s.store.ArrestCount(id) < s.cfg.ParoleMinArrests {
		return false
	}
	windowStart := nowMinutes - s.cfg.ParoleRecentWindowDays*24*60
	return s.store.ArrestsSince(id, windowStart) >= s.cfg.ParoleRecentArrests
}

// Begin opens a supervision term. The tier comes from the subject's record:
// prior violations and recent severe offenses push it up. A live term wins
// over any later Begin.
func (s *ParoleSupervision) Begin(id subject.ID, nowMinutes float64) {
	if _, ok := s.records[id]; ok {
		s.logger.Debugf("parole already active for %s", id)
		return
	}
	tier := s.riskTierFor(id, nowMinutes)
	duration := s.cfg.ParoleBaseDurationMin * (1 + 0.25*float64(riskParams[tier].rank))
	rec := &ParoleRecord{
		SubjectID:        id,
		Tier:             tier,
		StartedAtMinutes: nowMinutes,
		DurationMinutes:  duration,
		RemainingMinutes: duration,
		GraceUntilMin:    nowMinutes + s.cfg.ParoleGraceMinutes,
		NextSearchMin:    nowMinutes + s.cfg.ParoleGraceMinutes,
	}
	s.records[id] = rec
	s.metrics.ParoleesActive.Set(float64(len(s.records)))

	s.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeParoleStarted,
		SubjectID:   string(id),
		Payload:     *rec,
		GameMinutes: nowMinutes,
	})
	s.notify(id, nowMinutes, "PAROLE_STATUS",
		fmt.Sprintf("You are on %s risk parole for %.0f minutes.", tier, duration))
	s.logger.Infof("parole started for %s at %s risk, %.0f minutes", id, tier, duration)
	s.presence.OnParoleStart(id, nowMinutes)
}

// riskTierFor scores a subject's starting tier from their record. Every two
// lifetime violations and every recent severe conviction bump the tier one
// step.
func (s *ParoleSupervision) riskTierFor(id subject.ID, nowMinutes float64) RiskTier {
	windowStart := nowMinutes - s.cfg.ParoleRecentWindowDays*24*60
	steps := s.store.ParoleViolationCount(id)/2 +
		s.store.SevereArrestsSince(id, windowStart, sentence.TierSevere)
	if steps >= len(riskOrder) {
		steps = len(riskOrder) - 1
	}
	return riskOrder[steps]
}

// OnTick advances every active term: countdown after grace, search
// evaluations near active presences, completion at zero.
func (s *ParoleSupervision) OnTick(nowMinutes, elapsed float64) {
	var done []subject.ID
	for id, rec := range s.records {
		if nowMinutes < rec.GraceUntilMin {
			continue
		}
		rec.RemainingMinutes -= elapsed
		if rec.RemainingMinutes <= 0 {
			rec.RemainingMinutes = 0
			done = append(done, id)
			continue
		}
		s.evaluateSearch(rec, nowMinutes)
	}
	for _, id := range done {
		s.complete(id, nowMinutes)
	}
}

// evaluateSearch runs one search attempt when the cooldown has elapsed and a
// presence is in detection range. The roll gates whether a search actually
// happens; a search finding contraband records a violation.
func (s *ParoleSupervision) evaluateSearch(rec *ParoleRecord, nowMinutes float64) {
	if nowMinutes < rec.NextSearchMin {
		return
	}
	pos, ok := s.positions.CurrentPosition(rec.SubjectID)
	if !ok {
		return
	}
	params := riskParams[rec.Tier]
	dist, found := s.presence.NearestActiveDistance(pos)
	if !found || dist > params.detectionRadius {
		return
	}
	// The attempt consumes the cooldown whether or not the roll passes.
	rec.NextSearchMin = nowMinutes + s.cfg.ParoleSearchCooldownMin
	if s.rng.Float64() >= params.searchProbability {
		return
	}

	rec.LastSearchMin = nowMinutes
	dirty := s.contraband.HasContraband(rec.SubjectID)
	result := "clean"
	if dirty {
		result = "violation"
	}
	s.metrics.ParoleSearches.WithLabelValues(result).Inc()
	s.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeParoleSearch,
		SubjectID:   string(rec.SubjectID),
		Payload:     map[string]interface{}{"result": result, "tier": rec.Tier, "distance": math.Round(dist)},
		GameMinutes: nowMinutes,
	})
	if dirty {
		s.recordViolation(rec, nowMinutes)
	}
}

// recordViolation extends the term, escalates the tier and revokes at the
// threshold.
func (s *ParoleSupervision) recordViolation(rec *ParoleRecord, nowMinutes float64) {
	rec.ViolationCount++
	rec.RemainingMinutes += s.cfg.ParoleViolationExtendMin
	rec.DurationMinutes += s.cfg.ParoleViolationExtendMin
	prev := rec.Tier
	rec.Tier = escalate(rec.Tier)
	s.store.RecordParoleViolation(rec.SubjectID)
	s.metrics.ParoleViolations.Inc()

	s.eventLog.Append(events.GameEvent{
		Type:      events.EventTypeParoleViolation,
		SubjectID: string(rec.SubjectID),
		Payload: map[string]interface{}{
			"count": rec.ViolationCount,
			"tier":  rec.Tier,
		},
		GameMinutes: nowMinutes,
	})
	s.notify(rec.SubjectID, nowMinutes, "VIOLATION",
		fmt.Sprintf("Parole violation %d: term extended %.0f minutes.", rec.ViolationCount, s.cfg.ParoleViolationExtendMin))
	if prev != rec.Tier {
		s.logger.Warnf("parolee %s escalated %s -> %s", rec.SubjectID, prev, rec.Tier)
	}

	if rec.ViolationCount >= s.cfg.ParoleRevokeViolations {
		s.revoke(rec, nowMinutes)
	}
}

// revoke tears down the term and hands the subject back to the engine for a
// breach arrest.
func (s *ParoleSupervision) revoke(rec *ParoleRecord, nowMinutes float64) {
	id := rec.SubjectID
	delete(s.records, id)
	s.metrics.ParoleesActive.Set(float64(len(s.records)))
	s.store.AppendNote(id, fmt.Sprintf("parole revoked after %d violations", rec.ViolationCount))

	s.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeParoleRevoked,
		SubjectID:   string(id),
		Payload:     map[string]int{"violations": rec.ViolationCount},
		GameMinutes: nowMinutes,
	})
	s.notify(id, nowMinutes, "VIOLATION", "Parole revoked. Report for re-arrest.")
	s.logger.Warnf("parole revoked for %s after %d violations", id, rec.ViolationCount)
	s.presence.OnParoleEnd(id, nowMinutes)
	if s.onRevoked != nil {
		s.onRevoked(id, nowMinutes)
	}
}

// complete closes a term that ran its clock out.
func (s *ParoleSupervision) complete(id subject.ID, nowMinutes float64) {
	rec, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	s.metrics.ParoleesActive.Set(float64(len(s.records)))
	s.store.AppendNote(id, fmt.Sprintf("parole completed at %s risk", rec.Tier))

	s.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeParoleComplete,
		SubjectID:   string(id),
		Payload:     map[string]interface{}{"tier": rec.Tier, "violations": rec.ViolationCount},
		GameMinutes: nowMinutes,
	})
	s.notify(id, nowMinutes, "PAROLE_STATUS", "Parole complete. Stay out of trouble.")
	s.logger.Infof("parole complete for %s", id)
	s.presence.OnParoleEnd(id, nowMinutes)
}

// Get returns a copy of the live record.
func (s *ParoleSupervision) Get(id subject.ID) (ParoleRecord, bool) {
	rec, ok := s.records[id]
	if !ok {
		return ParoleRecord{}, false
	}
	return *rec, true
}

// All returns copies of every live record, for persistence snapshots.
func (s *ParoleSupervision) All() []ParoleRecord {
	out := make([]ParoleRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out
}

// Restore loads a persisted term at boot. A term that expired while the
// server was down completes immediately; a corrupt record is rejected so the
// caller can fall back to a fresh default.
func (s *ParoleSupervision) Restore(rec ParoleRecord, nowMinutes float64) error {
	if rec.SubjectID == "" || rec.DurationMinutes <= 0 ||
		math.IsNaN(rec.RemainingMinutes) || rec.RemainingMinutes > rec.DurationMinutes {
		return ErrPersistenceCorrupt
	}
	if _, ok := riskParams[rec.Tier]; !ok {
		return ErrPersistenceCorrupt
	}
	if rec.RemainingMinutes <= 0 {
		// Finish it cleanly rather than resurrecting a dead term.
		copied := rec
		copied.RemainingMinutes = 0
		s.records[rec.SubjectID] = &copied
		s.presence.OnParoleStart(rec.SubjectID, nowMinutes)
		s.complete(rec.SubjectID, nowMinutes)
		return nil
	}
	copied := rec
	s.records[rec.SubjectID] = &copied
	s.metrics.ParoleesActive.Set(float64(len(s.records)))
	s.presence.OnParoleStart(rec.SubjectID, nowMinutes)
	s.logger.Infof("parole restored for %s, %.0f minutes remaining", rec.SubjectID, rec.RemainingMinutes)
	return nil
}

// BeginDefault opens a minimum-risk fallback term, used when a persisted
// record failed validation but the subject is known to be on parole.
func (s *ParoleSupervision) BeginDefault(id subject.ID, nowMinutes float64) {
	if _, ok := s.records[id]; ok {
		return
	}
	rec := &ParoleRecord{
		SubjectID:        id,
		Tier:             RiskMinimum,
		StartedAtMinutes: nowMinutes,
		DurationMinutes:  s.cfg.ParoleBaseDurationMin,
		RemainingMinutes: s.cfg.ParoleBaseDurationMin,
		GraceUntilMin:    nowMinutes + s.cfg.ParoleGraceMinutes,
		NextSearchMin:    nowMinutes + s.cfg.ParoleGraceMinutes,
	}
	s.records[id] = rec
	s.metrics.ParoleesActive.Set(float64(len(s.records)))
	s.presence.OnParoleStart(id, nowMinutes)
	s.logger.Warnf("parole record for %s rebuilt at default %s risk", id, RiskMinimum)
}

func (s *ParoleSupervision) notify(id subject.ID, nowMinutes float64, kind, msg string) {
	s.eventLog.Append(events.GameEvent{
		Type:      events.EventTypeUINotice,
		SubjectID: string(id),
		Payload: events.UINoticePayload{
			Kind:    kind,
			Message: msg,
		},
		GameMinutes: nowMinutes,
	})
}
