package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// wealthMultipliers scales bail by the offender's wealth tier so the rich
// cannot trivially buy their way out.
var wealthMultipliers = [4]float64{1.0, 1.25, 1.5, 2.0}

// BailOffer is the standing offer to buy out a remaining sentence. The base
// derives from the fine; negotiation moves the current amount inside a
// symmetric band around the base. Once paid the offer freezes.
type BailOffer struct {
	SubjectID     subject.ID `json:"subject_id"`
	BaseAmount    float64    `json:"base_amount"`
	MinAmount     float64    `json:"min_amount"`
	MaxAmount     float64    `json:"max_amount"`
	CurrentAmount float64    `json:"current_amount"`
	Paid          bool       `json:"paid"`
	PaidAmount    float64    `json:"paid_amount,omitempty"`
}

// BailDesk computes, negotiates and settles bail. A new arrest replaces any
// stale unpaid offer; a paid offer is immutable until the release clears it.
type BailDesk struct {
	offers map[subject.ID]*BailOffer

	tracker *JailTimeTracker
	release *ReleaseManager
	records *CriminalRecordStore

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cfg      config.LifecycleConfig
}

// NewBailDesk wires the bail desk.
func NewBailDesk(
	tracker *JailTimeTracker,
	release *ReleaseManager,
	records *CriminalRecordStore,
	eventLog *events.EventLog,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg config.LifecycleConfig,
) *BailDesk {
	return &BailDesk{
		offers:   make(map[subject.ID]*BailOffer),
		tracker:  tracker,
		release:  release,
		records:  records,
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
		cfg:      cfg,
	}
}

// OpenOffer computes and publishes a bail offer for a newly jailed subject.
// Sentences whose fine is not payable carry no bail either; the subject
// serves the time.
func (d *BailDesk) OpenOffer(id subject.ID, desc sentence.Descriptor, wealthTier int, nowMinutes float64) *BailOffer {
	if !desc.FinePayable {
		d.logger.Infof("no bail offered to %s, %s sentences must be served", id, desc.Tier)
		return nil
	}
	if existing, ok := d.offers[id]; ok && existing.Paid {
		d.logger.Warnf("bail offer for %s still settling, not replacing", id)
		return nil
	}
	if wealthTier < 0 {
		wealthTier = 0
	}
	if wealthTier > 3 {
		wealthTier = 3
	}

	base := round2(desc.FineAmount * d.cfg.BailMultiplier * wealthMultipliers[wealthTier])
	offer := &BailOffer{
		SubjectID:     id,
		BaseAmount:    base,
		MinAmount:     round2(base * (1 - d.cfg.BailNegotiationBound)),
		MaxAmount:     round2(base * (1 + d.cfg.BailNegotiationBound)),
		CurrentAmount: base,
	}
	d.offers[id] = offer

	d.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeBailOffered,
		SubjectID:   string(id),
		Payload:     *offer,
		GameMinutes: nowMinutes,
	})
	d.eventLog.Append(events.GameEvent{
		Type:      events.EventTypeUINotice,
		SubjectID: string(id),
		Payload: events.UINoticePayload{
			Kind:    "BAIL_PROMPT",
			Message: fmt.Sprintf("Bail is set at %.2f.", base),
			Data:    *offer,
		},
		GameMinutes: nowMinutes,
	})
	d.logger.Infof("bail for %s: %.2f [%.2f, %.2f]", id, base, offer.MinAmount, offer.MaxAmount)
	return offer
}

// Negotiate counters the current amount. Amounts outside the offer's band
// are rejected with no state change, so a lowball costs nothing but gains
// nothing.
func (d *BailDesk) Negotiate(id subject.ID, amount float64) error {
	offer, ok := d.offers[id]
	if !ok || offer.Paid {
		d.logger.Debugf("bail counter for %s without a live offer", id)
		return ErrMissingRecord
	}
	if math.IsNaN(amount) || amount < offer.MinAmount || amount > offer.MaxAmount {
		d.logger.Debugf("bail counter %.2f for %s outside [%.2f, %.2f]", amount, id, offer.MinAmount, offer.MaxAmount)
		return ErrInvalidNegotiation
	}
	offer.CurrentAmount = round2(amount)
	d.logger.Infof("bail for %s negotiated to %.2f", id, offer.CurrentAmount)
	return nil
}

// Pay settles the offer at its current amount, closes the jail countdown and
// opens a release at the exit scan. Paying twice is a no-op. Losing the race
// against natural expiry is also a no-op: nothing is charged and the served
// release proceeds.
func (d *BailDesk) Pay(id subject.ID, nowMinutes float64) error {
	offer, ok := d.offers[id]
	if !ok {
		return ErrMissingRecord
	}
	if offer.Paid {
		d.logger.Debugf("bail for %s already paid, ignoring", id)
		return nil
	}

	served, err := d.tracker.CloseEarly(id)
	if errors.Is(err, ErrMissingRecord) {
		// Sentence expired first; the served release path won.
		d.logger.Infof("bail payment for %s raced sentence expiry, no charge", id)
		delete(d.offers, id)
		return nil
	}

	offer.Paid = true
	offer.PaidAmount = offer.CurrentAmount
	if err := d.records.MarkBailPaid(id, offer.PaidAmount); err != nil {
		d.logger.Warnf("bail record for %s: %v", id, err)
	}
	d.metrics.BailPaymentsTotal.Inc()
	d.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeBailPaid,
		SubjectID:   string(id),
		Payload:     map[string]float64{"amount": offer.PaidAmount, "served_minutes": served},
		GameMinutes: nowMinutes,
	})
	d.logger.Infof("bail paid for %s: %.2f after %.0f minutes served", id, offer.PaidAmount, served)

	d.release.Begin(id, StageExitScan, PathBail, served, nowMinutes)
	return nil
}

// Offer returns a copy of the live offer.
func (d *BailDesk) Offer(id subject.ID) (BailOffer, bool) {
	offer, ok := d.offers[id]
	if !ok {
		return BailOffer{}, false
	}
	return *offer, true
}

// Clear drops the offer once the subject is out of the system.
func (d *BailDesk) Clear(id subject.ID) {
	delete(d.offers, id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
