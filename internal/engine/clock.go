package engine

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

// Clock drives the in-game timeline. Real time advances it at a fixed rate;
// every subsystem measures sentences, cooldowns and timeouts in the game
// minutes it reports, never in wall time.
type Clock struct {
	minuteBits     atomic.Uint64 // float64 bits of the current game minute
	tickInterval   time.Duration
	minutesPerTick float64

	eventLog *events.EventLog
	logger   *logger.Logger
	onTick   func(now, elapsed float64)
}

// NewClock creates a stopped clock at minute zero.
func NewClock(tickInterval time.Duration, minutesPerTick float64, eventLog *events.EventLog, log *logger.Logger, onTick func(now, elapsed float64)) *Clock {
	return &Clock{
		tickInterval:   tickInterval,
		minutesPerTick: minutesPerTick,
		eventLog:       eventLog,
		logger:         log,
		onTick:         onTick,
	}
}

// GameMinutes returns the current in-game minute. Safe from any goroutine.
func (c *Clock) GameMinutes() float64 {
	return math.Float64frombits(c.minuteBits.Load())
}

// SetGameMinutes re-anchors the clock, used when restoring from storage.
func (c *Clock) SetGameMinutes(m float64) {
	if m < 0 || math.IsNaN(m) {
		m = 0
	}
	c.minuteBits.Store(math.Float64bits(m))
}

// Advance moves the clock forward by elapsed game minutes and fires the tick
// callback. Run calls this on a timer; tests call it directly.
func (c *Clock) Advance(elapsed float64) {
	now := c.GameMinutes() + elapsed
	c.minuteBits.Store(math.Float64bits(now))

	c.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeTimeTick,
		ActorID:     "clock",
		GameMinutes: now,
	})
	if c.onTick != nil {
		c.onTick(now, elapsed)
	}
}

// Run advances the clock on a real-time ticker until ctx is cancelled.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	c.logger.Infof("clock running: %v per tick, %.1f game minutes each", c.tickInterval, c.minutesPerTick)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("clock stopped")
			return
		case <-ticker.C:
			c.Advance(c.minutesPerTick)
		}
	}
}
