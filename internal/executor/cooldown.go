package executor

import (
	"time"

	"go.uber.org/zap"
)

// Paused reports the global pause gate.
func (e *Executor) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Unpause clears the pause gate. Exposed for the admin surface; the
// unwinder clears it itself after a transient classification.
func (e *Executor) Unpause() {
	e.setPaused(false, "manual")
}

func (e *Executor) setPaused(paused bool, reason string) {
	e.mu.Lock()
	changed := e.paused != paused
	e.paused = paused
	e.mu.Unlock()

	if !changed {
		return
	}
	if paused {
		PausedGauge.Set(1)
		e.logger.Warn("executor-paused", zap.String("reason", reason))
	} else {
		PausedGauge.Set(0)
		e.logger.Info("executor-unpaused", zap.String("reason", reason))
	}
}

// cooldownActive reports whether the market sits in an unexpired
// cooldown window. Expired entries are purged on read.
func (e *Executor) cooldownActive(marketID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	expiry, ok := e.cooldowns[marketID]
	if !ok {
		return false
	}
	if e.now().After(expiry) {
		delete(e.cooldowns, marketID)
		CooldownsActive.Set(float64(len(e.cooldowns)))
		return false
	}
	return true
}

func (e *Executor) setCooldown(marketID string, d time.Duration) {
	e.mu.Lock()
	e.cooldowns[marketID] = e.now().Add(d)
	CooldownsActive.Set(float64(len(e.cooldowns)))
	e.mu.Unlock()

	e.logger.Info("market-cooldown-set",
		zap.String("market-id", marketID),
		zap.Duration("duration", d))
}

// Cooldowns returns a copy of the live cooldown map for persistence
// snapshots.
func (e *Executor) Cooldowns() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]time.Time, len(e.cooldowns))
	for market, expiry := range e.cooldowns {
		out[market] = expiry
	}
	return out
}
