// Package guard holds the balance circuit breaker. It watches the
// collateral balance of the trading wallets and disables execution when
// the balance can no longer cover a typical trade, with hysteresis so
// the gate does not flap around the threshold.
package guard

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/pkg/numeric"
)

// BalanceReader fetches an ERC-20 balance. The chain client and test
// mocks both implement it.
type BalanceReader interface {
	ReadBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// BalanceGuard monitors wallet collateral and controls trade execution.
// Thresholds adapt to recent trade sizes and use hysteresis to prevent
// rapid state changes.
type BalanceGuard struct {
	enabled atomic.Bool // Atomic for lock-free reads

	// Configuration
	checkInterval   time.Duration
	chain           BalanceReader
	token           common.Address
	owners          []common.Address
	logger          *zap.Logger
	tradeMultiplier float64 // Multiplier for avg trade size
	minAbsolute     float64 // Absolute minimum balance
	hysteresisRatio float64 // Re-enable at ratio * disable threshold

	// Protected by mutex
	mu               sync.RWMutex
	lastBalance      float64
	lastCheck        time.Time
	recentTrades     []float64 // Rolling window of trade sizes
	disableThreshold float64
	enableThreshold  float64
}

// Config holds balance guard configuration.
type Config struct {
	CheckInterval   time.Duration
	TradeMultiplier float64
	MinAbsolute     float64
	HysteresisRatio float64
	Chain           BalanceReader
	Token           common.Address
	// Owners are the wallets summed into the guarded balance: the EOA,
	// plus the Safe when one is configured.
	Owners []common.Address
	Logger *zap.Logger
}

// Status holds current guard state for the status endpoint.
type Status struct {
	Enabled          bool
	LastBalance      float64
	LastCheck        time.Time
	DisableThreshold float64
	EnableThreshold  float64
	AvgTradeSize     float64
	RecentTradeCount int
}

// New creates a balance guard with the given configuration.
func New(cfg *Config) (*BalanceGuard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain reader cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Owners) == 0 {
		return nil, fmt.Errorf("at least one owner is required")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.TradeMultiplier <= 0 {
		return nil, fmt.Errorf("trade multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	g := &BalanceGuard{
		checkInterval:    cfg.CheckInterval,
		chain:            cfg.Chain,
		token:            cfg.Token,
		owners:           cfg.Owners,
		logger:           cfg.Logger,
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		recentTrades:     make([]float64, 0, tradeWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}

	// Start enabled by default
	g.enabled.Store(true)

	GuardEnabled.Set(1)
	GuardDisableThreshold.Set(g.disableThreshold)
	GuardEnableThreshold.Set(g.enableThreshold)
	GuardAvgTradeSize.Set(0)

	return g, nil
}

// tradeWindow is the number of recent trades the thresholds adapt to.
const tradeWindow = 20

// IsEnabled returns true if trades should be executed.
// This is lock-free and safe to call from hot paths.
func (g *BalanceGuard) IsEnabled() bool {
	return g.enabled.Load()
}

// RecordTrade adds a trade to the rolling window and recalculates
// thresholds. Call this after successful trade execution.
func (g *BalanceGuard) RecordTrade(tradeSize float64) {
	if tradeSize <= 0 {
		g.logger.Warn("invalid-trade-size",
			zap.Float64("size", tradeSize))
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.recentTrades = append(g.recentTrades, tradeSize)
	if len(g.recentTrades) > tradeWindow {
		g.recentTrades = g.recentTrades[1:]
	}

	sum := 0.0
	for _, size := range g.recentTrades {
		sum += size
	}
	avgTradeSize := sum / float64(len(g.recentTrades))

	g.disableThreshold = math.Max(avgTradeSize*g.tradeMultiplier, g.minAbsolute)
	g.enableThreshold = g.disableThreshold * g.hysteresisRatio

	GuardAvgTradeSize.Set(avgTradeSize)
	GuardDisableThreshold.Set(g.disableThreshold)
	GuardEnableThreshold.Set(g.enableThreshold)

	g.logger.Debug("thresholds-updated",
		zap.Float64("avg-trade-size", avgTradeSize),
		zap.Int("trade-count", len(g.recentTrades)),
		zap.Float64("disable-threshold", g.disableThreshold),
		zap.Float64("enable-threshold", g.enableThreshold))
}

// CheckBalance reads the summed collateral balance and updates the
// enabled state against the current thresholds.
func (g *BalanceGuard) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		GuardCheckDuration.Observe(time.Since(start).Seconds())
	}()

	balance := 0.0
	for _, owner := range g.owners {
		wei, err := g.chain.ReadBalance(ctx, g.token, owner)
		if err != nil {
			g.logger.Error("failed-to-check-balance",
				zap.Error(err),
				zap.String("owner", owner.Hex()))
			return fmt.Errorf("read balance: %w", err)
		}
		balance += numeric.WeiToUSDT(wei)
	}

	g.mu.RLock()
	disableThreshold := g.disableThreshold
	enableThreshold := g.enableThreshold
	g.mu.RUnlock()

	currentlyEnabled := g.enabled.Load()

	g.mu.Lock()
	g.lastBalance = balance
	g.lastCheck = time.Now()
	g.mu.Unlock()

	GuardBalance.Set(balance)

	// State transition logic with hysteresis
	shouldDisable := currentlyEnabled && balance < disableThreshold
	shouldEnable := !currentlyEnabled && balance >= enableThreshold

	if shouldDisable {
		g.enabled.Store(false)
		GuardEnabled.Set(0)
		GuardStateChanges.Inc()

		g.logger.Warn("balance-guard-disabled",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	} else if shouldEnable {
		g.enabled.Store(true)
		GuardEnabled.Set(1)
		GuardStateChanges.Inc()

		g.logger.Info("balance-guard-enabled",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	} else {
		g.logger.Debug("balance-checked",
			zap.Float64("balance", balance),
			zap.Bool("enabled", currentlyEnabled))
	}

	return nil
}

// Start begins the background monitoring loop. It runs until the
// context is cancelled.
func (g *BalanceGuard) Start(ctx context.Context) {
	g.logger.Info("balance-guard-started",
		zap.Duration("check-interval", g.checkInterval),
		zap.Float64("min-absolute", g.minAbsolute))

	// Check balance immediately on startup
	if err := g.CheckBalance(ctx); err != nil {
		g.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	ticker := time.NewTicker(g.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("balance-guard-stopped")
			return
		case <-ticker.C:
			if err := g.CheckBalance(ctx); err != nil {
				g.logger.Error("balance-check-failed", zap.Error(err))
			}
		}
	}
}

// GetStatus returns a snapshot of the guard state.
func (g *BalanceGuard) GetStatus() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	avg := 0.0
	if len(g.recentTrades) > 0 {
		sum := 0.0
		for _, size := range g.recentTrades {
			sum += size
		}
		avg = sum / float64(len(g.recentTrades))
	}

	return Status{
		Enabled:          g.enabled.Load(),
		LastBalance:      g.lastBalance,
		LastCheck:        g.lastCheck,
		DisableThreshold: g.disableThreshold,
		EnableThreshold:  g.enableThreshold,
		AvgTradeSize:     avg,
		RecentTradeCount: len(g.recentTrades),
	}
}
