package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// cooldownSnapshotInterval bounds how stale the persisted cooldown map
// can get relative to the in-memory one.
const cooldownSnapshotInterval = time.Minute

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.Float64("max-position-size", a.cfg.MaxPositionSize),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Strings("venues", a.venues.Names()))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	// Authenticate venues before any order flow
	for _, name := range a.venues.Names() {
		client, _ := a.venues.Get(name)
		if err := client.Authenticate(a.ctx); err != nil {
			return fmt.Errorf("authenticate %s: %w", name, err)
		}
	}

	// Start balance guard
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.guard.Start(a.ctx)
	}()

	// Reconcile positions left open by a previous run
	a.wg.Add(1)
	go a.reconcileOpenPositions()

	// Start quote feed and the execution loop
	if a.feed != nil {
		if err := a.feed.Start(); err != nil {
			return fmt.Errorf("start quote feed: %w", err)
		}
		a.wg.Add(1)
		go a.runExecutionLoop()
	} else {
		a.logger.Warn("execution-loop-not-started",
			zap.String("reason", "no quote feed configured"))
	}

	// Periodic redemption sweep and cooldown persistence
	a.wg.Add(2)
	go a.runRedemptionSweep()
	go a.runCooldownSnapshots()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// runExecutionLoop consumes opportunities sequentially. One trade at a
// time: overlap between executions is what the pause gate and balance
// snapshots cannot survive.
func (a *App) runExecutionLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case opp, ok := <-a.feed.Opportunities():
			if !ok {
				return
			}
			if !a.guard.IsEnabled() {
				a.logger.Debug("opportunity-skipped-guard-disabled",
					zap.String("market-id", opp.MarketID))
				continue
			}

			pos, err := a.executor.ExecuteBest(a.ctx, opp, a.cfg.MaxPositionSize)
			if err != nil {
				a.logger.Error("execution-failed",
					zap.String("market-id", opp.MarketID),
					zap.Error(err))
				continue
			}
			if pos == nil {
				continue
			}

			if err := a.storage.SavePosition(a.ctx, pos); err != nil {
				a.logger.Error("position-save-failed",
					zap.String("position-id", pos.ID),
					zap.Error(err))
			}

			if pos.Status == types.PositionFilled {
				a.guard.RecordTrade(pos.TotalCost)
			}
		}
	}
}

// reconcileOpenPositions resolves positions a previous run left with
// orders in flight.
func (a *App) reconcileOpenPositions() {
	defer a.wg.Done()

	open, err := a.storage.ListOpenPositions(a.ctx)
	if err != nil {
		a.logger.Error("open-position-listing-failed", zap.Error(err))
		return
	}

	for _, pos := range open {
		if pos.Status != types.PositionOpen {
			continue
		}
		updated, err := a.executor.PollForFills(a.ctx, pos)
		if err != nil {
			a.logger.Error("position-reconcile-failed",
				zap.String("position-id", pos.ID),
				zap.Error(err))
			continue
		}
		if err := a.storage.SavePosition(a.ctx, updated); err != nil {
			a.logger.Error("position-save-failed",
				zap.String("position-id", updated.ID),
				zap.Error(err))
		}
	}
}

// runRedemptionSweep periodically redeems filled positions whose
// markets have resolved.
func (a *App) runRedemptionSweep() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.RedeemInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			open, err := a.storage.ListOpenPositions(a.ctx)
			if err != nil {
				a.logger.Error("open-position-listing-failed", zap.Error(err))
				continue
			}

			closed, err := a.executor.CloseResolved(a.ctx, open)
			if err != nil {
				a.logger.Warn("redemption-sweep-incomplete", zap.Error(err))
			}
			if closed == 0 {
				continue
			}

			for _, pos := range open {
				if pos.Status != types.PositionClosed {
					continue
				}
				if err := a.storage.UpdatePositionStatus(a.ctx, pos.ID, pos.Status); err != nil {
					a.logger.Error("position-status-save-failed",
						zap.String("position-id", pos.ID),
						zap.Error(err))
				}
			}
		}
	}
}

// runCooldownSnapshots persists the cooldown map so restarts keep
// rejected markets blocked.
func (a *App) runCooldownSnapshots() {
	defer a.wg.Done()

	ticker := time.NewTicker(cooldownSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if err := a.storage.SaveCooldowns(a.ctx, a.executor.Cooldowns()); err != nil {
				a.logger.Warn("cooldown-snapshot-failed", zap.Error(err))
			}
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
