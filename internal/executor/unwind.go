package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/pkg/numeric"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// unwindLeg sells a naked filled leg back to cash at a bounded loss.
// It walks the discount ladder with good-till-cancel limit SELLs and
// polls each one; the pause gate clears only when the failure pattern
// was transient (an order was at least seen live on the book).
//
// The initial SELL placements must complete even under caller
// cancellation, so submissions use a detached context. The status poll
// loops still honour the caller's context.
func (e *Executor) unwindLeg(ctx context.Context, client venue.Client, leg *types.ClobLeg) {
	if leg.Price <= 0 || leg.FilledSize <= 0 {
		e.logger.Error("unwind-skipped-degenerate-leg",
			zap.String("order-id", leg.OrderID),
			zap.Float64("price", leg.Price),
			zap.Float64("filled-size", leg.FilledSize))
		return
	}

	actualShares := leg.FilledSize / leg.Price

	// Clamp to the unlocked balance when the venue can report it.
	if provider, ok := client.(venue.BalanceProvider); ok {
		available, err := provider.GetAvailableBalance(ctx, leg.TokenID)
		if err != nil {
			e.logger.Warn("available-balance-query-failed",
				zap.String("venue", client.Name()),
				zap.Error(err))
		} else {
			if available == 0 {
				e.logger.Info("unwind-nothing-to-sell",
					zap.String("venue", client.Name()),
					zap.String("token-id", leg.TokenID))
				return
			}
			if available < actualShares {
				actualShares = available
			}
		}
	}

	placeCtx := context.WithoutCancel(ctx)
	reachedBook := false

	for _, discount := range e.cfg.DiscountLadder {
		// 3dp is the tightest venue price grid; round half away from
		// zero so 0.014 at 5% lands on 0.013, not 0.01.
		sellPrice := numeric.RoundTo(leg.Price*(1-discount), 3)
		if sellPrice <= 0 {
			continue
		}
		// Size in USDT derives from the held shares so order
		// construction emits exactly the held quantity.
		sellSize := numeric.RoundTo(actualShares*sellPrice, 8)

		res, err := client.PlaceOrder(placeCtx, &venue.PlaceOrderParams{
			TokenID:  leg.TokenID,
			Side:     string(types.SideSell),
			Price:    sellPrice,
			Size:     sellSize,
			Strategy: venue.StrategyLimit,
		})
		if err != nil || !res.Success || res.OrderID == "" {
			UnwindAttemptsTotal.WithLabelValues("rejected").Inc()
			e.logger.Warn("unwind-sell-rejected",
				zap.String("venue", client.Name()),
				zap.Float64("discount", discount),
				zap.Float64("sell-price", sellPrice),
				zap.Error(err),
				zap.String("venue-error", resultError(res)))
			continue
		}

		e.logger.Info("unwind-sell-placed",
			zap.String("venue", client.Name()),
			zap.String("order-id", res.OrderID),
			zap.Float64("discount", discount),
			zap.Float64("sell-price", sellPrice),
			zap.Float64("shares", actualShares))

		outcome, sawBook := e.pollUnwindOrder(ctx, client, res.OrderID, leg.TokenID)
		if sawBook {
			reachedBook = true
		}
		if outcome == venue.StateFilled {
			UnwindAttemptsTotal.WithLabelValues("filled").Inc()
			UnwindsTotal.WithLabelValues("filled").Inc()
			e.setPaused(false, "unwind-filled")
			e.logger.Info("unwind-filled",
				zap.String("venue", client.Name()),
				zap.String("order-id", res.OrderID))
			return
		}
		UnwindAttemptsTotal.WithLabelValues(string(outcome)).Inc()
	}

	if reachedBook {
		// Orders reached the book but never filled: liquidity or timing,
		// not a broken configuration. Safe to resume.
		UnwindsTotal.WithLabelValues("transient").Inc()
		e.setPaused(false, "unwind-transient")
		e.logger.Warn("unwind-exhausted-transient",
			zap.String("venue", client.Name()),
			zap.String("token-id", leg.TokenID),
			zap.Float64("shares", actualShares))
		return
	}

	// Every attempt died before any live sighting: wallet, approval or
	// code problem. Stay paused until someone looks.
	UnwindsTotal.WithLabelValues("systematic").Inc()
	e.logger.Error("unwind-exhausted-systematic",
		zap.String("venue", client.Name()),
		zap.String("token-id", leg.TokenID),
		zap.Float64("shares", actualShares))
}

// pollUnwindOrder watches one resting SELL until it reaches a final
// state or the unwind timeout elapses. Returns the last observed state
// and whether the order was ever seen live on the book. A timed-out
// resting order is cancelled before the next ladder rung.
func (e *Executor) pollUnwindOrder(ctx context.Context, client venue.Client, orderID, tokenID string) (venue.OrderState, bool) {
	deadline := time.Now().Add(e.cfg.UnwindPollTimeout)
	sawBook := false
	last := venue.StateUnknown

	for time.Now().Before(deadline) {
		status, err := client.GetOrderStatus(ctx, orderID)
		if err != nil {
			e.logger.Warn("unwind-status-query-failed",
				zap.String("order-id", orderID),
				zap.Error(err))
		} else {
			last = status.State
			switch status.State {
			case venue.StateFilled:
				return venue.StateFilled, true
			case venue.StateOpen, venue.StatePartial:
				sawBook = true
			case venue.StateCancelled, venue.StateExpired:
				return status.State, sawBook
			}
		}

		if err := sleepCtx(ctx, e.cfg.UnwindPollInterval); err != nil {
			break
		}
	}

	if _, err := client.CancelOrder(ctx, orderID, tokenID); err != nil {
		e.logger.Warn("unwind-cancel-failed",
			zap.String("order-id", orderID),
			zap.Error(err))
	}
	return last, sawBook
}
