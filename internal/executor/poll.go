package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// legStatus is one round's view of a leg's order.
type legStatus struct {
	state  venue.OrderState
	filled float64
}

// PollForFills drives a position placed with resting (non-FOK) orders to
// a terminal status. Both venues are polled concurrently each round;
// pause and cooldown writes happen only after the polls join.
//
// Terminal classification:
//   - both FILLED            -> FILLED
//   - both final, neither    -> EXPIRED
//   - one FILLED, one final  -> PARTIAL, pause, unwind the filled leg
//
// On timeout any still-open order is cancelled and the same table
// applies, treating the cancellation as final-not-filled.
func (e *Executor) PollForFills(ctx context.Context, pos *types.ClobPosition) (*types.ClobPosition, error) {
	if pos == nil {
		return nil, fmt.Errorf("position cannot be nil")
	}

	clientA, okA := e.venues.Get(pos.LegA.Platform)
	clientB, okB := e.venues.Get(pos.LegB.Platform)
	if !okA || !okB {
		return nil, fmt.Errorf("venue client missing for position %s", pos.ID)
	}

	deadline := time.Now().Add(e.cfg.FillPollTimeout)

	for time.Now().Before(deadline) {
		statusA, statusB := e.pollBoth(ctx, clientA, clientB, pos)

		done, status := e.classifyFills(ctx, pos, clientA, clientB, statusA, statusB)
		if done {
			pos.Status = status
			return pos, nil
		}

		if err := sleepCtx(ctx, e.cfg.FillPollInterval); err != nil {
			return pos, err
		}
	}

	// Timeout: one last look, then cancel whatever still rests.
	statusA, statusB := e.pollBoth(ctx, clientA, clientB, pos)

	if statusA.state != venue.StateFilled && !statusA.state.IsFinal() {
		e.cancelLeg(ctx, clientA, &pos.LegA)
		statusA.state = venue.StateCancelled
	}
	if statusB.state != venue.StateFilled && !statusB.state.IsFinal() {
		e.cancelLeg(ctx, clientB, &pos.LegB)
		statusB.state = venue.StateCancelled
	}

	done, status := e.classifyFills(ctx, pos, clientA, clientB, statusA, statusB)
	if done {
		pos.Status = status
		return pos, nil
	}

	// Both sides unresolved even after cancellation; leave the position
	// open for the next cycle rather than guess.
	e.logger.Warn("fill-poll-unresolved",
		zap.String("position-id", pos.ID),
		zap.String("state-a", string(statusA.state)),
		zap.String("state-b", string(statusB.state)))
	return pos, nil
}

// pollBoth queries both venues in parallel and joins before returning,
// so state writes that follow never race a venue call.
func (e *Executor) pollBoth(ctx context.Context, clientA, clientB venue.Client, pos *types.ClobPosition) (legStatus, legStatus) {
	var statusA, statusB legStatus
	done := make(chan struct{}, 2)

	go func() {
		statusA = e.pollLeg(ctx, clientA, &pos.LegA)
		done <- struct{}{}
	}()
	go func() {
		statusB = e.pollLeg(ctx, clientB, &pos.LegB)
		done <- struct{}{}
	}()
	<-done
	<-done

	return statusA, statusB
}

func (e *Executor) pollLeg(ctx context.Context, client venue.Client, leg *types.ClobLeg) legStatus {
	if leg.OrderID == "" {
		return legStatus{state: venue.StateCancelled}
	}
	status, err := client.GetOrderStatus(ctx, leg.OrderID)
	if err != nil {
		e.logger.Warn("order-status-query-failed",
			zap.String("venue", client.Name()),
			zap.String("order-id", leg.OrderID),
			zap.Error(err))
		return legStatus{state: venue.StateUnknown}
	}
	return legStatus{state: status.State, filled: status.FilledSize}
}

// classifyFills applies the transition table. Returns (false, _) when
// the position should keep polling.
func (e *Executor) classifyFills(ctx context.Context, pos *types.ClobPosition, clientA, clientB venue.Client, statusA, statusB legStatus) (bool, types.PositionStatus) {
	filledA := statusA.state == venue.StateFilled
	filledB := statusB.state == venue.StateFilled
	finalA := statusA.state.IsFinal()
	finalB := statusB.state.IsFinal()

	switch {
	case filledA && filledB:
		e.markFilled(&pos.LegA, statusA)
		e.markFilled(&pos.LegB, statusB)
		return true, types.PositionFilled

	case finalA && finalB && !filledA && !filledB:
		return true, types.PositionExpired

	case filledA && finalB:
		e.markFilled(&pos.LegA, statusA)
		e.setPaused(true, "partial-fill")
		e.setCooldown(pos.MarketID, e.cfg.MarketCooldown)
		e.unwindLeg(ctx, clientA, &pos.LegA)
		return true, types.PositionPartial

	case filledB && finalA:
		e.markFilled(&pos.LegB, statusB)
		e.setPaused(true, "partial-fill")
		e.setCooldown(pos.MarketID, e.cfg.MarketCooldown)
		e.unwindLeg(ctx, clientB, &pos.LegB)
		return true, types.PositionPartial
	}

	return false, pos.Status
}

func (e *Executor) markFilled(leg *types.ClobLeg, status legStatus) {
	leg.Filled = true
	if status.filled > 0 {
		leg.FilledSize = status.filled * leg.Price
	} else {
		leg.FilledSize = leg.Size
	}
}

func (e *Executor) cancelLeg(ctx context.Context, client venue.Client, leg *types.ClobLeg) {
	if leg.OrderID == "" {
		return
	}
	ok, err := client.CancelOrder(ctx, leg.OrderID, leg.TokenID)
	if err != nil || !ok {
		e.logger.Warn("cancel-on-timeout-failed",
			zap.String("venue", client.Name()),
			zap.String("order-id", leg.OrderID),
			zap.Error(err))
		return
	}
	e.logger.Info("order-cancelled-on-timeout",
		zap.String("venue", client.Name()),
		zap.String("order-id", leg.OrderID))
}
