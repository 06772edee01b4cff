package executor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/pkg/numeric"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// balanceSnapshot captures pre-trade wallet balances. A nil entry means
// the read failed and that signal cannot be evaluated.
type balanceSnapshot struct {
	eoa  *big.Int
	safe *big.Int
}

func (e *Executor) snapshotBalances(ctx context.Context) *balanceSnapshot {
	snap := &balanceSnapshot{}

	bal, err := e.chain.ReadBalance(ctx, e.collateral, e.eoa)
	if err != nil {
		e.logger.Warn("pre-trade-eoa-snapshot-failed", zap.Error(err))
	} else {
		snap.eoa = bal
	}

	if e.separateWallets() {
		bal, err = e.chain.ReadBalance(ctx, e.collateral, e.safe)
		if err != nil {
			e.logger.Warn("pre-trade-safe-snapshot-failed", zap.Error(err))
		} else {
			snap.safe = bal
		}
	}

	return snap
}

// verifyLegFill decides whether a placed leg actually filled, using the
// first available signal:
//
//  1. the venue's own reported fill quantity, when present (an explicit
//     zero counts as unfilled),
//  2. the smart-account USDT delta against half the expected spend,
//  3. the EOA USDT delta, when no smart account carries the leg.
//
// When no signal can be evaluated the asymmetry applies: the reliable
// venue is assumed filled, the unreliable one is not. The 50% threshold
// is deliberately loose so partial fills register as fills and get
// hedged rather than expired.
func (e *Executor) verifyLegFill(ctx context.Context, res *venue.PlaceOrderResult, pre *balanceSnapshot, leg *types.ClobLeg, useSafe, assumeOnUnknown bool) bool {
	if res != nil && res.FilledQty != nil {
		filled := *res.FilledQty > 0
		e.logger.Debug("fill-verified-by-api",
			zap.String("order-id", leg.OrderID),
			zap.Float64("filled-qty", *res.FilledQty),
			zap.Bool("filled", filled))
		return filled
	}

	expected := numeric.USDTToWei(leg.Size)
	threshold := new(big.Int).Div(expected, big.NewInt(2))

	if useSafe {
		if pre.safe == nil {
			return assumeOnUnknown
		}
		return e.verifyByDelta(ctx, e.safe, pre.safe, threshold, leg, assumeOnUnknown)
	}

	if pre.eoa == nil {
		return assumeOnUnknown
	}
	return e.verifyByDelta(ctx, e.eoa, pre.eoa, threshold, leg, assumeOnUnknown)
}

// rebaselineEOA replaces the EOA baseline with a fresh read. When both
// legs draw from the EOA the first leg's spend is already in the
// balance by the time the second leg is verified; without a new
// baseline that spend alone crosses the second leg's threshold and a
// non-fill would pass as filled. A failed read clears the baseline so
// the unknown-signal asymmetry applies instead.
func (e *Executor) rebaselineEOA(ctx context.Context, snap *balanceSnapshot) {
	bal, err := e.chain.ReadBalance(ctx, e.collateral, e.eoa)
	if err != nil {
		e.logger.Warn("mid-trade-eoa-rebaseline-failed", zap.Error(err))
		snap.eoa = nil
		return
	}
	snap.eoa = bal
}

func (e *Executor) verifyByDelta(ctx context.Context, owner common.Address, pre, threshold *big.Int, leg *types.ClobLeg, assumeOnUnknown bool) bool {
	post, err := e.chain.ReadBalance(ctx, e.collateral, owner)
	if err != nil {
		e.logger.Warn("post-trade-balance-read-failed",
			zap.String("order-id", leg.OrderID),
			zap.Error(err))
		return assumeOnUnknown
	}

	delta := new(big.Int).Sub(pre, post)
	filled := delta.Cmp(threshold) > 0
	e.logger.Debug("fill-verified-by-balance-delta",
		zap.String("order-id", leg.OrderID),
		zap.String("delta-wei", delta.String()),
		zap.String("threshold-wei", threshold.String()),
		zap.Bool("filled", filled))
	return filled
}
