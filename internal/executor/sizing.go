package executor

import (
	"context"

	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/pkg/numeric"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// liquidityCapRatio keeps the trade inside the advertised book depth.
const liquidityCapRatio = 0.9

// sizeTrade computes the USDT amount each leg receives. Returns false
// when the resulting size falls below the configured minimum.
//
// With separate wallets (EOA funds the reliable leg, smart account the
// unreliable one) each wallet carries a full leg, so size-per-leg equals
// maxPositionSize. With a single wallet both legs split it.
func (e *Executor) sizeTrade(ctx context.Context, opp *types.ArbitOpportunity, maxPositionSize float64) (float64, bool) {
	separate := e.separateWallets()

	size := maxPositionSize
	eoaLegs := 1.0
	if !separate {
		size = maxPositionSize / 2
		eoaLegs = 2.0
	}

	if liqA := numeric.MicroToUSDT(opp.LiquidityA); liqA > 0 && size > liquidityCapRatio*liqA {
		size = liquidityCapRatio * liqA
	}
	if liqB := numeric.MicroToUSDT(opp.LiquidityB); liqB > 0 && size > liquidityCapRatio*liqB {
		size = liquidityCapRatio * liqB
	}

	// EOA cap. The floor-to-8dp keeps downstream rounding from exceeding
	// the real balance.
	eoaBal, err := e.chain.ReadBalance(ctx, e.collateral, e.eoa)
	if err != nil {
		e.logger.Warn("eoa-balance-read-failed",
			zap.String("market-id", opp.MarketID),
			zap.Error(err))
	} else if balUSDT := numeric.WeiToUSDT(eoaBal); balUSDT < size*eoaLegs*e.cfg.FeeBuffer {
		size = numeric.FloorTo(balUSDT/e.cfg.FeeBuffer, 8) / eoaLegs
		e.logger.Info("size-capped-by-eoa-balance",
			zap.String("market-id", opp.MarketID),
			zap.Float64("balance-usdt", balUSDT),
			zap.Float64("size", size))
	}

	if separate {
		safeBal, err := e.chain.ReadBalance(ctx, e.collateral, e.safe)
		if err != nil {
			e.logger.Warn("safe-balance-read-failed",
				zap.String("market-id", opp.MarketID),
				zap.Error(err))
		} else if balUSDT := numeric.WeiToUSDT(safeBal); balUSDT < size*e.cfg.FeeBuffer {
			size = numeric.FloorTo(balUSDT/e.cfg.FeeBuffer, 8)
			e.logger.Info("size-capped-by-safe-balance",
				zap.String("market-id", opp.MarketID),
				zap.Float64("balance-usdt", balUSDT),
				zap.Float64("size", size))
		}
	}

	if size < e.cfg.MinTradeSize {
		e.logger.Debug("size-below-minimum",
			zap.String("market-id", opp.MarketID),
			zap.Float64("size", size),
			zap.Float64("min", e.cfg.MinTradeSize))
		return 0, false
	}

	return size, true
}
