package executor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// CloseResolved scans FILLED positions for markets that resolved
// on-chain and redeems the winning outcome tokens via the venue's CTF
// contract. Redemption is best-effort per leg: a failed leg is logged
// and does not block its sibling. Returns the number of positions moved
// to CLOSED.
//
// Already-CLOSED positions are skipped, so calling this twice on the
// same set produces no new on-chain writes.
func (e *Executor) CloseResolved(ctx context.Context, positions []*types.ClobPosition) (int, error) {
	if e.redeemer == nil {
		return 0, nil
	}

	closed := 0
	for _, pos := range positions {
		if pos == nil || pos.Status != types.PositionFilled {
			continue
		}

		redeemed := false
		for _, leg := range []*types.ClobLeg{&pos.LegA, &pos.LegB} {
			if e.redeemLeg(ctx, pos, leg) {
				redeemed = true
			}
		}

		if redeemed {
			pos.Status = types.PositionClosed
			pos.ClosedAt = e.now()
			closed++
			PositionsClosedTotal.Inc()
			e.logger.Info("position-closed",
				zap.String("position-id", pos.ID),
				zap.String("market-id", pos.MarketID))
		}
	}

	return closed, nil
}

// redeemLeg redeems one leg's held outcome tokens when its venue's
// market has resolved. Returns true only after a successful redeem
// transaction.
func (e *Executor) redeemLeg(ctx context.Context, pos *types.ClobPosition, leg *types.ClobLeg) bool {
	contracts, ok := e.contracts[leg.Platform]
	if !ok {
		return false
	}

	meta, err := e.resolveMeta(ctx, leg.Platform, pos.MarketID)
	if err != nil {
		return false
	}
	conditionID := common.HexToHash(meta.ConditionID)

	denominator, err := e.chain.PayoutDenominator(ctx, contracts.CTF, conditionID)
	if err != nil {
		e.logger.Warn("payout-denominator-read-failed",
			zap.String("venue", leg.Platform),
			zap.String("condition-id", meta.ConditionID),
			zap.Error(err))
		return false
	}
	if denominator.Sign() <= 0 {
		// Not resolved on this venue yet.
		return false
	}

	tokenID, ok := new(big.Int).SetString(leg.TokenID, 10)
	if !ok {
		e.logger.Warn("token-id-not-numeric",
			zap.String("venue", leg.Platform),
			zap.String("token-id", leg.TokenID))
		return false
	}

	owner := e.walletFor(leg.Platform)
	balance, err := e.chain.BalanceOf1155(ctx, contracts.CTF, owner, tokenID)
	if err != nil {
		e.logger.Warn("ctf-balance-read-failed",
			zap.String("venue", leg.Platform),
			zap.String("token-id", leg.TokenID),
			zap.Error(err))
		return false
	}
	if balance.Sign() <= 0 {
		return false
	}

	// Index set 1 covers YES, 2 covers NO.
	indexSet := big.NewInt(2)
	if leg.TokenID == meta.YesTokenID {
		indexSet = big.NewInt(1)
	}

	err = e.redeemer.RedeemPositions(ctx, contracts.CTF, contracts.Collateral, conditionID, []*big.Int{indexSet})
	if err != nil {
		e.logger.Error("redeem-failed",
			zap.String("position-id", pos.ID),
			zap.String("venue", leg.Platform),
			zap.String("condition-id", meta.ConditionID),
			zap.Error(err))
		return false
	}

	e.logger.Info("leg-redeemed",
		zap.String("position-id", pos.ID),
		zap.String("venue", leg.Platform),
		zap.String("condition-id", meta.ConditionID),
		zap.String("index-set", indexSet.String()),
		zap.String("ctf-balance", balance.String()))
	return true
}
