package testutil

import (
	"math/big"
	"time"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// PriceWei converts a fractional price to 18-decimal fixed point.
func PriceWei(price float64) *big.Int {
	d := new(big.Float).Mul(big.NewFloat(price), big.NewFloat(1e18))
	out, _ := d.Int(nil)
	return out
}

// USDTWei converts a USDT amount to 18-decimal fixed point.
func USDTWei(amount float64) *big.Int {
	return PriceWei(amount)
}

// USDTMicro converts a USDT amount to 6-decimal fixed point.
func USDTMicro(amount float64) *big.Int {
	d := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e6))
	out, _ := d.Int(nil)
	return out
}

// NewTestOpportunity builds a fresh, valid opportunity: YES at 0.45 on
// predict, NO at 0.45 on opinion, deep books on both sides.
func NewTestOpportunity(marketID string) *types.ArbitOpportunity {
	yes := PriceWei(0.45)
	no := PriceWei(0.45)
	total := new(big.Int).Add(yes, no)
	profit := new(big.Int).Sub(PriceWei(1.0), total)

	return &types.ArbitOpportunity{
		MarketID:   marketID,
		ProtocolA:  "predict",
		ProtocolB:  "opinion",
		BuyYesOnA:  true,
		YesPriceA:  yes,
		NoPriceB:   no,
		TotalCost:  total,
		EstProfit:  profit,
		SpreadBps:  1000,
		LiquidityA: USDTMicro(1000),
		LiquidityB: USDTMicro(1000),
		QuotedAt:   time.Now().UnixMilli(),
	}
}

// NewTestMeta builds metadata with distinct YES/NO token ids.
func NewTestMeta(conditionID, yesToken, noToken string) *types.MarketMeta {
	return &types.MarketMeta{
		ConditionID: conditionID,
		YesTokenID:  yesToken,
		NoTokenID:   noToken,
		Slug:        "test-market",
	}
}
