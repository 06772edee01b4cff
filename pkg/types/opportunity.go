package types

import "math/big"

// ArbitOpportunity is a detected cross-venue arbitrage candidate: two
// complementary BUY quotes whose summed ask prices are below one unit
// of payout.
//
// Prices are 18-decimal fixed point, liquidity is 6-decimal USDT, the
// quote timestamp is unix milliseconds. The detector guarantees
// YesPriceA + NoPriceB < 10^18.
type ArbitOpportunity struct {
	MarketID   string   // 32-byte hex identifier shared across venues
	ProtocolA  string   // venue carrying the YES (or NO) leg
	ProtocolB  string
	BuyYesOnA  bool     // true: buy YES on A and NO on B
	YesPriceA  *big.Int // 18-dec
	NoPriceB   *big.Int // 18-dec
	TotalCost  *big.Int // 18-dec, YesPriceA + NoPriceB
	SpreadBps  int
	EstProfit  *big.Int // 18-dec
	LiquidityA *big.Int // 6-dec USDT available at the quoted ask
	LiquidityB *big.Int // 6-dec USDT
	QuotedAt   int64    // unix ms
}

// MarketMeta is a venue's view of one market.
type MarketMeta struct {
	ConditionID string // 32-byte hex condition identifier
	YesTokenID  string // venue-native outcome token ids
	NoTokenID   string
	Slug        string // optional venue-specific identifier
}

// TokenID returns the outcome token for the requested side.
func (m *MarketMeta) TokenID(buyYes bool) string {
	if buyYes {
		return m.YesTokenID
	}
	return m.NoTokenID
}
