package types

import "time"

// PositionStatus is the lifecycle state of a two-leg arbitrage position.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "OPEN"
	PositionFilled  PositionStatus = "FILLED"
	PositionPartial PositionStatus = "PARTIAL"
	PositionExpired PositionStatus = "EXPIRED"
	PositionClosed  PositionStatus = "CLOSED"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ClobLeg is one of the two orders that make up a hedged position.
type ClobLeg struct {
	Platform   string  `json:"platform"`
	OrderID    string  `json:"orderId"`    // empty when placement never happened
	TokenID    string  `json:"tokenId"`    // venue-native outcome token identifier
	Side       Side    `json:"side"`
	Price      float64 `json:"price"`      // fraction in [0, 1], 3-dp venue grid
	Size       float64 `json:"size"`       // USDT amount
	Filled     bool    `json:"filled"`
	FilledSize float64 `json:"filledSize"` // USDT amount actually filled
}

// ClobPosition describes the outcome of one execution attempt.
type ClobPosition struct {
	ID             string         `json:"id"`
	MarketID       string         `json:"marketId"`
	Status         PositionStatus `json:"status"`
	LegA           ClobLeg        `json:"legA"`
	LegB           ClobLeg        `json:"legB"`
	TotalCost      float64        `json:"totalCost"`      // USDT spent across both legs
	ExpectedPayout float64        `json:"expectedPayout"` // USDT payout at resolution
	SpreadBps      int            `json:"spreadBps"`
	OpenedAt       time.Time      `json:"openedAt"`
	ClosedAt       time.Time      `json:"closedAt,omitempty"`
}
