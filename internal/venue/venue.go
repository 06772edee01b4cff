// Package venue defines the capability set every order-book venue
// adapter implements, plus the registry the executor consults at
// pre-flight.
package venue

import "context"

// OrderState is a venue's view of an order.
type OrderState string

const (
	StateOpen      OrderState = "OPEN"
	StatePartial   OrderState = "PARTIAL"
	StateFilled    OrderState = "FILLED"
	StateCancelled OrderState = "CANCELLED"
	StateExpired   OrderState = "EXPIRED"
	StateUnknown   OrderState = "UNKNOWN"
)

// IsFinal reports whether the order can no longer change.
func (s OrderState) IsFinal() bool {
	return s == StateFilled || s == StateCancelled || s == StateExpired
}

// Strategy selects the order type at submission.
type Strategy string

const (
	StrategyFOK   Strategy = "FOK"
	StrategyLimit Strategy = "LIMIT"
)

// PlaceOrderParams carries everything a venue needs to build and submit
// one order. Price is a fraction in [0, 1], Size a USDT amount.
type PlaceOrderParams struct {
	TokenID    string
	Side       string // "BUY" or "SELL"
	Price      float64
	Size       float64
	MarketID   string
	Strategy   Strategy
	FillOrKill bool
}

// PlaceOrderResult is the venue response to a submission.
//
// FilledQty is the share count the venue reports as immediately matched.
// A nil pointer means the venue did not report it; an explicit zero
// means the venue reported no fill.
type PlaceOrderResult struct {
	Success   bool
	OrderID   string
	Status    string
	FilledQty *float64
	ErrorMsg  string
}

// OrderStatus is the result of a status query.
type OrderStatus struct {
	State         OrderState
	FilledSize    float64 // shares matched so far
	RemainingSize float64
}

// Client is the capability set shared by all venue adapters.
type Client interface {
	Name() string

	// Authenticate is called once at startup.
	Authenticate(ctx context.Context) error

	PlaceOrder(ctx context.Context, params *PlaceOrderParams) (*PlaceOrderResult, error)

	CancelOrder(ctx context.Context, orderID, tokenID string) (bool, error)

	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)

	// EnsureApprovals performs out-of-band collateral approvals.
	EnsureApprovals(ctx context.Context) error
}

// BalanceProvider is an optional capability: venues that track unlocked
// share balances expose it, the unwinder clamps sell sizes with it.
// Venues without it fall back to the computed held quantity.
type BalanceProvider interface {
	// GetAvailableBalance returns the share count not locked in open
	// orders for the given outcome token.
	GetAvailableBalance(ctx context.Context, tokenID string) (float64, error)
}
