// Package opinion implements the venue adapter for the retail CLOB
// venue. Orders are funded from the Safe smart account and submitted
// over a bearer-token REST API. The venue's fill reporting is flaky, so
// the adapter also exposes venue-side balance reads for unwind sizing.
package opinion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mselser95/crossmarket-arb/internal/venue"
)

// Name is the protocol name this adapter registers under.
const Name = "opinion"

// Client talks to the opinion venue API.
type Client struct {
	http    *resty.Client
	apiKey  string
	funder  string // Safe smart account holding the collateral
	limiter *rate.Limiter
	logger  *zap.Logger

	mu    sync.Mutex
	token string
}

// Config holds opinion client configuration.
type Config struct {
	BaseURL           string
	APIKey            string
	SafeAddress       string
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// New creates an opinion venue client.
func New(cfg *Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("baseURL cannot be empty")
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}

	http := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		http:    http,
		apiKey:  cfg.APIKey,
		funder:  cfg.SafeAddress,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  cfg.Logger,
	}, nil
}

// Name returns the protocol name.
func (c *Client) Name() string {
	return Name
}

// Authenticate exchanges the API key for a session token.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var resp struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	r, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"apiKey": c.apiKey}).
		SetResult(&resp).
		Post("/api/v1/auth/login")
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if r.IsError() || resp.Token == "" {
		return fmt.Errorf("authenticate: status %d: %s", r.StatusCode(), resp.Error)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	c.logger.Info("venue-authenticated", zap.String("venue", Name))
	return nil
}

func (c *Client) authed(ctx context.Context) *resty.Request {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	return c.http.R().SetContext(ctx).SetAuthToken(token)
}

// placeResponse is the venue reply to order creation. FilledQty is a
// pointer on purpose: the venue omits the field entirely on some
// responses, which is not the same thing as reporting zero fill.
type placeResponse struct {
	Success   bool     `json:"success"`
	OrderID   string   `json:"orderId"`
	Status    string   `json:"status"`
	FilledQty *float64 `json:"filledQty,omitempty"`
	Error     string   `json:"error"`
}

// PlaceOrder submits one order funded from the Safe.
func (c *Client) PlaceOrder(ctx context.Context, params *venue.PlaceOrderParams) (*venue.PlaceOrderResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	orderType := "GTC"
	if params.FillOrKill || params.Strategy == venue.StrategyFOK {
		orderType = "FOK"
	}

	var resp placeResponse
	r, err := c.authed(ctx).
		SetBody(map[string]interface{}{
			"tokenId":   params.TokenID,
			"side":      params.Side,
			"price":     params.Price,
			"size":      params.Size,
			"orderType": orderType,
			"funder":    c.funder,
		}).
		SetResult(&resp).
		SetError(&resp).
		Post("/api/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if r.IsError() {
		return &venue.PlaceOrderResult{
			Success:  false,
			ErrorMsg: fmt.Sprintf("status %d: %s", r.StatusCode(), resp.Error),
		}, nil
	}

	return &venue.PlaceOrderResult{
		Success:   resp.Success,
		OrderID:   resp.OrderID,
		Status:    resp.Status,
		FilledQty: resp.FilledQty,
		ErrorMsg:  resp.Error,
	}, nil
}

// CancelOrder removes a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID, tokenID string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	r, err := c.authed(ctx).
		SetQueryParam("tokenId", tokenID).
		Delete("/api/v1/orders/" + orderID)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	if r.IsError() {
		return false, fmt.Errorf("cancel order: status %d: %s", r.StatusCode(), r.String())
	}
	return true, nil
}

// GetOrderStatus queries one order's fill state.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*venue.OrderStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp struct {
		Status        string  `json:"status"`
		FilledSize    float64 `json:"filledSize"`
		RemainingSize float64 `json:"remainingSize"`
	}
	r, err := c.authed(ctx).
		SetResult(&resp).
		Get("/api/v1/orders/" + orderID)
	if err != nil {
		return nil, fmt.Errorf("get order status: %w", err)
	}
	if r.IsError() {
		return nil, fmt.Errorf("get order status: status %d", r.StatusCode())
	}

	return &venue.OrderStatus{
		State:         normalizeState(resp.Status, resp.FilledSize, resp.RemainingSize),
		FilledSize:    resp.FilledSize,
		RemainingSize: resp.RemainingSize,
	}, nil
}

// GetAvailableBalance reports the tradable outcome-token balance held
// by the Safe on the venue. Used to clamp unwind sell sizes to what the
// venue will actually accept.
func (c *Client) GetAvailableBalance(ctx context.Context, tokenID string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var resp struct {
		Available float64 `json:"available"`
	}
	r, err := c.authed(ctx).
		SetResult(&resp).
		Get("/api/v1/balances/" + tokenID)
	if err != nil {
		return 0, fmt.Errorf("get available balance: %w", err)
	}
	if r.IsError() {
		return 0, fmt.Errorf("get available balance: status %d", r.StatusCode())
	}
	return resp.Available, nil
}

// EnsureApprovals asks the venue to confirm the Safe's operator and
// collateral approvals are in place.
func (c *Client) EnsureApprovals(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var resp struct {
		Approved bool   `json:"approved"`
		Error    string `json:"error"`
	}
	r, err := c.authed(ctx).
		SetBody(map[string]string{"funder": c.funder}).
		SetResult(&resp).
		Post("/api/v1/approvals/check")
	if err != nil {
		return fmt.Errorf("check approvals: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("check approvals: status %d: %s", r.StatusCode(), resp.Error)
	}
	if !resp.Approved {
		return errors.New("safe approvals not set; run the approve command")
	}
	return nil
}

func normalizeState(status string, filled, remaining float64) venue.OrderState {
	switch strings.ToUpper(status) {
	case "FILLED":
		return venue.StateFilled
	case "OPEN", "PENDING":
		if filled > 0 && remaining > 0 {
			return venue.StatePartial
		}
		return venue.StateOpen
	case "CANCELLED", "CANCELED":
		return venue.StateCancelled
	case "EXPIRED", "REJECTED":
		return venue.StateExpired
	default:
		return venue.StateUnknown
	}
}
