// Package predict implements the venue adapter for the deep-liquidity
// CLOB venue. Orders are EIP-712 signed from the EOA and submitted with
// HMAC-authenticated requests; BUY legs go out fill-or-kill.
package predict

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mselser95/crossmarket-arb/internal/venue"
)

// Name is the protocol name this adapter registers under.
const Name = "predict"

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Client talks to the predict CLOB API.
type Client struct {
	baseURL       string
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA signer, also the funder
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// Config holds predict client configuration.
type Config struct {
	BaseURL           string
	APIKey            string
	Secret            string
	Passphrase        string
	PrivateKey        string
	ChainID           int64
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// New creates a predict venue client.
func New(cfg *Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		signatureType: model.EOA,
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(cfg.ChainID), nil),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		logger:        cfg.Logger,
	}, nil
}

// Name returns the protocol name.
func (c *Client) Name() string {
	return Name
}

// Authenticate verifies the API credentials against the key endpoint.
func (c *Client) Authenticate(ctx context.Context) error {
	body, status, err := c.request(ctx, http.MethodGet, "/auth/api-key", nil)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("authenticate: status %d: %s", status, string(body))
	}
	c.logger.Info("venue-authenticated", zap.String("venue", Name))
	return nil
}

// signedOrderJSON is the wire form of an EIP-712 signed order.
type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// submissionResponse is the venue reply to POST /order.
type submissionResponse struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderId"`
	Status       string `json:"status"` // matched, live, delayed, unmatched
	TakingAmount string `json:"takingAmount"`
}

// PlaceOrder signs and submits one order.
func (c *Client) PlaceOrder(ctx context.Context, params *venue.PlaceOrderParams) (*venue.PlaceOrderResult, error) {
	if params.Price <= 0 || params.Price >= 1 {
		return nil, fmt.Errorf("price %f outside (0, 1)", params.Price)
	}

	side := model.BUY
	makerAmount := usdToRawAmount(params.Size)                // collateral in
	takerAmount := usdToRawAmount(params.Size / params.Price) // shares out
	if params.Side == "SELL" {
		side = model.SELL
		makerAmount = usdToRawAmount(params.Size / params.Price) // shares in
		takerAmount = usdToRawAmount(params.Size)                // collateral out
	}

	orderData := &model.OrderData{
		Maker:         c.address,
		Taker:         zeroAddress,
		TokenId:       params.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signedOrder, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build signed order: %w", err)
	}

	orderType := "GTC"
	if params.FillOrKill || params.Strategy == venue.StrategyFOK {
		orderType = "FOK"
	}

	sideStr := "BUY"
	if signedOrder.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	reqBody := map[string]interface{}{
		"order": signedOrderJSON{
			Salt:          signedOrder.Salt.Int64(),
			Maker:         signedOrder.Maker.Hex(),
			Signer:        signedOrder.Signer.Hex(),
			Taker:         signedOrder.Taker.Hex(),
			TokenID:       signedOrder.TokenId.String(),
			MakerAmount:   signedOrder.MakerAmount.String(),
			TakerAmount:   signedOrder.TakerAmount.String(),
			Side:          sideStr,
			Expiration:    signedOrder.Expiration.String(),
			Nonce:         signedOrder.Nonce.String(),
			FeeRateBps:    signedOrder.FeeRateBps.String(),
			SignatureType: int(signedOrder.SignatureType.Int64()),
			Signature:     "0x" + common.Bytes2Hex(signedOrder.Signature),
		},
		// owner is the API key, not the maker address.
		"owner":     c.apiKey,
		"orderType": orderType,
	}

	body, status, err := c.request(ctx, http.MethodPost, "/order", reqBody)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return &venue.PlaceOrderResult{
			Success:  false,
			ErrorMsg: fmt.Sprintf("status %d: %s", status, string(body)),
		}, nil
	}

	var resp submissionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := &venue.PlaceOrderResult{
		Success:  resp.Success,
		OrderID:  resp.OrderID,
		Status:   resp.Status,
		ErrorMsg: resp.ErrorMsg,
	}

	// On a matched FOK the taking amount is the share count filled.
	if resp.Status == "matched" && resp.TakingAmount != "" {
		if qty, err := strconv.ParseFloat(resp.TakingAmount, 64); err == nil {
			result.FilledQty = &qty
		}
	}

	return result, nil
}

// CancelOrder removes a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID, tokenID string) (bool, error) {
	reqBody := map[string]string{"orderID": orderID}
	body, status, err := c.request(ctx, http.MethodDelete, "/order", reqBody)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("cancel order: status %d: %s", status, string(body))
	}
	return true, nil
}

// orderQueryResponse is the venue reply to GET /data/order.
type orderQueryResponse struct {
	OrderID    string  `json:"orderID"`
	Status     string  `json:"status"`
	Size       float64 `json:"original_size,string"`
	SizeFilled float64 `json:"size_matched,string"`
}

// GetOrderStatus queries one order's fill state.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*venue.OrderStatus, error) {
	body, status, err := c.request(ctx, http.MethodGet, "/data/order/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("get order status: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get order status: status %d", status)
	}

	var resp orderQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &venue.OrderStatus{
		State:         normalizeState(resp.Status, resp.SizeFilled, resp.Size),
		FilledSize:    resp.SizeFilled,
		RemainingSize: resp.Size - resp.SizeFilled,
	}, nil
}

// EnsureApprovals checks the venue-reported collateral allowance. The
// actual approval transactions are a bring-up step outside the agent.
func (c *Client) EnsureApprovals(ctx context.Context) error {
	body, status, err := c.request(ctx, http.MethodGet, "/balance-allowance?asset_type=COLLATERAL", nil)
	if err != nil {
		return fmt.Errorf("check allowance: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("check allowance: status %d", status)
	}

	var resp struct {
		Allowance string `json:"allowance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse allowance: %w", err)
	}
	allowance, ok := new(big.Int).SetString(resp.Allowance, 10)
	if !ok || allowance.Sign() <= 0 {
		return errors.New("collateral allowance not set; run the approve command")
	}
	return nil
}

// request sends one HMAC-authenticated request and returns the raw body.
func (c *Client) request(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature, err := c.sign(timestamp + method + path + string(reqBody))
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// sign produces the URL-safe base64 HMAC the venue expects.
func (c *Client) sign(payload string) (string, error) {
	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(payload))
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

// normalizeState maps venue status strings onto the shared order states.
func normalizeState(status string, filled, size float64) venue.OrderState {
	switch strings.ToUpper(status) {
	case "MATCHED":
		return venue.StateFilled
	case "LIVE", "DELAYED":
		if filled > 0 && filled < size {
			return venue.StatePartial
		}
		return venue.StateOpen
	case "CANCELED", "CANCELLED":
		return venue.StateCancelled
	case "EXPIRED", "UNMATCHED":
		return venue.StateExpired
	default:
		return venue.StateUnknown
	}
}

func usdToRawAmount(usd float64) string {
	return strconv.FormatInt(int64(usd*1e6), 10)
}
