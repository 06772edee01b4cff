package predict

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/crossmarket-arb/internal/venue"
)

const testPrivateKey = "0123456789012345678901234567890123456789012345678901234567890123"

func testSecret() string {
	return base64.URLEncoding.EncodeToString([]byte("test-secret"))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := New(&Config{
		BaseURL:           baseURL,
		APIKey:            "key-1",
		Secret:            testSecret(),
		Passphrase:        "pass",
		PrivateKey:        testPrivateKey,
		ChainID:           137,
		RequestsPerSecond: 1000,
		Logger:            zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func TestNewRejectsBadKey(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{
		BaseURL:    "http://localhost",
		PrivateKey: "not-hex",
		Logger:     zaptest.NewLogger(t),
	})
	if err == nil {
		t.Error("expected error for malformed private key")
	}
}

func TestPlaceOrderFOK(t *testing.T) {
	t.Parallel()

	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("POLY_API_KEY") != "key-1" ||
			r.Header.Get("POLY_SIGNATURE") == "" ||
			r.Header.Get("POLY_TIMESTAMP") == "" ||
			r.Header.Get("POLY_PASSPHRASE") != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"orderId": "p1",
			"status": "matched",
			"takingAmount": "22.22"
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	res, err := client.PlaceOrder(context.Background(), &venue.PlaceOrderParams{
		TokenID:    "111",
		Side:       "BUY",
		Price:      0.45,
		Size:       10,
		Strategy:   venue.StrategyFOK,
		FillOrKill: true,
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error: %v", err)
	}

	if !res.Success || res.OrderID != "p1" {
		t.Errorf("result = %+v", res)
	}
	if res.FilledQty == nil || *res.FilledQty != 22.22 {
		t.Errorf("filled qty = %v, want 22.22 from takingAmount", res.FilledQty)
	}

	if captured["orderType"] != "FOK" {
		t.Errorf("orderType = %v, want FOK", captured["orderType"])
	}
	if captured["owner"] != "key-1" {
		t.Errorf("owner = %v, want the api key", captured["owner"])
	}
	order, ok := captured["order"].(map[string]interface{})
	if !ok {
		t.Fatalf("order payload missing: %v", captured)
	}
	if order["tokenId"] != "111" || order["side"] != "BUY" {
		t.Errorf("order = %v", order)
	}
	if order["signature"] == "" {
		t.Error("order must carry an EIP-712 signature")
	}
	// 10 USDT in, 10/0.45 shares out, both 6-dp raw.
	if order["makerAmount"] != "10000000" {
		t.Errorf("makerAmount = %v, want 10000000", order["makerAmount"])
	}
	if order["takerAmount"] != "22222222" {
		t.Errorf("takerAmount = %v, want 22222222", order["takerAmount"])
	}
}

func TestPlaceOrderRejectsBadPrice(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://localhost:0")
	for _, price := range []float64{0, 1, 1.5, -0.2} {
		if _, err := client.PlaceOrder(context.Background(), &venue.PlaceOrderParams{
			TokenID: "111", Side: "BUY", Price: price, Size: 10,
		}); err == nil {
			t.Errorf("price %f must be rejected before signing", price)
		}
	}
}

func TestPlaceOrderVenueRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorMsg": "insufficient balance"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	res, err := client.PlaceOrder(context.Background(), &venue.PlaceOrderParams{
		TokenID: "111", Side: "BUY", Price: 0.45, Size: 10,
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error: %v", err)
	}
	if res.Success {
		t.Error("a 4xx must surface as an unsuccessful result, not an error")
	}
	if res.ErrorMsg == "" {
		t.Error("rejection must carry the venue error text")
	}
}

func TestGetOrderStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/order/p1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{
			"orderID": "p1",
			"status": "LIVE",
			"original_size": "10",
			"size_matched": "4"
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	status, err := client.GetOrderStatus(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetOrderStatus() error: %v", err)
	}

	if status.State != venue.StatePartial {
		t.Errorf("state = %s, want PARTIAL", status.State)
	}
	if status.FilledSize != 4 || status.RemainingSize != 6 {
		t.Errorf("sizes = %f/%f, want 4/6", status.FilledSize, status.RemainingSize)
	}
}

func TestNormalizeState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status string
		filled float64
		size   float64
		want   venue.OrderState
	}{
		{"matched", "matched", 10, 10, venue.StateFilled},
		{"live-untouched", "LIVE", 0, 10, venue.StateOpen},
		{"live-partial", "LIVE", 4, 10, venue.StatePartial},
		{"delayed", "delayed", 0, 10, venue.StateOpen},
		{"canceled", "CANCELED", 0, 10, venue.StateCancelled},
		{"unmatched", "UNMATCHED", 0, 10, venue.StateExpired},
		{"garbage", "???", 0, 10, venue.StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeState(tt.status, tt.filled, tt.size); got != tt.want {
				t.Errorf("normalizeState(%q) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestEnsureApprovals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		allowance string
		wantErr   bool
	}{
		{"granted", "1000000000000", false},
		{"zero", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"allowance": "` + tt.allowance + `"}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			err := client.EnsureApprovals(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("EnsureApprovals() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"canceled": ["p1"]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ok, err := client.CancelOrder(context.Background(), "p1", "111")
	if err != nil || !ok {
		t.Errorf("CancelOrder() = %v, %v", ok, err)
	}
}
