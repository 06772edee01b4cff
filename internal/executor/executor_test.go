package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/crossmarket-arb/internal/markets"
	"github.com/mselser95/crossmarket-arb/internal/testutil"
	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

var (
	testEOA        = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSafe       = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testCollateral = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	testCTF        = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func fptr(f float64) *float64 { return &f }

// testHarness bundles the executor under test with its scripted
// collaborators.
type testHarness struct {
	exec    *Executor
	predict *testutil.MockVenue
	opinion *testutil.MockBalanceVenue
	chain   *testutil.MockChainReader
	redeem  *testutil.MockRedeemer
	log     *testutil.CallLog
}

func newHarness(t *testing.T, separateWallets bool) *testHarness {
	t.Helper()

	log := &testutil.CallLog{}
	predictVenue := testutil.NewMockVenue("predict")
	predictVenue.Log = log
	opinionVenue := testutil.NewMockBalanceVenue("opinion")
	opinionVenue.Log = log

	registry := venue.NewRegistry()
	registry.Register(predictVenue)
	registry.Register(opinionVenue)

	chain := testutil.NewMockChainReader()
	chain.SetBalances(testEOA, testutil.USDTWei(1000))
	chain.SetBalances(testSafe, testutil.USDTWei(1000))

	resolvers := map[string]markets.Resolver{
		"predict": &testutil.MockResolver{Metas: map[string]*types.MarketMeta{
			"m1": testutil.NewTestMeta("0xabc", "111", "222"),
		}},
		"opinion": &testutil.MockResolver{Metas: map[string]*types.MarketMeta{
			"m1": testutil.NewTestMeta("0xdef", "333", "444"),
		}},
	}

	safe := common.Address{}
	if separateWallets {
		safe = testSafe
	}

	redeemer := &testutil.MockRedeemer{}

	exec, err := New(&Config{
		Logger:          zaptest.NewLogger(t),
		Venues:          registry,
		Resolvers:       resolvers,
		Chain:           chain,
		Redeemer:        redeemer,
		CollateralToken: testCollateral,
		EOAAddress:      testEOA,
		SafeAddress:     safe,
		Contracts: map[string]VenueContracts{
			"predict": {CTF: testCTF, Collateral: testCollateral},
		},
		SettleWait:         time.Millisecond,
		FillPollInterval:   time.Millisecond,
		FillPollTimeout:    50 * time.Millisecond,
		UnwindPollInterval: time.Millisecond,
		UnwindPollTimeout:  5 * time.Millisecond,
		ReliableVenues:     map[string]bool{"predict": true},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testHarness{
		exec:    exec,
		predict: predictVenue,
		opinion: opinionVenue,
		chain:   chain,
		redeem:  redeemer,
		log:     log,
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	registry := venue.NewRegistry()
	chain := testutil.NewMockChainReader()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "nil-config",
			config:  nil,
			wantErr: true,
		},
		{
			name:    "nil-logger",
			config:  &Config{Venues: registry, Chain: chain},
			wantErr: true,
		},
		{
			name:    "nil-venues",
			config:  &Config{Logger: logger, Chain: chain},
			wantErr: true,
		},
		{
			name:    "nil-chain",
			config:  &Config{Logger: logger, Venues: registry},
			wantErr: true,
		},
		{
			name:    "valid",
			config:  &Config{Logger: logger, Venues: registry, Chain: chain},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	exec, err := New(&Config{
		Logger: zaptest.NewLogger(t),
		Venues: venue.NewRegistry(),
		Chain:  testutil.NewMockChainReader(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if exec.cfg.MinTradeSize != 2.0 {
		t.Errorf("MinTradeSize = %f, want 2.0", exec.cfg.MinTradeSize)
	}
	if exec.cfg.FeeBuffer != 1.02 {
		t.Errorf("FeeBuffer = %f, want 1.02", exec.cfg.FeeBuffer)
	}
	if exec.cfg.MaxQuoteAge != 15*time.Second {
		t.Errorf("MaxQuoteAge = %v, want 15s", exec.cfg.MaxQuoteAge)
	}
	if exec.cfg.MarketCooldown != 30*time.Minute {
		t.Errorf("MarketCooldown = %v, want 30m", exec.cfg.MarketCooldown)
	}
	if exec.cfg.ShortCooldown != 5*time.Minute {
		t.Errorf("ShortCooldown = %v, want 5m", exec.cfg.ShortCooldown)
	}
	if len(exec.cfg.DiscountLadder) != 3 {
		t.Errorf("DiscountLadder length = %d, want 3", len(exec.cfg.DiscountLadder))
	}
}

func TestExecuteBestHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.opinion.QueueResult(&venue.PlaceOrderResult{
		Success:   true,
		OrderID:   "o1",
		Status:    "FILLED",
		FilledQty: fptr(22.22),
	}, nil)
	h.predict.QueueResult(&venue.PlaceOrderResult{
		Success:   true,
		OrderID:   "p1",
		Status:    "matched",
		FilledQty: fptr(22.22),
	}, nil)

	opp := testutil.NewTestOpportunity("m1")
	pos, err := h.exec.ExecuteBest(context.Background(), opp, 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil {
		t.Fatal("expected a position")
	}
	if pos.Status != types.PositionFilled {
		t.Fatalf("status = %s, want FILLED", pos.Status)
	}

	// Thin venue first, deep venue second.
	entries := h.log.Snapshot()
	if len(entries) != 2 || entries[0] != "opinion:BUY" || entries[1] != "predict:BUY" {
		t.Errorf("placement order = %v, want [opinion:BUY predict:BUY]", entries)
	}

	if !pos.LegA.Filled || !pos.LegB.Filled {
		t.Errorf("both legs should be filled: A=%v B=%v", pos.LegA.Filled, pos.LegB.Filled)
	}
	if pos.LegA.Platform != "predict" || pos.LegB.Platform != "opinion" {
		t.Errorf("leg platforms = %s/%s", pos.LegA.Platform, pos.LegB.Platform)
	}
	// BuyYesOnA: YES token on A, NO token on B.
	if pos.LegA.TokenID != "111" {
		t.Errorf("leg A token = %s, want 111", pos.LegA.TokenID)
	}
	if pos.LegB.TokenID != "444" {
		t.Errorf("leg B token = %s, want 444", pos.LegB.TokenID)
	}
	if pos.TotalCost != 20 {
		t.Errorf("total cost = %f, want 20", pos.TotalCost)
	}

	// Both placements must be fill-or-kill BUYs.
	for _, p := range h.opinion.PlacedOrders() {
		if !p.FillOrKill || p.Strategy != venue.StrategyFOK {
			t.Errorf("opinion order not FOK: %+v", p)
		}
	}
}

func TestExecuteBestPausedDeclines(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.exec.setPaused(true, "test")

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil || pos != nil {
		t.Fatalf("paused decline: pos=%v err=%v, want nil/nil", pos, err)
	}
	if len(h.opinion.PlacedOrders()) != 0 {
		t.Error("no orders should be placed while paused")
	}
}

func TestExecuteBestCooldownDeclines(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.exec.setCooldown("m1", time.Hour)

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil || pos != nil {
		t.Fatalf("cooldown decline: pos=%v err=%v, want nil/nil", pos, err)
	}

	// A different market is unaffected.
	if h.exec.cooldownActive("m2") {
		t.Error("cooldown must be per-market")
	}
}

func TestExecuteBestQuoteAgeBoundary(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("age-just-over-limit-declines", func(t *testing.T) {
		h := newHarness(t, true)
		h.exec.now = func() time.Time { return now }

		opp := testutil.NewTestOpportunity("m1")
		opp.QuotedAt = now.UnixMilli() - (15*time.Second + time.Millisecond).Milliseconds()

		pos, err := h.exec.ExecuteBest(context.Background(), opp, 10)
		if err != nil || pos != nil {
			t.Fatalf("stale decline: pos=%v err=%v, want nil/nil", pos, err)
		}
		if len(h.opinion.PlacedOrders()) != 0 {
			t.Error("stale quote must not reach placement")
		}
	})

	t.Run("age-exactly-at-limit-proceeds", func(t *testing.T) {
		h := newHarness(t, true)
		h.exec.now = func() time.Time { return now }
		h.opinion.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "o1", FilledQty: fptr(22.22)}, nil)
		h.predict.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "p1", FilledQty: fptr(22.22)}, nil)

		opp := testutil.NewTestOpportunity("m1")
		opp.QuotedAt = now.UnixMilli() - 15*time.Second.Milliseconds()

		pos, err := h.exec.ExecuteBest(context.Background(), opp, 10)
		if err != nil {
			t.Fatalf("ExecuteBest() error: %v", err)
		}
		if pos == nil || pos.Status != types.PositionFilled {
			t.Fatalf("quote aged exactly to the limit should execute, got %v", pos)
		}
	})
}

func TestExecuteBestUnreliableRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	now := time.Now()
	h.exec.now = func() time.Time { return now }
	h.opinion.QueueResult(nil, errors.New("fok rejected"))

	opp := testutil.NewTestOpportunity("m1")
	opp.QuotedAt = now.UnixMilli()
	pos, err := h.exec.ExecuteBest(context.Background(), opp, 10)
	if err != nil || pos != nil {
		t.Fatalf("rejected placement: pos=%v err=%v, want nil/nil", pos, err)
	}

	// Rejections get the long market cooldown, not the short non-fill one.
	if expiry := h.exec.Cooldowns()["m1"]; !expiry.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("cooldown expiry = %v, want %v", expiry, now.Add(30*time.Minute))
	}
	if len(h.predict.PlacedOrders()) != 0 {
		t.Error("reliable leg must not be placed after unreliable rejection")
	}
	if h.exec.Paused() {
		t.Error("a clean rejection must not pause the executor")
	}
}

func TestExecuteBestUnreliableUnfilled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	now := time.Now()
	h.exec.now = func() time.Time { return now }
	// Venue reports an explicit zero fill.
	h.opinion.QueueResult(&venue.PlaceOrderResult{
		Success:   true,
		OrderID:   "o1",
		Status:    "EXPIRED",
		FilledQty: fptr(0),
	}, nil)

	opp := testutil.NewTestOpportunity("m1")
	opp.QuotedAt = now.UnixMilli()
	pos, err := h.exec.ExecuteBest(context.Background(), opp, 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil || pos.Status != types.PositionExpired {
		t.Fatalf("status = %v, want EXPIRED", pos)
	}

	// A clean FOK expiry gets the short cooldown, not the 30-minute one.
	if expiry := h.exec.Cooldowns()["m1"]; !expiry.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("cooldown expiry = %v, want %v", expiry, now.Add(5*time.Minute))
	}
	if len(h.predict.PlacedOrders()) != 0 {
		t.Error("reliable leg must not be placed after an expired FOK")
	}
	if pos.LegB.Filled {
		t.Error("expired leg must not be marked filled")
	}
	if pos.LegB.OrderID != "o1" {
		t.Errorf("expired leg keeps its order id, got %q", pos.LegB.OrderID)
	}
}

func TestExecuteBestReliableRejectedUnwinds(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.opinion.QueueResult(&venue.PlaceOrderResult{
		Success:   true,
		OrderID:   "o1",
		FilledQty: fptr(22.22),
	}, nil)
	// Every unwind SELL is rejected: systematic failure, stay paused.
	h.opinion.QueueResult(&venue.PlaceOrderResult{Success: false, ErrorMsg: "rejected"}, nil)
	h.opinion.Available["444"] = 22.22

	h.predict.QueueResult(&venue.PlaceOrderResult{Success: false, ErrorMsg: "insufficient balance"}, nil)

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil || pos.Status != types.PositionPartial {
		t.Fatalf("status = %v, want PARTIAL", pos)
	}

	if !h.exec.Paused() {
		t.Error("systematic unwind failure must keep the executor paused")
	}
	if !h.exec.cooldownActive("m1") {
		t.Error("partial fill must set the market cooldown")
	}

	// One BUY plus one SELL per ladder rung.
	placed := h.opinion.PlacedOrders()
	if len(placed) != 4 {
		t.Fatalf("opinion placements = %d, want 4", len(placed))
	}
	for _, p := range placed[1:] {
		if p.Side != "SELL" || p.Strategy != venue.StrategyLimit {
			t.Errorf("unwind order must be a limit SELL: %+v", p)
		}
	}
}

func TestExecuteBestVerifiesByBalanceDelta(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)

	// No venue-reported fill quantity on either leg; fills must be read
	// from wallet deltas. First read feeds sizing, second the pre-trade
	// snapshot, third the post-trade verification.
	h.chain.SetBalances(testSafe, testutil.USDTWei(1000), testutil.USDTWei(100), testutil.USDTWei(90))
	h.chain.SetBalances(testEOA, testutil.USDTWei(1000), testutil.USDTWei(100), testutil.USDTWei(89.8))

	h.opinion.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "o1"}, nil)
	h.predict.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "p1"}, nil)

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil || pos.Status != types.PositionFilled {
		t.Fatalf("status = %v, want FILLED", pos)
	}
}

func TestExecuteBestSingleWalletReliableNonFill(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	// Both legs draw from the EOA and neither venue reports a fill
	// quantity. The balance drops 5 USDT when the unreliable leg fills
	// and never moves again: the reliable leg must verify against the
	// mid-trade balance, not the pre-trade snapshot, or its own
	// non-fill hides behind the unreliable spend.
	h.chain.SetBalances(testEOA, testutil.USDTWei(1000), testutil.USDTWei(100), testutil.USDTWei(95))

	h.opinion.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "o1"}, nil)
	h.predict.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "p1"}, nil)

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil || pos.Status != types.PositionPartial {
		t.Fatalf("status = %v, want PARTIAL", pos)
	}
	if !h.exec.Paused() {
		t.Error("naked unreliable leg must pause the executor")
	}
	if !h.exec.cooldownActive("m1") {
		t.Error("partial fill must set the market cooldown")
	}
}

func TestExecuteBestSingleWalletBothLegsFillByDelta(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	// 100 -> 95 covers the unreliable leg, the re-read holds at 95, and
	// 95 -> 90 covers the reliable leg against its fresh baseline.
	h.chain.SetBalances(testEOA,
		testutil.USDTWei(1000),
		testutil.USDTWei(100),
		testutil.USDTWei(95),
		testutil.USDTWei(95),
		testutil.USDTWei(90))

	h.opinion.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "o1"}, nil)
	h.predict.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "p1"}, nil)

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil || pos.Status != types.PositionFilled {
		t.Fatalf("status = %v, want FILLED", pos)
	}
	if h.exec.Paused() {
		t.Error("clean double fill must not pause the executor")
	}
}

func TestExecuteBestUnknownBalanceAsymmetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)

	// The safe balance is unreadable and the venue reports nothing:
	// conservative verification treats the unreliable leg as unfilled.
	h.chain.BalanceErrs[testSafe] = errors.New("rpc down")
	h.opinion.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "o1"}, nil)

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil || pos.Status != types.PositionExpired {
		t.Fatalf("status = %v, want EXPIRED", pos)
	}
	if len(h.predict.PlacedOrders()) != 0 {
		t.Error("reliable leg must not be placed on unverifiable unreliable fill")
	}
}

func TestExecuteBestDryRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.exec.cfg.DryRun = true
	h.opinion.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "o1"}, nil)
	h.predict.QueueResult(&venue.PlaceOrderResult{Success: true, OrderID: "p1"}, nil)

	pos, err := h.exec.ExecuteBest(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if err != nil {
		t.Fatalf("ExecuteBest() error: %v", err)
	}
	if pos == nil || pos.Status != types.PositionFilled {
		t.Fatalf("status = %v, want FILLED", pos)
	}
	if !pos.LegA.Filled || !pos.LegB.Filled {
		t.Error("dry run marks both legs filled")
	}
}

func TestExecuteBestMalformedOpportunity(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)

	if _, err := h.exec.ExecuteBest(context.Background(), nil, 10); err == nil {
		t.Error("nil opportunity must error")
	}

	opp := testutil.NewTestOpportunity("m1")
	opp.YesPriceA = nil
	if _, err := h.exec.ExecuteBest(context.Background(), opp, 10); err == nil {
		t.Error("nil price must error")
	}
}

func TestExpectedPayout(t *testing.T) {
	t.Parallel()

	a := &types.ClobLeg{Price: 0.45, Size: 10} // 22.22 shares
	b := &types.ClobLeg{Price: 0.50, Size: 10} // 20 shares

	got := expectedPayout(a, b)
	if got != 20 {
		t.Errorf("expectedPayout = %f, want 20 (bounded by the smaller share count)", got)
	}
}
