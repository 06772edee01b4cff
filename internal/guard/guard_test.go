package guard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/crossmarket-arb/internal/guard"
	"github.com/mselser95/crossmarket-arb/internal/testutil"
)

var (
	guardToken = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	guardEOA   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	guardSafe  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newGuard(t *testing.T, chain guard.BalanceReader, owners ...common.Address) *guard.BalanceGuard {
	t.Helper()

	g, err := guard.New(&guard.Config{
		CheckInterval:   time.Second,
		TradeMultiplier: 2.0,
		MinAbsolute:     10.0,
		HysteresisRatio: 2.0,
		Chain:           chain,
		Token:           guardToken,
		Owners:          owners,
		Logger:          zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("guard.New() error: %v", err)
	}
	return g
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	chain := testutil.NewMockChainReader()
	owners := []common.Address{guardEOA}

	tests := []struct {
		name    string
		config  *guard.Config
		wantErr bool
	}{
		{
			name:    "nil-config",
			config:  nil,
			wantErr: true,
		},
		{
			name: "nil-chain",
			config: &guard.Config{
				CheckInterval: time.Second, TradeMultiplier: 2, MinAbsolute: 10,
				HysteresisRatio: 2, Owners: owners, Logger: logger,
			},
			wantErr: true,
		},
		{
			name: "nil-logger",
			config: &guard.Config{
				CheckInterval: time.Second, TradeMultiplier: 2, MinAbsolute: 10,
				HysteresisRatio: 2, Chain: chain, Owners: owners,
			},
			wantErr: true,
		},
		{
			name: "no-owners",
			config: &guard.Config{
				CheckInterval: time.Second, TradeMultiplier: 2, MinAbsolute: 10,
				HysteresisRatio: 2, Chain: chain, Logger: logger,
			},
			wantErr: true,
		},
		{
			name: "zero-check-interval",
			config: &guard.Config{
				TradeMultiplier: 2, MinAbsolute: 10,
				HysteresisRatio: 2, Chain: chain, Owners: owners, Logger: logger,
			},
			wantErr: true,
		},
		{
			name: "hysteresis-below-one",
			config: &guard.Config{
				CheckInterval: time.Second, TradeMultiplier: 2, MinAbsolute: 10,
				HysteresisRatio: 0.5, Chain: chain, Owners: owners, Logger: logger,
			},
			wantErr: true,
		},
		{
			name: "valid",
			config: &guard.Config{
				CheckInterval: time.Second, TradeMultiplier: 2, MinAbsolute: 10,
				HysteresisRatio: 2, Chain: chain, Owners: owners, Logger: logger,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guard.New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckBalanceDisablesAndReenables(t *testing.T) {
	t.Parallel()

	chain := testutil.NewMockChainReader()
	g := newGuard(t, chain, guardEOA)
	ctx := context.Background()

	if !g.IsEnabled() {
		t.Fatal("guard must start enabled")
	}

	// Below the 10 USDT floor: disable.
	chain.SetBalances(guardEOA, testutil.USDTWei(5))
	if err := g.CheckBalance(ctx); err != nil {
		t.Fatalf("CheckBalance() error: %v", err)
	}
	if g.IsEnabled() {
		t.Fatal("guard must disable below the threshold")
	}

	// Between disable (10) and enable (20): hysteresis holds it off.
	chain.SetBalances(guardEOA, testutil.USDTWei(15))
	if err := g.CheckBalance(ctx); err != nil {
		t.Fatalf("CheckBalance() error: %v", err)
	}
	if g.IsEnabled() {
		t.Fatal("guard must stay disabled inside the hysteresis band")
	}

	// At the enable threshold: back on.
	chain.SetBalances(guardEOA, testutil.USDTWei(20))
	if err := g.CheckBalance(ctx); err != nil {
		t.Fatalf("CheckBalance() error: %v", err)
	}
	if !g.IsEnabled() {
		t.Fatal("guard must re-enable at the enable threshold")
	}
}

func TestCheckBalanceSumsOwners(t *testing.T) {
	t.Parallel()

	chain := testutil.NewMockChainReader()
	chain.SetBalances(guardEOA, testutil.USDTWei(6))
	chain.SetBalances(guardSafe, testutil.USDTWei(6))

	g := newGuard(t, chain, guardEOA, guardSafe)
	if err := g.CheckBalance(context.Background()); err != nil {
		t.Fatalf("CheckBalance() error: %v", err)
	}

	// 6 + 6 = 12 clears the 10 USDT floor even though each wallet alone
	// would not.
	if !g.IsEnabled() {
		t.Error("guard must sum all owner balances")
	}
	if got := g.GetStatus().LastBalance; got != 12 {
		t.Errorf("LastBalance = %f, want 12", got)
	}
}

func TestCheckBalanceReadError(t *testing.T) {
	t.Parallel()

	chain := testutil.NewMockChainReader()
	chain.BalanceErrs[guardEOA] = errors.New("rpc down")

	g := newGuard(t, chain, guardEOA)
	if err := g.CheckBalance(context.Background()); err == nil {
		t.Fatal("expected read error")
	}
	if !g.IsEnabled() {
		t.Error("a failed check must not flip the guard state")
	}
}

func TestRecordTradeRaisesThresholds(t *testing.T) {
	t.Parallel()

	chain := testutil.NewMockChainReader()
	g := newGuard(t, chain, guardEOA)

	// Average trade 20 USDT, multiplier 2: disable at 40, enable at 80.
	g.RecordTrade(20)

	status := g.GetStatus()
	if status.DisableThreshold != 40 {
		t.Errorf("DisableThreshold = %f, want 40", status.DisableThreshold)
	}
	if status.EnableThreshold != 80 {
		t.Errorf("EnableThreshold = %f, want 80", status.EnableThreshold)
	}
	if status.RecentTradeCount != 1 || status.AvgTradeSize != 20 {
		t.Errorf("trade stats = %+v", status)
	}

	// 30 USDT is above the absolute floor but below the adaptive one.
	chain.SetBalances(guardEOA, testutil.USDTWei(30))
	if err := g.CheckBalance(context.Background()); err != nil {
		t.Fatalf("CheckBalance() error: %v", err)
	}
	if g.IsEnabled() {
		t.Error("adaptive threshold must override the absolute floor")
	}
}

func TestRecordTradeFloorsAtMinAbsolute(t *testing.T) {
	t.Parallel()

	g := newGuard(t, testutil.NewMockChainReader(), guardEOA)

	// Tiny trades must not drop the threshold below the floor.
	g.RecordTrade(1)

	if got := g.GetStatus().DisableThreshold; got != 10 {
		t.Errorf("DisableThreshold = %f, want the 10 USDT floor", got)
	}
}

func TestRecordTradeIgnoresInvalid(t *testing.T) {
	t.Parallel()

	g := newGuard(t, testutil.NewMockChainReader(), guardEOA)
	g.RecordTrade(0)
	g.RecordTrade(-5)

	if got := g.GetStatus().RecentTradeCount; got != 0 {
		t.Errorf("RecentTradeCount = %d, want 0", got)
	}
}

func TestRecordTradeWindowSlides(t *testing.T) {
	t.Parallel()

	g := newGuard(t, testutil.NewMockChainReader(), guardEOA)

	// One large outlier followed by a full window of small trades: the
	// outlier must age out.
	g.RecordTrade(1000)
	for i := 0; i < 20; i++ {
		g.RecordTrade(10)
	}

	status := g.GetStatus()
	if status.RecentTradeCount != 20 {
		t.Errorf("RecentTradeCount = %d, want the window size", status.RecentTradeCount)
	}
	if status.AvgTradeSize != 10 {
		t.Errorf("AvgTradeSize = %f, want 10 once the outlier ages out", status.AvgTradeSize)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	chain := testutil.NewMockChainReader()
	chain.SetBalances(guardEOA, testutil.USDTWei(100))

	g, err := guard.New(&guard.Config{
		CheckInterval:   time.Millisecond,
		TradeMultiplier: 2.0,
		MinAbsolute:     10.0,
		HysteresisRatio: 2.0,
		Chain:           chain,
		Token:           guardToken,
		Owners:          []common.Address{guardEOA},
		Logger:          zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("guard.New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	if !g.IsEnabled() {
		t.Error("well-funded wallet must keep the guard enabled")
	}
}
