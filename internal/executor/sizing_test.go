package executor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mselser95/crossmarket-arb/internal/testutil"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSizeTradeSeparateWallets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	size, ok := h.exec.sizeTrade(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if !ok || size != 10 {
		t.Errorf("size = %f ok=%v, want 10 true (each wallet carries a full leg)", size, ok)
	}
}

func TestSizeTradeSingleWalletSplits(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	size, ok := h.exec.sizeTrade(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if !ok || size != 5 {
		t.Errorf("size = %f ok=%v, want 5 true (both legs share the EOA)", size, ok)
	}
}

func TestSizeTradeLiquidityCap(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	opp := testutil.NewTestOpportunity("m1")
	opp.LiquidityA = testutil.USDTMicro(5)

	size, ok := h.exec.sizeTrade(context.Background(), opp, 10)
	if !ok || !almostEqual(size, 4.5) {
		t.Errorf("size = %f ok=%v, want 4.5 true (90%% of the thinner book)", size, ok)
	}
}

func TestSizeTradeEOACapBelowMinimum(t *testing.T) {
	t.Parallel()

	// 2 USDT in the EOA leaves 2/1.02 after the fee buffer, just short of
	// the 2 USDT minimum.
	h := newHarness(t, true)
	h.chain.SetBalances(testEOA, testutil.USDTWei(2))

	size, ok := h.exec.sizeTrade(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if ok {
		t.Errorf("size = %f ok=true, want declined", size)
	}
}

func TestSizeTradeSingleWalletBalanceCap(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.chain.SetBalances(testEOA, testutil.USDTWei(6))

	size, ok := h.exec.sizeTrade(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	want := 5.88235294 / 2
	if !ok || !almostEqual(size, want) {
		t.Errorf("size = %f ok=%v, want %f true", size, ok, want)
	}
}

func TestSizeTradeSafeBalanceCap(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.chain.SetBalances(testSafe, testutil.USDTWei(3))

	size, ok := h.exec.sizeTrade(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if !ok || !almostEqual(size, 2.94117647) {
		t.Errorf("size = %f ok=%v, want 2.94117647 true", size, ok)
	}
}

func TestSizeTradeBalanceReadFailureSkipsCap(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.chain.BalanceErrs[testEOA] = errors.New("rpc down")

	size, ok := h.exec.sizeTrade(context.Background(), testutil.NewTestOpportunity("m1"), 10)
	if !ok || size != 10 {
		t.Errorf("size = %f ok=%v, want 10 true (unreadable balance must not shrink the trade)", size, ok)
	}
}
