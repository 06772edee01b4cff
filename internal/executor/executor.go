// Package executor is the execution core of the cross-venue arbitrage
// agent. Given a detected opportunity it sizes the trade, places the two
// BUY legs sequentially (thin-liquidity venue first), verifies fills via
// on-chain balance deltas, unwinds naked legs at a bounded loss, and
// enforces per-market cooldowns plus a global pause gate.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/internal/markets"
	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/pkg/numeric"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// ChainReader exposes the on-chain reads the executor needs.
type ChainReader interface {
	// ReadBalance returns an ERC-20 balance in 18-decimal units.
	ReadBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)

	// PayoutDenominator returns the CTF payout denominator for a
	// condition; nonzero means the market is resolved.
	PayoutDenominator(ctx context.Context, ctf common.Address, conditionID common.Hash) (*big.Int, error)

	// BalanceOf1155 returns the CTF outcome-token balance for an owner.
	BalanceOf1155(ctx context.Context, ctf, owner common.Address, tokenID *big.Int) (*big.Int, error)
}

// Redeemer submits redeemPositions transactions.
type Redeemer interface {
	RedeemPositions(ctx context.Context, ctf, collateral common.Address, conditionID common.Hash, indexSets []*big.Int) error
}

// VenueContracts holds the per-venue on-chain addresses used by the
// redeemer.
type VenueContracts struct {
	CTF        common.Address
	Collateral common.Address
}

// Config holds executor configuration and injected collaborators.
type Config struct {
	Logger    *zap.Logger
	Venues    *venue.Registry
	Resolvers map[string]markets.Resolver
	Chain     ChainReader
	Redeemer  Redeemer

	// CollateralToken is the 18-decimal USDT token on the chain in use.
	CollateralToken common.Address
	// EOAAddress funds the reliable leg.
	EOAAddress common.Address
	// SafeAddress funds the unreliable leg when that venue trades from a
	// smart account. Zero means both legs draw from the EOA.
	SafeAddress common.Address
	// Contracts maps venue names to their CTF deployment.
	Contracts map[string]VenueContracts

	DryRun             bool
	MinTradeSize       float64       // USDT, default 2
	FeeBuffer          float64       // default 1.02
	MaxQuoteAge        time.Duration // default 15s
	MarketCooldown     time.Duration // default 30m, placement rejections
	ShortCooldown      time.Duration // default 5m, FOK non-fills
	SettleWait         time.Duration // default 3s, post-placement wait
	FillPollInterval   time.Duration
	FillPollTimeout    time.Duration
	UnwindPollInterval time.Duration // default 10s
	UnwindPollTimeout  time.Duration // default 5m
	DiscountLadder     []float64     // default 5%, 10%, 20%
	ReliableVenues     map[string]bool

	// InitialCooldowns restores the cooldown map from persistence.
	InitialCooldowns map[string]time.Time
}

// Executor coordinates the two venue legs of an arbitrage trade.
//
// A single instance assumes a sequential caller: the scan loop invokes
// ExecuteBest one opportunity at a time. paused and cooldowns are the
// only mutable shared state and sit behind the mutex.
type Executor struct {
	logger    *zap.Logger
	venues    *venue.Registry
	resolvers map[string]markets.Resolver
	chain     ChainReader
	redeemer  Redeemer

	collateral common.Address
	eoa        common.Address
	safe       common.Address
	contracts  map[string]VenueContracts

	cfg Config
	now func() time.Time

	mu        sync.Mutex
	paused    bool
	cooldowns map[string]time.Time
}

// New creates the executor. Nil collaborators are programmer errors.
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Venues == nil {
		return nil, errors.New("venue registry cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, errors.New("chain reader cannot be nil")
	}

	c := *cfg
	if c.MinTradeSize <= 0 {
		c.MinTradeSize = 2.0
	}
	if c.FeeBuffer <= 0 {
		c.FeeBuffer = 1.02
	}
	if c.MaxQuoteAge <= 0 {
		c.MaxQuoteAge = 15 * time.Second
	}
	if c.MarketCooldown <= 0 {
		c.MarketCooldown = 30 * time.Minute
	}
	if c.ShortCooldown <= 0 {
		c.ShortCooldown = 5 * time.Minute
	}
	if c.SettleWait <= 0 {
		c.SettleWait = 3 * time.Second
	}
	if c.FillPollInterval <= 0 {
		c.FillPollInterval = 2 * time.Second
	}
	if c.FillPollTimeout <= 0 {
		c.FillPollTimeout = time.Minute
	}
	if c.UnwindPollInterval <= 0 {
		c.UnwindPollInterval = 10 * time.Second
	}
	if c.UnwindPollTimeout <= 0 {
		c.UnwindPollTimeout = 5 * time.Minute
	}
	if len(c.DiscountLadder) == 0 {
		c.DiscountLadder = []float64{0.05, 0.10, 0.20}
	}

	cooldowns := make(map[string]time.Time, len(c.InitialCooldowns))
	for market, expiry := range c.InitialCooldowns {
		cooldowns[market] = expiry
	}

	return &Executor{
		logger:     c.Logger,
		venues:     c.Venues,
		resolvers:  c.Resolvers,
		chain:      c.Chain,
		redeemer:   c.Redeemer,
		collateral: c.CollateralToken,
		eoa:        c.EOAAddress,
		safe:       c.SafeAddress,
		contracts:  c.Contracts,
		cfg:        c,
		now:        time.Now,
		cooldowns:  cooldowns,
	}, nil
}

// leg pairs a venue client with the order it will carry.
type legPlan struct {
	client   venue.Client
	meta     *types.MarketMeta
	leg      types.ClobLeg
	reliable bool
	useSafe  bool
}

// ExecuteBest attempts to execute one arbitrage opportunity. It returns
// a position describing the outcome, or (nil, nil) when the opportunity
// is declined at pre-flight with no side effects that need unwinding.
func (e *Executor) ExecuteBest(ctx context.Context, opp *types.ArbitOpportunity, maxPositionSize float64) (*types.ClobPosition, error) {
	if opp == nil {
		return nil, errors.New("opportunity cannot be nil")
	}
	if opp.YesPriceA == nil || opp.NoPriceB == nil || opp.YesPriceA.Sign() <= 0 || opp.NoPriceB.Sign() <= 0 {
		return nil, fmt.Errorf("malformed opportunity %s: zero price", opp.MarketID)
	}

	start := e.now()
	defer func() {
		ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	// Pre-flight gates, cheapest first. Any failure declines silently.
	if e.Paused() {
		e.decline(opp, "paused")
		return nil, nil
	}
	if e.cooldownActive(opp.MarketID) {
		e.decline(opp, "cooldown")
		return nil, nil
	}
	if age := e.now().UnixMilli() - opp.QuotedAt; age > e.cfg.MaxQuoteAge.Milliseconds() {
		e.logger.Debug("quote-stale",
			zap.String("market-id", opp.MarketID),
			zap.Int64("age-ms", age))
		e.decline(opp, "stale-quote")
		return nil, nil
	}

	clientA, okA := e.venues.Get(opp.ProtocolA)
	clientB, okB := e.venues.Get(opp.ProtocolB)
	if !okA || !okB {
		e.logger.Warn("venue-client-missing",
			zap.String("protocol-a", opp.ProtocolA),
			zap.String("protocol-b", opp.ProtocolB))
		e.decline(opp, "no-client")
		return nil, nil
	}

	metaA, err := e.resolveMeta(ctx, opp.ProtocolA, opp.MarketID)
	if err != nil {
		e.decline(opp, "no-meta")
		return nil, nil
	}
	metaB, err := e.resolveMeta(ctx, opp.ProtocolB, opp.MarketID)
	if err != nil {
		e.decline(opp, "no-meta")
		return nil, nil
	}

	size, ok := e.sizeTrade(ctx, opp, maxPositionSize)
	if !ok {
		e.decline(opp, "size-below-min")
		return nil, nil
	}

	tokenA := metaA.TokenID(opp.BuyYesOnA)
	tokenB := metaB.TokenID(!opp.BuyYesOnA)

	// Audit trail for cross-venue token mismatches.
	e.logger.Info("legs-resolved",
		zap.String("market-id", opp.MarketID),
		zap.String("venue-a", opp.ProtocolA),
		zap.String("condition-a", metaA.ConditionID),
		zap.String("token-a", tokenA),
		zap.String("venue-b", opp.ProtocolB),
		zap.String("condition-b", metaB.ConditionID),
		zap.String("token-b", tokenB),
		zap.Float64("size-per-leg", size))

	planA := &legPlan{
		client:   clientA,
		meta:     metaA,
		reliable: e.cfg.ReliableVenues[opp.ProtocolA],
		leg: types.ClobLeg{
			Platform: opp.ProtocolA,
			TokenID:  tokenA,
			Side:     types.SideBuy,
			Price:    numeric.PriceToFloat(opp.YesPriceA),
			Size:     size,
		},
	}
	planB := &legPlan{
		client:   clientB,
		meta:     metaB,
		reliable: e.cfg.ReliableVenues[opp.ProtocolB],
		leg: types.ClobLeg{
			Platform: opp.ProtocolB,
			TokenID:  tokenB,
			Side:     types.SideBuy,
			Price:    numeric.PriceToFloat(opp.NoPriceB),
			Size:     size,
		},
	}

	// The deep-liquidity venue is "reliable"; the other leg goes first
	// because its FOK expiries are the dominant failure mode.
	unreliable, reliable := planB, planA
	if planB.reliable && !planA.reliable {
		unreliable, reliable = planA, planB
	}
	unreliable.useSafe = e.separateWallets()

	pos := &types.ClobPosition{
		ID:             uuid.NewString(),
		MarketID:       opp.MarketID,
		Status:         types.PositionOpen,
		SpreadBps:      opp.SpreadBps,
		TotalCost:      planA.leg.Size + planB.leg.Size,
		ExpectedPayout: expectedPayout(&planA.leg, &planB.leg),
		OpenedAt:       e.now(),
	}

	if e.cfg.DryRun {
		return e.executeDryRun(ctx, pos, planA, planB)
	}

	return e.executeLive(ctx, pos, unreliable, reliable, planA, planB)
}

// executeDryRun places both orders without balance verification and
// reports the position as filled.
func (e *Executor) executeDryRun(ctx context.Context, pos *types.ClobPosition, planA, planB *legPlan) (*types.ClobPosition, error) {
	for _, plan := range []*legPlan{planA, planB} {
		res, err := plan.client.PlaceOrder(ctx, buyParams(&plan.leg, pos.MarketID))
		if err != nil {
			e.logger.Warn("dry-run-place-order-failed",
				zap.String("venue", plan.client.Name()),
				zap.Error(err))
			continue
		}
		plan.leg.OrderID = res.OrderID
		plan.leg.Filled = true
		plan.leg.FilledSize = plan.leg.Size
	}

	pos.LegA = planA.leg
	pos.LegB = planB.leg
	pos.Status = types.PositionFilled

	ExecutionsTotal.WithLabelValues("dry-run", string(pos.Status)).Inc()
	e.logger.Info("dry-run-executed",
		zap.String("position-id", pos.ID),
		zap.String("market-id", pos.MarketID))
	return pos, nil
}

// executeLive runs the sequential two-leg placement: unreliable leg
// first, fill verification, then the reliable leg. A filled leg never
// leaves this function without either a placed second leg or a launched
// unwind.
func (e *Executor) executeLive(ctx context.Context, pos *types.ClobPosition, unreliable, reliable, planA, planB *legPlan) (*types.ClobPosition, error) {
	pre := e.snapshotBalances(ctx)

	res, err := unreliable.client.PlaceOrder(ctx, buyParams(&unreliable.leg, pos.MarketID))
	if err != nil || !res.Success {
		// FOK rejections on the thin venue strongly predict recurrence.
		e.setCooldown(pos.MarketID, e.cfg.MarketCooldown)
		e.logger.Warn("unreliable-leg-rejected",
			zap.String("market-id", pos.MarketID),
			zap.String("venue", unreliable.client.Name()),
			zap.Error(err),
			zap.String("venue-error", resultError(res)))
		e.decline(nil, "placement-rejected")
		return nil, nil
	}
	unreliable.leg.OrderID = res.OrderID

	if err := sleepCtx(ctx, e.cfg.SettleWait); err != nil && ctx.Err() != nil {
		// Shutdown mid-trade: verify with what we have, no extra wait.
		e.logger.Warn("settle-wait-cancelled", zap.String("position-id", pos.ID))
	}

	if !e.verifyLegFill(ctx, res, pre, &unreliable.leg, unreliable.useSafe, false) {
		// FOK expiries may be transient, so the short cooldown applies.
		e.setCooldown(pos.MarketID, e.cfg.ShortCooldown)
		pos.LegA = planA.leg
		pos.LegB = planB.leg
		pos.Status = types.PositionExpired
		ExecutionsTotal.WithLabelValues("live", string(pos.Status)).Inc()
		e.logger.Info("unreliable-leg-expired",
			zap.String("position-id", pos.ID),
			zap.String("market-id", pos.MarketID),
			zap.String("venue", unreliable.client.Name()))
		return pos, nil
	}
	unreliable.leg.Filled = true
	unreliable.leg.FilledSize = filledSize(res, &unreliable.leg)

	// Single wallet: the unreliable spend already sits in the EOA
	// balance, so the reliable leg gets a fresh baseline.
	if !unreliable.useSafe {
		e.rebaselineEOA(ctx, pre)
	}

	res2, err := reliable.client.PlaceOrder(ctx, buyParams(&reliable.leg, pos.MarketID))
	if err != nil || !res2.Success {
		e.logger.Error("reliable-leg-rejected-after-fill",
			zap.String("position-id", pos.ID),
			zap.String("venue", reliable.client.Name()),
			zap.Error(err),
			zap.String("venue-error", resultError(res2)))
		return e.finishPartial(ctx, pos, unreliable, planA, planB), nil
	}
	reliable.leg.OrderID = res2.OrderID

	if err := sleepCtx(ctx, e.cfg.SettleWait); err != nil && ctx.Err() != nil {
		e.logger.Warn("settle-wait-cancelled", zap.String("position-id", pos.ID))
	}

	// Reliable venue verification is optimistic: an unreadable balance
	// assumes the fill happened.
	if !e.verifyLegFill(ctx, res2, pre, &reliable.leg, false, true) {
		e.logger.Error("reliable-leg-unfilled-after-placement",
			zap.String("position-id", pos.ID),
			zap.String("order-id", reliable.leg.OrderID))
		return e.finishPartial(ctx, pos, unreliable, planA, planB), nil
	}
	reliable.leg.Filled = true
	reliable.leg.FilledSize = reliable.leg.Size

	pos.LegA = planA.leg
	pos.LegB = planB.leg
	pos.Status = types.PositionFilled
	ExecutionsTotal.WithLabelValues("live", string(pos.Status)).Inc()
	e.logger.Info("position-filled",
		zap.String("position-id", pos.ID),
		zap.String("market-id", pos.MarketID),
		zap.Float64("total-cost", pos.TotalCost),
		zap.Float64("expected-payout", pos.ExpectedPayout))
	return pos, nil
}

// finishPartial records the naked-leg outcome: pause before launching
// the unwind so no re-entry can slip through while it runs.
func (e *Executor) finishPartial(ctx context.Context, pos *types.ClobPosition, filled *legPlan, planA, planB *legPlan) *types.ClobPosition {
	e.setPaused(true, "partial-fill")
	e.setCooldown(pos.MarketID, e.cfg.MarketCooldown)

	pos.LegA = planA.leg
	pos.LegB = planB.leg
	pos.Status = types.PositionPartial
	ExecutionsTotal.WithLabelValues("live", string(pos.Status)).Inc()

	e.unwindLeg(ctx, filled.client, &filled.leg)
	return pos
}

func (e *Executor) resolveMeta(ctx context.Context, protocol, marketID string) (*types.MarketMeta, error) {
	resolver, ok := e.resolvers[protocol]
	if !ok {
		e.logger.Warn("no-meta-resolver", zap.String("protocol", protocol))
		return nil, fmt.Errorf("no resolver for %s", protocol)
	}
	meta, err := resolver.GetMarketMeta(ctx, marketID)
	if err != nil {
		e.logger.Warn("meta-resolution-failed",
			zap.String("protocol", protocol),
			zap.String("market-id", marketID),
			zap.Error(err))
		return nil, err
	}
	return meta, nil
}

func (e *Executor) separateWallets() bool {
	return e.safe != (common.Address{}) && e.safe != e.eoa
}

// walletFor returns the funding address for a venue's leg.
func (e *Executor) walletFor(protocol string) common.Address {
	if !e.cfg.ReliableVenues[protocol] && e.separateWallets() {
		return e.safe
	}
	return e.eoa
}

func (e *Executor) decline(opp *types.ArbitOpportunity, reason string) {
	DeclinesTotal.WithLabelValues(reason).Inc()
	if opp != nil {
		e.logger.Debug("opportunity-declined",
			zap.String("market-id", opp.MarketID),
			zap.String("reason", reason))
	}
}

func buyParams(leg *types.ClobLeg, marketID string) *venue.PlaceOrderParams {
	return &venue.PlaceOrderParams{
		TokenID:    leg.TokenID,
		Side:       string(leg.Side),
		Price:      leg.Price,
		Size:       leg.Size,
		MarketID:   marketID,
		Strategy:   venue.StrategyFOK,
		FillOrKill: true,
	}
}

// expectedPayout is the USDT payout at resolution: matched YES/NO share
// pairs pay one unit each, so the smaller share count bounds it.
func expectedPayout(a, b *types.ClobLeg) float64 {
	sharesA := a.Size / a.Price
	sharesB := b.Size / b.Price
	if sharesA < sharesB {
		return sharesA
	}
	return sharesB
}

func filledSize(res *venue.PlaceOrderResult, leg *types.ClobLeg) float64 {
	if res != nil && res.FilledQty != nil {
		return numeric.RoundTo(*res.FilledQty*leg.Price, 8)
	}
	return leg.Size
}

func resultError(res *venue.PlaceOrderResult) string {
	if res == nil {
		return ""
	}
	return res.ErrorMsg
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
