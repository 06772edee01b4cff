// Package quotes streams arbitrage candidates from the detector feed.
// A websocket connection with exponential-backoff reconnect is the
// primary source; an HTTP snapshot endpoint seeds the stream on connect
// so the executor does not sit idle waiting for the first push.
package quotes

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// Feed manages the detector stream and emits opportunities on a channel.
type Feed struct {
	url           string
	snapshotURL   string
	conn          *websocket.Conn
	http          *resty.Client
	logger        *zap.Logger
	reconnectMgr  *reconnectManager
	config        Config
	opportunities chan *types.ArbitOpportunity
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.RWMutex
	connected     atomic.Bool
	lastPongTime  atomic.Int64
}

// Config holds quote feed configuration.
type Config struct {
	URL                   string
	SnapshotURL           string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	BufferSize            int
	Logger                *zap.Logger
}

// New creates a new quote feed.
func New(cfg Config) *Feed {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	var http *resty.Client
	if cfg.SnapshotURL != "" {
		http = resty.New().SetTimeout(10 * time.Second)
	}

	return &Feed{
		url:           cfg.URL,
		snapshotURL:   cfg.SnapshotURL,
		http:          http,
		logger:        cfg.Logger,
		reconnectMgr:  newReconnectManager(reconnectCfg, cfg.Logger),
		config:        cfg,
		opportunities: make(chan *types.ArbitOpportunity, cfg.BufferSize),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Opportunities returns the channel opportunities are delivered on.
func (f *Feed) Opportunities() <-chan *types.ArbitOpportunity {
	return f.opportunities
}

// IsConnected reports whether the websocket is currently up.
func (f *Feed) IsConnected() bool {
	return f.connected.Load()
}

// Start connects and begins streaming.
func (f *Feed) Start() error {
	f.logger.Info("quote-feed-starting", zap.String("url", f.url))

	err := f.connect(f.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	f.wg.Add(3)
	go f.readLoop()
	go f.pingLoop()
	go f.reconnectLoop()

	if f.http != nil {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.seedFromSnapshot(f.ctx)
		}()
	}

	return nil
}

// Stop closes the connection and drains the goroutines.
func (f *Feed) Stop() {
	f.cancel()

	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()

	f.wg.Wait()
	close(f.opportunities)
	f.logger.Info("quote-feed-stopped")
}

// connect establishes the websocket connection.
func (f *Feed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: f.config.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		f.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.connected.Store(true)
	f.lastPongTime.Store(time.Now().Unix())
	FeedConnected.Set(1)

	f.logger.Info("quote-feed-connected")
	return nil
}

// quoteMessage is the detector wire format. Fixed-point fields arrive
// as decimal strings.
type quoteMessage struct {
	MarketID   string `json:"marketId"`
	ProtocolA  string `json:"protocolA"`
	ProtocolB  string `json:"protocolB"`
	BuyYesOnA  bool   `json:"buyYesOnA"`
	YesPriceA  string `json:"yesPriceA"`  // 18-dec fixed point
	NoPriceB   string `json:"noPriceB"`   // 18-dec fixed point
	LiquidityA string `json:"liquidityA"` // 6-dec USDT
	LiquidityB string `json:"liquidityB"` // 6-dec USDT
	QuotedAt   int64  `json:"quotedAt"`   // unix ms
}

var oneE18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// toOpportunity validates a wire message and computes the derived
// fields the detector leaves implicit.
func (m *quoteMessage) toOpportunity() (*types.ArbitOpportunity, error) {
	yesPrice, ok := new(big.Int).SetString(m.YesPriceA, 10)
	if !ok {
		return nil, fmt.Errorf("bad yesPriceA %q", m.YesPriceA)
	}
	noPrice, ok := new(big.Int).SetString(m.NoPriceB, 10)
	if !ok {
		return nil, fmt.Errorf("bad noPriceB %q", m.NoPriceB)
	}
	liqA, ok := new(big.Int).SetString(m.LiquidityA, 10)
	if !ok {
		return nil, fmt.Errorf("bad liquidityA %q", m.LiquidityA)
	}
	liqB, ok := new(big.Int).SetString(m.LiquidityB, 10)
	if !ok {
		return nil, fmt.Errorf("bad liquidityB %q", m.LiquidityB)
	}

	totalCost := new(big.Int).Add(yesPrice, noPrice)
	if totalCost.Cmp(oneE18) >= 0 {
		return nil, fmt.Errorf("total cost %s not below payout", totalCost)
	}
	estProfit := new(big.Int).Sub(oneE18, totalCost)

	// spread in bps, rounded down
	spread := decimal.NewFromBigInt(estProfit, 0).
		Mul(decimal.NewFromInt(10000)).
		Div(decimal.NewFromBigInt(oneE18, 0))

	return &types.ArbitOpportunity{
		MarketID:   m.MarketID,
		ProtocolA:  m.ProtocolA,
		ProtocolB:  m.ProtocolB,
		BuyYesOnA:  m.BuyYesOnA,
		YesPriceA:  yesPrice,
		NoPriceB:   noPrice,
		TotalCost:  totalCost,
		EstProfit:  estProfit,
		SpreadBps:  int(spread.IntPart()),
		LiquidityA: liqA,
		LiquidityB: liqB,
		QuotedAt:   m.QuotedAt,
	}, nil
}

// readLoop reads messages from the websocket.
func (f *Feed) readLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.ctx.Err() != nil {
				return
			}
			f.logger.Warn("read-error", zap.Error(err))
			f.connected.Store(false)
			FeedConnected.Set(0)
			continue
		}

		f.dispatch(message)
	}
}

// dispatch parses one wire message and forwards the opportunity.
func (f *Feed) dispatch(message []byte) {
	var msg quoteMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		// Heartbeats and control frames are short and not quote-shaped.
		if len(message) < 10 {
			return
		}
		f.logger.Debug("unparseable-message",
			zap.Error(err),
			zap.Int("bytes", len(message)))
		return
	}
	if msg.MarketID == "" {
		return
	}

	opp, err := msg.toOpportunity()
	if err != nil {
		f.logger.Warn("invalid-quote", zap.Error(err),
			zap.String("market-id", msg.MarketID))
		QuotesRejectedTotal.Inc()
		return
	}

	QuotesReceivedTotal.Inc()

	select {
	case f.opportunities <- opp:
	default:
		QuotesDroppedTotal.Inc()
		f.logger.Warn("opportunity-dropped",
			zap.String("market-id", opp.MarketID))
	}
}

// seedFromSnapshot fetches the current candidate set over HTTP once, so
// a freshly started agent sees standing opportunities immediately.
func (f *Feed) seedFromSnapshot(ctx context.Context) {
	var msgs []quoteMessage
	resp, err := f.http.R().
		SetContext(ctx).
		SetResult(&msgs).
		Get(f.snapshotURL)
	if err != nil {
		f.logger.Warn("snapshot-fetch-failed", zap.Error(err))
		return
	}
	if resp.IsError() {
		f.logger.Warn("snapshot-fetch-failed",
			zap.Int("status", resp.StatusCode()))
		return
	}

	for i := range msgs {
		raw, err := json.Marshal(&msgs[i])
		if err != nil {
			continue
		}
		f.dispatch(raw)
	}

	f.logger.Info("snapshot-seeded", zap.Int("count", len(msgs)))
}

// pingLoop keeps the connection alive and detects stale pongs.
func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()

			if conn == nil || !f.connected.Load() {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			if err != nil {
				f.logger.Warn("ping-failed", zap.Error(err))
				f.connected.Store(false)
				FeedConnected.Set(0)
				continue
			}

			lastPong := time.Unix(f.lastPongTime.Load(), 0)
			if time.Since(lastPong) > f.config.PongTimeout {
				f.logger.Warn("pong-timeout",
					zap.Time("last-pong", lastPong))
				f.connected.Store(false)
				FeedConnected.Set(0)
				conn.Close()
			}
		}
	}
}

// reconnectLoop watches the connected flag and redials on loss.
func (f *Feed) reconnectLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			if f.connected.Load() {
				continue
			}

			f.mu.Lock()
			if f.conn != nil {
				f.conn.Close()
				f.conn = nil
			}
			f.mu.Unlock()

			err := f.reconnectMgr.Reconnect(f.ctx, f.connect)
			if err != nil {
				// Only context cancellation gets here.
				return
			}

			if f.http != nil {
				f.seedFromSnapshot(f.ctx)
			}
		}
	}
}
