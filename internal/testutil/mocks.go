// Package testutil holds the shared mocks and fixtures the executor and
// transport tests build on.
package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// CallLog records venue calls across multiple mocks so tests can assert
// cross-venue ordering.
type CallLog struct {
	mu      sync.Mutex
	Entries []string
}

// Append adds one entry to the log.
func (l *CallLog) Append(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, entry)
}

// Snapshot returns a copy of the entries.
func (l *CallLog) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.Entries))
	copy(out, l.Entries)
	return out
}

// MockVenue is a scripted venue.Client. Placement results are consumed
// in order; the last configured result repeats once the script runs out.
type MockVenue struct {
	VenueName string
	AuthErr   error

	// Log, when set, records "<venue>:<side>" per placement.
	Log *CallLog

	mu           sync.Mutex
	PlaceResults []*venue.PlaceOrderResult
	PlaceErrs    []error
	Placed       []*venue.PlaceOrderParams
	placeCalls   int

	Statuses  map[string][]*venue.OrderStatus
	statusIdx map[string]int
	StatusErr error

	CancelOK  bool
	CancelErr error
	Cancelled []string
}

// NewMockVenue creates a mock venue with the given name.
func NewMockVenue(name string) *MockVenue {
	return &MockVenue{
		VenueName: name,
		CancelOK:  true,
		Statuses:  make(map[string][]*venue.OrderStatus),
		statusIdx: make(map[string]int),
	}
}

// Name returns the configured venue name.
func (m *MockVenue) Name() string {
	return m.VenueName
}

// Authenticate returns the configured auth error.
func (m *MockVenue) Authenticate(ctx context.Context) error {
	return m.AuthErr
}

// QueueResult appends one scripted placement outcome.
func (m *MockVenue) QueueResult(res *venue.PlaceOrderResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlaceResults = append(m.PlaceResults, res)
	m.PlaceErrs = append(m.PlaceErrs, err)
}

// PlaceOrder records the params and pops the next scripted result.
func (m *MockVenue) PlaceOrder(ctx context.Context, params *venue.PlaceOrderParams) (*venue.PlaceOrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Placed = append(m.Placed, params)
	if m.Log != nil {
		m.Log.Append(m.VenueName + ":" + params.Side)
	}

	if len(m.PlaceResults) == 0 {
		return nil, fmt.Errorf("mock venue %s: no scripted results", m.VenueName)
	}

	idx := m.placeCalls
	if idx >= len(m.PlaceResults) {
		idx = len(m.PlaceResults) - 1
	}
	m.placeCalls++

	return m.PlaceResults[idx], m.PlaceErrs[idx]
}

// CancelOrder records the cancellation.
func (m *MockVenue) CancelOrder(ctx context.Context, orderID, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, orderID)
	return m.CancelOK, m.CancelErr
}

// GetOrderStatus pops the next scripted status for the order; the last
// one repeats once the script runs out.
func (m *MockVenue) GetOrderStatus(ctx context.Context, orderID string) (*venue.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StatusErr != nil {
		return nil, m.StatusErr
	}

	seq, ok := m.Statuses[orderID]
	if !ok || len(seq) == 0 {
		return nil, fmt.Errorf("mock venue %s: no status for order %s", m.VenueName, orderID)
	}

	idx := m.statusIdx[orderID]
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	m.statusIdx[orderID]++

	return seq[idx], nil
}

// EnsureApprovals is a no-op.
func (m *MockVenue) EnsureApprovals(ctx context.Context) error {
	return nil
}

// PlacedOrders returns a copy of the recorded placements.
func (m *MockVenue) PlacedOrders() []*venue.PlaceOrderParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*venue.PlaceOrderParams, len(m.Placed))
	copy(out, m.Placed)
	return out
}

// MockBalanceVenue is a MockVenue that also reports unlocked balances.
type MockBalanceVenue struct {
	*MockVenue

	Available    map[string]float64
	AvailableErr error
}

// NewMockBalanceVenue creates a balance-reporting mock venue.
func NewMockBalanceVenue(name string) *MockBalanceVenue {
	return &MockBalanceVenue{
		MockVenue: NewMockVenue(name),
		Available: make(map[string]float64),
	}
}

// GetAvailableBalance returns the scripted unlocked share balance.
func (m *MockBalanceVenue) GetAvailableBalance(ctx context.Context, tokenID string) (float64, error) {
	if m.AvailableErr != nil {
		return 0, m.AvailableErr
	}
	return m.Available[tokenID], nil
}

// MockChainReader is a scripted executor.ChainReader. Per-owner balance
// reads are consumed in order, the last value repeating.
type MockChainReader struct {
	mu          sync.Mutex
	Balances    map[common.Address][]*big.Int
	balanceIdx  map[common.Address]int
	BalanceErrs map[common.Address]error

	Denominators   map[common.Hash]*big.Int
	DenominatorErr error

	Balances1155   map[string]*big.Int
	Balance1155Err error
}

// NewMockChainReader creates an empty chain reader mock.
func NewMockChainReader() *MockChainReader {
	return &MockChainReader{
		Balances:     make(map[common.Address][]*big.Int),
		balanceIdx:   make(map[common.Address]int),
		BalanceErrs:  make(map[common.Address]error),
		Denominators: make(map[common.Hash]*big.Int),
		Balances1155: make(map[string]*big.Int),
	}
}

// SetBalances scripts the sequence of reads for one owner.
func (m *MockChainReader) SetBalances(owner common.Address, balances ...*big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[owner] = balances
	m.balanceIdx[owner] = 0
}

// ReadBalance pops the next scripted balance for the owner.
func (m *MockChainReader) ReadBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.BalanceErrs[owner]; err != nil {
		return nil, err
	}

	seq, ok := m.Balances[owner]
	if !ok || len(seq) == 0 {
		return big.NewInt(0), nil
	}

	idx := m.balanceIdx[owner]
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	m.balanceIdx[owner]++

	return new(big.Int).Set(seq[idx]), nil
}

// PayoutDenominator returns the scripted resolution state.
func (m *MockChainReader) PayoutDenominator(ctx context.Context, ctf common.Address, conditionID common.Hash) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DenominatorErr != nil {
		return nil, m.DenominatorErr
	}
	if d, ok := m.Denominators[conditionID]; ok {
		return new(big.Int).Set(d), nil
	}
	return big.NewInt(0), nil
}

// BalanceOf1155 returns the scripted outcome-token balance.
func (m *MockChainReader) BalanceOf1155(ctx context.Context, ctf, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Balance1155Err != nil {
		return nil, m.Balance1155Err
	}
	if b, ok := m.Balances1155[tokenID.String()]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// MockResolver serves metadata from a fixed map.
type MockResolver struct {
	Metas map[string]*types.MarketMeta
	Err   error
}

// GetMarketMeta returns the scripted metadata.
func (m *MockResolver) GetMarketMeta(ctx context.Context, marketID string) (*types.MarketMeta, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	meta, ok := m.Metas[marketID]
	if !ok {
		return nil, fmt.Errorf("no metadata for market %s", marketID)
	}
	return meta, nil
}

// RedeemCall records one RedeemPositions invocation.
type RedeemCall struct {
	CTF         common.Address
	Collateral  common.Address
	ConditionID common.Hash
	IndexSets   []*big.Int
}

// MockRedeemer records redeem transactions.
type MockRedeemer struct {
	mu    sync.Mutex
	Calls []RedeemCall
	Err   error
}

// RedeemPositions records the call and returns the scripted error.
func (m *MockRedeemer) RedeemPositions(ctx context.Context, ctf, collateral common.Address, conditionID common.Hash, indexSets []*big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Calls = append(m.Calls, RedeemCall{
		CTF:         ctf,
		Collateral:  collateral,
		ConditionID: conditionID,
		IndexSets:   indexSets,
	})
	return nil
}

// CallCount returns the number of recorded redeem calls.
func (m *MockRedeemer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
