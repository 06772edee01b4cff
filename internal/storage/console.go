package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// ConsoleStorage implements Storage by pretty-printing positions and
// keeping everything in memory. Useful for dry runs and local testing.
type ConsoleStorage struct {
	logger *zap.Logger

	mu        sync.Mutex
	positions map[string]*types.ClobPosition
	cooldowns map[string]time.Time
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger:    logger,
		positions: make(map[string]*types.ClobPosition),
		cooldowns: make(map[string]time.Time),
	}
}

// SavePosition pretty-prints a position and keeps it in memory.
func (c *ConsoleStorage) SavePosition(ctx context.Context, pos *types.ClobPosition) error {
	c.mu.Lock()
	stored := *pos
	c.positions[pos.ID] = &stored
	c.mu.Unlock()

	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📌 POSITION %s\n", pos.Status)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:       %s\n", pos.ID[:8])
	fmt.Printf("Market:   %s\n", pos.MarketID)
	fmt.Printf("Opened:   %s\n", pos.OpenedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Leg A:  %s %s %.3f @ $%.2f on %s (filled: %v)\n",
		pos.LegA.Side, pos.LegA.TokenID, pos.LegA.Price, pos.LegA.Size, pos.LegA.Platform, pos.LegA.Filled)
	fmt.Printf("  Leg B:  %s %s %.3f @ $%.2f on %s (filled: %v)\n",
		pos.LegB.Side, pos.LegB.TokenID, pos.LegB.Price, pos.LegB.Size, pos.LegB.Platform, pos.LegB.Filled)
	fmt.Printf("  Cost:    $%.2f\n", pos.TotalCost)
	fmt.Printf("  Payout:  $%.2f\n", pos.ExpectedPayout)
	fmt.Printf("  Spread:  %d bps\n", pos.SpreadBps)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// UpdatePositionStatus moves a stored position to a new status.
func (c *ConsoleStorage) UpdatePositionStatus(ctx context.Context, id string, status types.PositionStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.positions[id]
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	pos.Status = status
	if status == types.PositionClosed {
		pos.ClosedAt = time.Now()
	}

	c.logger.Info("position-status-updated",
		zap.String("position-id", id),
		zap.String("status", string(status)))
	return nil
}

// ListOpenPositions returns positions not yet CLOSED or EXPIRED.
func (c *ConsoleStorage) ListOpenPositions(ctx context.Context) ([]*types.ClobPosition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var open []*types.ClobPosition
	for _, pos := range c.positions {
		if pos.Status == types.PositionClosed || pos.Status == types.PositionExpired {
			continue
		}
		copied := *pos
		open = append(open, &copied)
	}
	return open, nil
}

// SaveCooldowns replaces the in-memory cooldown snapshot.
func (c *ConsoleStorage) SaveCooldowns(ctx context.Context, cooldowns map[string]time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cooldowns = make(map[string]time.Time, len(cooldowns))
	for marketID, until := range cooldowns {
		c.cooldowns[marketID] = until
	}
	return nil
}

// LoadCooldowns returns unexpired cooldowns.
func (c *ConsoleStorage) LoadCooldowns(ctx context.Context) (map[string]time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	cooldowns := make(map[string]time.Time)
	for marketID, until := range c.cooldowns {
		if until.After(now) {
			cooldowns[marketID] = until
		}
	}
	return cooldowns, nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
