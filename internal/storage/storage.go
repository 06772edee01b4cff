package storage

import (
	"context"
	"time"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// Storage persists positions and cooldown state across restarts.
type Storage interface {
	// SavePosition inserts or replaces a position record.
	SavePosition(ctx context.Context, pos *types.ClobPosition) error

	// UpdatePositionStatus moves a position to a new lifecycle status.
	UpdatePositionStatus(ctx context.Context, id string, status types.PositionStatus) error

	// ListOpenPositions returns positions not yet CLOSED or EXPIRED.
	ListOpenPositions(ctx context.Context) ([]*types.ClobPosition, error)

	// SaveCooldowns replaces the persisted cooldown snapshot.
	SaveCooldowns(ctx context.Context, cooldowns map[string]time.Time) error

	// LoadCooldowns returns the persisted cooldown snapshot, dropping
	// entries that have already expired.
	LoadCooldowns(ctx context.Context) (map[string]time.Time, error)

	// Close closes the storage connection.
	Close() error
}
