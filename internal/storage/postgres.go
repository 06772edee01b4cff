package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// PostgresStorage implements Storage using PostgreSQL. Legs are stored
// as JSONB so the leg shape can evolve without schema migrations.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// SavePosition inserts or replaces a position record.
func (p *PostgresStorage) SavePosition(ctx context.Context, pos *types.ClobPosition) error {
	legA, err := json.Marshal(pos.LegA)
	if err != nil {
		return fmt.Errorf("marshal leg A: %w", err)
	}
	legB, err := json.Marshal(pos.LegB)
	if err != nil {
		return fmt.Errorf("marshal leg B: %w", err)
	}

	query := `
		INSERT INTO positions (
			id, market_id, status, leg_a, leg_b,
			total_cost, expected_payout, spread_bps, opened_at, closed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			leg_a = EXCLUDED.leg_a,
			leg_b = EXCLUDED.leg_b,
			closed_at = EXCLUDED.closed_at
	`

	var closedAt sql.NullTime
	if !pos.ClosedAt.IsZero() {
		closedAt = sql.NullTime{Time: pos.ClosedAt, Valid: true}
	}

	_, err = p.db.ExecContext(ctx, query,
		pos.ID,
		pos.MarketID,
		string(pos.Status),
		legA,
		legB,
		pos.TotalCost,
		pos.ExpectedPayout,
		pos.SpreadBps,
		pos.OpenedAt,
		closedAt,
	)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}

	p.logger.Debug("position-stored",
		zap.String("position-id", pos.ID),
		zap.String("market-id", pos.MarketID),
		zap.String("status", string(pos.Status)))

	return nil
}

// UpdatePositionStatus moves a position to a new lifecycle status.
func (p *PostgresStorage) UpdatePositionStatus(ctx context.Context, id string, status types.PositionStatus) error {
	query := `UPDATE positions SET status = $2, closed_at = CASE WHEN $2 = 'CLOSED' THEN NOW() ELSE closed_at END WHERE id = $1`

	result, err := p.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update position status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("position %s not found", id)
	}
	return nil
}

// ListOpenPositions returns positions not yet CLOSED or EXPIRED.
func (p *PostgresStorage) ListOpenPositions(ctx context.Context) ([]*types.ClobPosition, error) {
	query := `
		SELECT id, market_id, status, leg_a, leg_b,
		       total_cost, expected_payout, spread_bps, opened_at, closed_at
		FROM positions
		WHERE status NOT IN ('CLOSED', 'EXPIRED')
		ORDER BY opened_at
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var positions []*types.ClobPosition
	for rows.Next() {
		var (
			pos        types.ClobPosition
			status     string
			legA, legB []byte
			closedAt   sql.NullTime
		)
		err := rows.Scan(
			&pos.ID, &pos.MarketID, &status, &legA, &legB,
			&pos.TotalCost, &pos.ExpectedPayout, &pos.SpreadBps, &pos.OpenedAt, &closedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}

		pos.Status = types.PositionStatus(status)
		if err := json.Unmarshal(legA, &pos.LegA); err != nil {
			return nil, fmt.Errorf("unmarshal leg A: %w", err)
		}
		if err := json.Unmarshal(legB, &pos.LegB); err != nil {
			return nil, fmt.Errorf("unmarshal leg B: %w", err)
		}
		if closedAt.Valid {
			pos.ClosedAt = closedAt.Time
		}

		positions = append(positions, &pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}

	return positions, nil
}

// SaveCooldowns replaces the persisted cooldown snapshot.
func (p *PostgresStorage) SaveCooldowns(ctx context.Context, cooldowns map[string]time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cooldowns`); err != nil {
		return fmt.Errorf("clear cooldowns: %w", err)
	}

	for marketID, until := range cooldowns {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cooldowns (market_id, until) VALUES ($1, $2)`,
			marketID, until,
		)
		if err != nil {
			return fmt.Errorf("insert cooldown: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadCooldowns returns the persisted cooldown snapshot, dropping
// entries that have already expired.
func (p *PostgresStorage) LoadCooldowns(ctx context.Context) (map[string]time.Time, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT market_id, until FROM cooldowns WHERE until > NOW()`)
	if err != nil {
		return nil, fmt.Errorf("query cooldowns: %w", err)
	}
	defer rows.Close()

	cooldowns := make(map[string]time.Time)
	for rows.Next() {
		var (
			marketID string
			until    time.Time
		)
		if err := rows.Scan(&marketID, &until); err != nil {
			return nil, fmt.Errorf("scan cooldown: %w", err)
		}
		cooldowns[marketID] = until
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cooldowns: %w", err)
	}

	return cooldowns, nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
