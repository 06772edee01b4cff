package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/crossmarket-arb/internal/executor"
	"github.com/mselser95/crossmarket-arb/internal/markets"
	"github.com/mselser95/crossmarket-arb/internal/storage"
	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/internal/venue/opinion"
	"github.com/mselser95/crossmarket-arb/internal/venue/predict"
	"github.com/mselser95/crossmarket-arb/pkg/chain"
	"github.com/mselser95/crossmarket-arb/pkg/config"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeem resolved positions once and exit",
	Long: `Scans stored positions, checks each market's resolution state
on-chain, and submits redeemPositions transactions for outcome tokens
the wallet still holds. Positions whose redemptions confirm are marked
CLOSED.`,
	RunE: runRedeem,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(redeemCmd)
}

func runRedeem(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required for redemption")
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	chainClient, err := chain.Dial(ctx, cfg.ChainRPCURL, logger)
	if err != nil {
		return fmt.Errorf("dial chain: %w", err)
	}
	defer chainClient.Close()

	account, err := chain.NewAccount(chainClient, cfg.PrivateKey, cfg.ChainID, logger)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	var store storage.Storage
	if cfg.StorageMode == "postgres" {
		store, err = storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
	} else {
		return fmt.Errorf("redeem requires STORAGE_MODE=postgres; console storage does not survive restarts")
	}
	defer store.Close()

	collateral := common.HexToAddress(cfg.CollateralToken)
	contracts := map[string]executor.VenueContracts{}
	if cfg.PredictCTFAddress != "" {
		contracts[predict.Name] = executor.VenueContracts{
			CTF:        common.HexToAddress(cfg.PredictCTFAddress),
			Collateral: collateral,
		}
	}
	if cfg.OpinionCTFAddress != "" {
		contracts[opinion.Name] = executor.VenueContracts{
			CTF:        common.HexToAddress(cfg.OpinionCTFAddress),
			Collateral: collateral,
		}
	}

	resolvers := map[string]markets.Resolver{
		predict.Name: markets.NewMetadataClient(cfg.PredictBaseURL),
		opinion.Name: markets.NewMetadataClient(cfg.OpinionBaseURL),
	}

	exec, err := executor.New(&executor.Config{
		Logger:          logger,
		Venues:          venue.NewRegistry(),
		Resolvers:       resolvers,
		Chain:           chainClient,
		Redeemer:        account,
		CollateralToken: collateral,
		EOAAddress:      account.Address(),
		Contracts:       contracts,
	})
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}

	positions, err := store.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	closed, err := exec.CloseResolved(ctx, positions)
	if err != nil {
		return fmt.Errorf("close resolved: %w", err)
	}

	for _, pos := range positions {
		if pos.Status != types.PositionClosed {
			continue
		}
		if err := store.UpdatePositionStatus(ctx, pos.ID, pos.Status); err != nil {
			return fmt.Errorf("persist position %s: %w", pos.ID, err)
		}
	}

	fmt.Printf("Redeemed %d of %d open positions\n", closed, len(positions))
	return nil
}
