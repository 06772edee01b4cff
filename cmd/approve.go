package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/crossmarket-arb/internal/venue/opinion"
	"github.com/mselser95/crossmarket-arb/internal/venue/predict"
	"github.com/mselser95/crossmarket-arb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Verify venue approvals are in place",
	Long: `Checks that both venues see the collateral and operator approvals
they need before the agent can place orders. Approval transactions
themselves are submitted through each venue's UI or a one-off script;
this command only verifies the result.`,
	RunE: runApprove,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	predictClient, err := predict.New(&predict.Config{
		BaseURL:           cfg.PredictBaseURL,
		APIKey:            cfg.PredictAPIKey,
		Secret:            cfg.PredictSecret,
		Passphrase:        cfg.PredictPassphrase,
		PrivateKey:        cfg.PrivateKey,
		ChainID:           cfg.ChainID,
		RequestsPerSecond: cfg.PredictRPS,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("create predict client: %w", err)
	}

	opinionClient, err := opinion.New(&opinion.Config{
		BaseURL:           cfg.OpinionBaseURL,
		APIKey:            cfg.OpinionAPIKey,
		SafeAddress:       cfg.SafeAddress,
		RequestsPerSecond: cfg.OpinionRPS,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("create opinion client: %w", err)
	}

	if err := predictClient.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate predict: %w", err)
	}
	if err := opinionClient.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate opinion: %w", err)
	}

	if err := predictClient.EnsureApprovals(ctx); err != nil {
		fmt.Printf("❌ predict: %v\n", err)
	} else {
		fmt.Printf("✅ predict: approvals in place\n")
	}

	if err := opinionClient.EnsureApprovals(ctx); err != nil {
		fmt.Printf("❌ opinion: %v\n", err)
	} else {
		fmt.Printf("✅ opinion: approvals in place\n")
	}

	return nil
}
