package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/crossmarket-arb/pkg/chain"
	"github.com/mselser95/crossmarket-arb/pkg/config"
	"github.com/mselser95/crossmarket-arb/pkg/numeric"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check collateral balances of the trading wallets",
	Long: `Display the USDT collateral balance of the EOA and, when one is
configured, the Safe smart account funding the retail venue.`,
	RunE: runBalanceCheck,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalanceCheck(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY not set")
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

	collateral := common.HexToAddress(cfg.CollateralToken)

	fmt.Printf("=== Wallet Balance Sheet ===\n\n")

	eoaBalance, err := chainClient.ReadBalance(ctx, collateral, account.Address())
	if err != nil {
		return fmt.Errorf("read EOA balance: %w", err)
	}
	fmt.Printf("EOA  %s: %.2f USDT\n", account.Address().Hex(), numeric.WeiToUSDT(eoaBalance))

	if cfg.SafeAddress != "" {
		safe := common.HexToAddress(cfg.SafeAddress)
		safeBalance, err := chainClient.ReadBalance(ctx, collateral, safe)
		if err != nil {
			return fmt.Errorf("read Safe balance: %w", err)
		}
		fmt.Printf("Safe %s: %.2f USDT\n", safe.Hex(), numeric.WeiToUSDT(safeBalance))
	}

	return nil
}
