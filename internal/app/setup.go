package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/internal/executor"
	"github.com/mselser95/crossmarket-arb/internal/guard"
	"github.com/mselser95/crossmarket-arb/internal/markets"
	"github.com/mselser95/crossmarket-arb/internal/quotes"
	"github.com/mselser95/crossmarket-arb/internal/storage"
	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/internal/venue/opinion"
	"github.com/mselser95/crossmarket-arb/internal/venue/predict"
	"github.com/mselser95/crossmarket-arb/pkg/cache"
	"github.com/mselser95/crossmarket-arb/pkg/chain"
	"github.com/mselser95/crossmarket-arb/pkg/config"
	"github.com/mselser95/crossmarket-arb/pkg/healthprobe"
	"github.com/mselser95/crossmarket-arb/pkg/httpserver"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	chainClient, err := chain.Dial(ctx, cfg.ChainRPCURL, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial chain: %w", err)
	}

	metaCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	registry, err := setupVenues(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup venues: %w", err)
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	exec, balanceGuard, err := setupExecutor(ctx, cfg, logger, chainClient, registry, metaCache, store)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup executor: %w", err)
	}

	feed := setupFeed(cfg, logger)

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Executor:      exec,
		Guard:         balanceGuard,
		Feed:          feed,
		Storage:       store,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		chainClient:   chainClient,
		venues:        registry,
		feed:          feed,
		guard:         balanceGuard,
		executor:      exec,
		storage:       store,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupVenues(cfg *config.Config, logger *zap.Logger) (*venue.Registry, error) {
	registry := venue.NewRegistry()

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
		return nil, fmt.Errorf("create predict client: %w", err)
	}
	registry.Register(predictClient)

	opinionClient, err := opinion.New(&opinion.Config{
		BaseURL:           cfg.OpinionBaseURL,
		APIKey:            cfg.OpinionAPIKey,
		SafeAddress:       cfg.SafeAddress,
		RequestsPerSecond: cfg.OpinionRPS,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create opinion client: %w", err)
	}
	registry.Register(opinionClient)

	return registry, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		return storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	}
	return storage.NewConsoleStorage(logger), nil
}

func setupExecutor(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	chainClient *chain.Client,
	registry *venue.Registry,
	metaCache cache.Cache,
	store storage.Storage,
) (*executor.Executor, *guard.BalanceGuard, error) {
	var (
		redeemer executor.Redeemer
		eoa      common.Address
	)
	if cfg.PrivateKey != "" {
		account, err := chain.NewAccount(chainClient, cfg.PrivateKey, cfg.ChainID, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create account: %w", err)
		}
		redeemer = account
		eoa = account.Address()
	}

	safe := common.Address{}
	if cfg.SafeAddress != "" {
		safe = common.HexToAddress(cfg.SafeAddress)
	}
	collateral := common.HexToAddress(cfg.CollateralToken)

	resolvers := map[string]markets.Resolver{
		predict.Name: markets.NewCachedResolver(markets.NewMetadataClient(cfg.PredictBaseURL), metaCache),
		opinion.Name: markets.NewCachedResolver(markets.NewMetadataClient(cfg.OpinionBaseURL), metaCache),
	}

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

	initialCooldowns, err := store.LoadCooldowns(ctx)
	if err != nil {
		logger.Warn("cooldown-restore-failed", zap.Error(err))
		initialCooldowns = nil
	}

	owners := []common.Address{eoa}
	if safe != (common.Address{}) && safe != eoa {
		owners = append(owners, safe)
	}
	balanceGuard, err := guard.New(&guard.Config{
		CheckInterval:   cfg.GuardCheckInterval,
		TradeMultiplier: 2.0,
		MinAbsolute:     cfg.GuardMinBalance,
		HysteresisRatio: cfg.GuardResumeThreshold / cfg.GuardMinBalance,
		Chain:           chainClient,
		Token:           collateral,
		Owners:          owners,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create balance guard: %w", err)
	}

	exec, err := executor.New(&executor.Config{
		Logger:             logger,
		Venues:             registry,
		Resolvers:          resolvers,
		Chain:              chainClient,
		Redeemer:           redeemer,
		CollateralToken:    collateral,
		EOAAddress:         eoa,
		SafeAddress:        safe,
		Contracts:          contracts,
		DryRun:             cfg.ExecutionMode == "dry-run",
		MinTradeSize:       cfg.MinTradeSize,
		FeeBuffer:          cfg.FeeBuffer,
		MaxQuoteAge:        cfg.MaxQuoteAge,
		MarketCooldown:     cfg.MarketCooldown,
		ShortCooldown:      cfg.ShortCooldown,
		SettleWait:         cfg.SettleWait,
		FillPollInterval:   cfg.FillPollInterval,
		FillPollTimeout:    cfg.FillPollTimeout,
		UnwindPollInterval: cfg.UnwindPollInterval,
		UnwindPollTimeout:  cfg.UnwindPollTimeout,
		DiscountLadder:     cfg.DiscountLadder,
		ReliableVenues:     map[string]bool{predict.Name: true},
		InitialCooldowns:   initialCooldowns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create executor: %w", err)
	}

	return exec, balanceGuard, nil
}

func setupFeed(cfg *config.Config, logger *zap.Logger) *quotes.Feed {
	if cfg.QuotesWSURL == "" {
		logger.Warn("quote-feed-disabled", zap.String("reason", "QUOTES_WS_URL not set"))
		return nil
	}

	return quotes.New(quotes.Config{
		URL:                   cfg.QuotesWSURL,
		SnapshotURL:           cfg.QuotesSnapshotURL,
		DialTimeout:           10 * time.Second,
		PongTimeout:           cfg.QuotesPongTimeout,
		PingInterval:          cfg.QuotesPingInterval,
		ReconnectInitialDelay: cfg.QuotesReconnectInitial,
		ReconnectMaxDelay:     cfg.QuotesReconnectMax,
		ReconnectBackoffMult:  cfg.QuotesReconnectBackoff,
		BufferSize:            cfg.QuotesBufferSize,
		Logger:                logger,
	})
}
