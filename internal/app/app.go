// Package app wires the components together and owns the run loop.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/internal/executor"
	"github.com/mselser95/crossmarket-arb/internal/guard"
	"github.com/mselser95/crossmarket-arb/internal/quotes"
	"github.com/mselser95/crossmarket-arb/internal/storage"
	"github.com/mselser95/crossmarket-arb/internal/venue"
	"github.com/mselser95/crossmarket-arb/pkg/chain"
	"github.com/mselser95/crossmarket-arb/pkg/config"
	"github.com/mselser95/crossmarket-arb/pkg/healthprobe"
	"github.com/mselser95/crossmarket-arb/pkg/httpserver"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	chainClient   *chain.Client
	venues        *venue.Registry
	feed          *quotes.Feed
	guard         *guard.BalanceGuard
	executor      *executor.Executor
	storage       storage.Storage
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
