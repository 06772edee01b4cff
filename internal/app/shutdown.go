package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. The final cooldown
// snapshot runs before storage closes so a restart restores the gate
// state the process exited with.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Persist cooldowns while storage is still open
	err := a.storage.SaveCooldowns(shutdownCtx, a.executor.Cooldowns())
	if err != nil {
		a.logger.Error("final-cooldown-snapshot-failed", zap.Error(err))
	}

	// Cancel context to signal all components
	a.cancel()

	if a.feed != nil {
		a.feed.Stop()
	}

	err = a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Wait for all goroutines
	a.wg.Wait()

	err = a.storage.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.chainClient.Close()

	a.logger.Info("application-shutdown-complete")

	return nil
}
