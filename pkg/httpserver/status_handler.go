package httpserver

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/crossmarket-arb/internal/executor"
	"github.com/mselser95/crossmarket-arb/internal/guard"
	"github.com/mselser95/crossmarket-arb/internal/quotes"
	"github.com/mselser95/crossmarket-arb/internal/storage"
)

// StatusHandler serves the operator status view and the unpause action.
type StatusHandler struct {
	executor *executor.Executor
	guard    *guard.BalanceGuard
	feed     *quotes.Feed
	storage  storage.Storage
	logger   *zap.Logger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(exec *executor.Executor, g *guard.BalanceGuard, feed *quotes.Feed, store storage.Storage, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		executor: exec,
		guard:    g,
		feed:     feed,
		storage:  store,
		logger:   logger,
	}
}

// StatusResponse is the operator status view.
type StatusResponse struct {
	Paused        bool                 `json:"paused"`
	Cooldowns     map[string]time.Time `json:"cooldowns"`
	GuardEnabled  *bool                `json:"guardEnabled,omitempty"`
	GuardBalance  *float64             `json:"guardBalance,omitempty"`
	FeedConnected *bool                `json:"feedConnected,omitempty"`
	OpenPositions int                  `json:"openPositions"`
}

// HandleStatus reports pause state, cooldowns, guard state, feed
// connectivity, and open position count.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Paused:    h.executor.Paused(),
		Cooldowns: h.executor.Cooldowns(),
	}

	if h.guard != nil {
		status := h.guard.GetStatus()
		resp.GuardEnabled = &status.Enabled
		resp.GuardBalance = &status.LastBalance
	}

	if h.feed != nil {
		connected := h.feed.IsConnected()
		resp.FeedConnected = &connected
	}

	if h.storage != nil {
		open, err := h.storage.ListOpenPositions(r.Context())
		if err != nil {
			h.logger.Warn("status-open-positions-failed", zap.Error(err))
		} else {
			resp.OpenPositions = len(open)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("status-encode-failed", zap.Error(err))
	}
}

// HandleUnpause clears the pause gate. Cooldowns are left intact.
func (h *StatusHandler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	wasPaused := h.executor.Paused()
	h.executor.Unpause()

	h.logger.Info("unpause-requested",
		zap.Bool("was-paused", wasPaused),
		zap.String("remote-addr", r.RemoteAddr))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"paused": false, "wasPaused": wasPaused})
}
