package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/crossmarket-arb/internal/executor"
	"github.com/mselser95/crossmarket-arb/internal/storage"
	"github.com/mselser95/crossmarket-arb/internal/testutil"
	"github.com/mselser95/crossmarket-arb/internal/venue"
)

func newTestExecutor(t *testing.T) *executor.Executor {
	t.Helper()

	exec, err := executor.New(&executor.Config{
		Logger: zaptest.NewLogger(t),
		Venues: venue.NewRegistry(),
		Chain:  testutil.NewMockChainReader(),
		InitialCooldowns: map[string]time.Time{
			"m1": time.Now().Add(time.Hour),
		},
	})
	if err != nil {
		t.Fatalf("executor.New() error: %v", err)
	}
	return exec
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	store := storage.NewConsoleStorage(logger)
	handler := NewStatusHandler(newTestExecutor(t), nil, nil, store, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.HandleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Paused {
		t.Error("fresh executor must not report paused")
	}
	if _, ok := resp.Cooldowns["m1"]; !ok {
		t.Errorf("cooldowns = %v, want m1", resp.Cooldowns)
	}
	if resp.GuardEnabled != nil || resp.FeedConnected != nil {
		t.Error("absent collaborators must be omitted, not defaulted")
	}
	if resp.OpenPositions != 0 {
		t.Errorf("open positions = %d", resp.OpenPositions)
	}
}

func TestHandleUnpause(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	exec := newTestExecutor(t)
	handler := NewStatusHandler(exec, nil, nil, nil, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/unpause", nil)
	rec := httptest.NewRecorder()
	handler.HandleUnpause(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["paused"] {
		t.Error("response must report the cleared gate")
	}
	if resp["wasPaused"] {
		t.Error("wasPaused must reflect the prior state")
	}
	if exec.Paused() {
		t.Error("executor must be unpaused after the call")
	}
}
