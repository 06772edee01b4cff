package healthprobe

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthAlwaysOK(t *testing.T) {
	t.Parallel()

	checker := New()
	rec := httptest.NewRecorder()
	checker.Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadyFollowsSetReady(t *testing.T) {
	t.Parallel()

	checker := New()

	rec := httptest.NewRecorder()
	checker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before SetReady = %d, want 503", rec.Code)
	}

	checker.SetReady(true)
	rec = httptest.NewRecorder()
	checker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status after SetReady = %d, want 200", rec.Code)
	}

	checker.SetReady(false)
	rec = httptest.NewRecorder()
	checker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after SetReady(false) = %d, want 503", rec.Code)
	}
}
