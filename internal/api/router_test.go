package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pulmoscan/pulmoscan/internal/api"
	mw "github.com/pulmoscan/pulmoscan/internal/api/middleware"
	"github.com/pulmoscan/pulmoscan/internal/cache"
	"github.com/stretchr/testify/assert"
)

// --- stub cache for the rate limiter ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) DBSize(_ context.Context) (int64, error)                          { return 0, nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}
func (c *stubCache) Close() error { return nil }

var _ cache.Cache = (*stubCache)(nil)

// --- router tests ---

func newTestRouter(deps api.Dependencies) http.Handler {
	if deps.RateLimit == nil {
		deps.RateLimit = mw.NewRateLimit(&stubCache{}, 60)
	}
	if deps.HealthHandler == nil {
		deps.HealthHandler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
	}
	return api.NewRouter(deps)
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint_Public(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MissingHandlersAre501(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/jobs/classify"},
		{"POST", "/api/v1/jobs/batch"},
		{"GET", "/api/v1/jobs"},
		{"GET", "/api/v1/jobs/00000000-0000-0000-0000-000000000001"},
		{"GET", "/api/v1/jobs/00000000-0000-0000-0000-000000000001/predictions"},
		{"GET", "/api/v1/jobs/00000000-0000-0000-0000-000000000001/export"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNotImplemented, w.Code)
		})
	}
}

func TestRouter_RoutesReachHandlers(t *testing.T) {
	var gotJobID string
	router := newTestRouter(api.Dependencies{
		GetJobHandler: func(w http.ResponseWriter, r *http.Request) {
			gotJobID = chi.URLParam(r, "jobID")
			w.WriteHeader(http.StatusOK)
		},
	})

	req := httptest.NewRequest("GET", "/api/v1/jobs/abc-123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", gotJobID)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
