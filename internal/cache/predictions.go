package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pulmoscan/pulmoscan/internal/metrics"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// DefaultTTL is how long cached predictions live.
const DefaultTTL = 7 * 24 * time.Hour

// CachedPrediction is the JSON payload stored per image fingerprint.
type CachedPrediction struct {
	Class      string              `json:"class"`
	Confidence float64             `json:"confidence"`
	TopClasses []models.ClassScore `json:"top_classes"`
	CachedAt   int64               `json:"cached_at"`
}

// PredictionCache wraps a Cache with the best-effort semantics the pipeline
// relies on: any backend failure degrades a read to a miss and a write to a
// no-op. Degradation is surfaced as a typed flag (and logged and counted),
// never as an error, so cache availability can't affect job correctness.
// When disabled, every lookup misses and every store is a no-op.
type PredictionCache struct {
	cache   Cache
	ttl     time.Duration
	enabled bool
}

// NewPredictionCache creates a PredictionCache. A non-positive ttl falls
// back to DefaultTTL.
func NewPredictionCache(c Cache, ttl time.Duration, enabled bool) *PredictionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PredictionCache{cache: c, ttl: ttl, enabled: enabled}
}

// Enabled reports whether the cache is active.
func (p *PredictionCache) Enabled() bool { return p.enabled }

// Lookup fetches the cached prediction for a fingerprint. degraded is true
// when a backend error was swallowed; hit is always false in that case.
func (p *PredictionCache) Lookup(ctx context.Context, fingerprint string) (pred CachedPrediction, hit bool, degraded bool) {
	if !p.enabled {
		return CachedPrediction{}, false, false
	}

	data, found, err := p.cache.Get(ctx, PredictionKey(fingerprint))
	if err != nil {
		slog.Warn("prediction cache read degraded", "fingerprint", fingerprint, "error", err)
		metrics.CacheDegraded.Inc()
		return CachedPrediction{}, false, true
	}
	if !found {
		metrics.CacheMisses.Inc()
		return CachedPrediction{}, false, false
	}

	if err := json.Unmarshal(data, &pred); err != nil {
		// A corrupt entry is as good as a miss.
		slog.Warn("prediction cache entry corrupt", "fingerprint", fingerprint, "error", err)
		metrics.CacheDegraded.Inc()
		return CachedPrediction{}, false, true
	}

	metrics.CacheHits.Inc()
	return pred, true, false
}

// Store writes a prediction for a fingerprint. degraded is true when the
// write was swallowed by a backend error.
func (p *PredictionCache) Store(ctx context.Context, fingerprint string, pred CachedPrediction) (degraded bool) {
	if !p.enabled {
		return false
	}

	if pred.CachedAt == 0 {
		pred.CachedAt = time.Now().Unix()
	}
	data, err := json.Marshal(pred)
	if err != nil {
		slog.Warn("prediction cache marshal failed", "fingerprint", fingerprint, "error", err)
		metrics.CacheDegraded.Inc()
		return true
	}

	if err := p.cache.Set(ctx, PredictionKey(fingerprint), data, p.ttl); err != nil {
		slog.Warn("prediction cache write degraded", "fingerprint", fingerprint, "error", err)
		metrics.CacheDegraded.Inc()
		return true
	}
	return false
}
