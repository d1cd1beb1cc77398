package api

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/transformer-inspect/internal/inventory"
)

// DefaultSummaryTTL bounds how stale the dashboard summary may get between writes.
const DefaultSummaryTTL = 30 * time.Second

const summaryKey = "summary"

// SummaryCache holds the last dashboard summary. Writes flush it through the
// services' change hooks, so the TTL only matters for writes made elsewhere.
type SummaryCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewSummaryCache creates a cache; a non-positive ttl uses DefaultSummaryTTL.
func NewSummaryCache(ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &SummaryCache{cache: cache.New(ttl, 2*ttl), ttl: ttl}
}

// Get returns the cached summary or loads and caches a fresh one.
func (s *SummaryCache) Get(ctx context.Context, load func(context.Context) (*inventory.Summary, error)) (*inventory.Summary, error) {
	if v, ok := s.cache.Get(summaryKey); ok {
		if summary, ok := v.(*inventory.Summary); ok {
			return summary, nil
		}
	}
	summary, err := load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(summaryKey, summary, s.ttl)
	return summary, nil
}

// Invalidate drops the cached summary.
func (s *SummaryCache) Invalidate() {
	s.cache.Delete(summaryKey)
}
