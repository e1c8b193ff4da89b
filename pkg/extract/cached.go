package extract

import (
	"context"
	"errors"
	"time"

	"github.com/FiratKiziltepe/pagebatch/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the subset of cache.Manager used by Cached.
type Store interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
	Touch(ctx context.Context, key cache.CacheKey, expires time.Time) error
}

// Cached serves units from a Store and falls back to a source Extractor.
// Cache failures are logged and never fail an extraction.
type Cached struct {
	source   Extractor
	store    Store
	document string
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewCached wraps source. document namespaces the cache keys.
func NewCached(source Extractor, store Store, document string, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{
		source:   source,
		store:    store,
		document: document,
		ttl:      ttl,
		logger:   log.With().Str("component", "extract").Str("document", document).Logger(),
	}
}

// Extract implements Extractor.
func (c *Cached) Extract(ctx context.Context, unitID int) (string, error) {
	key := cache.CacheKey{Document: c.document, Unit: unitID}

	entry, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.logger.Debug().Int("unit", unitID).Msg("Extraction cache hit")
		// Sliding expiry: units read in the second half of their lifetime
		// get a full TTL again.
		if entry.TTL() < c.ttl/2 {
			if err := c.store.Touch(ctx, key, time.Now().Add(c.ttl)); err != nil {
				c.logger.Warn().Err(err).Int("unit", unitID).Msg("Extraction cache touch failed")
			}
		}
		return entry.Text, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn().Err(err).Int("unit", unitID).Msg("Extraction cache read failed")
	}

	text, err := c.source.Extract(ctx, unitID)
	if err != nil {
		return "", err
	}

	if err := c.store.Set(ctx, key, cache.NewEntry(text, c.ttl)); err != nil {
		c.logger.Warn().Err(err).Int("unit", unitID).Msg("Extraction cache write failed")
	}
	return text, nil
}
