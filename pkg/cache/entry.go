package cache

import "time"

// CacheEntry is the cached text of one unit.
type CacheEntry struct {
	// Text is the extracted unit text
	Text string `json:"text"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this text
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry for text that expires after ttl.
func NewEntry(text string, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Text:     text,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
