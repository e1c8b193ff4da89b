// Package cache stores extracted unit text in Redis so that re-running a
// session over the same document does not repeat extraction work.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{Document: "3f2a9c0d1e4b5a67", Unit: 12}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// extract and store
//		err = manager.Set(ctx, key, cache.NewEntry(text, 24*time.Hour))
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - pagebatch_cache_hits_total{layer="redis"} - Cache hits
//   - pagebatch_cache_misses_total - Cache misses
//   - pagebatch_cache_bytes_total{direction} - Encoded bytes read and written
//   - pagebatch_cache_errors_total{operation} - Cache operation errors
package cache
