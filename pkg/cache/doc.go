// Package cache provides the named response caches used by the site worker.
//
// A Storage is the origin-scoped set of named caches. Each Cache maps a
// request identity (method + absolute URL, refined by the response Vary
// header) to a complete response snapshot. Storage is backed by a Driver:
//
// - MemoryDriver keeps everything in process memory
// - RedisDriver keeps cache names in a sorted set and entries in hashes
// - SQLiteDriver keeps caches and entries in a local database file
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create storage
//	storage := cache.NewStorage(cache.NewRedisDriver(redisClient, ""))
//
//	// Open the cache of the current version
//	c, err := storage.Open(ctx, "portfolio-cache-portfolio-v1.0.0")
//
//	// Look a request up
//	entry, err := c.Match(ctx, req)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the network
//	}
//
// # HTTP Response Caching
//
//	// Snapshot a response; resp keeps a readable body
//	entry, err := cache.ResponseToEntry(req, resp)
//	if err != nil {
//		return err
//	}
//
//	// Store in cache
//	if err := c.Put(ctx, req, entry); err != nil {
//		return err
//	}
//
// # Store Rules
//
// The caches follow the rules of the browser cache API:
//
// - only GET requests are matched or stored
// - 206 Partial Content and "Vary: *" responses are rejected (ErrNotCacheable)
// - Accept-Encoding never takes part in Vary matching; bodies are stored decoded
// - PutAll writes every item or none
// - deleting a cache drops its entries; opening it again starts empty
//
// # Metrics
//
//   - siteworker_cache_hits_total{backend} - Cache hits
//   - siteworker_cache_misses_total{backend} - Cache misses
//   - siteworker_cache_stored_bytes_total{backend} - Encoded bytes written
//   - siteworker_cache_drops_total{backend} - Named caches deleted
//   - siteworker_cache_errors_total{operation} - Cache operation errors
package cache
