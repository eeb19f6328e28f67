package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNotCacheable indicates the request/response pair may not be stored
	ErrNotCacheable = errors.New("response not cacheable")
)

// Record is one raw key/value pair of a named cache.
type Record struct {
	Key  string
	Data []byte
}

// Driver is the raw persistence behind a Storage.
//
// Implementations must be safe for concurrent use. Writing records into a
// cache that does not exist creates it.
type Driver interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// CreateCache creates a named cache. Existing caches keep their position.
	CreateCache(ctx context.Context, name string) error
	// CacheNames lists cache names in creation order.
	CacheNames(ctx context.Context) ([]string, error)
	// HasCache reports whether the named cache exists.
	HasCache(ctx context.Context, name string) (bool, error)
	// DropCache removes a cache with all of its records.
	DropCache(ctx context.Context, name string) (bool, error)
	// Get returns the record data or ErrCacheMiss.
	Get(ctx context.Context, name, key string) ([]byte, error)
	// SetAll writes every record atomically: all or none.
	SetAll(ctx context.Context, name string, records []Record) error
	// Delete removes a single record.
	Delete(ctx context.Context, name, key string) (bool, error)
	// List returns the record keys of a cache.
	List(ctx context.Context, name string) ([]string, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Item pairs a request with the response snapshot stored for it.
type Item struct {
	Request *http.Request
	Entry   *Entry
}

// Storage is the origin-scoped set of named caches.
type Storage struct {
	driver Driver
}

// NewStorage creates a Storage on top of the given driver.
func NewStorage(driver Driver) *Storage {
	if driver == nil {
		panic("cache driver cannot be nil")
	}
	return &Storage{driver: driver}
}

// Backend returns the driver name.
func (s *Storage) Backend() string {
	return s.driver.Name()
}

// Open returns the named cache, creating it if needed.
func (s *Storage) Open(ctx context.Context, name string) (*Cache, error) {
	if name == "" {
		return nil, fmt.Errorf("cache name cannot be empty")
	}
	if err := s.driver.CreateCache(ctx, name); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("create cache %q: %w", name, err)
	}
	return &Cache{storage: s, name: name}, nil
}

// Has reports whether a cache with the given name exists.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	ok, err := s.driver.HasCache(ctx, name)
	if err != nil {
		CacheErrors.WithLabelValues("has").Inc()
		return false, fmt.Errorf("has cache %q: %w", name, err)
	}
	return ok, nil
}

// Delete removes the named cache and all of its entries.
// It reports whether a cache was removed.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.driver.DropCache(ctx, name)
	if err != nil {
		CacheErrors.WithLabelValues("drop").Inc()
		return false, fmt.Errorf("drop cache %q: %w", name, err)
	}
	if ok {
		CacheDrops.WithLabelValues(s.driver.Name()).Inc()
	}
	return ok, nil
}

// Keys lists the cache names in creation order.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.driver.CacheNames(ctx)
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("list caches: %w", err)
	}
	return names, nil
}

// Match looks the request up in every cache, oldest first, and returns the
// first matching entry. Returns ErrCacheMiss if none matches.
func (s *Storage) Match(ctx context.Context, req *http.Request) (*Entry, error) {
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		c := &Cache{storage: s, name: name}
		entry, err := c.Match(ctx, req)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
	}
	return nil, ErrCacheMiss
}

// Ping checks the backend.
func (s *Storage) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

// Close releases the backend.
func (s *Storage) Close() error {
	return s.driver.Close()
}

// Cache is a single named cache.
type Cache struct {
	storage *Storage
	name    string
}

// Name returns the cache name.
func (c *Cache) Name() string {
	return c.name
}

// Match retrieves the entry stored for req.
// Returns ErrCacheMiss if there is none, if req is not a GET request, or if
// the stored response varies on a request header that differs.
func (c *Cache) Match(ctx context.Context, req *http.Request) (*Entry, error) {
	backend := c.storage.driver.Name()
	if req.Method != "" && req.Method != http.MethodGet {
		CacheMisses.WithLabelValues(backend).Inc()
		return nil, ErrCacheMiss
	}

	data, err := c.storage.driver.Get(ctx, c.name, KeyFor(req).String())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.WithLabelValues(backend).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%s get: %w", backend, err)
	}

	// Unmarshal entry
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if !entry.MatchesVary(req) {
		CacheMisses.WithLabelValues(backend).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backend).Inc()
	return &entry, nil
}

// Put stores entry for req, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, req *http.Request, entry *Entry) error {
	return c.PutAll(ctx, []Item{{Request: req, Entry: entry}})
}

// PutAll stores every item in one atomic batch. If any item is not
// cacheable nothing is written.
func (c *Cache) PutAll(ctx context.Context, items []Item) error {
	records := make([]Record, 0, len(items))
	var size int
	for _, item := range items {
		if item.Request == nil || item.Entry == nil {
			return fmt.Errorf("cache item cannot be nil")
		}
		if err := checkCacheable(item.Request, item.Entry); err != nil {
			return err
		}

		// Marshal entry
		data, err := json.Marshal(item.Entry)
		if err != nil {
			CacheErrors.WithLabelValues("set").Inc()
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		records = append(records, Record{Key: KeyFor(item.Request).String(), Data: data})
		size += len(data)
	}
	if len(records) == 0 {
		return nil
	}

	backend := c.storage.driver.Name()
	if err := c.storage.driver.SetAll(ctx, c.name, records); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%s set: %w", backend, err)
	}

	CacheStoredBytes.WithLabelValues(backend).Add(float64(size))
	return nil
}

// Delete removes the entry stored for req.
func (c *Cache) Delete(ctx context.Context, req *http.Request) (bool, error) {
	ok, err := c.storage.driver.Delete(ctx, c.name, KeyFor(req).String())
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("%s del: %w", c.storage.driver.Name(), err)
	}
	return ok, nil
}

// Keys lists the keys stored in this cache.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.storage.driver.List(ctx, c.name)
	if err != nil {
		CacheErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("%s list: %w", c.storage.driver.Name(), err)
	}
	return keys, nil
}
