package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryDriver keeps caches in process memory.
type MemoryDriver struct {
	mu     sync.RWMutex
	order  []string
	caches map[string]map[string][]byte
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		caches: make(map[string]map[string][]byte),
	}
}

func (m *MemoryDriver) Name() string { return "memory" }

func (m *MemoryDriver) CreateCache(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.create(name)
	return nil
}

// create must be called with the write lock held.
func (m *MemoryDriver) create(name string) map[string][]byte {
	records, ok := m.caches[name]
	if !ok {
		records = make(map[string][]byte)
		m.caches[name] = records
		m.order = append(m.order, name)
	}
	return records
}

func (m *MemoryDriver) CacheNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemoryDriver) HasCache(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.caches[name]
	return ok, nil
}

func (m *MemoryDriver) DropCache(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[name]; !ok {
		return false, nil
	}
	delete(m.caches, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *MemoryDriver) Get(_ context.Context, name, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.caches[name][key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryDriver) SetAll(_ context.Context, name string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cache := m.create(name)
	for _, r := range records {
		cache[r.Key] = append([]byte(nil), r.Data...)
	}
	return nil
}

func (m *MemoryDriver) Delete(_ context.Context, name, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cache, ok := m.caches[name]
	if !ok {
		return false, nil
	}
	if _, ok := cache[key]; !ok {
		return false, nil
	}
	delete(cache, key)
	return true, nil
}

func (m *MemoryDriver) List(_ context.Context, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.caches[name]))
	for k := range m.caches[name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryDriver) Ping(context.Context) error { return nil }

func (m *MemoryDriver) Close() error { return nil }
