// Package session holds the keyed state that a page's control loop keeps
// between iterations. Values are stored as JSON so the same state can live in
// process memory or in Redis.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store is a persistent key/value store with JSON-encoded values.
type Store interface {
	// Get decodes the value stored under key into v. It reports false when
	// the key does not exist.
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Contains(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a Store backed by a map. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string, v any) (bool, error) {
	m.mu.RLock()
	b, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Contains(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.data[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Scoped is a view of a Store that prefixes every key with a page key, so
// pages sharing one backend never see each other's state.
type Scoped struct {
	store  Store
	prefix string
}

// Scope returns the view of store belonging to pageKey.
func Scope(store Store, pageKey string) *Scoped {
	return &Scoped{store: store, prefix: PageKey(pageKey, "")}
}

// PageKey builds the fully qualified key of name within pageKey.
// Format: {pageKey}_page_{name}
func PageKey(pageKey, name string) string {
	return pageKey + "_page_" + name
}

func (s *Scoped) Get(ctx context.Context, key string, v any) (bool, error) {
	return s.store.Get(ctx, s.prefix+key, v)
}

func (s *Scoped) Set(ctx context.Context, key string, v any) error {
	return s.store.Set(ctx, s.prefix+key, v)
}

func (s *Scoped) Contains(ctx context.Context, key string) (bool, error) {
	return s.store.Contains(ctx, s.prefix+key)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.prefix+key)
}
