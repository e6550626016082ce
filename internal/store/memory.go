package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process fake implementing Store, for unit tests that
// want to substitute for Badger per spec §9.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	e, ok := m.entries[key]
	isNew := !ok || e.expired(now)

	var current int64
	if !isNew {
		current, _ = strconv.ParseInt(string(e.value), 10, 64)
	}
	current += delta

	newEntry := memEntry{value: []byte(strconv.FormatInt(current, 10))}
	if isNew && ttl > 0 {
		newEntry.expiresAt = now.Add(ttl)
	} else if !isNew {
		newEntry.expiresAt = e.expiresAt
	}
	m.entries[key] = newEntry
	return current, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	result := make(map[string][]byte)
	for k, e := range m.entries {
		if e.expired(now) {
			continue
		}
		if strings.HasPrefix(k, prefix) {
			result[k] = e.value
		}
	}
	return result, nil
}

func (m *MemoryStore) Close() error { return nil }

// DumpAll returns every non-expired entry, satisfying backup.KVDumper so the
// memory store can stand in for Badger in backup-manager tests.
func (m *MemoryStore) DumpAll(ctx context.Context) (map[string][]byte, error) {
	return m.Scan(ctx, "")
}
