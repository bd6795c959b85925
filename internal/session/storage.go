package session

import (
	"context"
	"sync"
)

// Keys of the three independent durable entries.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUserProfile  = "userProfile"
)

// allKeys is the full persisted layout, removed together on logout.
var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserProfile}

// Storage is the durable medium behind a Store. It is private to the Store:
// no other component reads or writes it.
//
// Implementations must apply Save atomically where the medium allows it, so
// an access/refresh pair is never half-written.
type Storage interface {
	// Load returns the values present for the given keys. Missing keys are
	// absent from the map, not an error.
	Load(ctx context.Context, keys ...string) (map[string]string, error)

	// Save writes every entry, replacing existing values.
	Save(ctx context.Context, entries map[string]string) error

	// Delete removes the given keys. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
}

// MemoryStorage keeps entries in a map for the life of the process.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

// Load implements Storage.
func (m *MemoryStorage) Load(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Save implements Storage.
func (m *MemoryStorage) Save(_ context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range entries {
		m.entries[k] = v
	}
	return nil
}

// Delete implements Storage.
func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
