package storage

import (
	"encoding/base64"
	"slices"
	"strings"
	"sync"
)

// memoryPrefix namespaces keys in a shared string store.
const memoryPrefix = "drm_"

// MemoryAdapter keeps base64 encoded values in a string map under a "drm_"
// prefix, the layout used by browser local storage. Keys without the prefix
// belong to someone else and are never listed or cleared.
type MemoryAdapter struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{values: map[string]string{}}
}

// Store saves data under key.
func (a *MemoryAdapter) Store(key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.values[memoryPrefix+key] = base64.StdEncoding.EncodeToString(data)

	return nil
}

// Retrieve returns the data under key.
func (a *MemoryAdapter) Retrieve(key string) ([]byte, bool, error) {
	a.mu.RLock()
	encoded, ok := a.values[memoryPrefix+key]
	a.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, newError(KindSerialization, key, err)
	}

	return data, true, nil
}

// Remove deletes key.
func (a *MemoryAdapter) Remove(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.values, memoryPrefix+key)

	return nil
}

// Clear removes every prefixed key.
func (a *MemoryAdapter) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key := range a.values {
		if strings.HasPrefix(key, memoryPrefix) {
			delete(a.values, key)
		}
	}

	return nil
}

// Keys lists stored keys without the prefix, sorted.
func (a *MemoryAdapter) Keys() ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]string, 0, len(a.values))
	for key := range a.values {
		if trimmed, ok := strings.CutPrefix(key, memoryPrefix); ok {
			keys = append(keys, trimmed)
		}
	}

	slices.Sort(keys)

	return keys, nil
}
