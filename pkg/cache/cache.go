// Package cache keeps recently fetched registry data for a bounded age.
package cache

import (
	"strings"
	"sync"
	"time"

	akyoto "github.com/akyoto/cache"
	"github.com/sirupsen/logrus"
)

// CatalogKind is the cache kind for a registry's repository list.
const CatalogKind = "catalog"

// cleanupInterval is how often the backing store drops expired entries.
const cleanupInterval = time.Minute

// TagsKind returns the cache kind for the tag list of repo.
func TagsKind(repo string) string {
	return "tags:" + repo
}

// CachedData wraps a value with the Unix time it was fetched and the registry it came from.
type CachedData[T any] struct {
	Data       T      `json:"data"`
	Timestamp  uint64 `json:"timestamp"`
	RegistryID string `json:"registry_id"`
}

// NewCachedData stamps data with the current time.
func NewCachedData[T any](data T, registryID string) CachedData[T] {
	return CachedData[T]{Data: data, Timestamp: unixNow(time.Now()), RegistryID: registryID}
}

// IsExpired reports whether the entry is older than maxAge seconds.
func (c CachedData[T]) IsExpired(maxAge uint64) bool {
	return c.IsExpiredAt(maxAge, unixNow(time.Now()))
}

// IsExpiredAt reports whether the entry is older than maxAge seconds at now.
// A timestamp in the future counts as age zero.
func (c CachedData[T]) IsExpiredAt(maxAge, now uint64) bool {
	if now <= c.Timestamp {
		return false
	}

	return now-c.Timestamp > maxAge
}

// Store holds CachedData values keyed by registry and kind.
type Store struct {
	mu     sync.RWMutex
	items  *akyoto.Cache
	keys   map[string]struct{}
	maxAge uint64
	now    func() time.Time
}

// NewStore creates a store whose entries expire after maxAge seconds.
func NewStore(maxAge uint64) *Store {
	return &Store{
		items:  akyoto.New(cleanupInterval),
		keys:   map[string]struct{}{},
		maxAge: maxAge,
		now:    time.Now,
	}
}

// SetMaxAge changes the expiry for subsequent lookups.
func (s *Store) SetMaxAge(maxAge uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxAge = maxAge
}

// Put stores data for registryID and kind.
func Put[T any](s *Store, registryID, kind string, data T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(registryID, kind)
	entry := CachedData[T]{Data: data, Timestamp: unixNow(s.now()), RegistryID: registryID}

	// The backing TTL is one second longer than the age check so that Get
	// decides expiry, not the cleanup loop.
	s.items.Set(key, entry, time.Duration(s.maxAge+1)*time.Second)
	s.keys[key] = struct{}{}

	logrus.WithFields(logrus.Fields{"registry": registryID, "kind": kind}).Trace("Cached")
}

// Get returns the cached entry when it exists, has type T and has not expired.
func Get[T any](s *Store, registryID, kind string) (CachedData[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items.Get(storeKey(registryID, kind))
	if !ok {
		return CachedData[T]{}, false
	}

	entry, ok := value.(CachedData[T])
	if !ok || entry.IsExpiredAt(s.maxAge, unixNow(s.now())) {
		return CachedData[T]{}, false
	}

	return entry, true
}

// Invalidate drops every entry for registryID.
func (s *Store) Invalidate(registryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := registryID + "/"

	for key := range s.keys {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
			delete(s.keys, key)
		}
	}
}

// Close stops the cleanup loop.
func (s *Store) Close() {
	s.items.Close()
}

func storeKey(registryID, kind string) string {
	return registryID + "/" + kind
}

func unixNow(t time.Time) uint64 {
	seconds := t.Unix()
	if seconds < 0 {
		return 0
	}

	return uint64(seconds)
}
