package types

// Default cache policy values, in seconds.
const (
	DefaultRefreshInterval uint64 = 0
	DefaultMaxAge          uint64 = 3600
)

// CacheConfig controls how long fetched registry data stays fresh.
// A RefreshInterval of zero disables scheduled refresh.
type CacheConfig struct {
	RefreshInterval uint64 `json:"refresh_interval"`
	MaxAge          uint64 `json:"max_age"`
}

// DefaultCacheConfig returns the policy used when none has been stored.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		RefreshInterval: DefaultRefreshInterval,
		MaxAge:          DefaultMaxAge,
	}
}
