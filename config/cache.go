package config

import "time"

// CacheConfig contains wall-clock cache configuration. Entries are
// invalidated when the configured daily boundary passes, not after a fixed
// TTL since write.
type CacheConfig struct {
	// BoundaryHour and BoundaryMinute define the daily invalidation instant
	// in server-local time.
	BoundaryHour   int `env:"CACHE_BOUNDARY_HOUR"   envDefault:"7"`
	BoundaryMinute int `env:"CACHE_BOUNDARY_MINUTE" envDefault:"0"`

	// SweepInterval is how often the background sweep looks for stale
	// entries. Lazy read-time checks keep the cache correct even if the
	// sweep never runs.
	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"60s"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.BoundaryHour < 0 || c.BoundaryHour > 23 {
		c.BoundaryHour = 7
	}
	if c.BoundaryMinute < 0 || c.BoundaryMinute > 59 {
		c.BoundaryMinute = 0
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}
