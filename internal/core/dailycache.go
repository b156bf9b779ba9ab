// Package core provides the business logic for the insights identity and
// tenant-resolution service.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CacheRepository defines the interface for keyed byte storage. The core
// defines the interface and the adapters layer provides implementations.
type CacheRepository interface {
	// Set stores a value with the given key and TTL. A TTL of 0 means the
	// key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key. Returns nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Returns true if the key was deleted.
	Delete(ctx context.Context, key string) (bool, error)

	// Keys returns all keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// Boundary is a fixed time of day at which all cached entries become stale,
// regardless of how long ago they were written.
type Boundary struct {
	Hour   int
	Minute int
}

// At returns the boundary instant on the calendar day of t.
func (b Boundary) At(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), b.Hour, b.Minute, 0, 0, t.Location())
}

// Last returns the most recent boundary instant at or before now.
func (b Boundary) Last(now time.Time) time.Time {
	today := b.At(now)
	if now.Before(today) {
		return today.AddDate(0, 0, -1)
	}
	return today
}

// Next returns the first boundary instant strictly after now.
func (b Boundary) Next(now time.Time) time.Time {
	today := b.At(now)
	if now.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// ShouldInvalidate reports whether an entry cached at cachedAt is stale at
// now. An entry is stale as soon as a boundary instant has passed between
// the write and the read. The check is a pure function of the two instants,
// so entries written before a crash are still seen as stale on the first
// read after restart even though no timer fired while the process was down.
func (b Boundary) ShouldInvalidate(cachedAt, now time.Time) bool {
	return cachedAt.Before(b.Last(now))
}

// envelope wraps every cached value with its write time so reads can apply
// the boundary check without any per-key bookkeeping elsewhere.
type envelope struct {
	Value    json.RawMessage `json:"value"`
	CachedAt time.Time       `json:"cached_at"`
}

// DailyCache is a keyed store whose entries are invalidated by crossing a
// fixed daily boundary rather than by elapsed time since write. Staleness is
// enforced three ways: lazily on every read, by a periodic sweep, and by a
// one-shot timer armed for the next boundary. The read check alone is
// sufficient for correctness; the sweep and timer only reclaim space early.
type DailyCache struct {
	repo     CacheRepository
	boundary Boundary
	prefix   string
	sweep    time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// DailyCacheOptions bundles dependencies for NewDailyCache.
type DailyCacheOptions struct {
	Repo     CacheRepository
	Boundary Boundary
	// Prefix namespaces this cache's keys in the shared repository.
	Prefix string
	// SweepInterval controls the periodic eviction pass. Defaults to 60s.
	SweepInterval time.Duration
	// Now overrides the clock (tests).
	Now    func() time.Time
	Logger *slog.Logger
}

// NewDailyCache creates a DailyCache.
func NewDailyCache(opts DailyCacheOptions) (*DailyCache, error) {
	if opts.Repo == nil {
		return nil, errors.New("cache repository is required")
	}
	if opts.Boundary.Hour < 0 || opts.Boundary.Hour > 23 ||
		opts.Boundary.Minute < 0 || opts.Boundary.Minute > 59 {
		return nil, fmt.Errorf("invalid cache boundary %02d:%02d", opts.Boundary.Hour, opts.Boundary.Minute)
	}

	c := &DailyCache{
		repo:     opts.Repo,
		boundary: opts.Boundary,
		prefix:   opts.Prefix,
		sweep:    opts.SweepInterval,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if c.prefix == "" {
		c.prefix = "daily:"
	}
	if c.sweep <= 0 {
		c.sweep = time.Minute
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Set stores a value under key. Last writer wins; there are no merge
// semantics for concurrent writes to the same key.
func (c *DailyCache) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	env, err := json.Marshal(envelope{Value: raw, CachedAt: c.now()})
	if err != nil {
		return fmt.Errorf("marshal cache envelope: %w", err)
	}

	return c.repo.Set(ctx, c.prefix+key, env, 0)
}

// Get retrieves the value under key into out. Returns false on a miss. An
// entry written before the most recent boundary is evicted and reported as
// a miss.
func (c *DailyCache) Get(ctx context.Context, key string, out any) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	raw, err := c.repo.Get(ctx, c.prefix+key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Unreadable entries are dropped rather than surfaced; the caller
		// refetches as on any other miss.
		c.logger.Warn("evicting undecodable cache entry", "key", key, "error", err)
		_, _ = c.repo.Delete(ctx, c.prefix+key)
		return false, nil
	}

	if c.boundary.ShouldInvalidate(env.CachedAt, c.now()) {
		if _, err := c.repo.Delete(ctx, c.prefix+key); err != nil {
			return false, fmt.Errorf("evict stale cache entry: %w", err)
		}
		return false, nil
	}

	if err := json.Unmarshal(env.Value, out); err != nil {
		return false, fmt.Errorf("unmarshal cache value: %w", err)
	}
	return true, nil
}

// Delete removes the value under key.
func (c *DailyCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	_, err := c.repo.Delete(ctx, c.prefix+key)
	return err
}

// Flush removes every entry in this cache's namespace.
func (c *DailyCache) Flush(ctx context.Context) error {
	keys, err := c.repo.Keys(ctx, c.prefix+"*")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := c.repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Sweep evicts every entry written before the most recent boundary. Errors
// on individual keys are logged and the pass continues.
func (c *DailyCache) Sweep(ctx context.Context) error {
	keys, err := c.repo.Keys(ctx, c.prefix+"*")
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}

	now := c.now()
	evicted := 0
	for _, key := range keys {
		raw, err := c.repo.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache sweep read failed", "key", key, "error", err)
			continue
		}
		if raw == nil {
			continue
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && !c.boundary.ShouldInvalidate(env.CachedAt, now) {
			continue
		}

		if _, err := c.repo.Delete(ctx, key); err != nil {
			c.logger.Warn("cache sweep evict failed", "key", key, "error", err)
			continue
		}
		evicted++
	}

	if evicted > 0 {
		c.logger.Info("cache sweep evicted stale entries", "count", evicted)
	}
	return nil
}

// Run drives the eager invalidation mechanisms until ctx is canceled: a
// periodic sweep plus a one-shot timer re-armed for each next boundary.
func (c *DailyCache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	timer := time.NewTimer(c.boundary.Next(c.now()).Sub(c.now()))
	defer timer.Stop()

	c.logger.Info("daily cache started",
		"boundary", fmt.Sprintf("%02d:%02d", c.boundary.Hour, c.boundary.Minute),
		"sweep_interval", c.sweep,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Sweep(ctx); err != nil {
				c.logger.Error("cache sweep failed", "error", err)
			}
		case <-timer.C:
			if err := c.Sweep(ctx); err != nil {
				c.logger.Error("boundary flush failed", "error", err)
			}
			timer.Reset(c.boundary.Next(c.now()).Sub(c.now()))
		}
	}
}
