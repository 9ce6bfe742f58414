// Package cache maintains derived aggregate counts with a short TTL so hot
// dashboard reads avoid recomputing from storage on every request.
//
// The cache is an optimization layer only: when the backend misbehaves the
// caller's compute function is the source of truth, and a failed cache write
// never fails the read.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

// DefaultTTL bounds how stale a cached count may be served.
const DefaultTTL = 15 * time.Second

// Backend stores serialized cache entries by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type entry struct {
	Value     int       `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Counts serves aggregate count reads through a TTL cache.
type Counts struct {
	backend Backend
	ttl     time.Duration
	clock   func() time.Time
	logger  *log.Logger
}

// Option configures a Counts cache.
type Option func(*Counts)

// WithTTL overrides the default entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Counts) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source. Test helper.
func WithClock(clock func() time.Time) Option {
	return func(c *Counts) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCounts creates a count cache over the given backend.
func NewCounts(backend Backend, logger *log.Logger, opts ...Option) *Counts {
	c := &Counts{
		backend: backend,
		ttl:     DefaultTTL,
		clock:   time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached count for key, recomputing and storing it
// when the entry is missing or expired. Backend failures degrade to a direct
// compute; they are logged, never surfaced.
func (c *Counts) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (int, error)) (int, error) {
	if c == nil || c.backend == nil {
		return compute(ctx)
	}

	payload, found, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logf("cache read %q failed: %v", key, err)
	} else if found {
		var cached entry
		if err := json.Unmarshal(payload, &cached); err != nil {
			c.logf("cache entry %q corrupt: %v", key, err)
		} else if c.clock().Before(cached.ExpiresAt) {
			return cached.Value, nil
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return 0, err
	}

	fresh, err := json.Marshal(entry{Value: value, ExpiresAt: c.clock().Add(c.ttl)})
	if err != nil {
		return value, nil
	}
	if err := c.backend.Set(ctx, key, fresh); err != nil {
		c.logf("cache write %q failed: %v", key, err)
	}
	return value, nil
}

// Invalidate removes a cached entry so the next read recomputes. Best effort:
// backend failures are logged and the next read falls through to compute via
// TTL expiry anyway.
func (c *Counts) Invalidate(ctx context.Context, key string) {
	if c == nil || c.backend == nil {
		return
	}
	if err := c.backend.Delete(ctx, key); err != nil {
		c.logf("cache invalidate %q failed: %v", key, err)
	}
}

// Close releases the backend.
func (c *Counts) Close() error {
	if c == nil || c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func (c *Counts) logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}

// Key builds a namespaced cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
