// Package loginattempt counts recent failed logins per identity so the login flow can
// demand a human-verification challenge once a threshold is reached.
package loginattempt

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	// DefaultMaxFailures is the failure count at which a challenge becomes required.
	DefaultMaxFailures = 3
	// DefaultWindow is how long a failure count survives without a new failure.
	DefaultWindow = 15 * time.Minute
	// DefaultCapacity is how many identities are tracked before the least useful are evicted.
	DefaultCapacity = 10_000
)

// Option configures a Counter.
type Option func(*options)

type options struct {
	capacity int64
}

// WithCapacity sets how many identities the counter tracks. The frequency sketch is sized
// at ten counters per tracked identity.
func WithCapacity(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// Counter is a process-local failure counter with a sliding expiry window: every
// recorded failure restarts the window for that identity. Safe for concurrent use.
type Counter struct {
	mu          sync.Mutex
	cache       *ristretto.Cache[string, int]
	maxFailures int
	window      time.Duration
	capacity    int64
}

// NewCounter returns a Counter requiring a challenge once an identity has maxFailures
// failures within window.
func NewCounter(maxFailures int, window time.Duration, opts ...Option) (*Counter, error) {
	if maxFailures < 1 {
		return nil, errors.New("loginattempt: maxFailures must be at least 1")
	}
	if window <= 0 {
		return nil, errors.New("loginattempt: window must be positive")
	}
	o := options{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, int]{
		NumCounters:        10 * o.capacity,
		MaxCost:            o.capacity,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Counter{cache: cache, maxFailures: maxFailures, window: window, capacity: o.capacity}, nil
}

// Normalize trims and lower-cases identity. Blank identities share one bucket.
func Normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func bucket(identity string) string {
	return "login:" + Normalize(identity)
}

// RecordFailure increments the identity's count, restarts its window and returns the new count.
func (c *Counter) RecordFailure(identity string) int {
	key := bucket(identity)
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := c.cache.Get(key)
	n++
	c.cache.SetWithTTL(key, n, 1, c.window)
	c.cache.Wait()
	return n
}

// RecordSuccess clears the identity's count.
func (c *Counter) RecordSuccess(identity string) {
	key := bucket(identity)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Del(key)
	c.cache.Wait()
}

// Count returns the live failure count for identity.
func (c *Counter) Count(identity string) int {
	n, _ := c.cache.Get(bucket(identity))
	return n
}

// IsChallengeRequired reports whether identity has reached the failure threshold.
func (c *Counter) IsChallengeRequired(identity string) bool {
	return c.Count(identity) >= c.maxFailures
}

// Threshold returns the configured failure threshold.
func (c *Counter) Threshold() int { return c.maxFailures }

// Capacity returns how many identities the counter tracks.
func (c *Counter) Capacity() int64 { return c.capacity }

// Close releases the cache's background goroutines.
func (c *Counter) Close() {
	c.cache.Close()
}
