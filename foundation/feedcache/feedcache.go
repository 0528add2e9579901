// Package feedcache keeps the last retrieved copy of a feed, refreshing it when it expires.
// When a refresh fails after its retries the previous copy is served even if expired.
package feedcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/OpenTransitTools/nextdeparture/foundation/clock"
	"golang.org/x/sync/singleflight"
)

// ErrStaleDataServed is informational, a refresh failed and the previous value was returned
var ErrStaleDataServed = errors.New("stale data served")

// ErrAbsent is returned when a refresh failed and no previous value exists
var ErrAbsent = errors.New("no cached value")

// Status describes where the value returned by Get came from
type Status int

const (
	// Absent no value could be produced
	Absent Status = iota
	// Fresh the cached value had not expired
	Fresh
	// Refreshed the value was fetched during this call
	Refreshed
	// Stale refreshing failed and the expired value was returned
	Stale
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Refreshed:
		return "refreshed"
	case Stale:
		return "stale"
	}
	return "absent"
}

// FetchFunc retrieves a new value of a feed
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer is notified of fetch attempts and stale serves, used for metrics
type Observer interface {
	FetchAttempted(feed string, err error)
	StaleServed(feed string)
}

// Config controls expiry and retries of a Cache
type Config struct {
	// Name identifies the feed in logs and metrics
	Name string
	// Expiry is how long a fetched value is served without refreshing
	Expiry time.Duration
	// MaxAttempts bounds fetch attempts per refresh
	MaxAttempts int
	// InitialBackoff is the wait after the first failed attempt, doubled after each further failure
	InitialBackoff time.Duration
	// FetchTimeout bounds a single attempt, zero means no timeout beyond ctx
	FetchTimeout time.Duration
}

// Entry is a cached value and when it was fetched
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
}

// Cache holds a single feed value
type Cache[T any] struct {
	log      *log.Logger
	cfg      Config
	fetch    FetchFunc[T]
	clock    clock.Clock
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	entry *Entry[T]
	group singleflight.Group
}

// Option customizes a Cache
type Option[T any] func(*Cache[T])

// WithClock replaces the system clock
func WithClock[T any](c clock.Clock) Option[T] {
	return func(cache *Cache[T]) {
		cache.clock = c
	}
}

// WithObserver reports fetches and stale serves to observer
func WithObserver[T any](observer Observer) Option[T] {
	return func(cache *Cache[T]) {
		cache.observer = observer
	}
}

// WithSleep replaces the backoff wait, tests use it to avoid real delays
func WithSleep[T any](sleep func(ctx context.Context, d time.Duration) error) Option[T] {
	return func(cache *Cache[T]) {
		cache.sleep = sleep
	}
}

// New builds a Cache that produces values with fetch
func New[T any](log *log.Logger, cfg Config, fetch FetchFunc[T], options ...Option[T]) *Cache[T] {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	c := &Cache[T]{
		log:   log,
		cfg:   cfg,
		fetch: fetch,
		clock: clock.RealClock{},
		sleep: sleepContext,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Get returns the cached value when it has not expired. Otherwise it refreshes the value.
// When the refresh fails the expired value is returned with status Stale and an error wrapping
// ErrStaleDataServed. Without any value the status is Absent and the error wraps ErrAbsent.
// Concurrent refreshes are collapsed into one fetch.
func (c *Cache[T]) Get(ctx context.Context) (T, Status, error) {
	if entry, ok := c.fresh(); ok {
		return entry.Value, Fresh, nil
	}

	result, err, _ := c.group.Do(c.cfg.Name, func() (interface{}, error) {
		// another caller may have refreshed while this one waited
		if entry, ok := c.fresh(); ok {
			return entry, nil
		}
		value, err := c.fetchWithRetry(ctx)
		if err != nil {
			return nil, err
		}
		entry := &Entry[T]{Value: value, FetchedAt: c.clock.Now()}
		c.mu.Lock()
		c.entry = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err == nil {
		return result.(*Entry[T]).Value, Refreshed, nil
	}

	previous := c.Peek()
	if previous == nil {
		var zero T
		return zero, Absent, fmt.Errorf("%s: %w: %w", c.cfg.Name, ErrAbsent, err)
	}
	if c.observer != nil {
		c.observer.StaleServed(c.cfg.Name)
	}
	c.log.Printf("serving %s fetched at %v after refresh failure: %v", c.cfg.Name, previous.FetchedAt, err)
	return previous.Value, Stale, fmt.Errorf("%s: %w: %w", c.cfg.Name, ErrStaleDataServed, err)
}

// Peek returns the current entry, expired or not, without fetching. Returns nil when empty.
func (c *Cache[T]) Peek() *Entry[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return nil
	}
	entry := *c.entry
	return &entry
}

// Set stores value as fetched now
func (c *Cache[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &Entry[T]{Value: value, FetchedAt: c.clock.Now()}
}

// Touch marks the current entry as fetched now, used when the source reports no change
func (c *Cache[T]) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil {
		c.entry.FetchedAt = c.clock.Now()
	}
}

func (c *Cache[T]) fresh() (*Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return nil, false
	}
	if c.clock.Now().Sub(c.entry.FetchedAt) >= c.cfg.Expiry {
		return c.entry, false
	}
	return c.entry, true
}

// fetchWithRetry calls fetch up to MaxAttempts times, doubling the wait between attempts.
// No lock is held while fetching or waiting.
func (c *Cache[T]) fetchWithRetry(ctx context.Context) (T, error) {
	var zero T
	var lastErr error
	backoff := c.cfg.InitialBackoff
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		value, err := c.fetchOnce(ctx)
		if c.observer != nil {
			c.observer.FetchAttempted(c.cfg.Name, err)
		}
		if err == nil {
			return value, nil
		}
		lastErr = err
		c.log.Printf("fetching %s attempt %d of %d failed: %v", c.cfg.Name, attempt, c.cfg.MaxAttempts, err)
		if attempt == c.cfg.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, backoff); err != nil {
			return zero, err
		}
		backoff *= 2
	}
	return zero, lastErr
}

func (c *Cache[T]) fetchOnce(ctx context.Context) (T, error) {
	if c.cfg.FetchTimeout <= 0 {
		return c.fetch(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()
	return c.fetch(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
