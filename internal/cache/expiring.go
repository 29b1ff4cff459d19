// Package cache provides a bounded, TTL-expiring set used to track pending
// inventory requests and similar "seen recently" bookkeeping.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keato/btcnode/internal/log"
	"github.com/keato/btcnode/internal/metrics"
)

const (
	// DefaultTTL matches the pending-inv expiry the dispatcher relies on.
	DefaultTTL = 2 * time.Minute
	// DefaultSweepInterval matches the dispatcher's periodic cleanup cadence.
	DefaultSweepInterval = 10 * time.Second
)

// Expiring is a set of comparable keys with a per-entry absolute expiry.
// It is safe for concurrent use. A background goroutine sweeps expired
// entries at SweepInterval; Has also performs lazy expiry so staleness
// never outlives one sweep interval.
type Expiring[K comparable] struct {
	name          string
	ttl           time.Duration
	sweepInterval time.Duration

	mu      sync.RWMutex
	entries map[K]time.Time

	stop chan struct{}
	once sync.Once
}

// NewExpiring creates a cache named name (used only for logging/metrics
// labels) with the given TTL and sweep interval, and starts its sweep
// goroutine.
func NewExpiring[K comparable](name string, ttl, sweepInterval time.Duration) *Expiring[K] {
	c := &Expiring[K]{
		name:          name,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		entries:       make(map[K]time.Time),
		stop:          make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Insert sets k's expiry to now + TTL, overwriting any existing entry.
func (c *Expiring[K]) Insert(k K) {
	c.mu.Lock()
	c.entries[k] = time.Now().Add(c.ttl)
	c.mu.Unlock()
}

// Has reports whether k is present and not yet expired. An expired entry
// found during the check is evicted immediately rather than waiting for the
// next sweep.
func (c *Expiring[K]) Has(k K) bool {
	c.mu.RLock()
	expiry, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		c.mu.Lock()
		delete(c.entries, k)
		c.mu.Unlock()
		return false
	}
	return true
}

// Remove deletes k unconditionally.
func (c *Expiring[K]) Remove(k K) {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
}

// Len returns the number of entries not yet expired.
func (c *Expiring[K]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, expiry := range c.entries {
		if now.Before(expiry) {
			n++
		}
	}
	return n
}

// Stop halts the sweep goroutine. Safe to call more than once.
func (c *Expiring[K]) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Expiring[K]) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	logger := log.ComponentLogger("cache").With().Str("cache_name", c.name).Logger()

	for {
		select {
		case <-ticker.C:
			c.sweep(logger)
		case <-c.stop:
			return
		}
	}
}

// sweep evicts expired entries. It only holds the lock for the duration of
// the scan, so inserts and lookups are never blocked for longer than a
// single pass over the current entry set.
func (c *Expiring[K]) sweep(logger zerolog.Logger) {
	now := time.Now()

	c.mu.Lock()
	evicted := 0
	for k, expiry := range c.entries {
		if now.After(expiry) {
			delete(c.entries, k)
			evicted++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	metrics.CacheSweeps.WithLabelValues(c.name).Inc()
	if evicted > 0 {
		metrics.CacheEvictions.WithLabelValues(c.name).Add(float64(evicted))
		logger.Debug().Int("evicted", evicted).Int("remaining", remaining).Msg("swept expired entries")
	}
	metrics.PendingInvSize.WithLabelValues(c.name).Set(float64(remaining))
}
