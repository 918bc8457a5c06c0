package weather

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yegors/co-wx/pkg/logger"
)

type cacheEntry struct {
	observation *Observation
	expiresAt   time.Time
}

// Cache holds the latest observation per station with thread-safe operations
type Cache struct {
	entries map[string]cacheEntry
	expiry  time.Duration
	clock   clockwork.Clock
	logger  *logger.Logger
	mu      sync.RWMutex
}

// NewCache creates a new observation cache
func NewCache(expiry time.Duration, clock clockwork.Clock, log *logger.Logger) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		expiry:  expiry,
		clock:   clock,
		logger:  log.Named("weather-cache"),
	}
}

// snapshot returns a copy of the entry with Stale set from the expiry
func (e cacheEntry) snapshot(now time.Time) *Observation {
	obs := *e.observation
	obs.Stale = !now.Before(e.expiresAt)
	return &obs
}

// Get returns a copy of the cached observation for the station.
// fresh is false when the entry has outlived the cache expiry; the copy has Stale set.
func (c *Cache) Get(station string) (obs *Observation, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[station]
	if !ok {
		return nil, false
	}
	obs = entry.snapshot(c.clock.Now())
	return obs, !obs.Stale
}

// Set stores a copy of the observation as the latest for its station
func (c *Cache) Set(obs *Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *obs
	stored.Stale = false
	expiresAt := c.clock.Now().Add(c.expiry)
	c.entries[obs.Station] = cacheEntry{observation: &stored, expiresAt: expiresAt}

	c.logger.Debug("Observation cached",
		logger.String("station", obs.Station),
		logger.String("outcome", obs.DecodeOutcome),
		logger.Time("expires_at", expiresAt))
}

// All returns copies of the cached observations ordered by station
func (c *Cache) All() []*Observation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	all := make([]*Observation, 0, len(c.entries))
	for _, entry := range c.entries {
		all = append(all, entry.snapshot(now))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Station < all[j].Station })
	return all
}

// GetStats returns cache statistics
func (c *Cache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	expired := 0
	failed := 0
	var lastUpdated time.Time
	for _, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			expired++
		}
		if !entry.observation.Decoded() {
			failed++
		}
		if entry.observation.FetchedAt.After(lastUpdated) {
			lastUpdated = entry.observation.FetchedAt
		}
	}

	return map[string]interface{}{
		"stations":        len(c.entries),
		"expired":         expired,
		"decode_failures": failed,
		"last_updated":    lastUpdated,
	}
}
