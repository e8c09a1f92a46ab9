package collector

import (
	"context"
	"sync"
	"time"

	"seatwatch.gbus.kr/internal/metrics"
)

// LastPosition stores the stop and seat count most recently persisted for a
// vehicle, used to suppress duplicate dwell readings.
type LastPosition struct {
	Time   time.Time
	StopID string
	Seats  int
}

// PositionCache stores the most recent persisted position for each vehicle
// per route.
//
// The outer map key is the route ID, and the inner map key is the vehicle ID.
// An observation is a duplicate only when the vehicle is still at the same
// stop, the previous write is under ten minutes old, and the seat count moved
// by at most two. Anything else reflects real movement or real boarding and
// is stored.
type PositionCache struct {
	Mu    sync.RWMutex
	Store map[string]map[string]LastPosition
}

// NewPositionCache creates and returns a new PositionCache instance
// with an initialized storage map.
func NewPositionCache() *PositionCache {
	return &PositionCache{
		Store: make(map[string]map[string]LastPosition),
	}
}

const (
	dedupWindow    = 10 * time.Minute
	dedupSeatDelta = 2
	cacheEntryTTL  = 2 * time.Hour
)

// ShouldStore decides whether the reading is new enough to persist. When it
// is, the cache entry is updated; readings without a stop id are always
// stored but never cached, since "between stops" is not a dwell position.
func (c *PositionCache) ShouldStore(routeID, vehicleID, stopID string, seats int, now time.Time) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if stopID == "" {
		return true
	}

	if vehicles, ok := c.Store[routeID]; ok {
		if prev, ok := vehicles[vehicleID]; ok {
			sameStop := prev.StopID == stopID
			recent := now.Sub(prev.Time) < dedupWindow
			delta := seats - prev.Seats
			if delta < 0 {
				delta = -delta
			}
			if sameStop && recent && delta <= dedupSeatDelta {
				return false
			}
		}
	}

	if _, ok := c.Store[routeID]; !ok {
		c.Store[routeID] = make(map[string]LastPosition)
	}
	c.Store[routeID][vehicleID] = LastPosition{Time: now, StopID: stopID, Seats: seats}
	return true
}

// Count returns the number of cached vehicle positions across all routes.
func (c *PositionCache) Count() int {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	n := 0
	for _, vehicles := range c.Store {
		n += len(vehicles)
	}
	return n
}

// Reset drops every cached position, returning how many entries were held.
// Called on day rollover so every vehicle's first reading of the day lands.
func (c *PositionCache) Reset() int {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	n := 0
	for _, vehicles := range c.Store {
		n += len(vehicles)
	}
	c.Store = make(map[string]map[string]LastPosition)
	metrics.DedupCacheSize.Set(0)
	return n
}

// Evict removes entries older than threshold and returns how many were
// dropped.
func (c *PositionCache) Evict(threshold time.Duration) int {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if len(c.Store) == 0 {
		return 0
	}

	now := time.Now().UTC()
	removed := 0
	remaining := 0

	for routeID, vehicles := range c.Store {
		for vehicleID, prev := range vehicles {
			if now.Sub(prev.Time) > threshold {
				delete(c.Store[routeID], vehicleID)
				removed++
			}
		}
		if len(c.Store[routeID]) == 0 {
			delete(c.Store, routeID)
		} else {
			remaining += len(c.Store[routeID])
		}
	}
	metrics.DedupCacheSize.Set(float64(remaining))
	return removed
}

// ClearRoutine runs a background process that periodically evicts cache
// entries older than cacheEntryTTL. It stops when the context is canceled.
func (c *PositionCache) ClearRoutine(ctx context.Context, timeInterval time.Duration) {
	ticker := time.NewTicker(timeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Evict(cacheEntryTTL)
		case <-ctx.Done():
			return
		}
	}
}
