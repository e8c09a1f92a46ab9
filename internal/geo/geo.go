package geo

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/s2"
	"seatwatch.gbus.kr/internal/models"
)

// BoundingBox defines the corners of a lat/lon box
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains checks whether the given latitude and longitude are within the bounding box
func (b *BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ComputeBoundingBox computes the bounding box of a route's stop list.
// Stops with invalid coordinates are skipped.
func ComputeBoundingBox(stops []models.Stop) (BoundingBox, error) {
	if len(stops) == 0 {
		return BoundingBox{}, fmt.Errorf("no stops to compute bounding box")
	}

	minLat := math.MaxFloat64
	maxLat := -math.MaxFloat64
	minLon := math.MaxFloat64
	maxLon := -math.MaxFloat64

	for _, stop := range stops {
		if !IsValidLatLon(stop.Lat, stop.Lon) {
			continue
		}
		if stop.Lat < minLat {
			minLat = stop.Lat
		}
		if stop.Lat > maxLat {
			maxLat = stop.Lat
		}
		if stop.Lon < minLon {
			minLon = stop.Lon
		}
		if stop.Lon > maxLon {
			maxLon = stop.Lon
		}
	}

	if minLat == math.MaxFloat64 || maxLat == -math.MaxFloat64 ||
		minLon == math.MaxFloat64 || maxLon == -math.MaxFloat64 {
		return BoundingBox{}, fmt.Errorf("no valid latitude/longitude found in stops")
	}

	return BoundingBox{
		MinLat: minLat,
		MaxLat: maxLat,
		MinLon: minLon,
		MaxLon: maxLon,
	}, nil
}

// BoundingBoxStore stores bounding boxes per route in memory with concurrency safety
type BoundingBoxStore struct {
	mu    sync.RWMutex
	store map[string]BoundingBox
}

// NewBoundingBoxStore creates and returns a new BoundingBoxStore
func NewBoundingBoxStore() *BoundingBoxStore {
	return &BoundingBoxStore{
		store: make(map[string]BoundingBox),
	}
}

// Set stores a bounding box for a specific route ID
func (s *BoundingBoxStore) Set(routeID string, bbox BoundingBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[routeID] = bbox
}

// Get retrieves the bounding box for a specific route ID
func (s *BoundingBoxStore) Get(routeID string) (BoundingBox, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bbox, ok := s.store[routeID]
	return bbox, ok
}

// IsValidLatLon returns true if the given latitude and longitude values
// fall within the valid geographic coordinate bounds.
//
// Latitude must be between -90 and 90 degrees, and longitude must be
// between -180 and 180 degrees.
//
// Note: (0,0) is treated as invalid even though it is a real location in the
// Gulf of Guinea, because the transit API reports uninitialized stop
// coordinates as zeroes.
func IsValidLatLon(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

// earthRadiusInMeters is the Earth's volumetric mean radius, commonly used
// for spherical distance approximations.
const earthRadiusInMeters = 6371000

// HaversineDistance returns the great-circle distance in meters between two
// coordinate pairs.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusInMeters
}
