package models

import "time"

// SeatCount bounds for a valid observation. The upstream API reports -1 for
// "no information" and anything above 48 would exceed the largest seat-bus
// layout in service; both are kept for audit but excluded from aggregation.
const (
	MinValidSeats = 0
	MaxValidSeats = 48
)

// Route is one seat-bus route as discovered from the public transit API.
// The identifier is externally assigned and immutable; the remaining
// attributes are refreshed by the weekly catalogue pass.
type Route struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RouteType     string `json:"routeType"`
	RouteTypeName string `json:"routeTypeName"`
	StartStopName string `json:"startStopName"`
	EndStopName   string `json:"endStopName"`
	TurnStopID    string `json:"turnStopId"`
	TurnStopName  string `json:"turnStopName"`
	Company       string `json:"company"`
}

// Stop is a stop on a specific route with its position in the route's
// stop sequence.
type Stop struct {
	RouteID   string  `json:"routeId"`
	StationID string  `json:"stationId"`
	Seq       int     `json:"seq"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// RawObservation is one vehicle-position-and-seat-count reading. StopID is
// empty when the vehicle was between stops at poll time. Append-only except
// for a best-effort backfill of a missing stop name.
type RawObservation struct {
	ID             int64
	RouteID        string
	VehicleID      string
	StopID         string
	StopName       string
	RemainingSeats int
	ObservedAt     time.Time
}

// ValidSeats reports whether the observation's seat count is inside the
// domain accepted for aggregation.
func (o RawObservation) ValidSeats() bool {
	return o.RemainingSeats >= MinValidSeats && o.RemainingSeats <= MaxValidSeats
}

// StatKey is the composite key of a SeatStatistic: one record per
// (route, stop, day-of-week 0-6, hour-of-day 0-23).
type StatKey struct {
	RouteID   string
	StopID    string
	DayOfWeek int
	HourOfDay int
}

// SeatStatistic is the aggregated running average of remaining seats for a
// StatKey. SamplesCount only ever grows: updates are weighted merges, never
// replacements.
type SeatStatistic struct {
	StatKey
	StopName     string
	AverageSeats float64
	SamplesCount int
	UpdatedAt    time.Time
}

// Merge folds a batch average into the statistic proportionally to the
// sample counts on each side.
func (s *SeatStatistic) Merge(batchAverage float64, batchCount int, now time.Time) {
	if batchCount <= 0 {
		return
	}
	total := s.SamplesCount + batchCount
	s.AverageSeats = (s.AverageSeats*float64(s.SamplesCount) + batchAverage*float64(batchCount)) / float64(total)
	s.SamplesCount = total
	s.UpdatedAt = now
}

// CycleResult summarizes one collection cycle.
type CycleResult struct {
	CycleID        string `json:"cycleId"`
	RoutesPolled   int    `json:"routesPolled"`
	StoredCount    int    `json:"locationsStored"`
	SuppressedDups int    `json:"suppressedDuplicates"`
	Skipped        bool   `json:"skipped"`
	SkipReason     string `json:"skipReason,omitempty"`
}

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	Deleted      int `json:"deleted"`
	CacheEvicted int `json:"cacheEvicted"`
}
