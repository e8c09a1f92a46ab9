package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"seatwatch.gbus.kr/internal/config"
	"seatwatch.gbus.kr/internal/gbis"
	"seatwatch.gbus.kr/internal/metrics"
	"seatwatch.gbus.kr/internal/models"
	"seatwatch.gbus.kr/internal/report"
	"seatwatch.gbus.kr/internal/store"
)

// routeFetchWorkers caps concurrent position fetches within a cycle so a
// large group does not open hundreds of simultaneous upstream requests.
const routeFetchWorkers = 8

// Driver runs collection cycles: it resolves which groups are due, fetches
// vehicle positions for their routes, dedups and persists the readings, and
// folds the recent window into seat statistics.
type Driver struct {
	Config     *config.Config
	Store      *store.Store
	Client     *gbis.Client
	Cache      *PositionCache
	Planner    *Planner
	Backoffs   *config.BackoffStore
	Aggregator *Aggregator
	Logger     *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

func NewDriver(cfg *config.Config, st *store.Store, client *gbis.Client, cache *PositionCache, aggregator *Aggregator, logger *slog.Logger) *Driver {
	return &Driver{
		Config:     cfg,
		Store:      st,
		Client:     client,
		Cache:      cache,
		Planner:    NewPlanner(),
		Backoffs:   config.NewBackoffStore(),
		Aggregator: aggregator,
		Logger:     logger,
	}
}

// tryBegin marks a cycle as in flight. Returns false when another cycle is
// already running; overlapping triggers coalesce into the running one.
func (d *Driver) tryBegin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight {
		return false
	}
	d.inFlight = true
	return true
}

func (d *Driver) end() {
	d.mu.Lock()
	d.inFlight = false
	d.mu.Unlock()
}

// RunCycle executes one collection cycle at now. It never returns an error
// for per-route failures; only a skipped cycle reports why via the result.
func (d *Driver) RunCycle(ctx context.Context, now time.Time) models.CycleResult {
	result := models.CycleResult{CycleID: uuid.NewString()}

	if !d.tryBegin() {
		result.Skipped = true
		result.SkipReason = "cycle already in progress"
		metrics.CyclesTotal.WithLabelValues("coalesced").Inc()
		return result
	}
	defer d.end()

	if d.Planner.ResetIfNewDay(now) {
		cleared := d.Cache.Reset()
		d.Logger.Info("Day rollover: reset call counter and position cache", "cache_cleared", cleared)
	}

	settings := d.Config.GetSettings()
	interval, open := CollectionInterval(now, settings)
	if !open {
		result.Skipped = true
		result.SkipReason = "outside operating hours"
		metrics.CyclesTotal.WithLabelValues("halted").Inc()
		return result
	}

	routeIDs, err := d.Store.RouteIDs()
	if err != nil {
		report.ReportError(err)
		d.Logger.Error("Failed to load route catalogue", "error", err)
		result.Skipped = true
		result.SkipReason = "route catalogue unavailable"
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return result
	}
	if len(routeIDs) == 0 {
		result.Skipped = true
		result.SkipReason = "no routes catalogued"
		metrics.CyclesTotal.WithLabelValues("empty").Inc()
		return result
	}

	groups := GroupRoutes(routeIDs)
	sizes := make([]int, len(groups))
	for g := range groups {
		sizes[g] = len(groups[g])
	}

	due, skipped := d.Planner.DueGroups(now, sizes, settings)
	for _, g := range skipped {
		d.Logger.Warn("Daily call budget reached, skipping group",
			"group", g, "routes", sizes[g], "calls_today", d.Planner.DailyCalls)
	}
	if len(due) == 0 {
		result.Skipped = true
		result.SkipReason = "no group due"
		metrics.CyclesTotal.WithLabelValues("idle").Inc()
		return result
	}

	for _, g := range due {
		polled, stored, suppressed := d.collectGroup(ctx, g, groups[g], now)
		result.RoutesPolled += polled
		result.StoredCount += stored
		result.SuppressedDups += suppressed
	}
	metrics.DedupCacheSize.Set(float64(d.Cache.Count()))

	cutoff := now.Add(-LookbackWindow(interval))
	if err := d.Aggregator.Run(ctx, now, cutoff); err != nil {
		report.ReportError(err)
		d.Logger.Error("Aggregation pass failed", "error", err)
	}

	metrics.CyclesTotal.WithLabelValues("success").Inc()
	d.Logger.Info("Collection cycle complete",
		"cycle_id", result.CycleID,
		"groups", len(due),
		"routes_polled", result.RoutesPolled,
		"stored", result.StoredCount,
		"suppressed", result.SuppressedDups)
	return result
}

// collectGroup polls every route of a group with bounded concurrency.
// Routes in backoff after repeated failures are skipped until their retry
// time passes.
func (d *Driver) collectGroup(ctx context.Context, group int, routeIDs []string, now time.Time) (polled, stored, suppressed int) {
	d.Logger.Info("Collecting group", "group", group, "routes", len(routeIDs))

	type routeResult struct {
		stored     int
		suppressed int
		polled     bool
	}

	results := make([]routeResult, len(routeIDs))
	sem := make(chan struct{}, routeFetchWorkers)
	var wg sync.WaitGroup

	for i, routeID := range routeIDs {
		if retryAt, ok := d.Backoffs.NextRetryAt(routeID); ok && now.UTC().Before(retryAt) {
			d.Logger.Info("Route in backoff, skipping", "route_id", routeID, "retry_at", retryAt)
			continue
		}

		wg.Add(1)
		go func(i int, routeID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			s, dup, err := d.collectRoute(ctx, routeID, now)
			if err != nil {
				metrics.RouteFetchErrors.Inc()
				d.Backoffs.UpdateBackoff(routeID)
				report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
					Tags:  report.MakeMap("route_id", routeID),
					Level: sentry.LevelWarning,
				})
				d.Logger.Error("Failed to collect route", "route_id", routeID, "error", err)
				return
			}
			d.Backoffs.ResetBackoff(routeID)
			results[i] = routeResult{stored: s, suppressed: dup, polled: true}
		}(i, routeID)
	}
	wg.Wait()

	for _, r := range results {
		if !r.polled {
			continue
		}
		polled++
		stored += r.stored
		suppressed += r.suppressed
	}
	metrics.RoutesPolled.Add(float64(polled))
	return polled, stored, suppressed
}

// collectRoute fetches one route's vehicle positions and persists the
// readings that pass the duplicate filter.
func (d *Driver) collectRoute(ctx context.Context, routeID string, now time.Time) (stored, suppressed int, err error) {
	locations, err := d.Client.BusLocations(ctx, routeID)
	if err != nil {
		return 0, 0, err
	}

	for _, loc := range locations {
		vehicleID := loc.VehID.String()
		stopID := loc.StationID.String()
		if stopID == "0" {
			stopID = ""
		}
		seats := loc.SeatCount()

		if !d.Cache.ShouldStore(routeID, vehicleID, stopID, seats, now) {
			suppressed++
			metrics.ObservationsSuppressed.Inc()
			continue
		}

		stopName := ""
		if stopID != "" {
			if name, nameErr := d.Store.StopName(routeID, stopID); nameErr == nil {
				stopName = name
			}
		}

		obs := models.RawObservation{
			RouteID:        routeID,
			VehicleID:      vehicleID,
			StopID:         stopID,
			StopName:       stopName,
			RemainingSeats: seats,
			ObservedAt:     now,
		}
		if insertErr := d.Store.InsertObservation(obs); insertErr != nil {
			d.Logger.Error("Failed to persist observation",
				"route_id", routeID, "vehicle_id", vehicleID, "error", insertErr)
			continue
		}
		stored++
		metrics.ObservationsStored.Inc()
	}
	return stored, suppressed, nil
}
