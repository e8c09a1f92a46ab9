package app

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"seatwatch.gbus.kr/internal/report"
)

// HealthStatus is the JSON body of /v1/healthcheck. The application is ready
// once at least one route is catalogued; before that, collection cycles have
// nothing to poll.
type HealthStatus struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Routes      int    `json:"routes"`
	Ready       bool   `json:"ready"`
}

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	numRoutes, err := app.Store.CountRoutes()
	if err != nil {
		report.ReportError(err)
		app.Logger.Error("Healthcheck failed to count routes", "error", err)
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}

	ready := numRoutes > 0

	status := HealthStatus{
		Status:      "available",
		Environment: app.ConfigService.Config.Env,
		Version:     app.Version,
		Routes:      numRoutes,
		Ready:       ready,
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(status)
}

// collectResponse is the JSON body of POST /v1/collect.
type collectResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	RoutesPolled    int    `json:"routesPolled"`
	LocationsStored int    `json:"locationsStored"`
}

// collectHandler triggers one collection cycle. Safe to call at any time:
// outside operating hours or while a cycle is running it reports what
// happened without doing work. About 30% of successful triggers also kick a
// retention sweep, matching the cadence the fixed timer alone cannot
// guarantee under irregular external triggering.
func (app *Application) collectHandler(w http.ResponseWriter, r *http.Request) {
	result := app.Driver.RunCycle(r.Context(), time.Now())

	resp := collectResponse{
		Success:         !result.Skipped,
		RoutesPolled:    result.RoutesPolled,
		LocationsStored: result.StoredCount,
	}
	if result.Skipped {
		resp.Message = result.SkipReason
	} else {
		resp.Message = "collection cycle completed"
		if rand.Float64() < 0.3 {
			// The request context dies with the response; the sweep outlives it.
			go func() {
				if _, err := app.Sweeper.RunOnce(context.Background()); err != nil {
					app.Logger.Error("Post-collection sweep failed", "error", err)
				}
			}()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// sweepResponse is the JSON body of POST /v1/sweep.
type sweepResponse struct {
	Success      bool   `json:"success"`
	Deleted      int    `json:"deleted"`
	CacheEvicted int    `json:"cacheEvicted"`
	Message      string `json:"message,omitempty"`
}

func (app *Application) sweepHandler(w http.ResponseWriter, r *http.Request) {
	result, err := app.Sweeper.RunOnce(r.Context())

	resp := sweepResponse{
		Success:      err == nil,
		Deleted:      result.Deleted,
		CacheEvicted: result.CacheEvicted,
	}
	if err != nil {
		resp.Message = "sweep finished with errors"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// routeSeatsResponse is the JSON body of GET /v1/routes/:id/seats.
type routeSeatsResponse struct {
	RouteID   string          `json:"routeId"`
	RouteName string          `json:"routeName"`
	Stats     []routeSeatStat `json:"stats"`
}

type routeSeatStat struct {
	StopID       string  `json:"stopId"`
	StopName     string  `json:"stopName"`
	DayOfWeek    int     `json:"dayOfWeek"`
	HourOfDay    int     `json:"hourOfDay"`
	AverageSeats float64 `json:"averageSeats"`
	SamplesCount int     `json:"samplesCount"`
}

// routeSeatsHandler returns the aggregated seat statistics for one route.
func (app *Application) routeSeatsHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	routeID := params.ByName("id")

	route, err := app.Store.Route(routeID)
	if err != nil {
		report.ReportError(err)
		app.Logger.Error("Failed to load route", "route_id", routeID, "error", err)
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	if route == nil {
		http.Error(w, "route not found", http.StatusNotFound)
		return
	}

	stats, err := app.Store.SeatStatsForRoute(routeID)
	if err != nil {
		report.ReportError(err)
		app.Logger.Error("Failed to load seat statistics", "route_id", routeID, "error", err)
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}

	resp := routeSeatsResponse{
		RouteID:   route.ID,
		RouteName: route.Name,
		Stats:     make([]routeSeatStat, 0, len(stats)),
	}
	for _, s := range stats {
		resp.Stats = append(resp.Stats, routeSeatStat{
			StopID:       s.StopID,
			StopName:     s.StopName,
			DayOfWeek:    s.DayOfWeek,
			HourOfDay:    s.HourOfDay,
			AverageSeats: s.AverageSeats,
			SamplesCount: s.SamplesCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
