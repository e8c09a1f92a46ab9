package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"seatwatch.gbus.kr/internal/gbis"
	"seatwatch.gbus.kr/internal/geo"
	"seatwatch.gbus.kr/internal/metrics"
	"seatwatch.gbus.kr/internal/models"
	"seatwatch.gbus.kr/internal/report"
	"seatwatch.gbus.kr/internal/store"
)

// catalogKeywords enumerate the route search. The upstream search endpoint
// requires a keyword, so the refresh queries every digit and unions the
// results by route id.
var catalogKeywords = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "0"}

// CatalogService maintains the seat-bus route catalogue: the route table,
// each route's stop sequence, and a per-route bounding box for coordinate
// sanity checks.
type CatalogService struct {
	Store         *store.Store
	Client        *gbis.Client
	BoundingBoxes *geo.BoundingBoxStore
	Logger        *slog.Logger
}

func NewCatalogService(st *store.Store, client *gbis.Client, boxes *geo.BoundingBoxStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		Store:         st,
		Client:        client,
		BoundingBoxes: boxes,
		Logger:        logger,
	}
}

// RefreshRoutes rebuilds the route catalogue from the upstream search
// endpoint: every discovered seat-bus route is upserted with its turnaround
// detail, and routes without a known stop list get one fetched. Per-route
// failures are logged and skipped so one broken route cannot starve the rest.
func (c *CatalogService) RefreshRoutes(ctx context.Context) error {
	c.Logger.Info("Starting route catalogue refresh")

	seen := make(map[string]struct{})
	var discovered []gbis.RouteSummary

	for _, keyword := range catalogKeywords {
		summaries, err := c.Client.RouteList(ctx, keyword)
		if err != nil {
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Tags:  report.MakeMap("keyword", keyword),
				Level: sentry.LevelWarning,
			})
			c.Logger.Error("Route search failed", "keyword", keyword, "error", err)
			continue
		}
		for _, s := range summaries {
			id := s.RouteID.String()
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			discovered = append(discovered, s)
		}
	}

	if len(discovered) == 0 {
		c.Logger.Warn("Route catalogue refresh found no routes")
		return nil
	}
	c.Logger.Info("Discovered seat-bus routes", "count", len(discovered))

	created := 0
	for _, summary := range discovered {
		if err := c.refreshRoute(ctx, summary); err != nil {
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Tags:  report.MakeMap("route_id", summary.RouteID.String()),
				Level: sentry.LevelError,
			})
			c.Logger.Error("Failed to refresh route", "route_id", summary.RouteID.String(), "error", err)
			continue
		}
		created++
	}

	c.Logger.Info("Route catalogue refresh complete", "refreshed", created, "of", len(discovered))
	return nil
}

func (c *CatalogService) refreshRoute(ctx context.Context, summary gbis.RouteSummary) error {
	routeID := summary.RouteID.String()
	typeCd, _ := summary.RouteTypeCd.Int64()

	route := models.Route{
		ID:            routeID,
		Name:          summary.RouteName,
		RouteType:     summary.RouteTypeCd.String(),
		RouteTypeName: gbis.RouteTypeName(int(typeCd)),
		StartStopName: summary.StartStationName,
		EndStopName:   summary.EndStationName,
	}

	detail, err := c.Client.RouteDetail(ctx, routeID)
	if err != nil {
		c.Logger.Error("Failed to fetch route detail", "route_id", routeID, "error", err)
	} else if detail != nil {
		route.TurnStopID = detail.TurnStID.String()
		route.TurnStopName = detail.TurnStNm
		route.Company = detail.CompanyName
	}

	if err := c.Store.UpsertRoute(route); err != nil {
		return err
	}

	existing, err := c.Store.StopsForRoute(routeID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return c.refreshStops(ctx, routeID)
}

// refreshStops fetches a route's stop sequence, validates the coordinates and
// records the route's bounding box.
func (c *CatalogService) refreshStops(ctx context.Context, routeID string) error {
	stations, err := c.Client.RouteStations(ctx, routeID)
	if err != nil {
		return err
	}
	if len(stations) == 0 {
		c.Logger.Warn("Route has no stop list", "route_id", routeID)
		return nil
	}

	stops := make([]models.Stop, 0, len(stations))
	invalid := 0
	for _, st := range stations {
		seq, _ := st.StationSeq.Int64()
		stop := models.Stop{
			RouteID:   routeID,
			StationID: st.StationID.String(),
			Seq:       int(seq),
			Name:      st.StationName,
			Lat:       st.Y,
			Lon:       st.X,
		}
		if !geo.IsValidLatLon(stop.Lat, stop.Lon) {
			invalid++
		}
		stops = append(stops, stop)
	}
	metrics.InvalidStopCoordinates.WithLabelValues(routeID).Set(float64(invalid))

	if err := c.Store.ReplaceStops(routeID, stops); err != nil {
		return err
	}

	if bbox, err := geo.ComputeBoundingBox(stops); err != nil {
		c.Logger.Warn("Could not compute bounding box", "route_id", routeID, "error", err)
	} else {
		c.BoundingBoxes.Set(routeID, bbox)
	}

	c.Logger.Info("Stored route stop list", "route_id", routeID, "stops", len(stops), "invalid_coords", invalid)
	return nil
}

// WeeklyRefreshRoutine checks hourly and refreshes the catalogue on Sunday
// between 03:00 and 04:00 local time. It stops when the context is canceled.
func (c *CatalogService) WeeklyRefreshRoutine(ctx context.Context, checkInterval time.Duration) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	var lastRun time.Time
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if now.Weekday() != time.Sunday || now.Hour() != 3 {
				continue
			}
			if now.Sub(lastRun) < 2*time.Hour {
				continue
			}
			lastRun = now
			if err := c.RefreshRoutes(ctx); err != nil {
				report.ReportError(err)
				c.Logger.Error("Weekly catalogue refresh failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
