package collector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/getsentry/sentry-go"

	"seatwatch.gbus.kr/internal/gbis"
	"seatwatch.gbus.kr/internal/metrics"
	"seatwatch.gbus.kr/internal/models"
	"seatwatch.gbus.kr/internal/report"
	"seatwatch.gbus.kr/internal/store"
)

const (
	trimMinSamples  = 10
	upsertBatchSize = 20
	batchPause      = 500 * time.Millisecond
)

// TrimmedAverage computes the mean of seats after dropping the bottom and top
// 10% of the sorted values. Trimming only kicks in at trimMinSamples; smaller
// sets are averaged as-is. The returned count is the number of samples that
// entered the mean.
func TrimmedAverage(seats []int) (float64, int) {
	if len(seats) == 0 {
		return 0, 0
	}

	trimmed := seats
	if len(seats) >= trimMinSamples {
		sorted := append([]int(nil), seats...)
		sort.Ints(sorted)
		start := len(sorted) / 10
		end := (len(sorted)*9 + 9) / 10
		trimmed = sorted[start:end]
	}

	sum := 0
	for _, v := range trimmed {
		sum += v
	}
	return float64(sum) / float64(len(trimmed)), len(trimmed)
}

// Aggregator folds recent raw observations into per-(route, stop, weekday,
// hour) seat statistics.
type Aggregator struct {
	Store  *store.Store
	Client *gbis.Client
	Logger *slog.Logger
}

func NewAggregator(st *store.Store, client *gbis.Client, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		Store:  st,
		Client: client,
		Logger: logger,
	}
}

type sampleGroup struct {
	key      models.StatKey
	stopName string
	seats    []int
}

// Run reads observations in [cutoff, now], groups the valid ones by
// (route, stop), and upserts one statistic per group under the weekday/hour
// slot of now. Upserts go out in batches with a short pause between them so a
// large pass does not monopolize the database. Per-item failures are logged
// and skipped.
func (a *Aggregator) Run(ctx context.Context, now, cutoff time.Time) error {
	recent, err := a.Store.ObservationsSince(cutoff)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		a.Logger.Info("No recent observations to aggregate")
		return nil
	}

	dayOfWeek := int(now.Weekday())
	hourOfDay := now.Hour()

	groups := make(map[models.StatKey]*sampleGroup)
	var order []models.StatKey

	for _, obs := range recent {
		if obs.StopID == "" || !obs.ValidSeats() {
			continue
		}
		key := models.StatKey{
			RouteID:   obs.RouteID,
			StopID:    obs.StopID,
			DayOfWeek: dayOfWeek,
			HourOfDay: hourOfDay,
		}
		g, ok := groups[key]
		if !ok {
			g = &sampleGroup{key: key, stopName: obs.StopName}
			groups[key] = g
			order = append(order, key)
		}
		if g.stopName == "" {
			g.stopName = obs.StopName
		}
		g.seats = append(g.seats, obs.RemainingSeats)
	}

	if len(order) == 0 {
		return nil
	}
	a.Logger.Info("Aggregating seat statistics", "observations", len(recent), "slots", len(order))

	processed := 0
	for _, key := range order {
		g := groups[key]
		if g.stopName == "" {
			g.stopName = a.resolveStopName(ctx, key.RouteID, key.StopID)
		}

		average, count := TrimmedAverage(g.seats)
		if err := a.Store.UpsertSeatStat(key, g.stopName, average, count, now); err != nil {
			metrics.StatUpsertsTotal.WithLabelValues("error").Inc()
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Tags:  report.MakeMap("route_id", key.RouteID),
				Level: sentry.LevelError,
			})
			a.Logger.Error("Failed to upsert seat statistic",
				"route_id", key.RouteID, "stop_id", key.StopID, "error", err)
			continue
		}
		metrics.StatUpsertsTotal.WithLabelValues("success").Inc()

		processed++
		if processed%upsertBatchSize == 0 && processed < len(order) {
			metrics.AggregationBatches.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batchPause):
			}
		}
	}
	metrics.AggregationBatches.Inc()
	return nil
}

// resolveStopName looks the stop up in the catalogue first and falls back to
// the station info endpoint. A resolved name is backfilled onto the raw
// records that were missing it.
func (a *Aggregator) resolveStopName(ctx context.Context, routeID, stopID string) string {
	name, err := a.Store.StopName(routeID, stopID)
	if err != nil {
		a.Logger.Error("Failed to look up stop name", "stop_id", stopID, "error", err)
		return ""
	}

	if name == "" && a.Client != nil {
		info, err := a.Client.StationInfo(ctx, stopID)
		if err != nil {
			a.Logger.Error("Failed to fetch station info", "stop_id", stopID, "error", err)
			return ""
		}
		if info != nil {
			name = info.StationName
		}
	}

	if name != "" {
		if n, err := a.Store.BackfillStopName(stopID, name); err != nil {
			a.Logger.Error("Failed to backfill stop name", "stop_id", stopID, "error", err)
		} else if n > 0 {
			a.Logger.Info("Backfilled stop name", "stop_id", stopID, "name", name, "records", n)
		}
	}
	return name
}
