package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitApiStatus tracks whether the public transit API answered the
	// most recent request (0 = not working, 1 = working).
	TransitApiStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transit_api_status",
			Help: "Status of the public transit API (0 = not working, 1 = working)",
		},
		[]string{"endpoint"},
	)

	// OutgoingLatency tracks the duration of outgoing transit API requests.
	OutgoingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outgoing_request_latency_seconds",
			Help:    "Latency of outgoing transit API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"url", "method", "status"},
	)
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_cycles_total",
		Help: "Number of collection cycles run, by outcome",
	}, []string{"outcome"})

	DailyApiCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transit_api_calls_today",
		Help: "Cumulative transit API calls made since the last local-day rollover",
	})

	BudgetSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collection_budget_skips_total",
		Help: "Number of group polls skipped because they would exceed the daily API call budget",
	})

	RoutesPolled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collection_routes_polled_total",
		Help: "Number of per-route vehicle position fetches attempted",
	})

	RouteFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collection_route_fetch_errors_total",
		Help: "Number of per-route vehicle position fetches that failed",
	})
)

var (
	ObservationsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observations_stored_total",
		Help: "Number of raw seat observations persisted",
	})

	ObservationsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observations_suppressed_total",
		Help: "Number of redundant vehicle position reports suppressed by the dedup cache",
	})

	DedupCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dedup_cache_entries",
		Help: "Number of vehicles currently tracked in the position dedup cache",
	})
)

var (
	StatUpsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_stat_upserts_total",
		Help: "Number of seat statistic upserts, by outcome",
	}, []string{"outcome"})

	AggregationBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregation_batches_total",
		Help: "Number of seat statistic upsert batches processed",
	})
)

var (
	SweepDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_sweep_deleted_total",
		Help: "Number of raw observations deleted by the retention sweeper, by tier",
	}, []string{"tier"})

	InvalidStopCoordinates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "invalid_stop_coordinates",
		Help: "Number of stops on a route whose coordinates failed validation at catalogue refresh",
	}, []string{"route_id"})
)
