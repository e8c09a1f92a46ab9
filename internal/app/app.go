package app

import (
	"log/slog"
	"net/http"
	"os"

	"seatwatch.gbus.kr/internal/collector"
	"seatwatch.gbus.kr/internal/config"
	"seatwatch.gbus.kr/internal/gbis"
	"seatwatch.gbus.kr/internal/geo"
	"seatwatch.gbus.kr/internal/store"
)

// Application wires the collection services together and carries the
// dependencies the HTTP handlers need.
type Application struct {
	ConfigService  *config.ConfigService
	Store          *store.Store
	Client         *gbis.Client
	Cache          *collector.PositionCache
	Driver         *collector.Driver
	Sweeper        *collector.Sweeper
	CatalogService *collector.CatalogService
	Logger         *slog.Logger
	Version        string
}

// serviceKeyFromEnv reads the transit API credential. The key is issued per
// deployment and never lives in the config file.
func serviceKeyFromEnv() string {
	return os.Getenv("GBIS_SERVICE_KEY")
}

// New creates and wires all dependencies for the Application.
// Accepts config, logger, store, HTTP client, and version as arguments.
func New(cfg *config.Config, logger *slog.Logger, st *store.Store, httpClient *http.Client, version string) *Application {
	settings := cfg.GetSettings()

	client := gbis.NewClient(settings.APIBaseURL, serviceKeyFromEnv(), httpClient, logger)
	cache := collector.NewPositionCache()
	boundingBoxStore := geo.NewBoundingBoxStore()

	configService := config.NewConfigService(logger, httpClient, cfg)
	aggregator := collector.NewAggregator(st, client, logger)
	driver := collector.NewDriver(cfg, st, client, cache, aggregator, logger)
	sweeper := collector.NewSweeper(st, cache, logger)
	catalogService := collector.NewCatalogService(st, client, boundingBoxStore, logger)

	return &Application{
		ConfigService:  configService,
		Store:          st,
		Client:         client,
		Cache:          cache,
		Driver:         driver,
		Sweeper:        sweeper,
		CatalogService: catalogService,
		Logger:         logger,
		Version:        version,
	}
}
