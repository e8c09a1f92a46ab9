package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"seatwatch.gbus.kr/internal/app"
	"seatwatch.gbus.kr/internal/collector"
	"seatwatch.gbus.kr/internal/config"
	"seatwatch.gbus.kr/internal/gbis"
	"seatwatch.gbus.kr/internal/report"
	"seatwatch.gbus.kr/internal/store"
)

const version = "1.0.0"

// configRefreshMaxRetries bounds retries of a single remote config fetch.
const configRefreshMaxRetries = 3

func main() {
	var (
		port int
		env  string
	)

	flag.IntVar(&port, "port", 4000, "API server port")
	flag.StringVar(&env, "env", "development", "Environment (development|staging|production)")

	var (
		configFile = flag.String("config-file", "", "Path to a local JSON configuration file")
		configURL  = flag.String("config-url", "", "URL to a remote JSON configuration file")
	)

	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configAuthUser := os.Getenv("CONFIG_AUTH_USER")
	configAuthPass := os.Getenv("CONFIG_AUTH_PASS")

	if err := config.ValidateConfigFlags(configFile, configURL); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	if os.Getenv("GBIS_SERVICE_KEY") == "" {
		fmt.Println("Error: GBIS_SERVICE_KEY must be set.")
		os.Exit(1)
	}

	report.SetupSentry()
	defer report.FlushSentry()
	report.ConfigureScope(env, version)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	httpClient := gbis.NewPooledClient()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := config.DefaultSettings()
	var err error
	if *configFile != "" {
		settings, err = config.LoadConfigFromFile(*configFile)
	} else if *configURL != "" {
		settings, err = config.LoadConfigFromURL(ctx, httpClient, *configURL, configAuthUser, configAuthPass, configRefreshMaxRetries)
	}
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err = config.ValidateSettings(settings); err != nil {
		fmt.Printf("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.NewConfig(port, env, settings)

	st, err := store.NewStore(settings.DatabasePath)
	if err != nil {
		report.ReportError(err, sentry.LevelFatal)
		logger.Error("Failed to open database", "path", settings.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	application := app.New(cfg, logger, st, httpClient, version)

	// Build the route catalogue on first boot; afterwards the weekly
	// routine keeps it fresh.
	numRoutes, err := st.CountRoutes()
	if err != nil {
		report.ReportError(err, sentry.LevelFatal)
		logger.Error("Failed to count catalogued routes", "error", err)
		os.Exit(1)
	}
	if numRoutes == 0 {
		logger.Info("Route catalogue is empty, running initial refresh")
		if err := application.CatalogService.RefreshRoutes(ctx); err != nil {
			report.ReportError(err)
			logger.Error("Initial catalogue refresh failed", "error", err)
		}
	}

	scheduler := collector.NewScheduler(application.Driver, logger)
	scheduler.Start(ctx)

	application.Sweeper.Start()
	defer application.Sweeper.Stop()

	go application.Cache.ClearRoutine(ctx, time.Hour)
	go application.CatalogService.WeeklyRefreshRoutine(ctx, time.Hour)

	// If a remote URL is specified, refresh the configuration every minute
	if *configURL != "" {
		go application.ConfigService.RefreshConfig(ctx, *configURL, configAuthUser, configAuthPass, time.Minute, configRefreshMaxRetries)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	logger.Info("starting server", "addr", srv.Addr, "env", env)
	err = srv.ListenAndServe()
	report.ReportError(err, sentry.LevelFatal)
	report.FlushSentry()
	logger.Error(err.Error())
	os.Exit(1)
}
