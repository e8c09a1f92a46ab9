package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"seatwatch.gbus.kr/internal/report"
)

// ConfigService holds dependencies and provides config operations.
type ConfigService struct {
	Logger *slog.Logger
	Client *http.Client
	Config *Config
}

// NewConfigService creates a new ConfigService instance with the provided logger and HTTP client.
func NewConfigService(logger *slog.Logger, client *http.Client, config *Config) *ConfigService {
	return &ConfigService{
		Logger: logger,
		Client: client,
		Config: config,
	}
}

func (cs *ConfigService) RefreshConfig(ctx context.Context, url, authUser, authPass string, interval time.Duration, maxRetries int) {
	refreshConfig(ctx, cs.Client, url, authUser, authPass, cs.Config, cs.Logger, interval, maxRetries)
}

// exported helper functions

// LoadConfigFromFile loads settings from a JSON file on disk.
func LoadConfigFromFile(filePath string) (Settings, error) {
	settings, err := loadConfigFromFile(filePath)
	if err != nil {
		err := fmt.Errorf("failed to load config from file %s: %w", filePath, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return Settings{}, err
	}
	return settings, nil
}

// LoadConfigFromURL loads settings from a remote JSON endpoint.
func LoadConfigFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) (Settings, error) {
	settings, err := loadConfigFromURL(ctx, client, url, authUser, authPass, maxRetries)
	if err != nil {
		err := fmt.Errorf("failed to load config from URL %s: %w", url, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, err
	}
	return settings, nil
}
