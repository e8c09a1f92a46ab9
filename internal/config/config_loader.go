package config

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"

	"seatwatch.gbus.kr/internal/report"
)

// ValidateConfigFlags ensures that only one configuration source is specified:
// either a config file "--config-file", a remote config URL "--config-url".
//
// Returns an error if more than one input method is specified.
func ValidateConfigFlags(configFile, configURL *string) error {
	if *configFile == "" && *configURL == "" {
		return fmt.Errorf("no configuration provided, either --config-file or --config-url must be specified")
	}
	if (*configFile != "" && *configURL != "") || (*configFile != "" && len(flag.Args()) > 0) || (*configURL != "" && len(flag.Args()) > 0) {
		return fmt.Errorf("only one of --config-file or --config-url can be specified")
	}
	return nil
}

// ValidateSettings checks the loaded settings against their constraints and
// rejects an operating window that never opens.
func ValidateSettings(s Settings) error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if s.OperatingStartHour >= s.OperatingEndHour {
		return fmt.Errorf("invalid settings: operating window %d-%d never opens", s.OperatingStartHour, s.OperatingEndHour)
	}
	return nil
}

// refreshConfig starts a background loop that periodically fetches settings
// from a remote URL and updates the application's runtime settings.
//
// Errors during fetch or parse are logged and reported to Sentry, but the
// loop continues, ensuring resiliency in the presence of transient issues.
//
// The routine stops gracefully when the context is canceled.
func refreshConfig(ctx context.Context, client *http.Client, configURL, configAuthUser, configAuthPass string, cfg *Config, logger *slog.Logger, interval time.Duration, maxRetries int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping config refresh routine")
			return
		case <-ticker.C:
			newSettings, err := loadConfigFromURL(ctx, client, configURL, configAuthUser, configAuthPass, maxRetries)
			if err != nil {
				report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
					Tags:  report.MakeMap("config_url", configURL),
					Level: sentry.LevelError,
				})
				logger.Error("Failed to refresh remote config", "error", err)
			} else {
				cfg.UpdateSettings(newSettings)
				logger.Info("Successfully refreshed runtime settings")
			}
		}
	}
}

// loadConfigFromFile reads a JSON settings file from disk. Fields absent from
// the file keep their defaults.
func loadConfigFromFile(filePath string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(filePath)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to read config file: %v", err)
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to unmarshal JSON: %v", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// loadConfigFromURL fetches JSON settings from a remote HTTP(S) endpoint,
// using the provided client and optional basic authentication.
func loadConfigFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) (Settings, error) {
	settings := DefaultSettings()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to create request: %v", err)
	}

	if authUser != "" && authPass != "" {
		req.SetBasicAuth(authUser, authPass)
	}

	resp, err := DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to fetch remote config: %v", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("remote config returned status: %d", resp.StatusCode)
		report.ReportErrorWithSentryOptions(statusErr, report.SentryReportOptions{
			Tags:  report.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, statusErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to read remote config: %v", err)
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  report.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to unmarshal JSON: %v", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
