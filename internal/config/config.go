package config

import (
	"sync"
)

// Settings are the tunables of the collection pipeline. They are loaded from
// a JSON file or remote URL at startup and may be refreshed at runtime.
type Settings struct {
	APIBaseURL      string `json:"apiBaseUrl" validate:"required,url"`
	DatabasePath    string `json:"databasePath" validate:"required"`
	DailyCallBudget int    `json:"dailyCallBudget" validate:"gt=0"`

	// Polling cadence in minutes per demand tier.
	RushIntervalMin    int `json:"rushIntervalMin" validate:"gt=0"`
	DaytimeIntervalMin int `json:"daytimeIntervalMin" validate:"gt=0"`
	OffPeakIntervalMin int `json:"offPeakIntervalMin" validate:"gt=0"`

	// Daily operating window, hours in local time. Outside [start, end)
	// no cycles run.
	OperatingStartHour int `json:"operatingStartHour" validate:"gte=0,lte=23"`
	OperatingEndHour   int `json:"operatingEndHour" validate:"gte=1,lte=24"`
}

// DefaultSettings mirrors the production deployment: a 10k daily call budget,
// 3/18/40 minute tiers and a 06:00-22:00 operating day.
func DefaultSettings() Settings {
	return Settings{
		APIBaseURL:         "http://apis.data.go.kr/6410000",
		DatabasePath:       "seatwatch.db",
		DailyCallBudget:    10000,
		RushIntervalMin:    3,
		DaytimeIntervalMin: 18,
		OffPeakIntervalMin: 40,
		OperatingStartHour: 6,
		OperatingEndHour:   22,
	}
}

// Config holds all the configuration settings for our application.
type Config struct {
	Port     int
	Env      string
	Mu       sync.RWMutex
	Settings Settings
}

// NewConfig creates a new instance of a Config struct.
func NewConfig(port int, env string, settings Settings) *Config {
	return &Config{
		Port:     port,
		Env:      env,
		Settings: settings,
	}
}

// UpdateSettings safely replaces the runtime settings.
func (cfg *Config) UpdateSettings(newSettings Settings) {
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.Settings = newSettings
}

// GetSettings safely returns a copy of the current settings.
// This method should be used to access the settings from other parts of the
// application.
func (cfg *Config) GetSettings() Settings {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return cfg.Settings
}
