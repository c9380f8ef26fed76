package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beachside/racetrack/go/internal/hub"
	"github.com/beachside/racetrack/go/internal/race"
)

const (
	modeProduction = "production"
	modeDeveloper  = "developer"
)

type Config struct {
	Port                   string   `yaml:"port"`
	Mode                   string   `yaml:"mode"`
	DataFile               string   `yaml:"data_file"`
	TickIntervalMillis     int      `yaml:"tick_interval_millis"`
	RaceDurationMinutes    int      `yaml:"race_duration_minutes"`
	DevRaceDurationMinutes int      `yaml:"dev_race_duration_minutes"`
	RosterSize             int      `yaml:"roster_size"`
	MinLapMillis           int      `yaml:"min_lap_millis"`
	NATSUrl                string   `yaml:"nats_url"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	LogLevel               string   `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Port:                   "8080",
		Mode:                   modeProduction,
		DataFile:               "race_data.db",
		TickIntervalMillis:     10,
		RaceDurationMinutes:    10,
		DevRaceDurationMinutes: 1,
		RosterSize:             8,
		MinLapMillis:           5000,
		AllowedOrigins:         []string{"*"},
		LogLevel:               "info",
	}
}

// loadConfig reads the optional YAML config file and applies environment
// overrides on top of it.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Port = getEnv("PORT", config.Port)
	config.Mode = getEnv("RACETRACK_MODE", config.Mode)
	config.DataFile = getEnv("DATA_FILE", config.DataFile)
	config.NATSUrl = getEnv("NATS_URL", config.NATSUrl)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.TickIntervalMillis = getEnvAsInt("TICK_INTERVAL_MILLIS", config.TickIntervalMillis)
	config.RaceDurationMinutes = getEnvAsInt("RACE_DURATION_MINUTES", config.RaceDurationMinutes)

	if config.Mode != modeProduction && config.Mode != modeDeveloper {
		return Config{}, fmt.Errorf("unknown mode %q", config.Mode)
	}

	return config, nil
}

func (c Config) devMode() bool {
	return c.Mode == modeDeveloper
}

func (c Config) finishThreshold() time.Duration {
	minutes := c.RaceDurationMinutes
	if c.devMode() {
		minutes = c.DevRaceDurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (c Config) hubConfig() hub.Config {
	return hub.Config{
		TickInterval:    time.Duration(c.TickIntervalMillis) * time.Millisecond,
		FinishThreshold: c.finishThreshold(),
		DevMode:         c.devMode(),
		Rules: race.Rules{
			RosterSize:   c.RosterSize,
			MinLapMillis: int64(c.MinLapMillis),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
