// Package config loads the poller configuration from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "https://openapi.emtmadrid.es/"
	DefaultInterval    = time.Minute
	DefaultBusIcon     = "mdi:bus"
	DefaultBicimadIcon = "mdi:bike"
)

// Config holds the MobilityLabs credentials and the stops and stations to poll.
type Config struct {
	Email    string          `yaml:"email" validate:"required,email"`
	Password string          `yaml:"password" validate:"required"`
	BaseURL  string          `yaml:"base_url" validate:"required,url"`
	Interval time.Duration   `yaml:"interval" validate:"gte=0"`
	Stops    []StopConfig    `yaml:"stops" validate:"dive"`
	Stations []StationConfig `yaml:"stations" validate:"dive"`
	Storage  StorageConfig   `yaml:"storage"`
}

// StopConfig selects a bus stop and, optionally, a subset of its lines.
// An empty Lines list means every line serving the stop.
type StopConfig struct {
	ID    string   `yaml:"id" validate:"required,number"`
	Lines []string `yaml:"lines" validate:"dive,required"`
	Icon  string   `yaml:"icon"`
}

// StationConfig selects a BiciMAD station.
type StationConfig struct {
	ID   string `yaml:"id" validate:"required,number"`
	Icon string `yaml:"icon"`
}

// Load reads path (when not empty), overlays environment variables and validates the result.
// For local development a .env file is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("EMT_EMAIL"); v != "" {
		c.Email = v
	}
	if v := os.Getenv("EMT_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("EMT_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("EMT_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid EMT_INTERVAL: %w", err)
		}
		c.Interval = interval
	}
	return c.Storage.applyEnv()
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	for i := range c.Stops {
		if c.Stops[i].Icon == "" {
			c.Stops[i].Icon = DefaultBusIcon
		}
	}
	for i := range c.Stations {
		if c.Stations[i].Icon == "" {
			c.Stations[i].Icon = DefaultBicimadIcon
		}
	}
	c.Storage.applyDefaults()
}

// Validate checks the struct tags and that at least one stop or station is configured.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(c.Stops) == 0 && len(c.Stations) == 0 {
		return fmt.Errorf("invalid configuration: no stops or stations configured")
	}
	return nil
}
