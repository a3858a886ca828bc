package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address            string `yaml:"address"`
		Password           string `yaml:"password"`
		DB                 int    `yaml:"db"`
		KeyCacheTTLSeconds int    `yaml:"key_cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		DefaultDurationMinutes int `yaml:"default_duration_minutes"`
		SlotGranularityMinutes int `yaml:"slot_granularity_minutes"`
		RatePerMinute          int `yaml:"rate_per_minute"`
	} `yaml:"booking"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/zenbook.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// KeyCacheTTL returns how long resolved API keys stay cached in Redis.
func (c *Config) KeyCacheTTL() time.Duration {
	if c.Redis.KeyCacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.KeyCacheTTLSeconds) * time.Second
}
