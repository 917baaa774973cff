// Package config loads the engine configuration from an optional YAML file
// layered under environment overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/headline-goat/intent-goat/internal/aggregate"
	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/experiment"
	"github.com/headline-goat/intent-goat/internal/ranking"
	"github.com/headline-goat/intent-goat/internal/stats"
)

// Config holds everything that is tunable without a rebuild.
type Config struct {
	Experiment experiment.Config `yaml:"experiment" json:"experiment"`
	Sequences  ranking.Sequences `yaml:"sequences" json:"sequences"`
	LogCap     int               `yaml:"log_cap" json:"log_cap"`
	Recompute  RecomputeConfig   `yaml:"recompute" json:"recompute"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Webhook    WebhookConfig     `yaml:"webhook" json:"webhook"`
	Redis      RedisConfig       `yaml:"redis" json:"redis"`
	Ingest     IngestConfig      `yaml:"ingest" json:"ingest"`
}

// RecomputeConfig controls the scheduled posterior snapshot.
type RecomputeConfig struct {
	Schedule string  `yaml:"schedule" json:"schedule"` // robfig/cron spec, "" disables
	Kappa    float64 `yaml:"kappa" json:"kappa"`
}

// RateLimitConfig bounds the public endpoints and the webhook relay.
type RateLimitConfig struct {
	IngestPerSecond  float64 `yaml:"ingest_per_second" json:"ingest_per_second"`
	IngestBurst      int     `yaml:"ingest_burst" json:"ingest_burst"`
	WebhookPerSecond float64 `yaml:"webhook_per_second" json:"webhook_per_second"`
	WebhookBurst     int     `yaml:"webhook_burst" json:"webhook_burst"`
}

type WebhookConfig struct {
	URL       string `yaml:"url" json:"url"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password,omitempty" json:"-"`
	DB       int    `yaml:"db" json:"db"`
}

// IngestConfig configures best-effort forwarding of engine events.
type IngestConfig struct {
	URL       string `yaml:"url" json:"url"`
	QueueSize int    `yaml:"queue_size" json:"queue_size"`
}

// Default returns a fresh configuration with the built-in values.
func Default() *Config {
	exp := experiment.Home
	exp.Traffic = make(experiment.Traffic, len(experiment.Home.Traffic))
	for v, share := range experiment.Home.Traffic {
		exp.Traffic[v] = share
	}
	exp.RegimeOrder = make(map[events.Variant][]string, len(experiment.Home.RegimeOrder))
	for v, order := range experiment.Home.RegimeOrder {
		exp.RegimeOrder[v] = append([]string(nil), order...)
	}

	return &Config{
		Experiment: exp,
		Sequences:  ranking.DefaultSequences.Merge(nil),
		LogCap:     aggregate.DefaultLogCap,
		Recompute: RecomputeConfig{
			Schedule: "@every 5m",
			Kappa:    stats.DefaultKappa,
		},
		RateLimit: RateLimitConfig{
			IngestPerSecond:  20,
			IngestBurst:      40,
			WebhookPerSecond: 1,
			WebhookBurst:     5,
		},
		Webhook: WebhookConfig{TimeoutMs: 5000},
		Ingest:  IngestConfig{QueueSize: 256},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// yields the defaults; a malformed file is an error.
//
// Maps merge key by key with the defaults, except experiment.traffic: a
// file that sets it replaces the default shares.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	var file struct {
		Experiment struct {
			Traffic experiment.Traffic `yaml:"traffic"`
		} `yaml:"experiment"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	if file.Experiment.Traffic != nil {
		cfg.Experiment.Traffic = file.Experiment.Traffic
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("IGT_WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := getenv("IGT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("IGT_INGEST_URL"); v != "" {
		c.Ingest.URL = v
	}
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	sum := 0.0
	for v, share := range c.Experiment.Traffic {
		if !v.Valid() {
			return fmt.Errorf("unknown variant %q in traffic", v)
		}
		if math.IsNaN(share) || share < 0 || share > 1 {
			return fmt.Errorf("traffic share for %s must be within [0, 1], got %v", v, share)
		}
		sum += share
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("traffic shares sum to %v, more than 1", sum)
	}

	if !(c.Recompute.Kappa > 0) {
		return fmt.Errorf("recompute kappa must be positive, got %v", c.Recompute.Kappa)
	}
	if c.Recompute.Schedule != "" {
		if _, err := cron.ParseStandard(c.Recompute.Schedule); err != nil {
			return fmt.Errorf("invalid recompute schedule %q: %w", c.Recompute.Schedule, err)
		}
	}
	if c.LogCap < 0 {
		return fmt.Errorf("log_cap must not be negative, got %d", c.LogCap)
	}
	if c.RateLimit.IngestPerSecond <= 0 || c.RateLimit.WebhookPerSecond <= 0 {
		return errors.New("rate limits must be positive")
	}
	return nil
}
