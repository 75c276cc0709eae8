package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	// Database
	DatabaseURL  string
	StoreDriver  string
	StoreTimeout time.Duration

	// Server
	ServerPort string

	// Vendors
	VendorSecret    string
	VendorTimeout   time.Duration
	VendorRateLimit float64
	SeedFile        string

	// Planner
	PlannerMode      string
	FireworksAPIKey  string
	FireworksModel   string
	FireworksBaseURL string
	PlannerTimeout   time.Duration

	// Per-run lock; empty selects the in-process lock
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// TickTimeout bounds one tick, detached from the caller; it must stay
	// below LockTTL so the lock outlives the tick holding it
	TickTimeout time.Duration

	// Scheduler; a zero interval disables it
	SchedulerInterval    time.Duration
	SchedulerConcurrency int

	// Observability
	LogMode         string
	LogLevel        string
	TracingExporter string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "postgres://localhost/gpu_renter?sslmode=disable")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("SERVER_PORT", "8080")

	v.SetDefault("GPU_VENDOR_SECRET", "")
	v.SetDefault("VENDOR_TIMEOUT", "8s")
	v.SetDefault("VENDOR_RATE_LIMIT", 5.0)
	v.SetDefault("SEED_FILE", "")

	v.SetDefault("PLANNER_MODE", "deterministic")
	v.SetDefault("FIREWORKS_API_KEY", "")
	v.SetDefault("FIREWORKS_MODEL", "accounts/fireworks/models/llama-v3-8b-instruct")
	v.SetDefault("FIREWORKS_BASE_URL", "https://api.fireworks.ai/inference/v1")
	v.SetDefault("PLANNER_TIMEOUT", "15s")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "2m")
	v.SetDefault("TICK_TIMEOUT", "90s")

	v.SetDefault("SCHEDULER_INTERVAL", "10s")
	v.SetDefault("SCHEDULER_CONCURRENCY", 4)

	v.SetDefault("LOG_MODE", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRACING_EXPORTER", "none")
}

// Load loads configuration from environment variables over built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:  v.GetString("DATABASE_URL"),
		StoreDriver:  strings.ToLower(v.GetString("STORE_DRIVER")),
		StoreTimeout: v.GetDuration("STORE_TIMEOUT"),
		ServerPort:   v.GetString("SERVER_PORT"),

		VendorSecret:    v.GetString("GPU_VENDOR_SECRET"),
		VendorTimeout:   v.GetDuration("VENDOR_TIMEOUT"),
		VendorRateLimit: v.GetFloat64("VENDOR_RATE_LIMIT"),
		SeedFile:        v.GetString("SEED_FILE"),

		PlannerMode:      strings.ToLower(v.GetString("PLANNER_MODE")),
		FireworksAPIKey:  v.GetString("FIREWORKS_API_KEY"),
		FireworksModel:   v.GetString("FIREWORKS_MODEL"),
		FireworksBaseURL: v.GetString("FIREWORKS_BASE_URL"),
		PlannerTimeout:   v.GetDuration("PLANNER_TIMEOUT"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		LockTTL:       v.GetDuration("LOCK_TTL"),
		TickTimeout:   v.GetDuration("TICK_TIMEOUT"),

		SchedulerInterval:    v.GetDuration("SCHEDULER_INTERVAL"),
		SchedulerConcurrency: v.GetInt("SCHEDULER_CONCURRENCY"),

		LogMode:         strings.ToLower(v.GetString("LOG_MODE")),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		TracingExporter: strings.ToLower(v.GetString("TRACING_EXPORTER")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks modes and durations. The vendor secret is checked where
// a vendor client is built, so commands that never call vendors run without it.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver))
	}

	switch c.PlannerMode {
	case "deterministic", "llm":
	default:
		errs = append(errs, fmt.Errorf("PLANNER_MODE must be deterministic or llm, got %q", c.PlannerMode))
	}

	switch c.LogMode {
	case "production", "development":
	default:
		errs = append(errs, fmt.Errorf("LOG_MODE must be production or development, got %q", c.LogMode))
	}

	switch c.TracingExporter {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("TRACING_EXPORTER must be none or stdout, got %q", c.TracingExporter))
	}

	for name, d := range map[string]time.Duration{
		"STORE_TIMEOUT":   c.StoreTimeout,
		"VENDOR_TIMEOUT":  c.VendorTimeout,
		"PLANNER_TIMEOUT": c.PlannerTimeout,
		"LOCK_TTL":        c.LockTTL,
		"TICK_TIMEOUT":    c.TickTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration", name))
		}
	}
	if c.TickTimeout > 0 && c.LockTTL > 0 && c.TickTimeout >= c.LockTTL {
		errs = append(errs, errors.New("TICK_TIMEOUT must be shorter than LOCK_TTL"))
	}
	if c.SchedulerInterval < 0 {
		errs = append(errs, errors.New("SCHEDULER_INTERVAL must not be negative"))
	}
	if c.SchedulerConcurrency <= 0 {
		errs = append(errs, errors.New("SCHEDULER_CONCURRENCY must be positive"))
	}
	if c.VendorRateLimit < 0 {
		errs = append(errs, errors.New("VENDOR_RATE_LIMIT must not be negative"))
	}

	return errors.Join(errs...)
}
