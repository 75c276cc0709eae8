package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 8*time.Second, cfg.VendorTimeout)
	assert.Equal(t, "deterministic", cfg.PlannerMode)
	assert.Equal(t, 10*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, 4, cfg.SchedulerConcurrency)
	assert.Equal(t, "none", cfg.TracingExporter)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 90*time.Second, cfg.TickTimeout)
	assert.Less(t, cfg.TickTimeout, cfg.LockTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("GPU_VENDOR_SECRET", "s3cret")
	t.Setenv("PLANNER_MODE", "llm")
	t.Setenv("FIREWORKS_API_KEY", "fw")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SCHEDULER_INTERVAL", "0")
	t.Setenv("SCHEDULER_CONCURRENCY", "8")
	t.Setenv("VENDOR_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "s3cret", cfg.VendorSecret)
	assert.Equal(t, "llm", cfg.PlannerMode)
	assert.Equal(t, "fw", cfg.FireworksAPIKey)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Zero(t, cfg.SchedulerInterval)
	assert.Equal(t, 8, cfg.SchedulerConcurrency)
	assert.Equal(t, 2*time.Second, cfg.VendorTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"store driver", "STORE_DRIVER", "sqlite", "STORE_DRIVER"},
		{"planner mode", "PLANNER_MODE", "magic", "PLANNER_MODE"},
		{"log mode", "LOG_MODE", "loud", "LOG_MODE"},
		{"tracing", "TRACING_EXPORTER", "jaeger", "TRACING_EXPORTER"},
		{"timeout", "VENDOR_TIMEOUT", "soon", "VENDOR_TIMEOUT"},
		{"concurrency", "SCHEDULER_CONCURRENCY", "0", "SCHEDULER_CONCURRENCY"},
		{"negative interval", "SCHEDULER_INTERVAL", "-1s", "SCHEDULER_INTERVAL"},
		{"tick timeout", "TICK_TIMEOUT", "0s", "TICK_TIMEOUT"},
		{"tick outlives lock", "TICK_TIMEOUT", "5m", "shorter than LOCK_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
