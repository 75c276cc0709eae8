package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	log, err := NewLogger("production", "warn")
	require.NoError(t, err)
	assert.False(t, log.SugaredLogger.Desugar().Core().Enabled(-1))

	_, err = NewLogger("development", "loud")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	out := redact([]interface{}{"vendor_secret", "s3cr3t", "run_id", "r1", "dangling"})
	assert.Equal(t, []interface{}{"vendor_secret", "[REDACTED]", "run_id", "r1", "dangling"}, out)
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), NopLogger(), TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(context.Background(), NopLogger(), TracingConfig{Exporter: "zipkin"})
	assert.Error(t, err)
}
