package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gpu-renter/core/models"
	"gpu-renter/core/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
vendors:
  - id: gpu_vendor_1
    name: FastGPU
    endpoint: http://localhost:4001
    base_price_per_hour: 1.4
    reliability_score: 0.9
    supported_gpu_types: [A10, A100]
  - id: gpu_vendor_3
    name: CheapGPU
    endpoint: https://cheap.example.com
    base_price_per_hour: 0.9
    reliability_score: 0.7
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	require.Len(t, catalog.Vendors, 2)

	v := catalog.Vendors[0]
	assert.Equal(t, "gpu_vendor_1", v.ID)
	assert.Equal(t, 1.4, v.BasePricePerHour)
	assert.Equal(t, []string{"A10", "A100"}, v.SupportedGPUTypes)
	assert.Empty(t, catalog.Vendors[1].SupportedGPUTypes)
}

func TestParseCatalogInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"malformed", "vendors: [", "failed to parse YAML"},
		{"empty", "vendors: []", "empty"},
		{"missing id", "vendors:\n  - name: x\n    endpoint: http://a\n    base_price_per_hour: 1\n", "id is required"},
		{"duplicate", "vendors:\n  - {id: a, name: a, endpoint: 'http://a', base_price_per_hour: 1}\n  - {id: a, name: b, endpoint: 'http://b', base_price_per_hour: 1}\n", "duplicate id"},
		{"relative endpoint", "vendors:\n  - {id: a, name: a, endpoint: '/v1', base_price_per_hour: 1}\n", "absolute URL"},
		{"free", "vendors:\n  - {id: a, name: a, endpoint: 'http://a', base_price_per_hour: 0}\n", "must be positive"},
		{"reliability", "vendors:\n  - {id: a, name: a, endpoint: 'http://a', base_price_per_hour: 1, reliability_score: 2}\n", "reliability_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	def, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), def)

	path := filepath.Join(t.TempDir(), "vendors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))
	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, catalog.Vendors, 2)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	require.NoError(t, catalog.Validate())
	require.Len(t, catalog.Vendors, 2)
	assert.Equal(t, "FastGPU", catalog.Vendors[0].Name)
	assert.Equal(t, 0.95, catalog.Vendors[1].ReliabilityScore)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	catalog, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	n, err := Apply(ctx, store, catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cheap, err := store.GetVendor(ctx, "gpu_vendor_3")
	require.NoError(t, err)
	assert.Equal(t, []string{models.DefaultGPUType}, cheap.SupportedGPUTypes)

	// re-applying updates in place
	catalog.Vendors[0].BasePricePerHour = 1.2
	_, err = Apply(ctx, store, catalog)
	require.NoError(t, err)
	vendors, err := store.ListVendors(ctx)
	require.NoError(t, err)
	assert.Len(t, vendors, 2)
	fast, err := store.GetVendor(ctx, "gpu_vendor_1")
	require.NoError(t, err)
	assert.Equal(t, 1.2, fast.BasePricePerHour)
}

func TestApplyRejectsInvalidCatalog(t *testing.T) {
	_, err := Apply(context.Background(), memory.New(), Catalog{})
	assert.Error(t, err)
}
