package seed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gpu-renter/core/models"
	"gpu-renter/core/repository"

	"gopkg.in/yaml.v3"
)

// Catalog represents the YAML vendor catalog
type Catalog struct {
	Vendors []models.Vendor `yaml:"vendors"`
}

const defaultEndpoint = "http://localhost:4001"

// DefaultCatalog returns the two demo vendors served by the local vendor mock
func DefaultCatalog() Catalog {
	return Catalog{Vendors: []models.Vendor{
		{
			ID:                "gpu_vendor_1",
			Name:              "FastGPU",
			Endpoint:          defaultEndpoint,
			BasePricePerHour:  1.4,
			ReliabilityScore:  0.9,
			SupportedGPUTypes: []string{"A10", "A100"},
		},
		{
			ID:                "gpu_vendor_2",
			Name:              "ReliableGPU",
			Endpoint:          defaultEndpoint,
			BasePricePerHour:  1.8,
			ReliabilityScore:  0.95,
			SupportedGPUTypes: []string{"A10", "A100"},
		},
	}}
}

// ParseCatalog parses and validates a YAML vendor catalog
func ParseCatalog(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

// LoadCatalog reads a catalog file. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read vendor catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Validate checks every entry and reports all problems at once
func (c Catalog) Validate() error {
	if len(c.Vendors) == 0 {
		return errors.New("vendor catalog is empty")
	}

	var errs []error
	seen := make(map[string]bool, len(c.Vendors))
	for i, v := range c.Vendors {
		where := fmt.Sprintf("vendors[%d]", i)
		if strings.TrimSpace(v.ID) == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		} else if seen[v.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q", where, v.ID))
		}
		seen[v.ID] = true

		if strings.TrimSpace(v.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		}
		if u, err := url.Parse(v.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: endpoint %q is not an absolute URL", where, v.Endpoint))
		}
		if v.BasePricePerHour <= 0 {
			errs = append(errs, fmt.Errorf("%s: base_price_per_hour must be positive", where))
		}
		if v.ReliabilityScore < 0 || v.ReliabilityScore > 1 {
			errs = append(errs, fmt.Errorf("%s: reliability_score must be within [0,1]", where))
		}
	}
	return errors.Join(errs...)
}

// Apply upserts every catalog vendor and returns how many were written
func Apply(ctx context.Context, store repository.VendorStore, catalog Catalog) (int, error) {
	if err := catalog.Validate(); err != nil {
		return 0, err
	}
	for i := range catalog.Vendors {
		v := catalog.Vendors[i]
		if len(v.SupportedGPUTypes) == 0 {
			v.SupportedGPUTypes = []string{models.DefaultGPUType}
		}
		if err := store.UpsertVendor(ctx, &v); err != nil {
			return i, fmt.Errorf("upsert vendor %s: %w", v.ID, err)
		}
	}
	return len(catalog.Vendors), nil
}
