package models

import "time"

// Vendor represents a GPU vendor reachable through the quote/submit/status protocol.
// Vendors are provisioned externally and are read-only to the tick engine.
type Vendor struct {
	ID                string    `json:"vendorId" yaml:"id"`
	Name              string    `json:"name" yaml:"name"`
	Endpoint          string    `json:"endpoint" yaml:"endpoint"`
	BasePricePerHour  float64   `json:"basePricePerHour" yaml:"base_price_per_hour"`
	ReliabilityScore  float64   `json:"reliabilityScore" yaml:"reliability_score"`
	SupportedGPUTypes []string  `json:"supportedGpuTypes" yaml:"supported_gpu_types"`
	CreatedAt         time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt         time.Time `json:"updatedAt" yaml:"-"`
}

// DefaultGPUType is requested when a vendor lists no supported GPU types
const DefaultGPUType = "A10"

// PreferredGPUType returns the GPU type to quote against
func (v Vendor) PreferredGPUType() string {
	if len(v.SupportedGPUTypes) > 0 && v.SupportedGPUTypes[0] != "" {
		return v.SupportedGPUTypes[0]
	}
	return DefaultGPUType
}

// FindVendor returns the vendor with the given id, or nil
func FindVendor(vendors []Vendor, id string) *Vendor {
	for i := range vendors {
		if vendors[i].ID == id {
			v := vendors[i]
			return &v
		}
	}
	return nil
}
