package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gpu-renter/core/models"

	"github.com/lib/pq"
)

// VendorRepository handles database operations for vendors
type VendorRepository struct {
	db *DB
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *DB) *VendorRepository {
	return &VendorRepository{db: db}
}

const vendorColumns = `id, name, endpoint, base_price_per_hour, reliability_score, supported_gpu_types, created_at, updated_at`

// ListVendors returns every vendor ordered by id
func (r *VendorRepository) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+vendorColumns+` FROM vendors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		var v models.Vendor
		if err := rows.Scan(
			&v.ID,
			&v.Name,
			&v.Endpoint,
			&v.BasePricePerHour,
			&v.ReliabilityScore,
			pq.Array(&v.SupportedGPUTypes),
			&v.CreatedAt,
			&v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// GetVendor retrieves a vendor by ID
func (r *VendorRepository) GetVendor(ctx context.Context, id string) (*models.Vendor, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	var v models.Vendor
	err := r.db.QueryRowContext(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id).Scan(
		&v.ID,
		&v.Name,
		&v.Endpoint,
		&v.BasePricePerHour,
		&v.ReliabilityScore,
		pq.Array(&v.SupportedGPUTypes),
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpsertVendor inserts a vendor or refreshes an existing one
func (r *VendorRepository) UpsertVendor(ctx context.Context, vendor *models.Vendor) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	now := time.Now().UTC()
	query := `
		INSERT INTO vendors (id, name, endpoint, base_price_per_hour, reliability_score, supported_gpu_types, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			endpoint = EXCLUDED.endpoint,
			base_price_per_hour = EXCLUDED.base_price_per_hour,
			reliability_score = EXCLUDED.reliability_score,
			supported_gpu_types = EXCLUDED.supported_gpu_types,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		vendor.ID,
		vendor.Name,
		vendor.Endpoint,
		vendor.BasePricePerHour,
		vendor.ReliabilityScore,
		pq.Array(vendor.SupportedGPUTypes),
		now,
	)
	if err != nil {
		return err
	}
	if vendor.CreatedAt.IsZero() {
		vendor.CreatedAt = now
	}
	vendor.UpdatedAt = now
	return nil
}
