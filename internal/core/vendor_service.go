package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type vendorService struct {
	pool *pgxpool.Pool
}

// NewVendorService constructs a VendorService backed by PostgreSQL.
func NewVendorService(pool *pgxpool.Pool) VendorService {
	return &vendorService{pool: pool}
}

const vendorColumns = `id, company_id, name, document, contact_person, email, phone, address, is_active, created_at, updated_at`

func scanVendor(row interface{ Scan(...any) error }, v *Vendor) error {
	return row.Scan(
		&v.ID, &v.CompanyID, &v.Name, &v.Document,
		&v.ContactPerson, &v.Email, &v.Phone, &v.Address,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
}

// CreateVendor inserts a new vendor record for the given company.
func (s *vendorService) CreateVendor(ctx context.Context, companyID int, input VendorInput) (*Vendor, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	v := &Vendor{}
	err := scanVendor(s.pool.QueryRow(ctx, `
		INSERT INTO vendors (company_id, name, document, contact_person, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+vendorColumns,
		companyID, input.Name, toPtr(input.Document), toPtr(input.ContactPerson),
		toPtr(input.Email), toPtr(input.Phone), toPtr(input.Address),
	), v)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("vendor with document %s already exists", input.Document)
		}
		return nil, fmt.Errorf("create vendor %q: %w", input.Name, err)
	}
	return v, nil
}

// GetVendors returns all active vendors for a company, ordered by name.
func (s *vendorService) GetVendors(ctx context.Context, companyID int) ([]Vendor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+vendorColumns+`
		FROM vendors
		WHERE company_id = $1 AND is_active = true
		ORDER BY name`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("get vendors: %w", err)
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := scanVendor(rows, &v); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// GetVendor returns a vendor by id, scoped to the company.
func (s *vendorService) GetVendor(ctx context.Context, companyID, vendorID int) (*Vendor, error) {
	v := &Vendor{}
	err := scanVendor(s.pool.QueryRow(ctx, `
		SELECT `+vendorColumns+`
		FROM vendors
		WHERE company_id = $1 AND id = $2`,
		companyID, vendorID,
	), v)
	if err != nil {
		return nil, notFoundOr(err, "vendor %d", vendorID)
	}
	return v, nil
}

func (s *vendorService) UpdateVendor(ctx context.Context, companyID, vendorID int, input VendorInput) (*Vendor, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	v := &Vendor{}
	err := scanVendor(s.pool.QueryRow(ctx, `
		UPDATE vendors
		SET name = $3, document = $4, contact_person = $5, email = $6, phone = $7, address = $8,
		    updated_at = NOW()
		WHERE company_id = $1 AND id = $2
		RETURNING `+vendorColumns,
		companyID, vendorID, input.Name, toPtr(input.Document), toPtr(input.ContactPerson),
		toPtr(input.Email), toPtr(input.Phone), toPtr(input.Address),
	), v)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("vendor with document %s already exists", input.Document)
		}
		return nil, notFoundOr(err, "vendor %d", vendorID)
	}
	return v, nil
}

// DeactivateVendor hides a vendor from listings. Invoices keep referencing it.
func (s *vendorService) DeactivateVendor(ctx context.Context, companyID, vendorID int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE vendors SET is_active = false, updated_at = NOW() WHERE company_id = $1 AND id = $2",
		companyID, vendorID,
	)
	if err != nil {
		return fmt.Errorf("deactivate vendor %d: %w", vendorID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vendor %d: %w", vendorID, ErrNotFound)
	}
	return nil
}
