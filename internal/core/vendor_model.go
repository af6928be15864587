package core

import (
	"context"
	"time"
)

// Vendor is a supplier that issues NF-e invoices to the company.
type Vendor struct {
	ID            int       `json:"id"`
	CompanyID     int       `json:"companyId"`
	Name          string    `json:"name"`
	Document      *string   `json:"document,omitempty"`
	ContactPerson *string   `json:"contactPerson,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Address       *string   `json:"address,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// VendorInput holds the fields used to create or update a vendor.
type VendorInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	Document      string `json:"document" validate:"omitempty,numeric,min=11,max=14"`
	ContactPerson string `json:"contactPerson" validate:"omitempty,max=120"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,phone"`
	Address       string `json:"address" validate:"omitempty,max=300"`
}

// VendorService provides vendor master data operations.
type VendorService interface {
	// CreateVendor creates a new vendor record for the given company.
	CreateVendor(ctx context.Context, companyID int, input VendorInput) (*Vendor, error)

	// GetVendors returns all active vendors for a company.
	GetVendors(ctx context.Context, companyID int) ([]Vendor, error)

	// GetVendor returns a specific vendor, scoped to the company.
	GetVendor(ctx context.Context, companyID, vendorID int) (*Vendor, error)

	UpdateVendor(ctx context.Context, companyID, vendorID int, input VendorInput) (*Vendor, error)
	DeactivateVendor(ctx context.Context, companyID, vendorID int) error
}
