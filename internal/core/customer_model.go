package core

import (
	"context"
	"time"
)

// Customer is a buyer the company records cash entries against.
type Customer struct {
	ID        int       `json:"id"`
	CompanyID int       `json:"companyId"`
	Name      string    `json:"name"`
	Document  *string   `json:"document,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CustomerInput holds the fields used to create or update a customer.
type CustomerInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Document string `json:"document" validate:"omitempty,numeric,min=11,max=14"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Address  string `json:"address" validate:"omitempty,max=300"`
}

// CustomerService provides customer master data operations.
type CustomerService interface {
	CreateCustomer(ctx context.Context, companyID int, input CustomerInput) (*Customer, error)
	GetCustomers(ctx context.Context, companyID int, search string) ([]Customer, error)
	GetCustomer(ctx context.Context, companyID, customerID int) (*Customer, error)
	UpdateCustomer(ctx context.Context, companyID, customerID int, input CustomerInput) (*Customer, error)
	DeactivateCustomer(ctx context.Context, companyID, customerID int) error
}
