package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stock-keeping item. Quantity is an integer unit count moved only by stock movements.
type Product struct {
	ID          int             `json:"id"`
	CompanyID   int             `json:"companyId"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Unit        string          `json:"unit"`
	CostPrice   decimal.Decimal `json:"costPrice"`
	SalePrice   decimal.Decimal `json:"salePrice"`
	Quantity    int64           `json:"quantity"`
	MinStock    int64           `json:"minStock"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductInput holds the editable fields of a product. Quantity is deliberately absent.
type ProductInput struct {
	Code        string          `json:"code" validate:"required,max=40"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	Unit        string          `json:"unit" validate:"omitempty,max=6"`
	CostPrice   decimal.Decimal `json:"costPrice" validate:"gte=0,places=4"`
	SalePrice   decimal.Decimal `json:"salePrice" validate:"gte=0,places=4"`
	MinStock    int64           `json:"minStock" validate:"gte=0"`
}

// ProductFilter narrows GetProducts.
type ProductFilter struct {
	Search       string
	LowStockOnly bool
}

// ProductService provides product master data operations.
type ProductService interface {
	CreateProduct(ctx context.Context, companyID int, input ProductInput) (*Product, error)
	GetProducts(ctx context.Context, companyID int, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, companyID, productID int) (*Product, error)
	UpdateProduct(ctx context.Context, companyID, productID int, input ProductInput) (*Product, error)
	DeactivateProduct(ctx context.Context, companyID, productID int) error
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementInvoiceIn       MovementType = "INVOICE_IN"
	MovementInvoiceReversal MovementType = "INVOICE_REVERSAL"
)

// StockMovement is the immutable audit row of one signed quantity change.
type StockMovement struct {
	ID           int64        `json:"id"`
	CompanyID    int          `json:"companyId"`
	ProductID    int          `json:"productId"`
	ProductCode  string       `json:"productCode"`
	InvoiceID    *int         `json:"invoiceId,omitempty"`
	MovementType MovementType `json:"movementType"`
	Quantity     int64        `json:"quantity"`
	BalanceAfter int64        `json:"balanceAfter"`
	Notes        string       `json:"notes"`
	CreatedBy    *int         `json:"createdBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}
