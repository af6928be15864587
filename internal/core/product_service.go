package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productService struct {
	pool *pgxpool.Pool
}

// NewProductService constructs a ProductService backed by PostgreSQL.
func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

const productColumns = `id, company_id, code, name, description, unit, cost_price, sale_price, quantity, min_stock, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }, p *Product) error {
	return row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.Description, &p.Unit,
		&p.CostPrice, &p.SalePrice, &p.Quantity, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (s *productService) CreateProduct(ctx context.Context, companyID int, input ProductInput) (*Product, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	unit := input.Unit
	if unit == "" {
		unit = "UN"
	}

	p := &Product{}
	err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (company_id, code, name, description, unit, cost_price, sale_price, min_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		companyID, input.Code, input.Name, toPtr(input.Description), unit,
		input.CostPrice, input.SalePrice, input.MinStock,
	), p)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("product code %s already exists", input.Code)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

func (s *productService) GetProducts(ctx context.Context, companyID int, filter ProductFilter) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE company_id = $1 AND is_active = true`
	args := []any{companyID}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (code ILIKE $%d OR name ILIKE $%d)", len(args), len(args))
	}
	if filter.LowStockOnly {
		query += " AND quantity <= min_stock"
	}
	query += " ORDER BY code"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *productService) GetProduct(ctx context.Context, companyID, productID int) (*Product, error) {
	p := &Product{}
	err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE company_id = $1 AND id = $2",
		companyID, productID,
	), p)
	if err != nil {
		return nil, notFoundOr(err, "product %d", productID)
	}
	return p, nil
}

func (s *productService) UpdateProduct(ctx context.Context, companyID, productID int, input ProductInput) (*Product, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	unit := input.Unit
	if unit == "" {
		unit = "UN"
	}

	p := &Product{}
	err := scanProduct(s.pool.QueryRow(ctx, `
		UPDATE products
		SET code = $3, name = $4, description = $5, unit = $6, cost_price = $7, sale_price = $8,
		    min_stock = $9, updated_at = NOW()
		WHERE company_id = $1 AND id = $2
		RETURNING `+productColumns,
		companyID, productID, input.Code, input.Name, toPtr(input.Description), unit,
		input.CostPrice, input.SalePrice, input.MinStock,
	), p)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("product code %s already exists", input.Code)
		}
		return nil, notFoundOr(err, "product %d", productID)
	}
	return p, nil
}

func (s *productService) DeactivateProduct(ctx context.Context, companyID, productID int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE products SET is_active = false, updated_at = NOW() WHERE company_id = $1 AND id = $2",
		companyID, productID,
	)
	if err != nil {
		return fmt.Errorf("deactivate product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}
