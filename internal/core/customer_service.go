package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type customerService struct {
	pool *pgxpool.Pool
}

// NewCustomerService constructs a CustomerService backed by PostgreSQL.
func NewCustomerService(pool *pgxpool.Pool) CustomerService {
	return &customerService{pool: pool}
}

const customerColumns = `id, company_id, name, document, email, phone, address, is_active, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }, c *Customer) error {
	return row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Document, &c.Email, &c.Phone, &c.Address,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
}

func (s *customerService) CreateCustomer(ctx context.Context, companyID int, input CustomerInput) (*Customer, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	c := &Customer{}
	err := scanCustomer(s.pool.QueryRow(ctx, `
		INSERT INTO customers (company_id, name, document, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+customerColumns,
		companyID, input.Name, toPtr(input.Document), toPtr(input.Email), toPtr(input.Phone), toPtr(input.Address),
	), c)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("customer with document %s already exists", input.Document)
		}
		return nil, fmt.Errorf("create customer %q: %w", input.Name, err)
	}
	return c, nil
}

// GetCustomers returns active customers, optionally filtered by a case-insensitive name/document match.
func (s *customerService) GetCustomers(ctx context.Context, companyID int, search string) ([]Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE company_id = $1 AND is_active = true`
	args := []any{companyID}
	if search != "" {
		query += " AND (name ILIKE $2 OR document ILIKE $2)"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := scanCustomer(rows, &c); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *customerService) GetCustomer(ctx context.Context, companyID, customerID int) (*Customer, error) {
	c := &Customer{}
	err := scanCustomer(s.pool.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE company_id = $1 AND id = $2",
		companyID, customerID,
	), c)
	if err != nil {
		return nil, notFoundOr(err, "customer %d", customerID)
	}
	return c, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, companyID, customerID int, input CustomerInput) (*Customer, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	c := &Customer{}
	err := scanCustomer(s.pool.QueryRow(ctx, `
		UPDATE customers
		SET name = $3, document = $4, email = $5, phone = $6, address = $7, updated_at = NOW()
		WHERE company_id = $1 AND id = $2
		RETURNING `+customerColumns,
		companyID, customerID, input.Name, toPtr(input.Document), toPtr(input.Email),
		toPtr(input.Phone), toPtr(input.Address),
	), c)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("customer with document %s already exists", input.Document)
		}
		return nil, notFoundOr(err, "customer %d", customerID)
	}
	return c, nil
}

func (s *customerService) DeactivateCustomer(ctx context.Context, companyID, customerID int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE customers SET is_active = false, updated_at = NOW() WHERE company_id = $1 AND id = $2",
		companyID, customerID,
	)
	if err != nil {
		return fmt.Errorf("deactivate customer %d: %w", customerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
	}
	return nil
}
