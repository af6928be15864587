package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CompanyService manages tenants.
type CompanyService interface {
	CreateCompany(ctx context.Context, input CompanyInput) (*Company, error)
	GetCompany(ctx context.Context, id int) (*Company, error)
	GetCompanyByCode(ctx context.Context, code string) (*Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
}

type companyService struct {
	pool *pgxpool.Pool
}

// NewCompanyService constructs a CompanyService backed by PostgreSQL.
func NewCompanyService(pool *pgxpool.Pool) CompanyService {
	return &companyService{pool: pool}
}

const companyColumns = `id, company_code, name, document, base_currency, is_active, created_at`

func scanCompany(row interface{ Scan(...any) error }, c *Company) error {
	return row.Scan(&c.ID, &c.CompanyCode, &c.Name, &c.Document, &c.BaseCurrency, &c.IsActive, &c.CreatedAt)
}

func (s *companyService) CreateCompany(ctx context.Context, input CompanyInput) (*Company, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	currency := input.BaseCurrency
	if currency == "" {
		currency = "BRL"
	}

	c := &Company{}
	err := scanCompany(s.pool.QueryRow(ctx, `
		INSERT INTO companies (company_code, name, document, base_currency)
		VALUES ($1, $2, $3, $4)
		RETURNING `+companyColumns,
		input.CompanyCode, input.Name, toPtr(input.Document), currency,
	), c)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("company code %s already exists", input.CompanyCode)
		}
		return nil, fmt.Errorf("create company %s: %w", input.CompanyCode, err)
	}
	return c, nil
}

func (s *companyService) GetCompany(ctx context.Context, id int) (*Company, error) {
	c := &Company{}
	err := scanCompany(s.pool.QueryRow(ctx,
		"SELECT "+companyColumns+" FROM companies WHERE id = $1", id), c)
	if err != nil {
		return nil, notFoundOr(err, "company %d", id)
	}
	return c, nil
}

func (s *companyService) GetCompanyByCode(ctx context.Context, code string) (*Company, error) {
	c := &Company{}
	err := scanCompany(s.pool.QueryRow(ctx,
		"SELECT "+companyColumns+" FROM companies WHERE company_code = $1", code), c)
	if err != nil {
		return nil, notFoundOr(err, "company %s", code)
	}
	return c, nil
}

func (s *companyService) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+companyColumns+" FROM companies ORDER BY company_code")
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := scanCompany(rows, &c); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}
