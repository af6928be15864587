package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Company is a tenant. Every other record is scoped to exactly one company.
type Company struct {
	ID           int       `json:"id"`
	CompanyCode  string    `json:"companyCode"`
	Name         string    `json:"name"`
	Document     *string   `json:"document,omitempty"`
	BaseCurrency string    `json:"baseCurrency"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CompanyInput holds the fields required to create a tenant.
type CompanyInput struct {
	CompanyCode  string `json:"companyCode" validate:"required,alphanum,max=20"`
	Name         string `json:"name" validate:"required,max=200"`
	Document     string `json:"document" validate:"omitempty,max=20"`
	BaseCurrency string `json:"baseCurrency" validate:"omitempty,len=3,uppercase"`
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx (for Query).
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func toPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// dateOnly truncates t to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
