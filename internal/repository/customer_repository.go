package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unclebandit/crm-campaign-service/internal/audience"
	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/model"
)

type CustomerRepositoryInterface interface {
	GetByIDForTenant(ctx context.Context, tenantID, id string) (*model.Customer, error)
	FindMatching(ctx context.Context, f *audience.Filter, limit int) ([]model.Customer, error)
	CountMatching(ctx context.Context, f *audience.Filter) (int, error)
	Create(ctx context.Context, c *model.Customer) error
}

type CustomerRepository struct {
	DB *sql.DB
}

const customerColumns = `id, tenant_id, first_name, last_name, email, phone, total_spend, visits,
    last_active_date, created_at, updated_at`

func (r *CustomerRepository) GetByIDForTenant(ctx context.Context, tenantID, id string) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND tenant_id = $2`
	c, err := scanCustomer(r.DB.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCustomerNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

// FindMatching runs a compiled audience filter. limit <= 0 returns every match.
func (r *CustomerRepository) FindMatching(ctx context.Context, f *audience.Filter, limit int) ([]model.Customer, error) {
	where, args := f.SQL(1)
	query := `SELECT ` + customerColumns + ` FROM customers WHERE ` + where + ` ORDER BY created_at, id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepository) CountMatching(ctx context.Context, f *audience.Filter) (int, error) {
	where, args := f.SQL(1)
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE `+where, args...).Scan(&n)
	return n, err
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	query := `
        INSERT INTO customers (id, tenant_id, first_name, last_name, email, phone, total_spend, visits,
            last_active_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
    `
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.TenantID, c.FirstName, c.LastName, c.Email, c.Phone, c.TotalSpend, c.Visits,
		c.LastActiveDate, c.CreatedAt,
	)
	return err
}

func scanCustomer(row rowScanner) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(
		&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.TotalSpend, &c.Visits,
		&c.LastActiveDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var (
	_ CustomerRepositoryInterface = (*CustomerRepository)(nil)
	_ audience.CustomerFinder     = (*CustomerRepository)(nil)
)
