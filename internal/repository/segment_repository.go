package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/model"
)

type SegmentRepositoryInterface interface {
	Create(ctx context.Context, s *model.Segment) error
	GetByIDForTenant(ctx context.Context, tenantID, id string) (*model.Segment, error)
	ListForTenant(ctx context.Context, tenantID string) ([]model.Segment, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type SegmentRepository struct {
	DB *sql.DB
}

const segmentColumns = `id, tenant_id, name, conditions, logic_type, created_at, updated_at`

func (r *SegmentRepository) Create(ctx context.Context, s *model.Segment) error {
	query := `
        INSERT INTO segments (id, tenant_id, name, conditions, logic_type, created_at, updated_at)
        VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
    `
	_, err := r.DB.ExecContext(ctx, query,
		s.ID, s.TenantID, s.Name, s.Conditions, string(s.LogicType), s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByIDForTenant treats a segment owned by another tenant exactly like a
// missing one.
func (r *SegmentRepository) GetByIDForTenant(ctx context.Context, tenantID, id string) (*model.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE id = $1 AND tenant_id = $2`
	s, err := scanSegment(r.DB.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewSegmentNotFound(id)
		}
		return nil, err
	}
	return s, nil
}

func (r *SegmentRepository) ListForTenant(ctx context.Context, tenantID string) ([]model.Segment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE tenant_id = $1 ORDER BY created_at DESC, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	segments := []model.Segment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *s)
	}
	return segments, rows.Err()
}

func (r *SegmentRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM segments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewSegmentNotFound(id)
	}
	return nil
}

func scanSegment(row rowScanner) (*model.Segment, error) {
	var s model.Segment
	var logic string
	if err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Conditions, &logic, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.LogicType = model.LogicType(logic)
	return &s, nil
}

var _ SegmentRepositoryInterface = (*SegmentRepository)(nil)
