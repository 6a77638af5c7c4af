package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/model"
)

type CampaignRepositoryInterface interface {
	CreateWithLogs(ctx context.Context, c *model.Campaign, logs []model.DeliveryLog) error
	GetByIDForTenant(ctx context.Context, tenantID, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, tenantID string, offset, limit int) ([]*model.Campaign, int, error)
	CountBySegment(ctx context.Context, tenantID, segmentID string) (int, error)
	DeleteCascade(ctx context.Context, tenantID, id string) (int64, error)

	// Counters
	IncrementStat(ctx context.Context, id string, stat model.Stat) error
	SetStats(ctx context.Context, id string, stats model.DeliveryStats) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, tenant_id, segment_id, name, channel, message, audience_size,
    stats_sent, stats_delivered, stats_failed, launched_at, created_at`

var statColumns = map[model.Stat]string{
	model.StatSent:      "stats_sent",
	model.StatDelivered: "stats_delivered",
	model.StatFailed:    "stats_failed",
}

var deliveryLogCopyColumns = []string{
	"id", "campaign_id", "customer_id", "recipient", "message", "status", "created_at", "updated_at",
}

// ====================== Campaign CRUD ======================

// CreateWithLogs inserts the campaign and its pending delivery logs in one
// transaction; logs are streamed with COPY.
func (r *CampaignRepository) CreateWithLogs(ctx context.Context, c *model.Campaign, logs []model.DeliveryLog) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin launch tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := `
        INSERT INTO campaigns (id, tenant_id, segment_id, name, channel, message, audience_size,
            stats_sent, stats_delivered, stats_failed, launched_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, $8, $9)
    `
	if _, err = tx.ExecContext(ctx, query,
		c.ID, c.TenantID, c.SegmentID, c.Name, string(c.Channel), c.Message, c.AudienceSize, c.LaunchedAt, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	if len(logs) > 0 {
		stmt, perr := tx.PrepareContext(ctx, pq.CopyIn("delivery_logs", deliveryLogCopyColumns...))
		if perr != nil {
			err = fmt.Errorf("prepare delivery log copy: %w", perr)
			return err
		}
		for _, l := range logs {
			if _, err = stmt.ExecContext(ctx,
				l.ID, l.CampaignID, l.CustomerID, l.Recipient, l.Message, string(l.Status), l.CreatedAt, l.UpdatedAt,
			); err != nil {
				stmt.Close()
				return fmt.Errorf("copy delivery log %s: %w", l.ID, err)
			}
		}
		if _, err = stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flush delivery log copy: %w", err)
		}
		if err = stmt.Close(); err != nil {
			return fmt.Errorf("close delivery log copy: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit launch tx: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByIDForTenant(ctx context.Context, tenantID, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND tenant_id = $2`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, tenantID string, offset, limit int) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE tenant_id = $1
        ORDER BY created_at DESC, id
        LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) CountBySegment(ctx context.Context, tenantID, segmentID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE tenant_id = $1 AND segment_id = $2`,
		tenantID, segmentID,
	).Scan(&n)
	return n, err
}

// DeleteCascade removes the campaign's delivery logs and then the campaign,
// returning how many logs were removed.
func (r *CampaignRepository) DeleteCascade(ctx context.Context, tenantID, id string) (deleted int64, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var owned string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM campaigns WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, id, tenantID,
	).Scan(&owned)
	if errors.Is(err, sql.ErrNoRows) {
		err = appErrors.NewCampaignNotFound(id)
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM delivery_logs WHERE campaign_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete delivery logs: %w", err)
	}
	deleted, _ = res.RowsAffected()

	if _, err = tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1 AND tenant_id = $2`, id, tenantID); err != nil {
		return 0, fmt.Errorf("delete campaign: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete tx: %w", err)
	}
	return deleted, nil
}

// ====================== Counters ======================

// IncrementStat bumps one counter in place. The increment happens in the
// UPDATE itself so concurrent callers never lose updates.
func (r *CampaignRepository) IncrementStat(ctx context.Context, id string, stat model.Stat) error {
	col, ok := statColumns[stat]
	if !ok {
		return fmt.Errorf("unknown campaign stat %q", stat)
	}
	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1 WHERE id = $1`, col, col)
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment %s: %w", col, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

// SetStats overwrites the counters. Only the repair path calls it.
func (r *CampaignRepository) SetStats(ctx context.Context, id string, stats model.DeliveryStats) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET stats_sent = $1, stats_delivered = $2, stats_failed = $3 WHERE id = $4`,
		stats.Sent, stats.Delivered, stats.Failed, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var channel string
	err := row.Scan(
		&c.ID, &c.TenantID, &c.SegmentID, &c.Name, &channel, &c.Message, &c.AudienceSize,
		&c.Stats.Sent, &c.Stats.Delivered, &c.Stats.Failed, &c.LaunchedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Channel = model.Channel(channel)
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
