package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/model"
)

type DeliveryLogRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.DeliveryLog, error)
	GetByVendorMessageID(ctx context.Context, vendorMessageID string) (*model.DeliveryLog, error)
	Transition(ctx context.Context, t LogTransition) (bool, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]model.DeliveryLogView, error)
	StatsFromLogs(ctx context.Context, campaignID string) (model.DeliveryStats, error)
	PendingCounts(ctx context.Context, campaignIDs []string) (map[string]int, error)
}

// LogTransition moves one log to To, but only while its current status is
// one of From. Empty metadata fields leave the stored values untouched.
type LogTransition struct {
	ID              string
	From            []model.DeliveryStatus
	To              model.DeliveryStatus
	VendorMessageID string
	VendorResponse  json.RawMessage
	FailureReason   string
	At              time.Time
}

type DeliveryLogRepository struct {
	DB *sql.DB
}

const deliveryLogColumns = `id, campaign_id, customer_id, recipient, message, status, vendor_message_id,
    vendor_response, failure_reason, sent_at, delivered_at, failed_at, created_at, updated_at`

func (r *DeliveryLogRepository) GetByID(ctx context.Context, id string) (*model.DeliveryLog, error) {
	query := `SELECT ` + deliveryLogColumns + ` FROM delivery_logs WHERE id = $1`
	l, err := scanDeliveryLog(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewDeliveryLogNotFound(id)
		}
		return nil, err
	}
	return l, nil
}

func (r *DeliveryLogRepository) GetByVendorMessageID(ctx context.Context, vendorMessageID string) (*model.DeliveryLog, error) {
	query := `SELECT ` + deliveryLogColumns + ` FROM delivery_logs WHERE vendor_message_id = $1 LIMIT 1`
	l, err := scanDeliveryLog(r.DB.QueryRowContext(ctx, query, vendorMessageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewDeliveryLogNotFound("vendor:" + vendorMessageID)
		}
		return nil, err
	}
	return l, nil
}

// Transition applies a guarded status change and reports whether the row
// was in an allowed state. The guard lives in the WHERE clause so two
// racing writers cannot both win.
func (r *DeliveryLogRepository) Transition(ctx context.Context, t LogTransition) (bool, error) {
	for _, from := range t.From {
		if !model.CanTransition(from, t.To) {
			return false, fmt.Errorf("%w: %s -> %s", appErrors.ErrInvalidTransition, from, t.To)
		}
	}
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	var response sql.NullString
	if len(t.VendorResponse) > 0 {
		response = sql.NullString{String: string(t.VendorResponse), Valid: true}
	}

	query := `
        UPDATE delivery_logs
        SET status = $1::text,
            vendor_message_id = COALESCE(NULLIF($2, ''), vendor_message_id),
            vendor_response = COALESCE($3::jsonb, vendor_response),
            failure_reason = COALESCE(NULLIF($4, ''), failure_reason),
            sent_at = CASE WHEN $1::text = 'sent' THEN $5 ELSE sent_at END,
            delivered_at = CASE WHEN $1::text = 'delivered' THEN $5 ELSE delivered_at END,
            failed_at = CASE WHEN $1::text IN ('failed', 'bounced') THEN $5 ELSE failed_at END,
            updated_at = $5
        WHERE id = $6 AND status = ANY($7)
    `
	res, err := r.DB.ExecContext(ctx, query,
		string(t.To), t.VendorMessageID, response, t.FailureReason, t.At, t.ID, pq.Array(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition delivery log %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByCampaign returns every log of the campaign with the customer
// snapshot joined in.
func (r *DeliveryLogRepository) ListByCampaign(ctx context.Context, campaignID string) ([]model.DeliveryLogView, error) {
	query := `
        SELECT l.id, l.campaign_id, l.customer_id, l.recipient, l.message, l.status, l.vendor_message_id,
            l.vendor_response, l.failure_reason, l.sent_at, l.delivered_at, l.failed_at, l.created_at, l.updated_at,
            c.first_name, c.last_name, c.email, c.phone, c.total_spend
        FROM delivery_logs l
        JOIN customers c ON c.id = l.customer_id
        WHERE l.campaign_id = $1
        ORDER BY l.created_at, l.id
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []model.DeliveryLogView{}
	for rows.Next() {
		var v model.DeliveryLogView
		var status string
		var response []byte
		var first, last string
		if err := rows.Scan(
			&v.ID, &v.CampaignID, &v.CustomerID, &v.Recipient, &v.Message, &status, &v.VendorMessageID,
			&response, &v.FailureReason, &v.SentAt, &v.DeliveredAt, &v.FailedAt, &v.CreatedAt, &v.UpdatedAt,
			&first, &last, &v.Customer.Email, &v.Customer.Phone, &v.Customer.TotalSpend,
		); err != nil {
			return nil, err
		}
		v.Status = model.DeliveryStatus(status)
		if len(response) > 0 {
			v.VendorResponse = json.RawMessage(response)
		}
		v.Customer.ID = v.CustomerID
		v.Customer.Name = model.Customer{FirstName: first, LastName: last}.DisplayName()
		views = append(views, v)
	}
	return views, rows.Err()
}

// StatsFromLogs recomputes the counters from log state: sent counts every
// log the vendor accepted, failed covers both failed and bounced.
func (r *DeliveryLogRepository) StatsFromLogs(ctx context.Context, campaignID string) (model.DeliveryStats, error) {
	var s model.DeliveryStats
	err := r.DB.QueryRowContext(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE sent_at IS NOT NULL),
            COUNT(*) FILTER (WHERE status = 'delivered'),
            COUNT(*) FILTER (WHERE status IN ('failed', 'bounced'))
        FROM delivery_logs
        WHERE campaign_id = $1
    `, campaignID).Scan(&s.Sent, &s.Delivered, &s.Failed)
	return s, err
}

// PendingCounts returns how many logs of each campaign are still waiting on
// the vendor. Campaigns with none are absent from the map.
func (r *DeliveryLogRepository) PendingCounts(ctx context.Context, campaignIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return counts, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
        SELECT campaign_id, COUNT(*)
        FROM delivery_logs
        WHERE campaign_id = ANY($1) AND status = 'pending'
        GROUP BY campaign_id
    `, pq.Array(campaignIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func scanDeliveryLog(row rowScanner) (*model.DeliveryLog, error) {
	var l model.DeliveryLog
	var status string
	var response []byte
	err := row.Scan(
		&l.ID, &l.CampaignID, &l.CustomerID, &l.Recipient, &l.Message, &status, &l.VendorMessageID,
		&response, &l.FailureReason, &l.SentAt, &l.DeliveredAt, &l.FailedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = model.DeliveryStatus(status)
	if len(response) > 0 {
		l.VendorResponse = json.RawMessage(response)
	}
	return &l, nil
}

var _ DeliveryLogRepositoryInterface = (*DeliveryLogRepository)(nil)
