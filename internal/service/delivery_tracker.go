package service

import (
	"context"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
	"github.com/unclebandit/crm-campaign-service/internal/vendor"
)

// ReceiptOutcome says what applying a receipt did.
type ReceiptOutcome string

const (
	ReceiptApplied   ReceiptOutcome = "applied"
	ReceiptDuplicate ReceiptOutcome = "duplicate"
	ReceiptDeferred  ReceiptOutcome = "deferred"
)

// DeliveryTracker owns the delivery log lifecycle and the campaign counters
// that follow it. A counter moves only when its log transition was actually
// written.
type DeliveryTracker struct {
	Logs      repository.DeliveryLogRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	Logger    logger.Logger
	Now       func() time.Time
}

func NewDeliveryTracker(logs repository.DeliveryLogRepositoryInterface, campaigns repository.CampaignRepositoryInterface, log logger.Logger) *DeliveryTracker {
	return &DeliveryTracker{Logs: logs, Campaigns: campaigns, Logger: log, Now: time.Now}
}

// ApplySendResult records the vendor's synchronous answer:
// pending -> sent (+sent) or pending -> failed (+failed).
func (t *DeliveryTracker) ApplySendResult(ctx context.Context, l model.DeliveryLog, res vendor.Result) error {
	tr := repository.LogTransition{
		ID:   l.ID,
		From: []model.DeliveryStatus{model.StatusPending},
		At:   t.Now().UTC(),
	}
	stat := model.StatFailed
	if res.Accepted {
		tr.To = model.StatusSent
		tr.VendorMessageID = res.VendorMessageID
		tr.VendorResponse = res.Raw
		stat = model.StatSent
	} else {
		tr.To = model.StatusFailed
		tr.FailureReason = res.ErrorReason
		tr.VendorResponse = res.Raw
	}

	changed, err := t.Logs.Transition(ctx, tr)
	if err != nil {
		return err
	}
	if !changed {
		t.Logger.Warn("send result ignored, log no longer pending", map[string]interface{}{
			"log_id": l.ID, "campaign_id": l.CampaignID, "accepted": res.Accepted,
		})
		return nil
	}
	if err := t.Campaigns.IncrementStat(ctx, l.CampaignID, stat); err != nil {
		return fmt.Errorf("increment %s for campaign %s: %w", stat, l.CampaignID, err)
	}
	return nil
}

// ApplyReceipt moves a sent log to its final status and bumps delivered or
// failed. Receipts for logs already in a terminal state are reported as
// duplicates and change nothing; receipts that overtake the send result are
// deferred.
func (t *DeliveryTracker) ApplyReceipt(ctx context.Context, r model.Receipt) (ReceiptOutcome, error) {
	if !r.Status.IsTerminal() {
		return "", fmt.Errorf("%w: status %q", appErrors.ErrInvalidReceipt, r.Status)
	}

	l, err := t.lookup(ctx, r)
	if err != nil {
		return "", err
	}

	switch {
	case l.Status == model.StatusPending:
		return ReceiptDeferred, nil
	case l.Status.IsTerminal():
		return ReceiptDuplicate, nil
	}

	tr := repository.LogTransition{
		ID:              l.ID,
		From:            []model.DeliveryStatus{model.StatusSent},
		To:              r.Status,
		VendorMessageID: r.VendorMessageID,
		VendorResponse:  r.RawPayload,
		At:              t.Now().UTC(),
	}
	// The id returned at send time stays authoritative for later lookups.
	if l.VendorMessageID != nil && *l.VendorMessageID != "" {
		tr.VendorMessageID = ""
		if r.VendorMessageID != "" && r.VendorMessageID != *l.VendorMessageID {
			t.Logger.Warn("receipt vendor message id differs from stored id", map[string]interface{}{
				"log_id":                   l.ID,
				"stored_vendor_message_id": *l.VendorMessageID,
				"receipt_message_id":       r.VendorMessageID,
			})
		}
	}
	if r.Status != model.StatusDelivered {
		tr.FailureReason = r.Reason
		if tr.FailureReason == "" {
			tr.FailureReason = "vendor reported " + string(r.Status)
		}
	}

	changed, err := t.Logs.Transition(ctx, tr)
	if err != nil {
		return "", err
	}
	if !changed {
		return ReceiptDuplicate, nil
	}

	stat := model.StatFailed
	if r.Status == model.StatusDelivered {
		stat = model.StatDelivered
	}
	if err := t.Campaigns.IncrementStat(ctx, l.CampaignID, stat); err != nil {
		return "", err
	}
	return ReceiptApplied, nil
}

func (t *DeliveryTracker) lookup(ctx context.Context, r model.Receipt) (*model.DeliveryLog, error) {
	if r.LogID != "" {
		return t.Logs.GetByID(ctx, r.LogID)
	}
	if r.VendorMessageID != "" {
		return t.Logs.GetByVendorMessageID(ctx, r.VendorMessageID)
	}
	return nil, fmt.Errorf("%w: no log id or vendor message id", appErrors.ErrInvalidReceipt)
}
