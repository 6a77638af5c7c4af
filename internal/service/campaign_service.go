// internal/service/campaign_service.go
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/metrics"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
)

// AudienceResolver resolves a segment to its tenant's matching customers.
type AudienceResolver interface {
	Resolve(ctx context.Context, tenantID string, segment *model.Segment) ([]model.Customer, error)
}

// SendDispatcher starts detached sends for freshly created logs.
type SendDispatcher interface {
	Dispatch(channel model.Channel, logs []model.DeliveryLog) error
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	SegmentRepo  repository.SegmentRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	LogRepo      repository.DeliveryLogRepositoryInterface
	Audience     AudienceResolver
	Dispatcher   SendDispatcher
	Logger       logger.Logger
	Now          func() time.Time
	NewID        func() string
}

type LaunchInput struct {
	TenantID  string
	Name      string
	SegmentID string
	Message   string
	Channel   model.Channel
}

type LaunchResult struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AudienceSize int    `json:"audienceSize"`
	Message      string `json:"message"`
}

type CampaignSummary struct {
	model.Campaign
	Stats CampaignStats `json:"stats"`
}

type CampaignDetails struct {
	model.Campaign
	Stats CampaignStats           `json:"stats"`
	Logs  []model.DeliveryLogView `json:"logs"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CampaignService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// checkID rejects identifiers that cannot be a stored row key before they
// reach the uuid columns.
func checkID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.NewValidation(field, "is not a valid identifier")
	}
	return nil
}

// Launch creates a campaign for a segment's current audience and starts the
// sends without waiting for them.
func (s *CampaignService) Launch(ctx context.Context, in LaunchInput) (*LaunchResult, error) {
	if in.TenantID == "" {
		return nil, appErrors.ErrMissingTenant
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErrors.NewValidation("name", "is required")
	}
	segmentID := strings.TrimSpace(in.SegmentID)
	if segmentID == "" {
		return nil, appErrors.NewValidation("segmentId", "is required")
	}
	if err := checkID("segmentId", segmentID); err != nil {
		return nil, err
	}
	channel := in.Channel
	if channel == "" {
		channel = model.ChannelSMS
	}
	if !channel.Valid() {
		return nil, appErrors.NewValidation("channel", "must be sms or email")
	}
	template := strings.TrimSpace(in.Message)
	if template == "" {
		template = DefaultMessageTemplate
	}

	segment, err := s.SegmentRepo.GetByIDForTenant(ctx, in.TenantID, segmentID)
	if err != nil {
		return nil, err
	}

	customers, err := s.Audience.Resolve(ctx, in.TenantID, segment)
	if err != nil {
		return nil, err
	}

	now := s.now()
	campaign := &model.Campaign{
		ID:           s.newID(),
		TenantID:     in.TenantID,
		SegmentID:    segment.ID,
		Name:         name,
		Channel:      channel,
		Message:      template,
		AudienceSize: len(customers),
		LaunchedAt:   now,
		CreatedAt:    now,
	}

	logs := make([]model.DeliveryLog, 0, len(customers))
	for _, c := range customers {
		logs = append(logs, model.DeliveryLog{
			ID:         s.newID(),
			CampaignID: campaign.ID,
			CustomerID: c.ID,
			Recipient:  c.RecipientFor(channel),
			Message:    RenderMessage(template, c),
			Status:     model.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := s.CampaignRepo.CreateWithLogs(ctx, campaign, logs); err != nil {
		return nil, err
	}
	metrics.CampaignsLaunched.WithLabelValues(string(channel)).Inc()

	s.Logger.Info("campaign launched", map[string]interface{}{
		"tenant_id":     in.TenantID,
		"campaign_id":   campaign.ID,
		"segment_id":    segment.ID,
		"audience_size": campaign.AudienceSize,
	})

	if len(logs) > 0 {
		if err := s.Dispatcher.Dispatch(channel, logs); err != nil {
			// The campaign exists; its logs stay pending.
			s.Logger.Error("failed to dispatch campaign sends", map[string]interface{}{
				"campaign_id": campaign.ID, "error": err,
			})
		}
	}

	return &LaunchResult{
		ID:           campaign.ID,
		Name:         campaign.Name,
		AudienceSize: campaign.AudienceSize,
		Message:      campaign.Message,
	}, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, tenantID, campaignID string) (*CampaignDetails, error) {
	if err := checkID("id", campaignID); err != nil {
		return nil, err
	}
	campaign, err := s.CampaignRepo.GetByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	logs, err := s.LogRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{
		Campaign: *campaign,
		Stats:    DeriveStats(campaign.AudienceSize, campaign.Stats, CountPending(logs)),
		Logs:     logs,
	}, nil
}

// ListCampaigns fetches a page of the tenant's campaigns, newest first.
func (s *CampaignService) ListCampaigns(ctx context.Context, tenantID string, page, pageSize int) ([]CampaignSummary, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, tenantID, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(ptrs))
	for i, c := range ptrs {
		ids[i] = c.ID
	}
	pending, err := s.LogRepo.PendingCounts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]CampaignSummary, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = CampaignSummary{Campaign: *c, Stats: DeriveStats(c.AudienceSize, c.Stats, pending[c.ID])}
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// DeleteCampaign removes the campaign and all of its delivery logs.
func (s *CampaignService) DeleteCampaign(ctx context.Context, tenantID, campaignID string) error {
	if err := checkID("id", campaignID); err != nil {
		return err
	}
	deleted, err := s.CampaignRepo.DeleteCascade(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}
	s.Logger.Info("campaign deleted", map[string]interface{}{
		"tenant_id": tenantID, "campaign_id": campaignID, "logs_deleted": deleted,
	})
	return nil
}

// RenderPreview personalizes the campaign's message, or an override, for
// one of the tenant's customers.
func (s *CampaignService) RenderPreview(ctx context.Context, tenantID, campaignID, customerID string, overrideTemplate *string) (string, error) {
	if err := checkID("id", campaignID); err != nil {
		return "", err
	}
	campaign, err := s.CampaignRepo.GetByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return "", err
	}
	customer, err := s.CustomerRepo.GetByIDForTenant(ctx, tenantID, customerID)
	if err != nil {
		return "", err
	}

	template := campaign.Message
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", appErrors.NewValidation("override_template", "template cannot be empty")
	}
	return RenderMessage(template, *customer), nil
}

// RepairStats rebuilds the stored counters from the delivery logs.
func (s *CampaignService) RepairStats(ctx context.Context, tenantID, campaignID string) (CampaignStats, error) {
	if err := checkID("id", campaignID); err != nil {
		return CampaignStats{}, err
	}
	campaign, err := s.CampaignRepo.GetByIDForTenant(ctx, tenantID, campaignID)
	if err != nil {
		return CampaignStats{}, err
	}
	stats, err := s.LogRepo.StatsFromLogs(ctx, campaign.ID)
	if err != nil {
		return CampaignStats{}, err
	}
	if err := s.CampaignRepo.SetStats(ctx, campaign.ID, stats); err != nil {
		return CampaignStats{}, err
	}
	if stats != campaign.Stats {
		s.Logger.Warn("campaign counters repaired", map[string]interface{}{
			"campaign_id": campaign.ID,
			"before":      campaign.Stats,
			"after":       stats,
		})
	}
	pending, err := s.LogRepo.PendingCounts(ctx, []string{campaign.ID})
	if err != nil {
		return CampaignStats{}, err
	}
	return DeriveStats(campaign.AudienceSize, stats, pending[campaign.ID]), nil
}

// IsDispatcherClosed reports whether err came from a dispatcher that is
// shutting down.
func IsDispatcherClosed(err error) bool {
	return errors.Is(err, ErrDispatcherClosed)
}
