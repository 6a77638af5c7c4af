package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/crm-campaign-service/internal/audience"
	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
)

// AudiencePreviewer returns an audience count plus a capped sample.
type AudiencePreviewer interface {
	Preview(ctx context.Context, tenantID string, conditions model.ConditionSet, logic model.LogicType) (*audience.Preview, error)
}

type SegmentService struct {
	SegmentRepo  repository.SegmentRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	Audience     AudiencePreviewer
	Logger       logger.Logger
}

type SegmentInput struct {
	TenantID   string
	Name       string
	Conditions json.RawMessage
	LogicType  model.LogicType
}

// parseConditions validates a raw condition document and compiles it so
// operand types are checked before anything is stored.
func parseConditions(tenantID string, raw json.RawMessage, logic model.LogicType) (model.ConditionSet, model.LogicType, error) {
	if err := audience.ValidateConditionDocument(raw); err != nil {
		return nil, "", err
	}
	conds := model.ConditionSet{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &conds); err != nil {
			return nil, "", appErrors.NewValidation("conditions", "must be an object of field conditions")
		}
	}
	f, err := audience.Compile(tenantID, conds, model.LogicType(strings.ToUpper(string(logic))))
	if err != nil {
		return nil, "", err
	}
	return conds, f.Logic, nil
}

func (s *SegmentService) Create(ctx context.Context, in SegmentInput) (*model.Segment, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErrors.NewValidation("name", "is required")
	}
	conds, logic, err := parseConditions(in.TenantID, in.Conditions, in.LogicType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seg := &model.Segment{
		ID:         uuid.NewString(),
		TenantID:   in.TenantID,
		Name:       name,
		Conditions: conds,
		LogicType:  logic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.SegmentRepo.Create(ctx, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

func (s *SegmentService) Get(ctx context.Context, tenantID, id string) (*model.Segment, error) {
	if err := checkID("id", id); err != nil {
		return nil, err
	}
	return s.SegmentRepo.GetByIDForTenant(ctx, tenantID, id)
}

func (s *SegmentService) List(ctx context.Context, tenantID string) ([]model.Segment, error) {
	return s.SegmentRepo.ListForTenant(ctx, tenantID)
}

// Delete refuses while any campaign still references the segment.
func (s *SegmentService) Delete(ctx context.Context, tenantID, id string) error {
	if err := checkID("id", id); err != nil {
		return err
	}
	if _, err := s.SegmentRepo.GetByIDForTenant(ctx, tenantID, id); err != nil {
		return err
	}
	n, err := s.CampaignRepo.CountBySegment(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &appErrors.ErrSegmentInUse{SegmentID: id, Campaigns: n}
	}
	if err := s.SegmentRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.Logger.Info("segment deleted", map[string]interface{}{"tenant_id": tenantID, "segment_id": id})
	return nil
}

func (s *SegmentService) Preview(ctx context.Context, tenantID string, raw json.RawMessage, logic model.LogicType) (*audience.Preview, error) {
	conds, logic, err := parseConditions(tenantID, raw, logic)
	if err != nil {
		return nil, err
	}
	return s.Audience.Preview(ctx, tenantID, conds, logic)
}
