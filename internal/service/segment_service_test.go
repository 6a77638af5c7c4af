package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crm-campaign-service/internal/audience"
	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/service"
)

func newSegmentService(f *fixture) *service.SegmentService {
	log := logger.NewNoOpLogger()
	return &service.SegmentService{
		SegmentRepo:  f.db.Segments(),
		CampaignRepo: f.db.Campaigns(),
		Audience:     audience.NewResolver(f.db.Customers(), nil, 2, log),
		Logger:       log,
	}
}

func TestSegmentService_Create(t *testing.T) {
	f := newFixture(t)
	svc := newSegmentService(f)
	ctx := context.Background()

	seg, err := svc.Create(ctx, service.SegmentInput{
		TenantID:   tenantA,
		Name:       "Big spenders",
		Conditions: json.RawMessage(`{"totalSpend":{"operator":"greaterThan","value":1000}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LogicAnd, seg.LogicType)
	assert.Equal(t, model.OpGreaterThan, seg.Conditions["totalSpend"].Operator)

	stored, err := svc.Get(ctx, tenantA, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Big spenders", stored.Name)

	_, err = svc.Get(ctx, tenantB, seg.ID)
	assert.True(t, appErrors.IsNotFound(err))

	seg, err = svc.Create(ctx, service.SegmentInput{
		TenantID: tenantA, Name: "Either", LogicType: "or",
		Conditions: json.RawMessage(`{"visits":{"operator":"equals","value":3},"lastActiveDate":{"operator":"greaterOrEqual","value":"2024-01-01"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LogicOr, seg.LogicType)
}

func TestSegmentService_CreateRejectsBadConditions(t *testing.T) {
	f := newFixture(t)
	svc := newSegmentService(f)

	tests := map[string]string{
		"unknown field":     `{"age":{"operator":"greaterThan","value":30}}`,
		"unknown operator":  `{"totalSpend":{"operator":"between","value":30}}`,
		"fractional visits": `{"visits":{"operator":"equals","value":2.5}}`,
		"bad date":          `{"lastActiveDate":{"operator":"equals","value":"yesterday!"}}`,
		"not an object":     `[1,2,3]`,
		"missing value":     `{"totalSpend":{"operator":"greaterThan"}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), service.SegmentInput{
				TenantID: tenantA, Name: "bad", Conditions: json.RawMessage(doc),
			})
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err), "got %v", err)
		})
	}

	_, err := svc.Create(context.Background(), service.SegmentInput{
		TenantID: tenantA, Name: "bad logic", LogicType: "XOR", Conditions: json.RawMessage(`{}`),
	})
	assert.True(t, appErrors.IsValidation(err))
}

func TestSegmentService_DeleteBlockedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	svc := newSegmentService(f)
	ctx := context.Background()

	for _, name := range []string{"one", "two"} {
		_, err := f.svc.Launch(ctx, service.LaunchInput{TenantID: tenantA, Name: name, SegmentID: f.segmentID})
		require.NoError(t, err)
	}

	err := svc.Delete(ctx, tenantA, f.segmentID)
	var inUse *appErrors.ErrSegmentInUse
	require.True(t, errors.As(err, &inUse), "got %v", err)
	assert.Equal(t, 2, inUse.Campaigns)

	_, err = svc.Get(ctx, tenantA, f.segmentID)
	require.NoError(t, err, "segment must survive the blocked delete")
}

func TestSegmentService_Delete(t *testing.T) {
	f := newFixture(t)
	svc := newSegmentService(f)
	ctx := context.Background()

	assert.True(t, appErrors.IsNotFound(svc.Delete(ctx, tenantB, f.segmentID)))
	assert.True(t, appErrors.IsNotFound(svc.Delete(ctx, tenantA, uuid.NewString())))
	assert.True(t, appErrors.IsValidation(svc.Delete(ctx, tenantA, "abc")))
	_, err := svc.Get(ctx, tenantA, "abc")
	assert.True(t, appErrors.IsValidation(err))

	require.NoError(t, svc.Delete(ctx, tenantA, f.segmentID))
	_, err = svc.Get(ctx, tenantA, f.segmentID)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestSegmentService_PreviewIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	svc := newSegmentService(f)

	preview, err := svc.Preview(context.Background(), tenantA,
		json.RawMessage(`{"totalSpend":{"operator":"greaterThan","value":1000},"visits":{"operator":"greaterOrEqual","value":20}}`),
		model.LogicOr)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.Count)
	assert.Len(t, preview.Sample, 2, "sample capped by preview limit")
	for _, c := range preview.Sample {
		assert.Equal(t, tenantA, c.TenantID)
	}
}

func TestSegmentService_List(t *testing.T) {
	f := newFixture(t)
	svc := newSegmentService(f)

	segs, err := svc.List(context.Background(), tenantA)
	require.NoError(t, err)
	assert.Len(t, segs, 1)

	segs, err = svc.List(context.Background(), tenantB)
	require.NoError(t, err)
	assert.Empty(t, segs)
}
