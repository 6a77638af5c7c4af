package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crm-campaign-service/internal/audience"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/queue"
	"github.com/unclebandit/crm-campaign-service/internal/service"
	"github.com/unclebandit/crm-campaign-service/internal/vendor"
)

// Launch, detached sends and receipt reconciliation against a segment of
// three customers and a vendor that accepts everything.
func TestPipeline_ThreeCustomerCampaign(t *testing.T) {
	db := newMemDB()
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	for i, name := range []string{"Anil", "", "Grace"} {
		require.NoError(t, db.Customers().Create(ctx, &model.Customer{
			ID: uuid.NewString(), TenantID: tenantA, FirstName: name,
			Phone: "+25470000000" + string(rune('1'+i)), TotalSpend: 500,
			CreatedAt: time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, db.Customers().Create(ctx, &model.Customer{
		ID: uuid.NewString(), TenantID: tenantB, FirstName: "Other", Phone: "+254799999999", TotalSpend: 500,
	}))
	seg := &model.Segment{
		ID: uuid.NewString(), TenantID: tenantA, Name: "Everyone spending", LogicType: model.LogicAnd,
		Conditions: model.ConditionSet{"totalSpend": {Operator: model.OpGreaterOrEqual, Value: 100.0}},
	}
	require.NoError(t, db.Segments().Create(ctx, seg))

	tracker := service.NewDeliveryTracker(db.Logs(), db.Campaigns(), log)
	dispatcher := service.NewDispatcher(vendor.NewMockGateway(1.0, 7), tracker, 4, time.Second, log)
	receipts := queue.NewInMemoryQueue()
	reconciler := service.NewReconciler(receipts, tracker, time.Hour, 3, log)

	svc := &service.CampaignService{
		CampaignRepo: db.Campaigns(),
		SegmentRepo:  db.Segments(),
		CustomerRepo: db.Customers(),
		LogRepo:      db.Logs(),
		Audience:     audience.NewResolver(db.Customers(), nil, 0, log),
		Dispatcher:   dispatcher,
		Logger:       log,
	}

	res, err := svc.Launch(ctx, service.LaunchInput{TenantID: tenantA, Name: "E2E", SegmentID: seg.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, res.AudienceSize)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Shutdown(shutdownCtx))

	details, err := svc.GetCampaignDetailsWithStats(ctx, tenantA, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, details.Stats.Sent)
	assert.Equal(t, 0, details.Stats.Pending)

	for _, l := range details.Logs {
		require.Equal(t, model.StatusSent, l.Status)
		require.NotNil(t, l.VendorMessageID)
		require.NoError(t, reconciler.Enqueue(ctx, model.Receipt{
			LogID: l.ID, VendorMessageID: *l.VendorMessageID, Status: model.StatusDelivered,
		}))
	}
	for i := 0; i < 3; i++ {
		require.True(t, reconciler.Tick(ctx))
	}

	details, err = svc.GetCampaignDetailsWithStats(ctx, tenantA, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, details.Stats.AudienceSize)
	assert.Equal(t, 3, details.Stats.Sent)
	assert.Equal(t, 3, details.Stats.Delivered)
	assert.Equal(t, 3, details.Stats.Attempted)
	assert.Equal(t, 0, details.Stats.Pending)
	assert.Equal(t, "100.0%", details.Stats.SuccessRate)
	for _, l := range details.Logs {
		assert.Equal(t, model.StatusDelivered, l.Status)
	}
}
