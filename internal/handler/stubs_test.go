package handler_test

import (
	"context"
	"sort"
	"sync"

	"github.com/unclebandit/crm-campaign-service/internal/audience"
	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
)

// store backs every stub repository with plain maps.
type store struct {
	mu        sync.Mutex
	customers []model.Customer
	segments  map[string]model.Segment
	campaigns map[string]model.Campaign
	logs      map[string][]model.DeliveryLog
}

func newStore(customers ...model.Customer) *store {
	return &store{
		customers: customers,
		segments:  map[string]model.Segment{},
		campaigns: map[string]model.Campaign{},
		logs:      map[string][]model.DeliveryLog{},
	}
}

type stubCampaigns struct{ *store }

func (s stubCampaigns) CreateWithLogs(_ context.Context, c *model.Campaign, logs []model.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = *c
	s.logs[c.ID] = append([]model.DeliveryLog(nil), logs...)
	return nil
}

func (s stubCampaigns) GetByIDForTenant(_ context.Context, tenantID, id string) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return &c, nil
}

func (s stubCampaigns) ListCampaigns(_ context.Context, tenantID string, offset, limit int) ([]*model.Campaign, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range s.campaigns {
		if c.TenantID == tenantID {
			c := c
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s stubCampaigns) CountBySegment(_ context.Context, tenantID, segmentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.campaigns {
		if c.TenantID == tenantID && c.SegmentID == segmentID {
			n++
		}
	}
	return n, nil
}

func (s stubCampaigns) DeleteCascade(_ context.Context, tenantID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return 0, appErrors.NewCampaignNotFound(id)
	}
	n := int64(len(s.logs[id]))
	delete(s.logs, id)
	delete(s.campaigns, id)
	return n, nil
}

func (s stubCampaigns) IncrementStat(_ context.Context, id string, stat model.Stat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	switch stat {
	case model.StatSent:
		c.Stats.Sent++
	case model.StatDelivered:
		c.Stats.Delivered++
	case model.StatFailed:
		c.Stats.Failed++
	}
	s.campaigns[id] = c
	return nil
}

func (s stubCampaigns) SetStats(_ context.Context, id string, stats model.DeliveryStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Stats = stats
	s.campaigns[id] = c
	return nil
}

type stubSegments struct{ *store }

func (s stubSegments) Create(_ context.Context, seg *model.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[seg.ID] = *seg
	return nil
}

func (s stubSegments) GetByIDForTenant(_ context.Context, tenantID, id string) (*model.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok || seg.TenantID != tenantID {
		return nil, appErrors.NewSegmentNotFound(id)
	}
	return &seg, nil
}

func (s stubSegments) ListForTenant(_ context.Context, tenantID string) ([]model.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Segment{}
	for _, seg := range s.segments {
		if seg.TenantID == tenantID {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (s stubSegments) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok || seg.TenantID != tenantID {
		return appErrors.NewSegmentNotFound(id)
	}
	delete(s.segments, id)
	return nil
}

type stubCustomers struct{ *store }

func (s stubCustomers) GetByIDForTenant(_ context.Context, tenantID, id string) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.ID == id && c.TenantID == tenantID {
			c := c
			return &c, nil
		}
	}
	return nil, appErrors.NewCustomerNotFound(id)
}

func (s stubCustomers) FindMatching(_ context.Context, f *audience.Filter, limit int) ([]model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Customer{}
	for _, c := range s.customers {
		if f.Match(c) {
			out = append(out, c)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s stubCustomers) CountMatching(ctx context.Context, f *audience.Filter) (int, error) {
	all, err := s.FindMatching(ctx, f, 0)
	return len(all), err
}

func (s stubCustomers) Create(_ context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = append(s.customers, *c)
	return nil
}

type stubLogs struct{ *store }

func (s stubLogs) GetByID(_ context.Context, id string) (*model.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, logs := range s.logs {
		for _, l := range logs {
			if l.ID == id {
				l := l
				return &l, nil
			}
		}
	}
	return nil, appErrors.NewDeliveryLogNotFound(id)
}

func (s stubLogs) GetByVendorMessageID(_ context.Context, id string) (*model.DeliveryLog, error) {
	return nil, appErrors.NewDeliveryLogNotFound("vendor:" + id)
}

func (s stubLogs) Transition(context.Context, repository.LogTransition) (bool, error) {
	return false, nil
}

func (s stubLogs) ListByCampaign(_ context.Context, campaignID string) ([]model.DeliveryLogView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := []model.DeliveryLogView{}
	for _, l := range s.logs[campaignID] {
		views = append(views, model.DeliveryLogView{DeliveryLog: l})
	}
	return views, nil
}

func (s stubLogs) StatsFromLogs(context.Context, string) (model.DeliveryStats, error) {
	return model.DeliveryStats{}, nil
}

func (s stubLogs) PendingCounts(_ context.Context, campaignIDs []string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, id := range campaignIDs {
		for _, l := range s.logs[id] {
			if l.Status == model.StatusPending {
				counts[id]++
			}
		}
	}
	return counts, nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sends int
}

func (d *recordingDispatcher) Dispatch(_ model.Channel, logs []model.DeliveryLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends += len(logs)
	return nil
}

func (d *recordingDispatcher) Sends() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sends
}

var (
	_ repository.CampaignRepositoryInterface    = stubCampaigns{}
	_ repository.SegmentRepositoryInterface     = stubSegments{}
	_ repository.CustomerRepositoryInterface    = stubCustomers{}
	_ repository.DeliveryLogRepositoryInterface = stubLogs{}
)
