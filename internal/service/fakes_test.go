package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/crm-campaign-service/internal/audience"
	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
)

// memDB is an in-memory stand-in for the four repositories. Guarded
// transitions and counter increments run under one lock, like the single
// UPDATE statements they replace.
type memDB struct {
	mu        sync.Mutex
	customers map[string]model.Customer
	segments  map[string]model.Segment
	campaigns map[string]model.Campaign
	logs      map[string]model.DeliveryLog
	logOrder  []string
}

func newMemDB() *memDB {
	return &memDB{
		customers: map[string]model.Customer{},
		segments:  map[string]model.Segment{},
		campaigns: map[string]model.Campaign{},
		logs:      map[string]model.DeliveryLog{},
	}
}

func (db *memDB) Campaigns() *memCampaigns { return &memCampaigns{db} }
func (db *memDB) Segments() *memSegments   { return &memSegments{db} }
func (db *memDB) Customers() *memCustomers { return &memCustomers{db} }
func (db *memDB) Logs() *memLogs           { return &memLogs{db} }

func (db *memDB) campaign(id string) model.Campaign {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.campaigns[id]
}

func (db *memDB) logsFor(campaignID string) []model.DeliveryLog {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.DeliveryLog
	for _, id := range db.logOrder {
		if l, ok := db.logs[id]; ok && l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	return out
}

type memCampaigns struct{ db *memDB }

var _ repository.CampaignRepositoryInterface = (*memCampaigns)(nil)

func (r *memCampaigns) CreateWithLogs(_ context.Context, c *model.Campaign, logs []model.DeliveryLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.campaigns[c.ID] = *c
	for _, l := range logs {
		r.db.logs[l.ID] = l
		r.db.logOrder = append(r.db.logOrder, l.ID)
	}
	return nil
}

func (r *memCampaigns) GetByIDForTenant(_ context.Context, tenantID, id string) (*model.Campaign, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return &c, nil
}

func (r *memCampaigns) ListCampaigns(_ context.Context, tenantID string, offset, limit int) ([]*model.Campaign, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []*model.Campaign
	for _, c := range r.db.campaigns {
		if c.TenantID == tenantID {
			c := c
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *memCampaigns) CountBySegment(_ context.Context, tenantID, segmentID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, c := range r.db.campaigns {
		if c.TenantID == tenantID && c.SegmentID == segmentID {
			n++
		}
	}
	return n, nil
}

func (r *memCampaigns) DeleteCascade(_ context.Context, tenantID, id string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return 0, appErrors.NewCampaignNotFound(id)
	}
	var n int64
	for lid, l := range r.db.logs {
		if l.CampaignID == id {
			delete(r.db.logs, lid)
			n++
		}
	}
	delete(r.db.campaigns, id)
	return n, nil
}

func (r *memCampaigns) IncrementStat(_ context.Context, id string, stat model.Stat) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.campaigns[id]
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
	r.db.campaigns[id] = c
	return nil
}

func (r *memCampaigns) SetStats(_ context.Context, id string, stats model.DeliveryStats) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Stats = stats
	r.db.campaigns[id] = c
	return nil
}

type memSegments struct{ db *memDB }

var _ repository.SegmentRepositoryInterface = (*memSegments)(nil)

func (r *memSegments) Create(_ context.Context, s *model.Segment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.segments[s.ID] = *s
	return nil
}

func (r *memSegments) GetByIDForTenant(_ context.Context, tenantID, id string) (*model.Segment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.segments[id]
	if !ok || s.TenantID != tenantID {
		return nil, appErrors.NewSegmentNotFound(id)
	}
	return &s, nil
}

func (r *memSegments) ListForTenant(_ context.Context, tenantID string) ([]model.Segment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Segment
	for _, s := range r.db.segments {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSegments) Delete(_ context.Context, tenantID, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.segments[id]
	if !ok || s.TenantID != tenantID {
		return appErrors.NewSegmentNotFound(id)
	}
	delete(r.db.segments, id)
	return nil
}

type memCustomers struct{ db *memDB }

var _ repository.CustomerRepositoryInterface = (*memCustomers)(nil)

func (r *memCustomers) GetByIDForTenant(_ context.Context, tenantID, id string) (*model.Customer, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.customers[id]
	if !ok || c.TenantID != tenantID {
		return nil, appErrors.NewCustomerNotFound(id)
	}
	return &c, nil
}

func (r *memCustomers) FindMatching(_ context.Context, f *audience.Filter, limit int) ([]model.Customer, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Customer
	for _, c := range r.db.customers {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memCustomers) CountMatching(ctx context.Context, f *audience.Filter) (int, error) {
	all, err := r.FindMatching(ctx, f, 0)
	return len(all), err
}

func (r *memCustomers) Create(_ context.Context, c *model.Customer) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.customers[c.ID] = *c
	return nil
}

type memLogs struct{ db *memDB }

var _ repository.DeliveryLogRepositoryInterface = (*memLogs)(nil)

func (r *memLogs) GetByID(_ context.Context, id string) (*model.DeliveryLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.logs[id]
	if !ok {
		return nil, appErrors.NewDeliveryLogNotFound(id)
	}
	return &l, nil
}

func (r *memLogs) GetByVendorMessageID(_ context.Context, vendorMessageID string) (*model.DeliveryLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, l := range r.db.logs {
		if l.VendorMessageID != nil && *l.VendorMessageID == vendorMessageID {
			return &l, nil
		}
	}
	return nil, appErrors.NewDeliveryLogNotFound(vendorMessageID)
}

func (r *memLogs) Transition(_ context.Context, t repository.LogTransition) (bool, error) {
	for _, from := range t.From {
		if !model.CanTransition(from, t.To) {
			return false, appErrors.ErrInvalidTransition
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.logs[t.ID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range t.From {
		if l.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	at := t.At
	l.Status = t.To
	l.UpdatedAt = at
	if t.VendorMessageID != "" {
		id := t.VendorMessageID
		l.VendorMessageID = &id
	}
	if len(t.VendorResponse) > 0 {
		l.VendorResponse = t.VendorResponse
	}
	if t.FailureReason != "" {
		reason := t.FailureReason
		l.FailureReason = &reason
	}
	switch t.To {
	case model.StatusSent:
		l.SentAt = &at
	case model.StatusDelivered:
		l.DeliveredAt = &at
	case model.StatusFailed, model.StatusBounced:
		l.FailedAt = &at
	}
	r.db.logs[t.ID] = l
	return true, nil
}

func (r *memLogs) ListByCampaign(_ context.Context, campaignID string) ([]model.DeliveryLogView, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.DeliveryLogView
	for _, id := range r.db.logOrder {
		l, ok := r.db.logs[id]
		if !ok || l.CampaignID != campaignID {
			continue
		}
		c := r.db.customers[l.CustomerID]
		out = append(out, model.DeliveryLogView{
			DeliveryLog: l,
			Customer: model.CustomerSnapshot{
				ID: c.ID, Name: c.DisplayName(), Email: c.Email, Phone: c.Phone, TotalSpend: c.TotalSpend,
			},
		})
	}
	return out, nil
}

func (r *memLogs) StatsFromLogs(_ context.Context, campaignID string) (model.DeliveryStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var s model.DeliveryStats
	for _, l := range r.db.logs {
		if l.CampaignID != campaignID {
			continue
		}
		if l.SentAt != nil {
			s.Sent++
		}
		switch l.Status {
		case model.StatusDelivered:
			s.Delivered++
		case model.StatusFailed, model.StatusBounced:
			s.Failed++
		}
	}
	return s, nil
}

func (r *memLogs) PendingCounts(_ context.Context, campaignIDs []string) (map[string]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := make(map[string]bool, len(campaignIDs))
	for _, id := range campaignIDs {
		want[id] = true
	}
	counts := map[string]int{}
	for _, l := range r.db.logs {
		if want[l.CampaignID] && l.Status == model.StatusPending {
			counts[l.CampaignID]++
		}
	}
	return counts, nil
}

// recordingDispatcher captures dispatched batches without sending.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls [][]model.DeliveryLog
	err   error
}

func (d *recordingDispatcher) Dispatch(_ model.Channel, logs []model.DeliveryLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, logs)
	return d.err
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}
