package audience

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/metrics"
	"github.com/unclebandit/crm-campaign-service/internal/model"
)

// DefaultPreviewLimit caps preview samples.
const DefaultPreviewLimit = 100

// CustomerFinder runs compiled filters against the customer store.
// A limit of 0 means unbounded.
type CustomerFinder interface {
	FindMatching(ctx context.Context, f *Filter, limit int) ([]model.Customer, error)
	CountMatching(ctx context.Context, f *Filter) (int, error)
}

// PreviewCache stores audience previews. A miss is (nil, false, nil).
type PreviewCache interface {
	Get(ctx context.Context, key string) (*Preview, bool, error)
	Set(ctx context.Context, key string, p *Preview) error
}

type Preview struct {
	Count  int              `json:"count"`
	Sample []model.Customer `json:"sample"`
}

type Resolver struct {
	customers    CustomerFinder
	cache        PreviewCache
	previewLimit int
	log          logger.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(customers CustomerFinder, cache PreviewCache, previewLimit int, log logger.Logger) *Resolver {
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	return &Resolver{customers: customers, cache: cache, previewLimit: previewLimit, log: log}
}

// Resolve returns every customer of tenantID matching the segment. Used at
// launch, so it is not capped.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, segment *model.Segment) ([]model.Customer, error) {
	f, err := Compile(tenantID, segment.Conditions, segment.LogicType)
	if err != nil {
		return nil, err
	}
	customers, err := r.customers.FindMatching(ctx, f, 0)
	if err != nil {
		return nil, fmt.Errorf("resolve audience for segment %s: %w", segment.ID, err)
	}
	metrics.AudienceSize.Observe(float64(len(customers)))
	return customers, nil
}

// Preview counts the audience and returns a capped sample.
func (r *Resolver) Preview(ctx context.Context, tenantID string, conditions model.ConditionSet, logic model.LogicType) (*Preview, error) {
	f, err := Compile(tenantID, conditions, logic)
	if err != nil {
		return nil, err
	}

	key := previewKey(f)
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.log.Warn("audience preview cache read failed", map[string]interface{}{"key": key, "error": err})
		} else if ok {
			return cached, nil
		}
	}

	count, err := r.customers.CountMatching(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("count audience: %w", err)
	}
	sample, err := r.customers.FindMatching(ctx, f, r.previewLimit)
	if err != nil {
		return nil, fmt.Errorf("sample audience: %w", err)
	}
	p := &Preview{Count: count, Sample: sample}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, p); err != nil {
			r.log.Warn("audience preview cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return p, nil
}

func previewKey(f *Filter) string {
	clause, args := f.SQL(1)
	raw, _ := json.Marshal(struct {
		Clause string        `json:"c"`
		Args   []interface{} `json:"a"`
	}{clause, args})
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("audience:preview:%s:%s", f.TenantID, hex.EncodeToString(sum[:12]))
}
