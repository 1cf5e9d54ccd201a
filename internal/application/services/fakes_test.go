package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// fakeCache is an in-memory CacheProvider for tests.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("cache miss: %s", key)
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

// fakeAnalyticsRepo is an in-memory AnalyticsRepository mirroring the
// database adapter's dedupe and increment semantics.
type fakeAnalyticsRepo struct {
	mu        sync.Mutex
	analytics map[string]*entities.LensFrameAnalytic
	processed map[string]struct{}
	lookupErr error
}

func newFakeAnalyticsRepo() *fakeAnalyticsRepo {
	return &fakeAnalyticsRepo{
		analytics: make(map[string]*entities.LensFrameAnalytic),
		processed: make(map[string]struct{}),
	}
}

func analyticKey(lensType, lensMaterial, frameType string) string {
	return lensType + "|" + lensMaterial + "|" + frameType
}

func (r *fakeAnalyticsRepo) ApplyOutcome(ctx context.Context, event *entities.OutcomeEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.processed[event.OutcomeID]; seen {
		return false, nil
	}
	r.processed[event.OutcomeID] = struct{}{}

	key := analyticKey(event.LensType, event.LensMaterial, event.FrameType)
	a, ok := r.analytics[key]
	if !ok {
		a = &entities.LensFrameAnalytic{
			LensType:     event.LensType,
			LensMaterial: event.LensMaterial,
			FrameType:    event.FrameType,
		}
		r.analytics[key] = a
	}
	a.TotalOrders++
	if event.NonAdapt {
		a.NonAdaptCount++
	}
	if event.Remade {
		a.RemakeCount++
		if event.RemakeDays != nil {
			a.RemakeDaysTotal += *event.RemakeDays
			a.RemakeDaysCount++
		}
	}
	a.HistoricalDataPoints = append(a.HistoricalDataPoints, entities.OutcomeDataPoint{
		RecordedAt: event.ReportedAt,
		NonAdapt:   event.NonAdapt,
		Remade:     event.Remade,
		RemakeDays: event.RemakeDays,
	})
	a.LastUpdated = event.ReportedAt
	return true, nil
}

func (r *fakeAnalyticsRepo) Lookup(ctx context.Context, lensType, lensMaterial, frameType string) (*entities.LensFrameAnalytic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	a, ok := r.analytics[analyticKey(lensType, lensMaterial, frameType)]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAnalyticsRepo) ListByFrameType(ctx context.Context, frameType string) ([]*entities.LensFrameAnalytic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.LensFrameAnalytic
	for _, a := range r.analytics {
		if a.FrameType == frameType {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

// seed installs an aggregate directly, bypassing the dedupe path.
func (r *fakeAnalyticsRepo) seed(a *entities.LensFrameAnalytic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analytics[analyticKey(a.LensType, a.LensMaterial, a.FrameType)] = a
}

// fakePatternRepo serves canned patterns keyed by scenario key.
type fakePatternRepo struct {
	mu       sync.Mutex
	byKey    map[string][]*entities.ClinicalAnalyticPattern
	getCalls []string
}

func newFakePatternRepo() *fakePatternRepo {
	return &fakePatternRepo{byKey: make(map[string][]*entities.ClinicalAnalyticPattern)}
}

func (r *fakePatternRepo) GetByScenarioKey(ctx context.Context, scenarioKey string) ([]*entities.ClinicalAnalyticPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls = append(r.getCalls, scenarioKey)
	return r.byKey[scenarioKey], nil
}

func (r *fakePatternRepo) ListTop(ctx context.Context, limit int) ([]*entities.ClinicalAnalyticPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ClinicalAnalyticPattern
	for _, group := range r.byKey {
		out = append(out, group...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeCatalogRepo serves canned in-stock items per (lensType, lensMaterial).
type fakeCatalogRepo struct {
	mu      sync.Mutex
	items   []*entities.CatalogItem
	findErr error
}

func newFakeCatalogRepo(items ...*entities.CatalogItem) *fakeCatalogRepo {
	return &fakeCatalogRepo{items: items}
}

func (r *fakeCatalogRepo) Upsert(ctx context.Context, item *entities.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.items {
		if existing.ECPID == item.ECPID && existing.SKU == item.SKU {
			r.items[i] = item
			return nil
		}
	}
	r.items = append(r.items, item)
	return nil
}

func (r *fakeCatalogRepo) GetBySKU(ctx context.Context, ecpID, sku string) (*entities.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ECPID == ecpID && item.SKU == sku {
			return item, nil
		}
	}
	return nil, fmt.Errorf("not found: %s", sku)
}

func (r *fakeCatalogRepo) FindInStock(ctx context.Context, ecpID, lensType, lensMaterial string) ([]*entities.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*entities.CatalogItem
	for _, item := range r.items {
		if item.ECPID == ecpID && item.LensType == lensType && item.LensMaterial == lensMaterial && item.IsInStock {
			out = append(out, item)
		}
	}
	return out, nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
