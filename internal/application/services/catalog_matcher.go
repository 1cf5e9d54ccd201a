package services

import (
	"context"
	"sort"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
)

// minFeatureOverlap is the Jaccard similarity a candidate's design features
// must reach against the requested feature set.
const minFeatureOverlap = 0.3

// CatalogMatcher searches a practice's own uploaded catalog for in-stock
// items matching a requested lens specification. Stateless; safe for
// unbounded concurrent use.
type CatalogMatcher struct {
	repo repositories.CatalogRepository
}

// NewCatalogMatcher creates a new catalog matcher.
func NewCatalogMatcher(repo repositories.CatalogRepository) *CatalogMatcher {
	return &CatalogMatcher{repo: repo}
}

// FindCandidates returns the practice's in-stock items exactly matching the
// spec's lens type and material, with design-feature overlap at or above the
// Jaccard threshold, sorted by descending retail price. An empty slice means
// the practice has no matching stock; that is a valid outcome, not an error.
func (m *CatalogMatcher) FindCandidates(ctx context.Context, spec entities.LensSpec, ecpID string) ([]*entities.CatalogItem, error) {
	items, err := m.repo.FindInStock(ctx, ecpID, spec.LensType, spec.LensMaterial)
	if err != nil {
		return nil, err
	}

	candidates := make([]*entities.CatalogItem, 0, len(items))
	for _, item := range items {
		if spec.Coating != "" && item.Coating != spec.Coating {
			continue
		}
		if len(spec.DesignFeatures) > 0 && jaccard(spec.DesignFeatures, item.DesignFeatures) < minFeatureOverlap {
			continue
		}
		candidates = append(candidates, item)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RetailPrice != candidates[j].RetailPrice {
			return candidates[i].RetailPrice > candidates[j].RetailPrice
		}
		return candidates[i].SKU < candidates[j].SKU
	})
	return candidates, nil
}

// FeatureOverlap returns the Jaccard similarity between a spec's requested
// features and an item's features, or 1 when the spec requests none.
func FeatureOverlap(spec entities.LensSpec, item *entities.CatalogItem) float64 {
	if len(spec.DesignFeatures) == 0 {
		return 1
	}
	return jaccard(spec.DesignFeatures, item.DesignFeatures)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[v] = struct{}{}
	}
	intersection := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
