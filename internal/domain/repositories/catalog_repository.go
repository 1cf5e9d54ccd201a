package repositories

import (
	"context"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// CatalogRepository stores the practice-owned product catalog.
type CatalogRepository interface {
	// Upsert creates or replaces an item keyed by (ecpID, sku).
	Upsert(ctx context.Context, item *entities.CatalogItem) error

	// GetBySKU retrieves one item for a practice.
	GetBySKU(ctx context.Context, ecpID, sku string) (*entities.CatalogItem, error)

	// FindInStock returns the practice's in-stock items exactly matching a
	// lens type and material, ordered by descending retail price.
	FindInStock(ctx context.Context, ecpID, lensType, lensMaterial string) ([]*entities.CatalogItem, error)
}

// CatalogSearchRepository is the search-engine view of the catalog, used by
// the practice-facing free-text search endpoint.
type CatalogSearchRepository interface {
	// InitSchema ensures the search collection exists.
	InitSchema(ctx context.Context) error

	// Index adds or updates an item in the search collection.
	Index(ctx context.Context, item *entities.CatalogItem) error

	// Search runs a free-text query over a practice's in-stock items.
	Search(ctx context.Context, ecpID, query string, limit int) ([]*entities.CatalogItem, error)

	// Delete removes an item from the search collection.
	Delete(ctx context.Context, id string) error
}
