package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	tsclient "github.com/lenswise/dispense-advisor/internal/infrastructure/clients/typesense"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

const collectionName = tsclient.CatalogItemsCollection

// CatalogIndexAdapter implements catalog search using Typesense.
type CatalogIndexAdapter struct {
	client *tsclient.Client
}

// Ensure CatalogIndexAdapter implements CatalogSearchRepository
var _ repositories.CatalogSearchRepository = (*CatalogIndexAdapter)(nil)

// NewCatalogIndexAdapter creates a new Typesense catalog adapter.
func NewCatalogIndexAdapter(client *tsclient.Client) *CatalogIndexAdapter {
	return &CatalogIndexAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *CatalogIndexAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(collectionName).Retrieve(ctx)
	if err == nil {
		return nil // Collection exists
	}

	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "ecp_id", Type: "string", Facet: pointer.True()},
			{Name: "sku", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "lens_type", Type: "string", Facet: pointer.True()},
			{Name: "lens_material", Type: "string", Facet: pointer.True()},
			{Name: "coating", Type: "string", Facet: pointer.True()},
			{Name: "design_features", Type: "string[]"},
			{Name: "retail_price", Type: "float"},
			{Name: "stock_quantity", Type: "int32"},
			{Name: "is_in_stock", Type: "bool"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}

	_, err = a.client.Client().Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}
	return nil
}

// Index indexes a catalog item
func (a *CatalogIndexAdapter) Index(ctx context.Context, item *entities.CatalogItem) error {
	document := map[string]interface{}{
		"id":              item.ID,
		"ecp_id":          item.ECPID,
		"sku":             item.SKU,
		"name":            item.Name,
		"lens_type":       item.LensType,
		"lens_material":   item.LensMaterial,
		"coating":         item.Coating,
		"design_features": item.DesignFeatures,
		"retail_price":    item.RetailPrice,
		"stock_quantity":  item.StockQuantity,
		"is_in_stock":     item.IsInStock,
		"created_at":      item.CreatedAt.Unix(),
	}

	_, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index catalog item: %w", err)
	}
	return nil
}

// Search runs a free-text query over a practice's in-stock items.
func (a *CatalogIndexAdapter) Search(ctx context.Context, ecpID, query string, limit int) ([]*entities.CatalogItem, error) {
	if limit <= 0 {
		limit = 20
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("name,design_features,lens_type,lens_material"),
		FilterBy: pointer.String(fmt.Sprintf("ecp_id:=%s && is_in_stock:=true", ecpID)),
		SortBy:   pointer.String("retail_price:desc"),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, apperrors.NewUnavailableError("catalog search is unavailable", err)
	}

	items := []*entities.CatalogItem{}
	if result.Hits == nil {
		return items, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		items = append(items, documentToItem(*hit.Document))
	}
	return items, nil
}

// Delete removes a catalog item from the index
func (a *CatalogIndexAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(collectionName).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete catalog item from index: %w", err)
	}
	return nil
}

func documentToItem(doc map[string]interface{}) *entities.CatalogItem {
	item := &entities.CatalogItem{
		ID:           getString(doc, "id"),
		ECPID:        getString(doc, "ecp_id"),
		SKU:          getString(doc, "sku"),
		Name:         getString(doc, "name"),
		LensType:     getString(doc, "lens_type"),
		LensMaterial: getString(doc, "lens_material"),
		Coating:      getString(doc, "coating"),
		RetailPrice:  getFloat(doc, "retail_price"),
	}

	if qty, ok := doc["stock_quantity"].(float64); ok {
		item.StockQuantity = int(qty)
	}
	if inStock, ok := doc["is_in_stock"].(bool); ok {
		item.IsInStock = inStock
	}
	if features, ok := doc["design_features"].([]interface{}); ok {
		for _, f := range features {
			if s, ok := f.(string); ok {
				item.DesignFeatures = append(item.DesignFeatures, s)
			}
		}
	}
	if created, ok := doc["created_at"].(float64); ok {
		item.CreatedAt = time.Unix(int64(created), 0).UTC()
	}
	return item
}

func getString(doc map[string]interface{}, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func getFloat(doc map[string]interface{}, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
