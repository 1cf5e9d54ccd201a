package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// CatalogAdapter implements CatalogRepository on Postgres.
type CatalogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCatalogAdapter creates a new catalog adapter.
func NewCatalogAdapter(client *postgres.Client) repositories.CatalogRepository {
	return &CatalogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert creates or replaces an item keyed by (ecpID, sku).
func (a *CatalogAdapter) Upsert(ctx context.Context, item *entities.CatalogItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	record := goqu.Record{
		"id":              item.ID,
		"ecp_id":          item.ECPID,
		"sku":             item.SKU,
		"name":            item.Name,
		"lens_type":       item.LensType,
		"lens_material":   item.LensMaterial,
		"coating":         sql.NullString{String: item.Coating, Valid: item.Coating != ""},
		"design_features": pq.Array(item.DesignFeatures),
		"retail_price":    item.RetailPrice,
		"wholesale_price": item.WholesalePrice,
		"stock_quantity":  item.StockQuantity,
		"is_in_stock":     item.IsInStock,
		"created_at":      item.CreatedAt,
		"updated_at":      item.UpdatedAt,
	}

	query, args, err := a.db.Insert("catalog_items").
		Rows(record).
		OnConflict(goqu.DoUpdate("ecp_id, sku", goqu.Record{
			"name":            item.Name,
			"lens_type":       item.LensType,
			"lens_material":   item.LensMaterial,
			"coating":         sql.NullString{String: item.Coating, Valid: item.Coating != ""},
			"design_features": pq.Array(item.DesignFeatures),
			"retail_price":    item.RetailPrice,
			"wholesale_price": item.WholesalePrice,
			"stock_quantity":  item.StockQuantity,
			"is_in_stock":     item.IsInStock,
			"updated_at":      item.UpdatedAt,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build catalog upsert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert catalog item", err)
	}
	return nil
}

var catalogColumns = []interface{}{
	"id", "ecp_id", "sku", "name", "lens_type", "lens_material", "coating",
	"design_features", "retail_price", "wholesale_price", "stock_quantity",
	"is_in_stock", "created_at", "updated_at",
}

// GetBySKU retrieves one item for a practice.
func (a *CatalogAdapter) GetBySKU(ctx context.Context, ecpID, sku string) (*entities.CatalogItem, error) {
	query, args, err := a.db.Select(catalogColumns...).
		From("catalog_items").
		Where(goqu.Ex{"ecp_id": ecpID, "sku": sku}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build catalog query", err)
	}

	item, err := scanCatalogItem(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("catalog item not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get catalog item", err)
	}
	return item, nil
}

// FindInStock returns in-stock items exactly matching a lens type and
// material, most expensive first.
func (a *CatalogAdapter) FindInStock(ctx context.Context, ecpID, lensType, lensMaterial string) ([]*entities.CatalogItem, error) {
	query, args, err := a.db.Select(catalogColumns...).
		From("catalog_items").
		Where(goqu.Ex{
			"ecp_id":        ecpID,
			"lens_type":     lensType,
			"lens_material": lensMaterial,
			"is_in_stock":   true,
		}).
		Order(goqu.I("retail_price").Desc(), goqu.I("sku").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build in-stock query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find in-stock items", err)
	}
	defer rows.Close()

	items := []*entities.CatalogItem{}
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan catalog item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanCatalogItem(row rowScanner) (*entities.CatalogItem, error) {
	item := &entities.CatalogItem{}
	var coating sql.NullString

	err := row.Scan(
		&item.ID,
		&item.ECPID,
		&item.SKU,
		&item.Name,
		&item.LensType,
		&item.LensMaterial,
		&coating,
		pq.Array(&item.DesignFeatures),
		&item.RetailPrice,
		&item.WholesalePrice,
		&item.StockQuantity,
		&item.IsInStock,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Coating = coating.String
	return item, nil
}
