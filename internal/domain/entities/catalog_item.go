package entities

import "time"

// CatalogItem is a product row owned and maintained by the dispensing
// practice (ECP). This service only reads it during matching; the ingestion
// endpoint writes it on the practice's behalf.
type CatalogItem struct {
	ID             string    `json:"id" db:"id"`
	ECPID          string    `json:"ecp_id" db:"ecp_id"`
	SKU            string    `json:"sku" db:"sku"`
	Name           string    `json:"name" db:"name"`
	LensType       string    `json:"lens_type" db:"lens_type"`
	LensMaterial   string    `json:"lens_material" db:"lens_material"`
	Coating        string    `json:"coating,omitempty" db:"coating"`
	DesignFeatures []string  `json:"design_features,omitempty" db:"-"`
	RetailPrice    float64   `json:"retail_price" db:"retail_price"`
	WholesalePrice float64   `json:"wholesale_price" db:"wholesale_price"`
	StockQuantity  int       `json:"stock_quantity" db:"stock_quantity"`
	IsInStock      bool      `json:"is_in_stock" db:"is_in_stock"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// LensSpec describes the lens characteristics a recommendation tier is
// shopping for in the practice catalog.
type LensSpec struct {
	LensType       string   `json:"lens_type"`
	LensMaterial   string   `json:"lens_material"`
	Coating        string   `json:"coating,omitempty"`
	DesignFeatures []string `json:"design_features,omitempty"`
}
