package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
)

// CatalogHandler handles practice catalog HTTP requests
type CatalogHandler struct {
	catalogRepo repositories.CatalogRepository
	searchRepo  repositories.CatalogSearchRepository
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogRepo repositories.CatalogRepository, searchRepo repositories.CatalogSearchRepository) *CatalogHandler {
	return &CatalogHandler{
		catalogRepo: catalogRepo,
		searchRepo:  searchRepo,
	}
}

// UpsertItem handles POST /api/catalog/items
func (h *CatalogHandler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	var item entities.CatalogItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.ECPID == "" || item.SKU == "" {
		respondWithError(w, http.StatusBadRequest, "ecp_id and sku are required")
		return
	}
	if item.LensType == "" || item.LensMaterial == "" {
		respondWithError(w, http.StatusBadRequest, "lens_type and lens_material are required")
		return
	}
	if item.RetailPrice < 0 {
		respondWithError(w, http.StatusBadRequest, "retail_price must not be negative")
		return
	}

	if err := h.catalogRepo.Upsert(r.Context(), &item); err != nil {
		log.Error().Err(err).Str("ecp_id", item.ECPID).Str("sku", item.SKU).Msg("Failed to upsert catalog item")
		respondWithError(w, http.StatusInternalServerError, "failed to save catalog item")
		return
	}

	// Search lags the store rather than failing the write.
	if h.searchRepo != nil {
		if err := h.searchRepo.Index(r.Context(), &item); err != nil {
			log.Warn().Err(err).Str("sku", item.SKU).Msg("Failed to index catalog item")
		}
	}

	respondWithJSON(w, http.StatusOK, item)
}

// GetItem handles GET /api/catalog/{ecpId}/items/{sku}
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ecpID := r.PathValue("ecpId")
	sku := r.PathValue("sku")
	if ecpID == "" || sku == "" {
		respondWithError(w, http.StatusBadRequest, "ecp ID and SKU are required")
		return
	}

	item, err := h.catalogRepo.GetBySKU(r.Context(), ecpID, sku)
	if err != nil {
		respondWithAppError(w, err, "failed to get catalog item")
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}

// SearchCatalog handles GET /api/catalog/search
func (h *CatalogHandler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	if h.searchRepo == nil {
		respondWithError(w, http.StatusServiceUnavailable, "catalog search is not available")
		return
	}

	ecpID := r.URL.Query().Get("ecp_id")
	query := r.URL.Query().Get("q")
	if ecpID == "" {
		respondWithError(w, http.StatusBadRequest, "ecp_id is required")
		return
	}
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	items, err := h.searchRepo.Search(r.Context(), ecpID, query, limit)
	if err != nil {
		log.Error().Err(err).Str("ecp_id", ecpID).Msg("Catalog search failed")
		respondWithAppError(w, err, "catalog search failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}
