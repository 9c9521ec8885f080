package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"product-discovery-service/internal/catalog"
	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// CreateProduct handles POST /api/v2/products.
func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input catalog.ProductInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	created, err := h.catalog.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			h.respondWithError(w, http.StatusBadRequest, "Invalid categoryId: category does not exist.")
			return
		}
		h.respondWithServiceError(w, r, "create product", err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

// GetProductByID handles GET /api/v2/products/{productId}. Reads are tracked
// unless track=false is given.
func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	track := true
	if raw := r.URL.Query().Get("track"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "track must be a boolean")
			return
		}
		track = v
	}
	product, err := h.catalog.GetByID(r.Context(), chi.URLParam(r, "productId"), track)
	if err != nil {
		h.respondWithServiceError(w, r, "retrieve product", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

// UpdateProduct handles PUT /api/v2/products/{productId}.
func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var input catalog.ProductInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	updated, err := h.catalog.Update(r.Context(), chi.URLParam(r, "productId"), input)
	if err != nil {
		h.respondWithServiceError(w, r, "update product", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /api/v2/products/{productId}.
func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "productId")); err != nil {
		h.respondWithServiceError(w, r, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchInput is the body of a batch lookup.
type BatchInput struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
}

// GetProductsBatch handles POST /api/v2/products/batch.
func (h *HTTPHandler) GetProductsBatch(w http.ResponseWriter, r *http.Request) {
	var input BatchInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	products, err := h.catalog.GetByIDs(r.Context(), input.IDs)
	if err != nil {
		h.respondWithServiceError(w, r, "retrieve products", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, products)
}

// GetProductAnalytics handles GET /api/v2/products/{productId}/analytics.
func (h *HTTPHandler) GetProductAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.tracker.GetOrCreate(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.respondWithServiceError(w, r, "retrieve product analytics", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, a)
}

// RecordProductHit handles POST /api/v2/products/{productId}/hit. Unlike a
// tracked read it waits for both writes.
func (h *HTTPHandler) RecordProductHit(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.RecordHit(r.Context(), chi.URLParam(r, "productId")); err != nil {
		h.respondWithServiceError(w, r, "record product hit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExternalLinksInput is the body of an external links update.
type ExternalLinksInput struct {
	ExternalLinks []domain.ExternalLink `json:"externalLinks" validate:"omitempty,dive"`
}

// UpdateExternalLinks handles PUT /api/v2/products/{productId}/external-links.
func (h *HTTPHandler) UpdateExternalLinks(w http.ResponseWriter, r *http.Request) {
	var input ExternalLinksInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	updated, err := h.catalog.UpdateExternalLinks(r.Context(), chi.URLParam(r, "productId"), input.ExternalLinks)
	if err != nil {
		h.respondWithServiceError(w, r, "update external links", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

// PlatformsInput is the body of a platforms update.
type PlatformsInput struct {
	Platforms []string `json:"availablePlatforms" validate:"omitempty,dive,required"`
}

// UpdatePlatforms handles PUT /api/v2/products/{productId}/platforms.
func (h *HTTPHandler) UpdatePlatforms(w http.ResponseWriter, r *http.Request) {
	var input PlatformsInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	updated, err := h.catalog.UpdatePlatforms(r.Context(), chi.URLParam(r, "productId"), input.Platforms)
	if err != nil {
		h.respondWithServiceError(w, r, "update platforms", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}
