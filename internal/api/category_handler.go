package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"product-discovery-service/internal/catalog"
)

// CreateCategory handles POST /api/v2/categories.
func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input catalog.CategoryInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	created, err := h.catalog.CreateCategory(r.Context(), input)
	if err != nil {
		h.respondWithServiceError(w, r, "create category", err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

// ListCategories handles GET /api/v2/categories.
func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, "retrieve categories", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, categories)
}

func (h *HTTPHandler) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	category, err := h.catalog.GetCategory(r.Context(), chi.URLParam(r, "categoryId"))
	if err != nil {
		h.respondWithServiceError(w, r, "retrieve category", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, category)
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var input catalog.CategoryInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	updated, err := h.catalog.UpdateCategory(r.Context(), chi.URLParam(r, "categoryId"), input)
	if err != nil {
		h.respondWithServiceError(w, r, "update category", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

// DeleteCategory handles DELETE /api/v2/categories/{categoryId}. Products keep
// their category reference.
func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), chi.URLParam(r, "categoryId")); err != nil {
		h.respondWithServiceError(w, r, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
