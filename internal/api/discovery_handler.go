package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"product-discovery-service/internal/discovery"
	"product-discovery-service/internal/domain"
)

// parseFilterSpec reads a FilterSpec from query parameters. Absent parameters
// keep their defaults; malformed ones are rejected.
func parseFilterSpec(q url.Values) (domain.FilterSpec, error) {
	spec := domain.NewFilterSpec()
	spec.Search = strings.TrimSpace(q.Get("search"))
	spec.Category = q.Get("category")
	if sortBy := q.Get("sortBy"); sortBy != "" {
		spec.SortBy = sortBy
	}

	var err error
	if spec.MinPrice, err = optionalFloat(q, "minPrice"); err != nil {
		return spec, err
	}
	if spec.MaxPrice, err = optionalFloat(q, "maxPrice"); err != nil {
		return spec, err
	}
	if spec.InStock, err = optionalBool(q, "inStock"); err != nil {
		return spec, err
	}
	if spec.HasExternalLinks, err = optionalBool(q, "hasExternalLinks"); err != nil {
		return spec, err
	}
	if spec.IsNew, err = optionalBool(q, "isNew"); err != nil {
		return spec, err
	}
	if includeHits, err := optionalBool(q, "includeHits"); err != nil {
		return spec, err
	} else if includeHits != nil {
		spec.IncludeHits = *includeHits
	}
	if spec.Page, err = intOr(q, "page", domain.DefaultPage); err != nil {
		return spec, err
	}
	if spec.Limit, err = intOr(q, "limit", domain.DefaultLimit); err != nil {
		return spec, err
	}

	// platforms=a&platforms=b and platforms=a,b are equivalent.
	for _, v := range q["platforms"] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				spec.Platforms = append(spec.Platforms, p)
			}
		}
	}
	return spec, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", discovery.ErrInvalidFilter, key)
	}
	return &v, nil
}

func optionalBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", discovery.ErrInvalidFilter, key)
	}
	return &v, nil
}

func intOr(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", discovery.ErrInvalidFilter, key)
	}
	return v, nil
}

// SearchProducts handles GET /api/v2/products/search.
func (h *HTTPHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	spec, err := parseFilterSpec(r.URL.Query())
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.search.Search(r.Context(), spec)
	if err != nil {
		h.respondWithServiceError(w, r, "search products", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// SearchSuggestions handles GET /api/v2/products/search/suggestions.
func (h *HTTPHandler) SearchSuggestions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, discovery.DefaultSuggestionLimit)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	bundle, err := h.search.Suggestions(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.respondWithServiceError(w, r, "get search suggestions", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, bundle)
}

// shelf adapts one curated list to a handler taking ?limit=.
func (h *HTTPHandler) shelf(op string, list func(ctx context.Context, limit int) ([]domain.Product, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r, discovery.DefaultShelfLimit)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		products, err := list(r.Context(), limit)
		if err != nil {
			h.respondWithServiceError(w, r, op, err)
			return
		}
		h.respondWithJSON(w, http.StatusOK, products)
	}
}

// GetSimilarProducts handles GET /api/v2/products/{productId}/similar.
func (h *HTTPHandler) GetSimilarProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, discovery.DefaultSimilarLimit)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	products, err := h.shelves.Similar(r.Context(), chi.URLParam(r, "productId"), limit)
	if err != nil {
		h.respondWithServiceError(w, r, "list similar products", err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, products)
}
