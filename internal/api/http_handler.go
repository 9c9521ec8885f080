package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"product-discovery-service/internal/catalog"
	"product-discovery-service/internal/discovery"
	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// Searcher runs filtered searches and type-ahead suggestions.
type Searcher interface {
	Search(ctx context.Context, spec domain.FilterSpec) (*domain.PaginatedResult[domain.Product], error)
	Suggestions(ctx context.Context, term string, limit int) (*domain.SuggestionBundle, error)
}

// Shelves serves the curated product lists.
type Shelves interface {
	Featured(ctx context.Context, limit int) ([]domain.Product, error)
	Trending(ctx context.Context, limit int) ([]domain.Product, error)
	NewArrivals(ctx context.Context, limit int) ([]domain.Product, error)
	OnSale(ctx context.Context, limit int) ([]domain.Product, error)
	Similar(ctx context.Context, productID string, limit int) ([]domain.Product, error)
}

// Tracker records hits and serves product analytics.
type Tracker interface {
	RecordHit(ctx context.Context, productID string) error
	GetOrCreate(ctx context.Context, productID string) (*domain.ProductAnalytics, error)
}

// Catalog is the product and category CRUD layer.
type Catalog interface {
	GetByID(ctx context.Context, id string, track bool) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	Create(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id string, in catalog.ProductInput) (*domain.Product, error)
	UpdateExternalLinks(ctx context.Context, id string, links []domain.ExternalLink) (*domain.Product, error)
	UpdatePlatforms(ctx context.Context, id string, platforms []string) (*domain.Product, error)
	Delete(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	search   Searcher
	shelves  Shelves
	tracker  Tracker
	catalog  Catalog
	validate *validator.Validate
	log      *logrus.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(search Searcher, shelves Shelves, tracker Tracker, cat Catalog, logger *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{
		search:   search,
		shelves:  shelves,
		tracker:  tracker,
		catalog:  cat,
		validate: validator.New(),
		log:      logger,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.log.WithError(err).Error("Failed to encode JSON response")
		}
	}
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrCategoryNotFound),
		errors.Is(err, store.ErrAnalyticsNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrCategoryNameExists):
		return http.StatusConflict
	case errors.Is(err, discovery.ErrInvalidFilter),
		errors.Is(err, catalog.ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondWithServiceError logs err and writes the mapped status. Server-side
// failures get a generic message; client errors carry the cause.
func (h *HTTPHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusFor(err)
	entry := h.log.WithFields(logrus.Fields{"op": op, "path": r.URL.Path, "status": code, "error": err})
	switch code {
	case http.StatusServiceUnavailable:
		entry.Warn("Store unavailable")
		h.respondWithError(w, code, "Service temporarily unavailable")
	case http.StatusInternalServerError:
		entry.Error("Request failed")
		h.respondWithError(w, code, fmt.Sprintf("Failed to %s", op))
	default:
		entry.Debug("Request rejected")
		h.respondWithError(w, code, err.Error())
	}
}

func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// queryLimit reads the limit query parameter, falling back to def when absent.
func queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", discovery.ErrInvalidFilter)
	}
	return limit, nil
}

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v2/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/search", h.SearchProducts)
		r.Get("/search/suggestions", h.SearchSuggestions)
		r.Get("/featured", h.shelf("list featured products", h.shelves.Featured))
		r.Get("/trending", h.shelf("list trending products", h.shelves.Trending))
		r.Get("/new", h.shelf("list new arrivals", h.shelves.NewArrivals))
		r.Get("/sale", h.shelf("list products on sale", h.shelves.OnSale))
		r.Post("/batch", h.GetProductsBatch)

		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
			r.Get("/similar", h.GetSimilarProducts)
			r.Get("/analytics", h.GetProductAnalytics)
			r.Post("/hit", h.RecordProductHit)
			r.Put("/external-links", h.UpdateExternalLinks)
			r.Put("/platforms", h.UpdatePlatforms)
		})
	})

	r.Route("/api/v2/categories", func(r chi.Router) {
		r.Post("/", h.CreateCategory)
		r.Get("/", h.ListCategories)
		r.Route("/{categoryId}", func(r chi.Router) {
			r.Get("/", h.GetCategoryByID)
			r.Put("/", h.UpdateCategory)
			r.Delete("/", h.DeleteCategory)
		})
	})
}
