package store

import (
	"context"
	"errors"
	"fmt"

	"product-discovery-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrProductNotFound    = errors.New("store: product not found")
	ErrCategoryNotFound   = errors.New("store: category not found")
	ErrCategoryNameExists = errors.New("store: category name already exists")
	ErrAnalyticsNotFound  = errors.New("store: analytics record not found")
	ErrUnavailable        = errors.New("store: unavailable")
	ErrUnsupported        = errors.New("store: unsupported query")
)

// unavailable wraps a backend failure so callers can match both ErrUnavailable and the cause.
func unavailable(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, ErrUnavailable, err)
}

// ProductStorer defines the catalog operations for products.
type ProductStorer interface {
	CountProducts(ctx context.Context, filter Predicate) (int64, error)
	FindProducts(ctx context.Context, q Query) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) // create or full replace
	DeleteProduct(ctx context.Context, id string) error
	// IncrementProduct applies inc to an existing product. It never creates one.
	IncrementProduct(ctx context.Context, id string, inc Increment) error
}

// CategoryStorer defines the catalog operations for categories.
type CategoryStorer interface {
	FindCategories(ctx context.Context, q Query) ([]domain.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	SaveCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// AnalyticsStorer defines the operations on per-product analytics records.
type AnalyticsStorer interface {
	GetAnalytics(ctx context.Context, productID string) (*domain.ProductAnalytics, error)
	// CreateAnalytics inserts a unless a record for a.ProductID exists, and returns the stored record.
	CreateAnalytics(ctx context.Context, a *domain.ProductAnalytics) (*domain.ProductAnalytics, error)
	// IncrementAnalytics applies inc, creating the record first when absent.
	IncrementAnalytics(ctx context.Context, productID string, inc Increment) error
	DeleteAnalytics(ctx context.Context, productID string) error
}

// Backend is a complete Catalog Store.
type Backend interface {
	ProductStorer
	CategoryStorer
	AnalyticsStorer
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*MongoStore)(nil)
	_ Backend = (*PostgresStore)(nil)
)
