package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// MaxBatchSize bounds a batch lookup.
const MaxBatchSize = 100

// ErrBatchTooLarge is returned when a batch lookup asks for more than MaxBatchSize ids.
var ErrBatchTooLarge = fmt.Errorf("catalog: batch exceeds %d ids", MaxBatchSize)

// HitDispatcher hands hits off to background recording.
type HitDispatcher interface {
	Dispatch(productID string) bool
}

// ProductInput holds the editable fields of a product.
type ProductInput struct {
	Name               string                `json:"name" validate:"required,max=255"`
	Description        string                `json:"description"`
	Price              float64               `json:"price" validate:"gte=0"`
	CategoryID         string                `json:"categoryId"`
	Images             []string              `json:"images" validate:"omitempty,dive,required"`
	ExternalLinks      []domain.ExternalLink `json:"externalLinks" validate:"omitempty,dive"`
	AvailablePlatforms []string              `json:"availablePlatforms" validate:"omitempty,dive,required"`
	Rating             float64               `json:"rating" validate:"gte=0,lte=5"`
	Discount           float64               `json:"discount" validate:"gte=0"`
}

// CategoryInput holds the editable fields of a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

// Service is the pass-through CRUD layer over the catalog stores.
type Service struct {
	products   store.ProductStorer
	categories store.CategoryStorer
	analytics  store.AnalyticsStorer
	hits       HitDispatcher
	log        *logrus.Logger
	now        func() time.Time
	newID      func() string
}

// NewService creates a Service. hits receives a product id for every tracked read.
func NewService(products store.ProductStorer, categories store.CategoryStorer, analytics store.AnalyticsStorer, hits HitDispatcher, logger *logrus.Logger) *Service {
	return &Service{
		products:   products,
		categories: categories,
		analytics:  analytics,
		hits:       hits,
		log:        logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// --- Products ---

// GetByID reads one product. With track set, a successful read dispatches a hit
// without waiting for it.
func (s *Service) GetByID(ctx context.Context, id string, track bool) (*domain.Product, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %s: %w", id, err)
	}
	if track {
		s.hits.Dispatch(id)
	}
	return p, nil
}

// GetByIDs returns the products found among ids. Missing ids are skipped.
func (s *Service) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	if len(ids) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	products, err := s.products.FindProducts(ctx, store.Query{Filter: store.In(store.FieldID, ids)})
	if err != nil {
		return nil, fmt.Errorf("catalog: batch get: %w", err)
	}
	return products, nil
}

// Create stores a new product with a generated id and zeroed counters.
func (s *Service) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &domain.Product{ID: s.newID(), CreatedAt: now}
	apply(p, in, now)

	created, err := s.products.SaveProduct(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("catalog: create product: %w", err)
	}
	s.log.WithFields(logrus.Fields{"product_id": created.ID, "name": created.Name}).Info("Product created")
	return created, nil
}

// Update replaces the editable fields of an existing product. Counters and the
// creation time are kept.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	return s.modify(ctx, id, func(p *domain.Product) { apply(p, in, s.now().UTC()) })
}

// UpdateExternalLinks replaces the external links of a product.
func (s *Service) UpdateExternalLinks(ctx context.Context, id string, links []domain.ExternalLink) (*domain.Product, error) {
	return s.modify(ctx, id, func(p *domain.Product) {
		p.ExternalLinks = links
		p.UpdatedAt = s.now().UTC()
	})
}

// UpdatePlatforms replaces the platform tags of a product.
func (s *Service) UpdatePlatforms(ctx context.Context, id string, platforms []string) (*domain.Product, error) {
	return s.modify(ctx, id, func(p *domain.Product) {
		p.AvailablePlatforms = platforms
		p.UpdatedAt = s.now().UTC()
	})
}

// Delete removes a product and then its analytics record. The second delete is
// not transactional with the first; if it fails the record is left orphaned.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("catalog: delete product %s: %w", id, err)
	}
	if err := s.analytics.DeleteAnalytics(ctx, id); err != nil && !errors.Is(err, store.ErrAnalyticsNotFound) {
		s.log.WithFields(logrus.Fields{"product_id": id, "error": err}).Warn("Failed to delete analytics of deleted product")
	}
	return nil
}

func (s *Service) modify(ctx context.Context, id string, change func(*domain.Product)) (*domain.Product, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %s: %w", id, err)
	}
	change(p)
	updated, err := s.products.SaveProduct(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("catalog: update product %s: %w", id, err)
	}
	return updated, nil
}

// checkCategory verifies that a referenced category exists. An empty id is allowed.
func (s *Service) checkCategory(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	if _, err := s.categories.GetCategoryByID(ctx, categoryID); err != nil {
		return fmt.Errorf("catalog: category %s: %w", categoryID, err)
	}
	return nil
}

func apply(p *domain.Product, in ProductInput, now time.Time) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.CategoryID = in.CategoryID
	p.Images = in.Images
	p.ExternalLinks = in.ExternalLinks
	p.AvailablePlatforms = in.AvailablePlatforms
	p.Rating = in.Rating
	p.Discount = in.Discount
	p.UpdatedAt = now
}

// --- Categories ---

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	c, err := s.categories.SaveCategory(ctx, &domain.Category{ID: s.newID(), Name: in.Name, Description: in.Description})
	if err != nil {
		return nil, fmt.Errorf("catalog: create category: %w", err)
	}
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: get category %s: %w", id, err)
	}
	return c, nil
}

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.FindCategories(ctx, store.Query{Sort: []store.SortField{store.Asc(store.FieldName)}})
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	return categories, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*domain.Category, error) {
	if _, err := s.categories.GetCategoryByID(ctx, id); err != nil {
		return nil, fmt.Errorf("catalog: get category %s: %w", id, err)
	}
	c, err := s.categories.SaveCategory(ctx, &domain.Category{ID: id, Name: in.Name, Description: in.Description})
	if err != nil {
		return nil, fmt.Errorf("catalog: update category %s: %w", id, err)
	}
	return c, nil
}

// DeleteCategory removes a category. Products referencing it are left as they are.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.categories.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("catalog: delete category %s: %w", id, err)
	}
	return nil
}
