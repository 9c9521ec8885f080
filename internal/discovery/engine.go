package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// ErrInvalidFilter is returned for discovery requests rejected before touching the store.
var ErrInvalidFilter = errors.New("discovery: invalid filter")

// DefaultSuggestionLimit caps each suggestion list when the caller gives no limit.
const DefaultSuggestionLimit = 10

var suggestionTemplates = []string{"%s best price", "%s online", "buy %s", "%s deals"}

// Engine runs filtered, sorted and paginated product searches.
type Engine struct {
	products   store.ProductStorer
	categories store.CategoryStorer
	validate   *validator.Validate
	log        *logrus.Logger
	now        func() time.Time
}

// NewEngine creates an Engine reading from the given stores.
func NewEngine(products store.ProductStorer, categories store.CategoryStorer, logger *logrus.Logger) *Engine {
	return &Engine{
		products:   products,
		categories: categories,
		validate:   validator.New(),
		log:        logger,
		now:        time.Now,
	}
}

// Validate checks the paging and price bounds of spec.
func (e *Engine) Validate(spec domain.FilterSpec) error {
	if err := e.validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidFilter, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if spec.MinPrice != nil && spec.MaxPrice != nil && *spec.MinPrice > *spec.MaxPrice {
		return fmt.Errorf("%w: minPrice %v is greater than maxPrice %v", ErrInvalidFilter, *spec.MinPrice, *spec.MaxPrice)
	}
	return nil
}

// Search returns one page of the products matching spec. The total is counted
// separately from the page fetch, so it may be slightly stale under concurrent writes.
func (e *Engine) Search(ctx context.Context, spec domain.FilterSpec) (*domain.PaginatedResult[domain.Product], error) {
	if err := e.Validate(spec); err != nil {
		return nil, err
	}
	filter := Compile(spec, e.now())

	total, err := e.products.CountProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("discovery: count products: %w", err)
	}

	products, err := e.products.FindProducts(ctx, store.Query{
		Filter: filter,
		Sort:   ResolveSort(spec.SortBy),
		Skip:   skip(spec.Page, spec.Limit),
		Limit:  int64(spec.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: find products: %w", err)
	}
	if !spec.IncludeHits {
		for i := range products {
			products[i].HideCounters()
		}
	}

	e.log.WithFields(logrus.Fields{
		"total":  total,
		"page":   spec.Page,
		"limit":  spec.Limit,
		"sortBy": spec.SortBy,
	}).Debug("discovery: search executed")

	return &domain.PaginatedResult[domain.Product]{
		Data:       products,
		Pagination: Paginate(total, spec.Page, spec.Limit),
		Filters:    spec,
	}, nil
}

// Suggestions returns type-ahead matches for term. Products and categories are
// queried concurrently and each list holds at most limit entries.
func (e *Engine) Suggestions(ctx context.Context, term string, limit int) (*domain.SuggestionBundle, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: suggestion term is required", ErrInvalidFilter)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidFilter)
	}

	byName := store.Regex(store.FieldName, literal(term))
	bundle := &domain.SuggestionBundle{
		Products:    []domain.ProductSuggestion{},
		Categories:  []domain.CategorySuggestion{},
		Suggestions: make([]string, 0, len(suggestionTemplates)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := e.products.FindProducts(gctx, store.Query{
			Filter: byName,
			Limit:  int64(limit),
			Fields: []string{store.FieldName, store.FieldImages},
		})
		if err != nil {
			return fmt.Errorf("discovery: product suggestions: %w", err)
		}
		for i := range products {
			bundle.Products = append(bundle.Products, domain.ProductSuggestion{
				ID:    products[i].ID,
				Name:  products[i].Name,
				Image: products[i].PrimaryImage(),
			})
		}
		return nil
	})
	g.Go(func() error {
		categories, err := e.categories.FindCategories(gctx, store.Query{
			Filter: byName,
			Limit:  int64(limit),
			Fields: []string{store.FieldName},
		})
		if err != nil {
			return fmt.Errorf("discovery: category suggestions: %w", err)
		}
		for _, c := range categories {
			bundle.Categories = append(bundle.Categories, domain.CategorySuggestion{ID: c.ID, Name: c.Name})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, tmpl := range suggestionTemplates {
		bundle.Suggestions = append(bundle.Suggestions, fmt.Sprintf(tmpl, term))
	}
	return bundle, nil
}
