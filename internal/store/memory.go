package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"product-discovery-service/internal/domain"
)

// MemoryStore is a process-local Backend. Every write, increments included,
// happens under the store lock, so concurrent increments never lose updates.
type MemoryStore struct {
	mu         sync.RWMutex
	seq        int64
	products   map[string]productEntry
	categories map[string]categoryEntry
	analytics  map[string]domain.ProductAnalytics
}

type productEntry struct {
	seq     int64
	product domain.Product
}

type categoryEntry struct {
	seq      int64
	category domain.Category
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]productEntry),
		categories: make(map[string]categoryEntry),
		analytics:  make(map[string]domain.ProductAnalytics),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close(context.Context) error { return nil }

// --- ProductStorer Implementation ---

func (s *MemoryStore) CountProducts(ctx context.Context, filter Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("CountProducts", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.products {
		if Match(filter, &e.product) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) FindProducts(ctx context.Context, q Query) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("FindProducts", err)
	}
	s.mu.RLock()
	entries := make([]productEntry, 0, len(s.products))
	for _, e := range s.products {
		if Match(q.Filter, &e.product) {
			entries = append(entries, productEntry{seq: e.seq, product: cloneProduct(e.product)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	products := make([]domain.Product, len(entries))
	for i := range entries {
		products[i] = entries[i].product
	}
	sortDocs(products, productFields, q.Sort)
	products = window(products, q.Skip, q.Limit)
	if len(q.Fields) > 0 {
		for i := range products {
			products[i] = projectProduct(products[i], q.Fields)
		}
	}
	return products, nil
}

func (s *MemoryStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("GetProductByID", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	p := cloneProduct(e.product)
	return &p, nil
}

func (s *MemoryStore) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("SaveProduct", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.products[product.ID]
	if !ok {
		s.seq++
		e.seq = s.seq
	}
	e.product = cloneProduct(*product)
	s.products[product.ID] = e
	saved := cloneProduct(e.product)
	return &saved, nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("DeleteProduct", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) IncrementProduct(ctx context.Context, id string, inc Increment) error {
	if err := ctx.Err(); err != nil {
		return unavailable("IncrementProduct", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	switch inc.Field {
	case FieldHits:
		e.product.Hits += inc.Delta
	case FieldReviewCount:
		e.product.ReviewCount += inc.Delta
	default:
		return fmt.Errorf("%w: cannot increment product field %q", ErrUnsupported, inc.Field)
	}
	for field, v := range inc.Set {
		if err := setProductField(&e.product, field, v); err != nil {
			return err
		}
	}
	s.products[id] = e
	return nil
}

// --- CategoryStorer Implementation ---

func (s *MemoryStore) FindCategories(ctx context.Context, q Query) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("FindCategories", err)
	}
	s.mu.RLock()
	entries := make([]categoryEntry, 0, len(s.categories))
	for _, e := range s.categories {
		if match(q.Filter, categoryFields(&e.category)) {
			entries = append(entries, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	categories := make([]domain.Category, len(entries))
	for i := range entries {
		categories[i] = entries[i].category
	}
	sortDocs(categories, categoryFields, q.Sort)
	return window(categories, q.Skip, q.Limit), nil
}

func (s *MemoryStore) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("GetCategoryByID", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	c := e.category
	return &c, nil
}

func (s *MemoryStore) SaveCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("SaveCategory", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.categories {
		if id != category.ID && other.category.Name == category.Name {
			return nil, ErrCategoryNameExists
		}
	}
	e, ok := s.categories[category.ID]
	if !ok {
		s.seq++
		e.seq = s.seq
	}
	e.category = *category
	s.categories[category.ID] = e
	c := e.category
	return &c, nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("DeleteCategory", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

// --- AnalyticsStorer Implementation ---

func (s *MemoryStore) GetAnalytics(ctx context.Context, productID string) (*domain.ProductAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("GetAnalytics", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analytics[productID]
	if !ok {
		return nil, ErrAnalyticsNotFound
	}
	return &a, nil
}

func (s *MemoryStore) CreateAnalytics(ctx context.Context, a *domain.ProductAnalytics) (*domain.ProductAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("CreateAnalytics", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.analytics[a.ProductID]; ok {
		return &existing, nil
	}
	s.analytics[a.ProductID] = *a
	created := *a
	return &created, nil
}

func (s *MemoryStore) IncrementAnalytics(ctx context.Context, productID string, inc Increment) error {
	if err := ctx.Err(); err != nil {
		return unavailable("IncrementAnalytics", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.analytics[productID]
	if !ok {
		a = domain.ProductAnalytics{ProductID: productID, CreatedAt: time.Now().UTC()}
	}
	switch inc.Field {
	case FieldViews:
		a.Views += inc.Delta
	case FieldHits:
		a.Hits += inc.Delta
	case FieldAddsToCart:
		a.AddsToCart += inc.Delta
	case FieldPurchases:
		a.Purchases += inc.Delta
	default:
		return fmt.Errorf("%w: cannot increment analytics field %q", ErrUnsupported, inc.Field)
	}
	for field, v := range inc.Set {
		t, ok := v.(time.Time)
		if field != FieldLastViewed || !ok {
			return fmt.Errorf("%w: cannot set analytics field %q", ErrUnsupported, field)
		}
		a.LastViewed = &t
	}
	s.analytics[productID] = a
	return nil
}

func (s *MemoryStore) DeleteAnalytics(ctx context.Context, productID string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("DeleteAnalytics", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analytics[productID]; !ok {
		return ErrAnalyticsNotFound
	}
	delete(s.analytics, productID)
	return nil
}

// --- helpers ---

func setProductField(p *domain.Product, field string, v any) error {
	switch field {
	case FieldLastViewed:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("%w: %s must be a time", ErrUnsupported, field)
		}
		p.LastViewed = &t
	case FieldUpdatedAt:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("%w: %s must be a time", ErrUnsupported, field)
		}
		p.UpdatedAt = t
	default:
		return fmt.Errorf("%w: cannot set product field %q", ErrUnsupported, field)
	}
	return nil
}

func cloneProduct(p domain.Product) domain.Product {
	if p.Images != nil {
		p.Images = append([]string{}, p.Images...)
	}
	if p.AvailablePlatforms != nil {
		p.AvailablePlatforms = append([]string{}, p.AvailablePlatforms...)
	}
	if p.ExternalLinks != nil {
		p.ExternalLinks = append([]domain.ExternalLink{}, p.ExternalLinks...)
	}
	if p.LastViewed != nil {
		t := *p.LastViewed
		p.LastViewed = &t
	}
	return p
}

// projectProduct keeps only the listed fields; the id is always kept.
func projectProduct(p domain.Product, fields []string) domain.Product {
	out := domain.Product{ID: p.ID}
	for _, f := range fields {
		switch f {
		case FieldName:
			out.Name = p.Name
		case FieldDescription:
			out.Description = p.Description
		case FieldPrice:
			out.Price = p.Price
		case FieldCategoryID:
			out.CategoryID = p.CategoryID
		case FieldImages:
			out.Images = p.Images
		case FieldExternalLinks:
			out.ExternalLinks = p.ExternalLinks
		case FieldAvailablePlatforms:
			out.AvailablePlatforms = p.AvailablePlatforms
		case FieldRating:
			out.Rating = p.Rating
		case FieldHits:
			out.Hits = p.Hits
		case FieldCreatedAt:
			out.CreatedAt = p.CreatedAt
		}
	}
	return out
}
