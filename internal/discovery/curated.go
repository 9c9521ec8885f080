package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// Shelf defaults and heuristics.
const (
	DefaultShelfLimit   = 8
	DefaultSimilarLimit = 4

	FeaturedMinRating  = 4.0
	TrendingWindow     = 7 * 24 * time.Hour
	SimilarPriceSpread = 0.3
)

// Curator serves the fixed-heuristic product shelves. None of them go through
// the filter compiler.
type Curator struct {
	products store.ProductStorer
	log      *logrus.Logger
	now      func() time.Time
}

// NewCurator creates a Curator reading from products.
func NewCurator(products store.ProductStorer, logger *logrus.Logger) *Curator {
	return &Curator{products: products, log: logger, now: time.Now}
}

func (c *Curator) shelf(ctx context.Context, name string, limit int, filter store.Predicate, sort ...store.SortField) ([]domain.Product, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: %s limit must be positive", ErrInvalidFilter, name)
	}
	products, err := c.products.FindProducts(ctx, store.Query{Filter: filter, Sort: sort, Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("discovery: %s: %w", name, err)
	}
	return products, nil
}

// Featured returns highly rated products, best first.
func (c *Curator) Featured(ctx context.Context, limit int) ([]domain.Product, error) {
	return c.shelf(ctx, "featured", limit,
		store.Gte(store.FieldRating, FeaturedMinRating),
		store.Desc(store.FieldRating), store.Desc(store.FieldReviewCount), store.Desc(store.FieldHits),
	)
}

// Trending returns the most hit products viewed within the trending window.
// A short result is topped up with the most hit products overall. The top-up
// is not de-duplicated, so a product can appear twice.
func (c *Curator) Trending(ctx context.Context, limit int) ([]domain.Product, error) {
	recent, err := c.shelf(ctx, "trending", limit,
		store.Gte(store.FieldLastViewed, c.now().Add(-TrendingWindow)),
		store.Desc(store.FieldHits),
	)
	if err != nil {
		return nil, err
	}
	if len(recent) >= limit {
		return recent, nil
	}

	backfill, err := c.shelf(ctx, "trending backfill", limit-len(recent), store.All(), store.Desc(store.FieldHits))
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"recent": len(recent), "backfill": len(backfill)}).Debug("discovery: trending backfilled")
	return append(recent, backfill...), nil
}

// NewArrivals returns products created within the new-arrival window, newest first.
func (c *Curator) NewArrivals(ctx context.Context, limit int) ([]domain.Product, error) {
	return c.shelf(ctx, "new arrivals", limit,
		store.Gte(store.FieldCreatedAt, c.now().Add(-NewArrivalWindow)),
		store.Desc(store.FieldCreatedAt),
	)
}

// OnSale returns discounted products, biggest discount first.
func (c *Curator) OnSale(ctx context.Context, limit int) ([]domain.Product, error) {
	return c.shelf(ctx, "on sale", limit,
		store.Gt(store.FieldDiscount, 0.0),
		store.Desc(store.FieldDiscount),
	)
}

// Similar returns other products of the same category priced within
// SimilarPriceSpread of the given one.
func (c *Curator) Similar(ctx context.Context, productID string, limit int) ([]domain.Product, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: similar limit must be positive", ErrInvalidFilter)
	}
	current, err := c.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("discovery: similar: %w", err)
	}

	spread := current.Price * SimilarPriceSpread
	return c.shelf(ctx, "similar", limit,
		store.And(
			store.Eq(store.FieldCategoryID, current.CategoryID),
			store.Ne(store.FieldID, productID),
			store.Gte(store.FieldPrice, current.Price-spread),
			store.Lte(store.FieldPrice, current.Price+spread),
		),
		store.Desc(store.FieldRating), store.Desc(store.FieldHits),
	)
}
