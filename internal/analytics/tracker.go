package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// Tracker records product views and serves per-product analytics.
type Tracker struct {
	products  store.ProductStorer
	analytics store.AnalyticsStorer
	log       *logrus.Logger
	now       func() time.Time
}

// NewTracker creates a Tracker writing to the given stores.
func NewTracker(products store.ProductStorer, analytics store.AnalyticsStorer, logger *logrus.Logger) *Tracker {
	return &Tracker{products: products, analytics: analytics, log: logger, now: time.Now}
}

// RecordHit bumps the product's hit counter and last-viewed time, then the
// views counter of its analytics record, creating that record if needed.
// The two writes are independent: one may succeed while the other fails, and
// both failures are reported.
func (t *Tracker) RecordHit(ctx context.Context, productID string) error {
	at := t.now().UTC()

	var productErr, viewsErr error
	if err := t.products.IncrementProduct(ctx, productID, store.HitIncrement(at)); err != nil {
		productErr = fmt.Errorf("analytics: record hit on product %s: %w", productID, err)
	}
	views := store.Increment{
		Field: store.FieldViews,
		Delta: 1,
		Set:   map[string]any{store.FieldLastViewed: at},
	}
	if err := t.analytics.IncrementAnalytics(ctx, productID, views); err != nil {
		viewsErr = fmt.Errorf("analytics: record view of product %s: %w", productID, err)
	}
	return errors.Join(productErr, viewsErr)
}

// GetOrCreate returns the analytics record of productID, creating a zeroed one
// on first access. It never reports store.ErrAnalyticsNotFound.
func (t *Tracker) GetOrCreate(ctx context.Context, productID string) (*domain.ProductAnalytics, error) {
	a, err := t.analytics.GetAnalytics(ctx, productID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrAnalyticsNotFound) {
		return nil, fmt.Errorf("analytics: get %s: %w", productID, err)
	}
	return t.create(ctx, productID)
}

func (t *Tracker) create(ctx context.Context, productID string) (*domain.ProductAnalytics, error) {
	name := domain.UnknownProductName
	p, err := t.products.GetProductByID(ctx, productID)
	switch {
	case err == nil:
		name = p.Name
	case !errors.Is(err, store.ErrProductNotFound):
		return nil, fmt.Errorf("analytics: resolve product %s: %w", productID, err)
	}

	created, err := t.analytics.CreateAnalytics(ctx, &domain.ProductAnalytics{
		ProductID:   productID,
		ProductName: name,
		CreatedAt:   t.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: create %s: %w", productID, err)
	}
	t.log.WithFields(logrus.Fields{"product_id": productID, "product_name": created.ProductName}).Info("Analytics record created")
	return created, nil
}
