package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

func newTestCurator(t *testing.T, products store.ProductStorer) *Curator {
	t.Helper()
	logger, _ := test.NewNullLogger()
	c := NewCurator(products, logger)
	c.now = func() time.Time { return fixedNow }
	return c
}

func shelfStore(t *testing.T, products ...domain.Product) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	for i := range products {
		_, err := s.SaveProduct(context.Background(), &products[i])
		require.NoError(t, err)
	}
	return s
}

func ids(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestCurator_Featured(t *testing.T) {
	s := shelfStore(t,
		domain.Product{ID: "low", Rating: 3.9, ReviewCount: 500},
		domain.Product{ID: "a", Rating: 4.5, ReviewCount: 10, Hits: 1},
		domain.Product{ID: "b", Rating: 4.5, ReviewCount: 10, Hits: 9},
		domain.Product{ID: "c", Rating: 4.5, ReviewCount: 20},
		domain.Product{ID: "d", Rating: 5},
		domain.Product{ID: "e", Rating: 4},
	)
	c := newTestCurator(t, s)

	got, err := c.Featured(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(got))
}

func TestCurator_Trending_Backfill(t *testing.T) {
	recent := fixedNow.Add(-2 * 24 * time.Hour)
	stale := fixedNow.Add(-10 * 24 * time.Hour)
	s := shelfStore(t,
		domain.Product{ID: "hot", Hits: 50, LastViewed: &recent},
		domain.Product{ID: "warm", Hits: 10, LastViewed: &recent},
		domain.Product{ID: "classic", Hits: 100, LastViewed: &stale},
		domain.Product{ID: "never", Hits: 0},
		domain.Product{ID: "old", Hits: 30, LastViewed: &stale},
	)
	c := newTestCurator(t, s)

	got, err := c.Trending(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"hot", "warm", "classic", "hot"}, ids(got), "backfill is appended without de-duplication")

	got, err = c.Trending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 7, "min(limit, recent + all candidates)")

	got, err = c.Trending(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"hot"}, ids(got))
}

func TestCurator_NewArrivalsAndOnSale(t *testing.T) {
	s := shelfStore(t,
		domain.Product{ID: "ancient", CreatedAt: fixedNow.AddDate(0, -2, 0), Discount: 0.5},
		domain.Product{ID: "week", CreatedAt: fixedNow.AddDate(0, 0, -7), Discount: 0.1},
		domain.Product{ID: "today", CreatedAt: fixedNow},
	)
	c := newTestCurator(t, s)

	arrivals, err := c.NewArrivals(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"today", "week"}, ids(arrivals))

	sale, err := c.OnSale(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"ancient", "week"}, ids(sale))
}

func TestCurator_Similar(t *testing.T) {
	s := shelfStore(t,
		domain.Product{ID: "self", CategoryID: "games", Price: 100, Rating: 5},
		domain.Product{ID: "close", CategoryID: "games", Price: 120, Rating: 4},
		domain.Product{ID: "edge", CategoryID: "games", Price: 70, Rating: 4.5},
		domain.Product{ID: "pricey", CategoryID: "games", Price: 131},
		domain.Product{ID: "elsewhere", CategoryID: "books", Price: 100},
	)
	c := newTestCurator(t, s)

	got, err := c.Similar(context.Background(), "self", DefaultSimilarLimit)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge", "close"}, ids(got))

	_, err = c.Similar(context.Background(), "missing", DefaultSimilarLimit)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestCurator_InvalidLimit(t *testing.T) {
	c := newTestCurator(t, new(MockProductStore))

	_, err := c.Featured(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = c.Trending(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestCurator_PropagatesStoreErrors(t *testing.T) {
	products := new(MockProductStore)
	products.On("FindProducts", mock.Anything, mock.Anything).
		Return(nil, errors.Join(store.ErrUnavailable, errors.New("socket closed")))
	c := newTestCurator(t, products)

	_, err := c.OnSale(context.Background(), 8)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}
