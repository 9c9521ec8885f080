package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery-service/internal/domain"
)

func seedProducts(t *testing.T, s *MemoryStore, products ...domain.Product) {
	t.Helper()
	for i := range products {
		_, err := s.SaveProduct(context.Background(), &products[i])
		require.NoError(t, err)
	}
}

func productIDs(products []domain.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func TestMemoryStore_FindProducts_FilterSortWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProducts(t, s,
		domain.Product{ID: "a", Name: "Alpha", Price: 10, Hits: 5},
		domain.Product{ID: "b", Name: "Beta", Price: 20, Hits: 9},
		domain.Product{ID: "c", Name: "Gamma", Price: 30, Hits: 5},
		domain.Product{ID: "d", Name: "Delta", Price: 40, Hits: 1},
	)

	got, err := s.FindProducts(ctx, Query{
		Filter: Gte(FieldPrice, 20.0),
		Sort:   []SortField{Desc(FieldHits)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, productIDs(got))

	got, err = s.FindProducts(ctx, Query{Sort: []SortField{Desc(FieldHits)}, Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, productIDs(got), "ties keep insertion order")

	got, err = s.FindProducts(ctx, Query{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.CountProducts(ctx, Regex(FieldName, "ta$"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryStore_SortNullOrdering(t *testing.T) {
	s := NewMemoryStore()
	viewed := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	seedProducts(t, s,
		domain.Product{ID: "never"},
		domain.Product{ID: "seen", LastViewed: &viewed},
	)

	desc, err := s.FindProducts(context.Background(), Query{Sort: []SortField{Desc(FieldLastViewed)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"seen", "never"}, productIDs(desc))

	asc, err := s.FindProducts(context.Background(), Query{Sort: []SortField{Asc(FieldLastViewed)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"never", "seen"}, productIDs(asc))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	seedProducts(t, s, domain.Product{ID: "a", AvailablePlatforms: []string{"pc"}})

	p, err := s.GetProductByID(context.Background(), "a")
	require.NoError(t, err)
	p.AvailablePlatforms[0] = "mutated"
	p.Hits = 100

	again, err := s.GetProductByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"pc"}, again.AvailablePlatforms)
	assert.Zero(t, again.Hits)
}

func TestMemoryStore_Projection(t *testing.T) {
	s := NewMemoryStore()
	seedProducts(t, s, domain.Product{ID: "a", Name: "Alpha", Price: 10, Images: []string{"a.png"}})

	got, err := s.FindProducts(context.Background(), Query{Fields: []string{FieldName, FieldImages}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Product{ID: "a", Name: "Alpha", Images: []string{"a.png"}}, got[0])
}

func TestMemoryStore_IncrementProduct_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	seedProducts(t, s, domain.Product{ID: "a"})

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementProduct(context.Background(), "a", HitIncrement(time.Now())))
		}()
	}
	wg.Wait()

	p, err := s.GetProductByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(n), p.Hits)
	assert.NotNil(t, p.LastViewed)
}

func TestMemoryStore_IncrementProduct_Errors(t *testing.T) {
	s := NewMemoryStore()
	seedProducts(t, s, domain.Product{ID: "a"})

	err := s.IncrementProduct(context.Background(), "missing", HitIncrement(time.Now()))
	assert.ErrorIs(t, err, ErrProductNotFound)

	err = s.IncrementProduct(context.Background(), "a", Increment{Field: FieldPrice, Delta: 1})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestMemoryStore_CategoryNameUnique(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.SaveCategory(ctx, &domain.Category{ID: "1", Name: "Games"})
	require.NoError(t, err)

	_, err = s.SaveCategory(ctx, &domain.Category{ID: "2", Name: "Games"})
	assert.ErrorIs(t, err, ErrCategoryNameExists)

	_, err = s.SaveCategory(ctx, &domain.Category{ID: "1", Name: "Games", Description: "renamed in place"})
	assert.NoError(t, err, "saving the same category again is not a conflict")
}

func TestMemoryStore_Analytics(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetAnalytics(ctx, "p1")
	assert.ErrorIs(t, err, ErrAnalyticsNotFound)

	created, err := s.CreateAnalytics(ctx, &domain.ProductAnalytics{ProductID: "p1", ProductName: "First"})
	require.NoError(t, err)
	assert.Equal(t, "First", created.ProductName)

	again, err := s.CreateAnalytics(ctx, &domain.ProductAnalytics{ProductID: "p1", ProductName: "Second"})
	require.NoError(t, err)
	assert.Equal(t, "First", again.ProductName, "existing record is returned unchanged")

	now := time.Now()
	require.NoError(t, s.IncrementAnalytics(ctx, "p2", Increment{Field: FieldViews, Delta: 1, Set: map[string]any{FieldLastViewed: now}}))
	a, err := s.GetAnalytics(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Views)
	require.NotNil(t, a.LastViewed)
	assert.True(t, now.Equal(*a.LastViewed))

	require.NoError(t, s.DeleteAnalytics(ctx, "p2"))
	assert.ErrorIs(t, s.DeleteAnalytics(ctx, "p2"), ErrAnalyticsNotFound)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CountProducts(ctx, All())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatch(t *testing.T) {
	viewed := time.Now()
	p := &domain.Product{
		ID:                 "p1",
		Name:               "Halo Infinite",
		Price:              59.99,
		AvailablePlatforms: []string{"pc", "xbox"},
		LastViewed:         &viewed,
	}

	testCases := []struct {
		pred Predicate
		want bool
	}{
		{All(), true},
		{Or(), false},
		{Regex(FieldName, "halo"), true},
		{Regex(FieldDescription, "halo"), false},
		{Eq(FieldAvailablePlatforms, "pc"), true},
		{In(FieldAvailablePlatforms, []string{"ps5", "xbox"}), true},
		{In(FieldAvailablePlatforms, []string{"ps5"}), false},
		{Ne(FieldID, "p1"), false},
		{Not(Eq(FieldID, "p2")), true},
		{Missing(FieldExternalLinks), true},
		{Exists(FieldLastViewed), true},
		{Size(FieldAvailablePlatforms, 2), true},
		{And(Gt(FieldPrice, 50.0), Lt(FieldPrice, 60.0)), true},
		{Gte(FieldLastViewed, viewed.Add(time.Minute)), false},
	}

	for i, tc := range testCases {
		t.Run(fmt.Sprintf("case%d", i), func(t *testing.T) {
			assert.Equal(t, tc.want, Match(tc.pred, p))
		})
	}
}
