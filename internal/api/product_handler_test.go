package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery-service/internal/domain"
)

func TestCreateProductHandler(t *testing.T) {
	env := setupTestChiServer(t)
	env.seedCategory(t, domain.Category{ID: "c1", Name: "Phones"})

	t.Run("success", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v2/products", map[string]any{
			"name":               "Pixel 8",
			"price":              699.0,
			"categoryId":         "c1",
			"availablePlatforms": []string{"android"},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		created := decode[domain.Product](t, resp)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Pixel 8", created.Name)
		assert.Equal(t, []string{"android"}, created.AvailablePlatforms)
		assert.False(t, created.CreatedAt.IsZero())
	})

	t.Run("unknown category", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v2/products", map[string]any{"name": "Ghost", "categoryId": "nope"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid categoryId: category does not exist.", decode[ErrorResponse](t, resp).Error)
	})

	t.Run("invalid external link", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v2/products", map[string]any{
			"name":          "Linked",
			"externalLinks": []map[string]string{{"websiteName": "Shop", "url": "not a url"}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("negative price", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/v2/products", map[string]any{"name": "Cheap", "price": -1})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetProductByIDHandler(t *testing.T) {
	env := setupTestChiServer(t)
	env.seedProduct(t, domain.Product{ID: "p1", Name: "Pixel"})

	t.Run("tracked by default", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v2/products/p1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Pixel", decode[domain.Product](t, resp).Name)
		assert.Equal(t, []string{"p1"}, env.hits.dispatched())
	})

	t.Run("untracked", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v2/products/p1?track=false", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, env.hits.dispatched(), 1)
	})

	t.Run("bad track flag", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v2/products/p1?track=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not found is not tracked", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v2/products/missing", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Len(t, env.hits.dispatched(), 1)
	})
}

func TestUpdateProductHandler(t *testing.T) {
	env := setupTestChiServer(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.seedProduct(t, domain.Product{ID: "p1", Name: "Old", Hits: 7, CreatedAt: created})

	resp := env.do(t, http.MethodPut, "/api/v2/products/p1", map[string]any{"name": "New", "price": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.Product](t, resp)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, int64(7), updated.Hits)
	assert.True(t, created.Equal(updated.CreatedAt))

	resp = env.do(t, http.MethodPut, "/api/v2/products/missing", map[string]any{"name": "New"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteProductHandler(t *testing.T) {
	env := setupTestChiServer(t)
	env.seedProduct(t, domain.Product{ID: "p1", Name: "Pixel"})

	resp := env.do(t, http.MethodPost, "/api/v2/products/p1/hit", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/v2/products/p1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v2/products/p1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/v2/products/p1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetProductsBatchHandler(t *testing.T) {
	env := setupTestChiServer(t)
	env.seedProduct(t, domain.Product{ID: "p1", Name: "One"})
	env.seedProduct(t, domain.Product{ID: "p2", Name: "Two"})

	resp := env.do(t, http.MethodPost, "/api/v2/products/batch", map[string]any{"ids": []string{"p2", "missing", "p1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decode[[]domain.Product](t, resp)
	require.Len(t, products, 2)
	assert.ElementsMatch(t, []string{"p1", "p2"}, []string{products[0].ID, products[1].ID})

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	resp = env.do(t, http.MethodPost, "/api/v2/products/batch", map[string]any{"ids": ids})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v2/products/batch", map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordHitAndAnalyticsHandlers(t *testing.T) {
	env := setupTestChiServer(t)
	env.seedProduct(t, domain.Product{ID: "p1", Name: "Pixel"})

	resp := env.do(t, http.MethodGet, "/api/v2/products/p1/analytics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a := decode[domain.ProductAnalytics](t, resp)
	assert.Equal(t, "Pixel", a.ProductName)
	assert.Zero(t, a.Views)

	for i := 0; i < 3; i++ {
		resp = env.do(t, http.MethodPost, "/api/v2/products/p1/hit", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v2/products/p1/analytics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a = decode[domain.ProductAnalytics](t, resp)
	assert.Equal(t, int64(3), a.Views)
	assert.NotNil(t, a.LastViewed)

	resp = env.do(t, http.MethodGet, "/api/v2/products/p1?track=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), decode[domain.Product](t, resp).Hits)

	resp = env.do(t, http.MethodPost, "/api/v2/products/missing/hit", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyticsHandler_UnknownProduct(t *testing.T) {
	env := setupTestChiServer(t)

	resp := env.do(t, http.MethodGet, "/api/v2/products/gone/analytics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.UnknownProductName, decode[domain.ProductAnalytics](t, resp).ProductName)
}

func TestUpdateExternalLinksAndPlatformsHandlers(t *testing.T) {
	env := setupTestChiServer(t)
	env.seedProduct(t, domain.Product{ID: "p1", Name: "Pixel", AvailablePlatforms: []string{"web"}})

	resp := env.do(t, http.MethodPut, "/api/v2/products/p1/external-links", map[string]any{
		"externalLinks": []map[string]string{{"websiteName": "Shop", "url": "https://shop.example.com/pixel"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.Product](t, resp)
	require.Len(t, updated.ExternalLinks, 1)
	assert.Equal(t, "Shop", updated.ExternalLinks[0].WebsiteName)

	resp = env.do(t, http.MethodPut, "/api/v2/products/p1/external-links", map[string]any{
		"externalLinks": []map[string]string{{"websiteName": "", "url": "https://shop.example.com"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/v2/products/p1/platforms", map[string]any{"availablePlatforms": []string{"ios", "android"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"ios", "android"}, decode[domain.Product](t, resp).AvailablePlatforms)

	resp = env.do(t, http.MethodPut, "/api/v2/products/missing/platforms", map[string]any{"availablePlatforms": []string{"ios"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
