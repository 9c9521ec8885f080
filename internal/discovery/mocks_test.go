package discovery

import (
	"context"

	"github.com/stretchr/testify/mock"

	"product-discovery-service/internal/domain"
	"product-discovery-service/internal/store"
)

// MockProductStore is a mock type for store.ProductStorer.
type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) CountProducts(ctx context.Context, filter store.Predicate) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductStore) FindProducts(ctx context.Context, q store.Query) ([]domain.Product, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProductStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStore) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStore) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductStore) IncrementProduct(ctx context.Context, id string, inc store.Increment) error {
	return m.Called(ctx, id, inc).Error(0)
}
