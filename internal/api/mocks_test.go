package api

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

// MockCategoryStorer is a mock implementation of store.CategoryStorer
type MockCategoryStorer struct {
	mock.Mock
}

func (m *MockCategoryStorer) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Error(1)
}

func (m *MockCategoryStorer) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) DeleteCategory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProductStorer is a mock implementation of store.ProductStorer
type MockProductStorer struct {
	mock.Mock
}

func (m *MockProductStorer) ListProducts(ctx context.Context, q store.ProductQuery) (store.ProductPage, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(store.ProductPage), args.Error(1)
}

func (m *MockProductStorer) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductStorer) CountProducts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockWishlistStorer struct {
	mock.Mock
}

func (m *MockWishlistStorer) ListWishlist(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if arg0 := args.Get(0); arg0 != nil {
		ids = arg0.([]string)
	}
	return ids, args.Error(1)
}

func (m *MockWishlistStorer) AddWishlistItem(ctx context.Context, userID, productID string) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *MockWishlistStorer) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	return m.Called(ctx, userID, productID).Error(0)
}

type MockOrderStorer struct {
	mock.Mock
}

func (m *MockOrderStorer) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderStorer) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderStorer) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	var orders []domain.Order
	if arg0 := args.Get(0); arg0 != nil {
		orders = arg0.([]domain.Order)
	}
	return orders, args.Error(1)
}

func (m *MockOrderStorer) ListOrders(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	var orders []domain.Order
	if arg0 := args.Get(0); arg0 != nil {
		orders = arg0.([]domain.Order)
	}
	return orders, args.Error(1)
}

func (m *MockOrderStorer) OrderStats(ctx context.Context) (domain.OrderStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.OrderStats), args.Error(1)
}

func (m *MockOrderStorer) ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, limit)
	var orders []domain.Order
	if arg0 := args.Get(0); arg0 != nil {
		orders = arg0.([]domain.Order)
	}
	return orders, args.Error(1)
}

func (m *MockOrderStorer) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOrderStorer) CreateReturnRequest(ctx context.Context, req *domain.ReturnRequest) (*domain.ReturnRequest, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReturnRequest), args.Error(1)
}

func (m *MockOrderStorer) ListReturnRequests(ctx context.Context) ([]domain.ReturnRequest, error) {
	args := m.Called(ctx)
	var reqs []domain.ReturnRequest
	if arg0 := args.Get(0); arg0 != nil {
		reqs = arg0.([]domain.ReturnRequest)
	}
	return reqs, args.Error(1)
}

func (m *MockOrderStorer) UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

type MockReviewStorer struct {
	mock.Mock
}

func (m *MockReviewStorer) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	args := m.Called(ctx, productID)
	var reviews []domain.Review
	if arg0 := args.Get(0); arg0 != nil {
		reviews = arg0.([]domain.Review)
	}
	return reviews, args.Error(1)
}

func (m *MockReviewStorer) CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	args := m.Called(ctx, review)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

type MockSettingsStorer struct {
	mock.Mock
}

func (m *MockSettingsStorer) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockSettingsStorer) PutSetting(ctx context.Context, key string, value json.RawMessage) error {
	return m.Called(ctx, key, value).Error(0)
}
