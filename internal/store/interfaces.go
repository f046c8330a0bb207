package store

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

// SortColumn names the product columns a listing may be ordered by.
type SortColumn string

const (
	SortByCreatedAt SortColumn = "created_at"
	SortByPrice     SortColumn = "price"
	SortByName      SortColumn = "name"
)

// ProductQuery holds parameters for listing products (filtering, sorting, pagination).
// Ties within the sort column follow the database's natural order.
type ProductQuery struct {
	MinPrice     decimal.Decimal // inclusive
	MaxPrice     decimal.Decimal // inclusive
	AnyPrice     bool            // ignore MinPrice/MaxPrice
	CategoryID   *string
	NameContains string // case-insensitive substring of the product name
	FeaturedOnly bool
	ExcludeID    string
	SortBy       SortColumn
	Descending   bool
	Limit        int
	Offset       int
	WithCount    bool // also count all rows matching the filter, ignoring Limit/Offset
}

// ProductPage is one fetched window of products.
type ProductPage struct {
	Items []domain.ProductSummary
	// Fetched is how many rows the database returned, including rows dropped
	// because they failed validation. Callers detect end-of-data with it.
	Fetched int
	// Total is the count of all matching rows; only set when WithCount was requested.
	Total int
}

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// ProductStorer defines the database operations for products.
type ProductStorer interface {
	ListProducts(ctx context.Context, q ProductQuery) (ProductPage, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	CountProducts(ctx context.Context) (int, error)
}

// WishlistStorer persists the saved-products set of each user. Adding a
// present row and removing an absent one both succeed.
type WishlistStorer interface {
	ListWishlist(ctx context.Context, userID string) ([]string, error)
	AddWishlistItem(ctx context.Context, userID, productID string) error
	RemoveWishlistItem(ctx context.Context, userID, productID string) error
}

// OrderStorer defines the database operations for orders and return requests.
type OrderStorer interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
	OrderStats(ctx context.Context) (domain.OrderStats, error)
	ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error)

	CreateReturnRequest(ctx context.Context, req *domain.ReturnRequest) (*domain.ReturnRequest, error)
	ListReturnRequests(ctx context.Context) ([]domain.ReturnRequest, error)
	UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus) error
}

// ReviewStorer defines the database operations for product reviews.
type ReviewStorer interface {
	ListReviews(ctx context.Context, productID string) ([]domain.Review, error)
	CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error)
}

// SettingsStorer reads and writes JSON values of the site_settings table.
type SettingsStorer interface {
	GetSetting(ctx context.Context, key string) (json.RawMessage, error)
	PutSetting(ctx context.Context, key string, value json.RawMessage) error
}
