package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

func productID(n int) string {
	return fmt.Sprintf("%08d-0000-4000-8000-000000000000", n)
}

func summaryN(n int, price int64) domain.ProductSummary {
	name := fmt.Sprintf("Kurta %d", n)
	return domain.ProductSummary{
		ID:          productID(n),
		Name:        name,
		Slug:        domain.Slugify(name),
		Price:       decimal.NewFromInt(price),
		ImageURLs:   []string{fmt.Sprintf("https://cdn.example.com/%d.jpg", n)},
		StockStatus: domain.StockInStock,
	}
}

func summaries(from, n int) []domain.ProductSummary {
	out := make([]domain.ProductSummary, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, summaryN(i, 100))
	}
	return out
}

func TestHTTPHandler_ListProducts_AppliesFilter(t *testing.T) {
	env := setupTestChiServer(t)
	env.categories.On("GetCategoryBySlug", mock.Anything, "kurtas").
		Return(&domain.Category{ID: categoryID, Slug: "kurtas"}, nil).Once()
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.CategoryID != nil && *q.CategoryID == categoryID &&
			q.SortBy == store.SortByPrice && !q.Descending &&
			q.MinPrice.Equal(decimal.NewFromInt(100)) && q.MaxPrice.Equal(decimal.NewFromInt(900)) &&
			q.NameContains == "silk" && !q.AnyPrice &&
			q.Offset == 12 && q.Limit == 12 && q.WithCount
	})).Return(store.ProductPage{Items: summaries(13, 2), Fetched: 2, Total: 14}, nil).Once()

	res := env.do(t, http.MethodGet, "/api/v1/products?category=kurtas&sort=price_low&price_min=100&price_max=900&search=silk&page=2", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	var result catalog.Result
	decodeBody(t, res, &result)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, 14, result.TotalCount)
	assert.Equal(t, 2, result.TotalPages)
	assert.False(t, result.HasMore)
	env.products.AssertExpectations(t)
	env.categories.AssertExpectations(t)
}

func TestHTTPHandler_ListProducts_InvalidFilter(t *testing.T) {
	env := setupTestChiServer(t)

	res := env.do(t, http.MethodGet, "/api/v1/products?price_min=abc", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, res, &errResp)
	assert.Contains(t, errResp.Fields, "price_min")

	res = env.do(t, http.MethodGet, "/api/v1/products?price_min=900&price_max=100", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	errResp = ErrorResponse{}
	decodeBody(t, res, &errResp)
	assert.Contains(t, errResp.Fields, "price_max")

	env.products.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything)
}

func TestHTTPHandler_ListProducts_StoreFailure(t *testing.T) {
	env := setupTestChiServer(t)
	env.products.On("ListProducts", mock.Anything, mock.Anything).
		Return(store.ProductPage{}, errors.New("connection refused")).Once()

	res := env.do(t, http.MethodGet, "/api/v1/products", nil)

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestHTTPHandler_ListFeaturedProducts(t *testing.T) {
	env := setupTestChiServer(t)
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.FeaturedOnly && q.AnyPrice && q.Limit == maxFeaturedLimit && q.Descending
	})).Return(store.ProductPage{Items: summaries(1, 3), Fetched: 3}, nil).Once()

	res := env.do(t, http.MethodGet, "/api/v1/products/featured?limit=500", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	var items []domain.ProductSummary
	decodeBody(t, res, &items)
	assert.Len(t, items, 3)
	env.products.AssertExpectations(t)
}

func TestHTTPHandler_GetProductBySlug(t *testing.T) {
	env := setupTestChiServer(t)
	p := &domain.Product{ProductSummary: summaryN(1, 799), Returnable: true}
	p.Category = &domain.CategoryRef{ID: categoryID, Name: "Kurtas", Slug: "kurtas"}
	env.products.On("GetProductBySlug", mock.Anything, p.Slug).Return(p, nil).Once()
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.ExcludeID == p.ID && q.CategoryID != nil && *q.CategoryID == categoryID && q.Limit == relatedLimit
	})).Return(store.ProductPage{Items: summaries(2, 2), Fetched: 2}, nil).Once()

	res := env.do(t, http.MethodGet, "/api/v1/products/"+p.Slug, nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	var detail productDetailResponse
	decodeBody(t, res, &detail)
	require.NotNil(t, detail.Product)
	assert.Equal(t, p.ID, detail.Product.ID)
	assert.Len(t, detail.Related, 2)

	env.products.On("GetProductBySlug", mock.Anything, "missing").Return(nil, store.ErrProductNotFound).Once()
	res = env.do(t, http.MethodGet, "/api/v1/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHTTPHandler_Browse_PagedIsLoadedOnce(t *testing.T) {
	env := setupTestChiServer(t)
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.Offset == 0 && q.WithCount && q.SortBy == store.SortByCreatedAt
	})).Return(store.ProductPage{Items: summaries(1, 12), Fetched: 12, Total: 30}, nil).Once()

	res := env.do(t, http.MethodGet, "/api/v1/browse", nil, withDevice(deviceA))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, deviceA, res.Header.Get(DeviceHeader))
	var view catalog.View
	decodeBody(t, res, &view)
	assert.Equal(t, catalog.StatusReady, view.Status)
	assert.Equal(t, catalog.ModePaged, view.Mode)
	assert.Equal(t, 3, view.Result.TotalPages)
	assert.Len(t, view.Result.Items, 12)

	res = env.do(t, http.MethodGet, "/api/v1/browse", nil, withDevice(deviceA))
	require.Equal(t, http.StatusOK, res.StatusCode)
	env.products.AssertNumberOfCalls(t, "ListProducts", 1)
	assert.Equal(t, 1, env.handler.SessionCounts()["browse"])
}

func TestHTTPHandler_Browse_InfiniteLoadMore(t *testing.T) {
	env := setupTestChiServer(t)
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.Offset == 0 && !q.WithCount
	})).Return(store.ProductPage{Items: summaries(1, 12), Fetched: 12}, nil).Once()
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.Offset == 12 && !q.WithCount
	})).Return(store.ProductPage{Items: summaries(13, 5), Fetched: 5}, nil).Once()

	res := env.do(t, http.MethodGet, "/api/v1/browse?mode=infinite", nil, withDevice(deviceA))
	require.Equal(t, http.StatusOK, res.StatusCode)
	var view catalog.View
	decodeBody(t, res, &view)
	assert.True(t, view.Result.HasMore)

	res = env.do(t, http.MethodPost, "/api/v1/browse/more", nil, withDevice(deviceA))
	require.Equal(t, http.StatusOK, res.StatusCode)
	view = catalog.View{}
	decodeBody(t, res, &view)
	assert.Len(t, view.Result.Items, 17)
	assert.False(t, view.Result.HasMore)

	res = env.do(t, http.MethodPost, "/api/v1/browse/more", nil, withDevice(deviceA))
	require.Equal(t, http.StatusOK, res.StatusCode)
	env.products.AssertExpectations(t)
}

func TestHTTPHandler_BrowseMore_RequiresInfiniteMode(t *testing.T) {
	env := setupTestChiServer(t)

	res := env.do(t, http.MethodPost, "/api/v1/browse/more", nil)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	_, err := uuid.Parse(res.Header.Get(DeviceHeader))
	assert.NoError(t, err, "a device id is issued when none is sent")
	assert.Equal(t, 0, env.handler.SessionCounts()["browse"], "no session is opened just to refuse")
}

func TestHTTPHandler_Browse_FetchFailureIsRetryable(t *testing.T) {
	env := setupTestChiServer(t)
	env.products.On("ListProducts", mock.Anything, mock.Anything).
		Return(store.ProductPage{}, errors.New("timeout")).Once()

	res := env.do(t, http.MethodGet, "/api/v1/browse", nil, withDevice(deviceA))

	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	var body browseErrorResponse
	decodeBody(t, res, &body)
	assert.True(t, body.Retryable)
	assert.Equal(t, catalog.StatusError, body.View.Status)
}

func TestHTTPHandler_Browse_RejectedRequestKeepsSession(t *testing.T) {
	env := setupTestChiServer(t)
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.Offset == 0 && !q.WithCount
	})).Return(store.ProductPage{Items: summaries(1, 12), Fetched: 12}, nil).Once()
	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(q store.ProductQuery) bool {
		return q.Offset == 12 && !q.WithCount
	})).Return(store.ProductPage{Items: summaries(13, 3), Fetched: 3}, nil).Once()

	res := env.do(t, http.MethodGet, "/api/v1/browse?mode=infinite", nil, withDevice(deviceA))
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = env.do(t, http.MethodGet, "/api/v1/browse?mode=paged&price_min=abc", nil, withDevice(deviceA))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = env.do(t, http.MethodGet, "/api/v1/browse?mode=paged&price_min=900&price_max=100", nil, withDevice(deviceA))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = env.do(t, http.MethodPost, "/api/v1/browse/more", nil, withDevice(deviceA))
	require.Equal(t, http.StatusOK, res.StatusCode)
	var view catalog.View
	decodeBody(t, res, &view)
	assert.Equal(t, catalog.ModeInfinite, view.Mode)
	assert.False(t, view.Stale)
	assert.Len(t, view.Result.Items, 15, "rows loaded before the rejected requests are kept")
	env.products.AssertExpectations(t)
}

func TestHTTPHandler_ListProducts_NoMatchesReportsTotals(t *testing.T) {
	env := setupTestChiServer(t)
	env.products.On("ListProducts", mock.Anything, mock.Anything).
		Return(store.ProductPage{Items: []domain.ProductSummary{}}, nil).Once()

	res := env.do(t, http.MethodGet, "/api/v1/products?search=nothing", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]interface{}
	decodeBody(t, res, &body)
	assert.Equal(t, float64(0), body["total_count"])
	assert.Equal(t, float64(0), body["total_pages"])
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, []interface{}{}, body["items"])
}
