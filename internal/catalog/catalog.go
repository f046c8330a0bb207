// Package catalog turns browsing filters into product queries and serves the
// results either as numbered pages or as an accumulating infinite list.
package catalog

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

// Source is the part of the remote store the catalog reads.
type Source interface {
	ListProducts(ctx context.Context, q store.ProductQuery) (store.ProductPage, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
}

// Fetcher runs one windowed query for a filter.
type Fetcher interface {
	Fetch(ctx context.Context, f Filter, offset, limit int, withCount bool) (store.ProductPage, error)
}

// Catalog is the read side of the product catalog.
type Catalog struct {
	src Source
	log logrus.FieldLogger
}

func New(src Source, log logrus.FieldLogger) *Catalog {
	return &Catalog{src: src, log: log.WithField("component", "catalog")}
}

// Fetch resolves the filter's category slug and runs the query. An unknown
// slug lists all categories.
func (c *Catalog) Fetch(ctx context.Context, f Filter, offset, limit int, withCount bool) (store.ProductPage, error) {
	var categoryID *string
	if f.Category != "" {
		cat, err := c.src.GetCategoryBySlug(ctx, f.Category)
		switch {
		case err == nil:
			categoryID = &cat.ID
		case errors.Is(err, store.ErrCategoryNotFound):
			c.log.WithField("category", f.Category).Debug("unknown category slug, not filtering by category")
		default:
			return store.ProductPage{}, pkgerrors.Wrap(err, "catalog: resolve category")
		}
	}

	q := f.query(categoryID)
	q.Offset = offset
	q.Limit = limit
	q.WithCount = withCount
	page, err := c.src.ListProducts(ctx, q)
	if err != nil {
		return store.ProductPage{}, pkgerrors.Wrap(err, "catalog: list products")
	}
	return page, nil
}

// Page is a stateless offset-mode read of f.Page.
func (c *Catalog) Page(ctx context.Context, f Filter) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}
	p := NewOffsetProvider()
	req, _ := p.Next(f)
	page, err := c.Fetch(ctx, f, req.Offset, req.Limit, req.WithCount)
	if err != nil {
		return Result{}, &FetchError{Err: err}
	}
	p.Apply(f, req, page)
	return p.Current(), nil
}

// Categories lists every category ordered by name.
func (c *Catalog) Categories(ctx context.Context) ([]domain.Category, error) {
	cats, err := c.src.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "catalog: list categories")
	}
	return cats, nil
}

// ProductBySlug returns store.ErrProductNotFound for unknown slugs.
func (c *Catalog) ProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := c.src.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, "catalog: get product")
	}
	return p, nil
}

// Featured lists up to limit featured products, newest first.
func (c *Catalog) Featured(ctx context.Context, limit int) ([]domain.ProductSummary, error) {
	page, err := c.src.ListProducts(ctx, store.ProductQuery{
		AnyPrice:     true,
		FeaturedOnly: true,
		SortBy:       store.SortByCreatedAt,
		Descending:   true,
		Limit:        limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "catalog: list featured")
	}
	return page.Items, nil
}

// Related lists up to limit other products of p's category. Products without
// a category have none.
func (c *Catalog) Related(ctx context.Context, p domain.ProductSummary, limit int) ([]domain.ProductSummary, error) {
	if p.Category == nil {
		return []domain.ProductSummary{}, nil
	}
	page, err := c.src.ListProducts(ctx, store.ProductQuery{
		AnyPrice:   true,
		CategoryID: &p.Category.ID,
		ExcludeID:  p.ID,
		SortBy:     store.SortByCreatedAt,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "catalog: list related")
	}
	return page.Items, nil
}
