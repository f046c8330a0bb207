package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

// ErrMalformedRow is returned when a row read from the database does not
// satisfy the product schema.
var ErrMalformedRow = errors.New("store: malformed row")

const productColumns = `p.id, p.name, p.slug, p.price, p.original_price, p.image_urls, p.stock_status,
		p.category_id, c.name, c.slug, p.featured, p.created_at`

const productDetailColumns = productColumns + `, p.description, p.returnable, p.meesho_link, p.updated_at`

// productRecord is a products row as scanned, before it is trusted.
type productRecord struct {
	ID            string              `json:"id" validate:"required,uuid"`
	Name          string              `json:"name" validate:"required,max=200"`
	Slug          sql.NullString      `json:"-"`
	Price         decimal.Decimal     `json:"price" validate:"gte=0"`
	OriginalPrice decimal.NullDecimal `json:"original_price" validate:"omitempty,gte=0"`
	ImageURLs     pq.StringArray      `json:"image_urls" validate:"dive,required"`
	StockStatus   sql.NullString      `json:"-"`
	CategoryID    sql.NullString      `json:"-"`
	CategoryName  sql.NullString      `json:"-"`
	CategorySlug  sql.NullString      `json:"-"`
	Featured      bool                `json:"-"`
	CreatedAt     time.Time           `json:"-"`

	// detail columns
	Description sql.NullString `json:"-"`
	Returnable  bool           `json:"-"`
	MeeshoLink  sql.NullString `json:"-"`
	UpdatedAt   time.Time      `json:"-"`
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *productRecord) summaryDest() []interface{} {
	return []interface{}{
		&r.ID, &r.Name, &r.Slug, &r.Price, &r.OriginalPrice, &r.ImageURLs, &r.StockStatus,
		&r.CategoryID, &r.CategoryName, &r.CategorySlug, &r.Featured, &r.CreatedAt,
	}
}

func (r *productRecord) detailDest() []interface{} {
	return append(r.summaryDest(), &r.Description, &r.Returnable, &r.MeeshoLink, &r.UpdatedAt)
}

// toSummary validates the record and converts it. A missing slug is derived
// from the name and a missing stock status defaults to in_stock; anything
// else that fails the schema is rejected.
func (s *PostgresStore) toSummary(r productRecord) (domain.ProductSummary, error) {
	if err := s.validate.Struct(r); err != nil {
		return domain.ProductSummary{}, fmt.Errorf("%w: product %q: %v", ErrMalformedRow, r.ID, err)
	}

	stock := domain.StockInStock
	if r.StockStatus.Valid {
		switch st := domain.StockStatus(r.StockStatus.String); st {
		case domain.StockInStock, domain.StockOutOfStock, domain.StockLowStock:
			stock = st
		default:
			return domain.ProductSummary{}, fmt.Errorf("%w: product %q: unknown stock status %q", ErrMalformedRow, r.ID, st)
		}
	}

	slug := r.Slug.String
	if !r.Slug.Valid || slug == "" {
		slug = domain.Slugify(r.Name)
	}

	images := []string(r.ImageURLs)
	if images == nil {
		images = []string{}
	}

	p := domain.ProductSummary{
		ID:            r.ID,
		Name:          r.Name,
		Slug:          slug,
		Price:         r.Price,
		OriginalPrice: r.OriginalPrice,
		ImageURLs:     images,
		StockStatus:   stock,
		Featured:      r.Featured,
		CreatedAt:     r.CreatedAt,
	}
	if r.CategoryID.Valid {
		p.Category = &domain.CategoryRef{ID: r.CategoryID.String, Name: r.CategoryName.String, Slug: r.CategorySlug.String}
	}
	return p, nil
}

func (s *PostgresStore) toProduct(r productRecord) (*domain.Product, error) {
	summary, err := s.toSummary(r)
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ProductSummary: summary,
		Description:    stringPtr(r.Description),
		Returnable:     r.Returnable,
		MeeshoLink:     stringPtr(r.MeeshoLink),
		UpdatedAt:      r.UpdatedAt,
	}, nil
}
