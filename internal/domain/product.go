package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus is the availability label shown on a product card.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockLowStock   StockStatus = "low_stock"
)

// Category represents a product category in the storefront.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryRef is the slice of a category carried on a product listing row.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProductSummary is the read-only projection of a product used by listings.
// It is never mutated locally.
type ProductSummary struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	ImageURLs     []string            `json:"image_urls"`
	StockStatus   StockStatus         `json:"stock_status"`
	Category      *CategoryRef        `json:"category,omitempty"`
	Featured      bool                `json:"featured"`
	CreatedAt     time.Time           `json:"created_at"`
}

// PrimaryImage returns the first image URL or "".
func (p ProductSummary) PrimaryImage() string {
	if len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

// Product is the full product record, as shown on the detail page and
// edited from the back office.
type Product struct {
	ProductSummary
	Description *string   `json:"description,omitempty"`
	Returnable  bool      `json:"returnable"`
	MeeshoLink  *string   `json:"meesho_link,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and replaces every run of characters outside
// [a-z0-9] with a single dash.
func Slugify(name string) string {
	return slugUnsafe.ReplaceAllString(strings.ToLower(name), "-")
}
