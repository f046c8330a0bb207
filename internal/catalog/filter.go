package catalog

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"storefront-service/internal/store"
	"storefront-service/internal/validation"
)

// PageSize is the number of products per page in both loading modes.
const PageSize = 12

// SortKey selects the listing order.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceLow  SortKey = "price_low"
	SortPriceHigh SortKey = "price_high"
	SortNameAsc   SortKey = "name_asc"
	SortNameDesc  SortKey = "name_desc"
)

// ParseSortKey maps a request value to a SortKey; anything unknown is SortNewest.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(s); k {
	case SortNewest, SortPriceLow, SortPriceHigh, SortNameAsc, SortNameDesc:
		return k
	}
	return SortNewest
}

// column returns the order-by column and direction for k.
func (k SortKey) column() (store.SortColumn, bool) {
	switch k {
	case SortPriceLow:
		return store.SortByPrice, false
	case SortPriceHigh:
		return store.SortByPrice, true
	case SortNameAsc:
		return store.SortByName, false
	case SortNameDesc:
		return store.SortByName, true
	default:
		return store.SortByCreatedAt, true
	}
}

// Filter is the browsing state of a catalog listing. It is a value: the With
// methods return a modified copy.
type Filter struct {
	// Category is a category slug; empty means all categories.
	Category   string          `json:"category"`
	PriceMin   decimal.Decimal `json:"price_min" validate:"gte=0"`
	PriceMax   decimal.Decimal `json:"price_max" validate:"gte=0"`
	SearchText string          `json:"search" validate:"max=100"`
	Sort       SortKey         `json:"sort" validate:"oneof=newest price_low price_high name_asc name_desc"`
	Page       int             `json:"page" validate:"gte=1"`
}

// DefaultFilter is the unfiltered first page, newest first, priced 0..maxPrice.
func DefaultFilter(maxPrice decimal.Decimal) Filter {
	return Filter{
		PriceMin: decimal.Zero,
		PriceMax: maxPrice,
		Sort:     SortNewest,
		Page:     1,
	}
}

func (f Filter) WithCategory(slug string) Filter {
	if slug != f.Category {
		f.Category = slug
		f.Page = 1
	}
	return f
}

func (f Filter) WithPriceRange(min, max decimal.Decimal) Filter {
	if !min.Equal(f.PriceMin) || !max.Equal(f.PriceMax) {
		f.PriceMin, f.PriceMax = min, max
		f.Page = 1
	}
	return f
}

func (f Filter) WithSearch(text string) Filter {
	if text != f.SearchText {
		f.SearchText = text
		f.Page = 1
	}
	return f
}

func (f Filter) WithSort(k SortKey) Filter {
	if k != f.Sort {
		f.Sort = k
		f.Page = 1
	}
	return f
}

// WithPage changes only the page.
func (f Filter) WithPage(page int) Filter {
	f.Page = page
	return f
}

// SameQuery reports whether f and o differ at most in Page.
func (f Filter) SameQuery(o Filter) bool {
	return f.Category == o.Category &&
		f.PriceMin.Equal(o.PriceMin) &&
		f.PriceMax.Equal(o.PriceMax) &&
		f.SearchText == o.SearchText &&
		f.Sort == o.Sort
}

// Equal reports whether f and o select the same page of the same query.
func (f Filter) Equal(o Filter) bool {
	return f.SameQuery(o) && f.Page == o.Page
}

// FilterError lists the invalid filter fields.
type FilterError struct {
	Fields map[string]string
}

func (e *FilterError) Error() string {
	return "catalog: invalid filter: " + validation.Summary(e.Fields)
}

var filterValidate = validation.New()

var filterMessages = map[string]string{
	"price_min": "must be zero or more",
	"price_max": "must be zero or more",
	"search":    "must be at most 100 characters",
	"sort":      "is not a known sort order",
	"page":      "must be 1 or more",
}

// Validate checks the bounds: 0 <= PriceMin <= PriceMax, Page >= 1.
func (f Filter) Validate() error {
	fields := map[string]string{}
	if err := filterValidate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields = validation.FieldErrors(err, filterMessages)
	}
	if _, bad := fields["price_max"]; !bad && f.PriceMin.GreaterThan(f.PriceMax) {
		fields["price_max"] = "must not be below price_min"
	}
	if len(fields) > 0 {
		return &FilterError{Fields: fields}
	}
	return nil
}

// query builds the store query for f, without the paging window.
func (f Filter) query(categoryID *string) store.ProductQuery {
	col, desc := f.Sort.column()
	return store.ProductQuery{
		MinPrice:     f.PriceMin,
		MaxPrice:     f.PriceMax,
		CategoryID:   categoryID,
		NameContains: f.SearchText,
		SortBy:       col,
		Descending:   desc,
	}
}
