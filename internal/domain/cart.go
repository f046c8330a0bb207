package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is the display data captured when a product is added to a
// cart. It is not refreshed afterwards.
type ProductSnapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Slug      string          `json:"slug"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SnapshotOf captures the cart-relevant fields of p.
func SnapshotOf(p ProductSummary) ProductSnapshot {
	return ProductSnapshot{
		ProductID: p.ID,
		Name:      p.Name,
		ImageURL:  p.PrimaryImage(),
		Slug:      p.Slug,
		UnitPrice: p.Price,
	}
}

// CartLineItem is one distinct product in a cart with its quantity.
type CartLineItem struct {
	ProductSnapshot
	Quantity int `json:"quantity"`
}

// Subtotal is UnitPrice × Quantity.
func (i CartLineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
