package domain

import "time"

// Review is one customer's rating of a product.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Title     *string   `json:"title,omitempty"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// CouponSettings drives the coupon banner on the home page.
type CouponSettings struct {
	Enabled      bool   `json:"enabled"`
	Code         string `json:"code"`
	DiscountText string `json:"discount_text"`
}
