package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is an entry of the order history. Everything except Status is
// fixed once the order has been appended.
type Order struct {
	ID              string          `json:"id"`
	CheckoutID      string          `json:"checkout_id"`
	IdempotencyKey  string          `json:"idempotency_key"`
	UserID          string          `json:"user_id"`
	Items           []CartLine      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CartRevision    uint64          `json:"cart_revision"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	o.Items = CloneLines(o.Items)
	return o
}
