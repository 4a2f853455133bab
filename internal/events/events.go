// Package events publishes order events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	OrderPlacedTopic = "order-placed"
	OrderPlacedType  = "OrderPlaced"
)

type OrderPlacedItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderPlaced struct {
	OrderID     string            `json:"order_id"`
	CheckoutID  string            `json:"checkout_id"`
	UserID      string            `json:"user_id"`
	Items       []OrderPlacedItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Currency    string            `json:"currency"`
	PlacedAt    time.Time         `json:"placed_at"`
}

func NewOrderPlaced(order domain.Order) OrderPlaced {
	items := make([]OrderPlacedItem, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, OrderPlacedItem{
			ProductID:   line.ID,
			ProductName: line.Title,
			Quantity:    line.Quantity,
			UnitPrice:   line.Price,
			Subtotal:    line.Subtotal(),
		})
	}
	return OrderPlaced{
		OrderID:     order.ID,
		CheckoutID:  order.CheckoutID,
		UserID:      order.UserID,
		Items:       items,
		TotalAmount: order.Total,
		Currency:    order.Currency,
		PlacedAt:    order.CreatedAt,
	}
}

// Publisher delivers order events. Delivery is best effort: callers log a
// failure and carry on.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, domain.Order) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
