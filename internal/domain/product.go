package domain

import "github.com/shopspring/decimal"

type Rating struct {
	Rate  float64 `json:"rate" bson:"rate"`
	Count int     `json:"count" bson:"count"`
}

// Product is a catalog entry as served by the remote catalog.
type Product struct {
	ID          int64           `json:"id" bson:"id"`
	Title       string          `json:"title" bson:"title"`
	Description string          `json:"description" bson:"description"`
	Price       decimal.Decimal `json:"price" bson:"price"`
	Category    string          `json:"category" bson:"category"`
	Image       string          `json:"image" bson:"image"`
	Rating      Rating          `json:"rating" bson:"rating"`
}
