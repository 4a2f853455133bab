// Package store holds the per-client state objects: the cart, the login
// session and the order history. Each store owns its data, serializes its
// mutations and writes itself through to a named record after every change.
package store

import "errors"

var (
	ErrPersistence        = errors.New("persistence failure")
	ErrUnsupportedVersion = errors.New("unsupported state version")
	ErrCartChanged        = errors.New("cart changed since snapshot")
	ErrOrderNotFound      = errors.New("order not found")
	ErrDuplicateOrder     = errors.New("order with this id already exists")
	ErrDuplicateCheckout  = errors.New("order for this checkout already exists")
	ErrIllegalTransition  = errors.New("illegal transition of order status")
	ErrQuantityLimit      = errors.New("line quantity exceeds limit")
)

// Record names, one per store and client.
func CartRecord(clientID string) string    { return clientID + ":cart" }
func SessionRecord(clientID string) string { return clientID + ":session" }
func OrdersRecord(clientID string) string  { return clientID + ":orders" }
