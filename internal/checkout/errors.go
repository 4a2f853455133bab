package checkout

import (
	"errors"

	"github.com/fjod/storefront/internal/store"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")

	// ErrCartChanged is returned when the cart was modified while the payment
	// was in flight. The charge has been refunded.
	ErrCartChanged = store.ErrCartChanged
)

// DeclinedError carries the reason the payment provider gave.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return "payment declined: " + e.Reason
}

func (e *DeclinedError) Is(target error) bool {
	return target == ErrPaymentDeclined
}
