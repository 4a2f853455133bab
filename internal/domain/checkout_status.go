package domain

// CheckoutStatus is the state of a single checkout attempt.
type CheckoutStatus string

const (
	CheckoutStatusIdle       CheckoutStatus = "IDLE"
	CheckoutStatusProcessing CheckoutStatus = "PROCESSING"
	CheckoutStatusComplete   CheckoutStatus = "COMPLETE"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusComplete
}

// CanTransitionTo reports whether a checkout may move from s to next.
// A failed attempt goes from processing back to idle.
func CanTransitionTo(s, next CheckoutStatus) bool {
	switch s {
	case CheckoutStatusIdle, CheckoutStatusComplete:
		return next == CheckoutStatusProcessing
	case CheckoutStatusProcessing:
		return next == CheckoutStatusComplete || next == CheckoutStatusIdle
	}
	return false
}

func (s CheckoutStatus) String() string {
	return string(s)
}
