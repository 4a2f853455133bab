// Package payment simulates a card payment provider.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type ChargeStatus int

const (
	ChargeStatusSuccess ChargeStatus = iota
	ChargeStatusFailed
)

func (s ChargeStatus) String() string {
	if s == ChargeStatusSuccess {
		return "success"
	}
	return "failed"
}

// Refusal is the reason a charge was declined.
type Refusal int

const (
	RefusalUnknown Refusal = iota
	RefusalInsufficientFunds
	RefusalCardExpired
	RefusalCardDeclined
	RefusalFraudSuspected
	RefusalLimitExceeded
)

var refusalText = map[Refusal]string{
	RefusalUnknown:           "unknown reason",
	RefusalInsufficientFunds: "insufficient funds",
	RefusalCardExpired:       "card expired",
	RefusalCardDeclined:      "card declined",
	RefusalFraudSuspected:    "fraud suspected",
	RefusalLimitExceeded:     "limit exceeded",
}

func (r Refusal) String() string {
	if s, ok := refusalText[r]; ok {
		return s
	}
	return refusalText[RefusalUnknown]
}

type ChargeRequest struct {
	CheckoutID string
	Amount     decimal.Decimal
	Currency   string
	CardLast4  string
}

type ChargeResult struct {
	Status        ChargeStatus
	TransactionID string
	Refusal       Refusal
	// Reason is set when the refusal does not map to a known Refusal.
	Reason string
}

// DeclineReason is a human readable explanation of a failed charge.
func (r ChargeResult) DeclineReason() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Refusal.String()
}

// Gateway charges and refunds payments. Charge returns an error only when
// the outcome is unknown (for example the context was cancelled); a declined
// card is a result with ChargeStatusFailed.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, transactionID string) error
}
