package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// StatusSource decides the outcome of a simulated charge.
type StatusSource interface {
	GetStatus() (ChargeStatus, Refusal, string)
}

// ApproveAll approves every charge.
type ApproveAll struct{}

func (ApproveAll) GetStatus() (ChargeStatus, Refusal, string) {
	return ChargeStatusSuccess, RefusalUnknown, ""
}

// RandomStatus declines about DeclinePercent out of 100 charges.
type RandomStatus struct {
	DeclinePercent int
}

func (r RandomStatus) GetStatus() (ChargeStatus, Refusal, string) {
	return calcStatus(rand.Intn(100), r.DeclinePercent)
}

// calcStatus maps a roll in [0,100) to an outcome. Rolls below the approval
// threshold succeed; the first rolls above it name a known refusal and the
// rest are declined without one.
func calcStatus(roll, declinePercent int) (ChargeStatus, Refusal, string) {
	approveBelow := 100 - declinePercent
	if roll < approveBelow {
		return ChargeStatusSuccess, RefusalUnknown, ""
	}
	offset := roll - approveBelow
	if offset == 0 || offset > int(RefusalLimitExceeded) {
		return ChargeStatusFailed, RefusalUnknown, "unknown reason"
	}
	return ChargeStatusFailed, Refusal(offset), ""
}

// Simulator is a Gateway that answers after a fixed delay.
type Simulator struct {
	delay  time.Duration
	status StatusSource

	mu       sync.Mutex
	refunded map[string]bool
}

func NewSimulator(delay time.Duration, status StatusSource) *Simulator {
	if status == nil {
		status = ApproveAll{}
	}
	return &Simulator{
		delay:    delay,
		status:   status,
		refunded: make(map[string]bool),
	}
}

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("charge %s: %w", req.CheckoutID, ctx.Err())
	case <-timer.C:
	}

	status, refusal, reason := s.status.GetStatus()
	result := &ChargeResult{
		Status:        status,
		TransactionID: fmt.Sprintf("TXN-%s", uuid.NewString()),
		Refusal:       refusal,
		Reason:        reason,
	}

	entry := log.WithContext(ctx).WithFields(log.Fields{
		"checkout_id":    req.CheckoutID,
		"transaction_id": result.TransactionID,
		"amount":         req.Amount.StringFixed(2),
		"status":         status.String(),
	})
	if status == ChargeStatusFailed {
		entry.WithField("reason", result.DeclineReason()).Info("charge declined")
	} else {
		entry.Info("charge approved")
	}
	return result, nil
}

// Refund always succeeds.
func (s *Simulator) Refund(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	s.refunded[transactionID] = true
	s.mu.Unlock()

	log.WithContext(ctx).WithField("transaction_id", transactionID).Info("charge refunded")
	return nil
}

func (s *Simulator) Refunded(transactionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunded[transactionID]
}
