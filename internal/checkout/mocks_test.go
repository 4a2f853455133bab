package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
)

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	mu       sync.Mutex
	Status   payment.ChargeStatus
	Refusal  payment.Refusal
	Err      error
	OnCharge func(ctx context.Context) // runs while the charge is "in flight"
	Charges  int
	Refunds  []string
}

func (m *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	m.mu.Lock()
	m.Charges++
	n := m.Charges
	m.mu.Unlock()

	if m.OnCharge != nil {
		m.OnCharge(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &payment.ChargeResult{
		Status:        m.Status,
		TransactionID: fmt.Sprintf("TXN-%d-%s", n, req.CheckoutID),
		Refusal:       m.Refusal,
	}, nil
}

func (m *MockGateway) Refund(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refunds = append(m.Refunds, transactionID)
	return nil
}

func (m *MockGateway) chargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Charges
}

func (m *MockGateway) refundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Refunds)
}

// MockPublisher records published orders
type MockPublisher struct {
	mu        sync.Mutex
	Err       error
	Published []domain.Order
}

func (m *MockPublisher) PublishOrderPlaced(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Published = append(m.Published, order)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

var errWriteFailed = errors.New("write failed")

// failingRepository fails writes of the records listed in failPut.
type failingRepository struct {
	*repository.MemoryRepository
	mu      sync.Mutex
	failPut map[string]bool
}

func newFailingRepository() *failingRepository {
	return &failingRepository{MemoryRepository: repository.NewMemoryRepository(), failPut: map[string]bool{}}
}

func (f *failingRepository) Put(ctx context.Context, name string, value []byte) error {
	f.mu.Lock()
	fail := f.failPut[name]
	f.mu.Unlock()
	if fail {
		return errWriteFailed
	}
	return f.MemoryRepository.Put(ctx, name, value)
}

func (f *failingRepository) setFailPut(name string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut[name] = fail
}
