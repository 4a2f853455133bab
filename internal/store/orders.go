package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	log "github.com/sirupsen/logrus"
)

type ordersState struct {
	Orders []domain.Order `json:"orders"`
}

// Orders is the append-only order history of a client. Orders are never
// removed or reordered; only their status changes after they are added.
type Orders struct {
	mu      sync.RWMutex
	orders  []domain.Order
	byID    map[string]int
	byKey   map[string]int
	persist *Persister[ordersState]
}

func LoadOrders(ctx context.Context, repo repository.RecordRepository, name string) (*Orders, error) {
	p := NewPersister[ordersState](repo, name)
	state, _, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}

	o := &Orders{
		byID:    make(map[string]int, len(state.Orders)),
		byKey:   make(map[string]int, len(state.Orders)),
		persist: p,
	}
	for _, order := range state.Orders {
		o.index(order, len(o.orders))
		o.orders = append(o.orders, order)
	}
	return o, nil
}

func (o *Orders) index(order domain.Order, pos int) {
	o.byID[order.ID] = pos
	if order.IdempotencyKey != "" {
		o.byKey[order.IdempotencyKey] = pos
	}
}

// AddOrder appends order to the history. An id that is already present is
// rejected with ErrDuplicateOrder, a repeated idempotency key with
// ErrDuplicateCheckout.
func (o *Orders) AddOrder(ctx context.Context, order domain.Order) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.byID[order.ID]; exists {
		log.WithContext(ctx).WithField("order_id", order.ID).Error("rejected order with duplicate id")
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}
	if _, exists := o.byKey[order.IdempotencyKey]; exists && order.IdempotencyKey != "" {
		return fmt.Errorf("%w: %s", ErrDuplicateCheckout, order.IdempotencyKey)
	}

	next := make([]domain.Order, len(o.orders), len(o.orders)+1)
	copy(next, o.orders)
	next = append(next, order.Clone())
	if err := o.persist.Save(ctx, ordersState{Orders: next}); err != nil {
		return err
	}

	o.orders = next
	o.index(order, len(next)-1)
	return nil
}

// GetOrdersByUserID returns the orders of userID in the order they were placed.
func (o *Orders) GetOrdersByUserID(userID string) []domain.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range o.orders {
		if order.UserID == userID {
			result = append(result, order.Clone())
		}
	}
	return result
}

func (o *Orders) GetOrder(id string) (domain.Order, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	i, ok := o.byID[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return o.orders[i].Clone(), nil
}

func (o *Orders) FindByIdempotencyKey(key string) (domain.Order, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	i, ok := o.byKey[key]
	if !ok || key == "" {
		return domain.Order{}, false
	}
	return o.orders[i].Clone(), true
}

// UpdateStatus moves an order to status if the transition is allowed.
func (o *Orders) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	i, ok := o.byID[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	current := o.orders[i].Status
	if !current.CanTransitionTo(status) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, status)
	}

	next := make([]domain.Order, len(o.orders))
	copy(next, o.orders)
	next[i].Status = status
	next[i].UpdatedAt = time.Now().UTC()
	if err := o.persist.Save(ctx, ordersState{Orders: next}); err != nil {
		return domain.Order{}, err
	}

	o.orders = next
	return next[i].Clone(), nil
}

func (o *Orders) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.orders)
}
