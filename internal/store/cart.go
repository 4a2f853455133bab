package store

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

type cartState struct {
	Lines    []domain.CartLine `json:"lines"`
	Revision uint64            `json:"revision"`
}

func (s cartState) clone() cartState {
	return cartState{Lines: domain.CloneLines(s.Lines), Revision: s.Revision}
}

func (s cartState) find(productID int64) int {
	for i, l := range s.Lines {
		if l.ID == productID {
			return i
		}
	}
	return -1
}

// Cart is one client's shopping cart. There is at most one line per product
// and every line has a quantity of at least 1. Every committed change bumps
// the revision.
type Cart struct {
	mu      sync.RWMutex
	state   cartState
	persist *Persister[cartState]
}

// LoadCart restores the cart stored under name, or starts an empty one.
func LoadCart(ctx context.Context, repo repository.RecordRepository, name string) (*Cart, error) {
	p := NewPersister[cartState](repo, name)
	state, _, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Cart{state: state, persist: p}, nil
}

// AddItem adds one unit of product, creating the line if needed. A line
// already at domain.MaxLineQuantity is left alone and ErrQuantityLimit returned.
func (c *Cart) AddItem(ctx context.Context, product domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.clone()
	if i := next.find(product.ID); i >= 0 {
		if next.Lines[i].Quantity >= domain.MaxLineQuantity {
			return ErrQuantityLimit
		}
		next.Lines[i].Quantity++
	} else {
		next.Lines = append(next.Lines, domain.CartLine{Product: product, Quantity: 1})
	}
	return c.commit(ctx, next)
}

// RemoveItem deletes the line for productID. Removing an absent product is a no-op.
func (c *Cart) RemoveItem(ctx context.Context, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(ctx, productID)
}

func (c *Cart) remove(ctx context.Context, productID int64) error {
	i := c.state.find(productID)
	if i < 0 {
		return nil
	}
	next := c.state.clone()
	next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)
	return c.commit(ctx, next)
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line; an absent product is a no-op. Quantities above
// domain.MaxLineQuantity are rejected with ErrQuantityLimit.
func (c *Cart) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		return c.remove(ctx, productID)
	}
	if quantity > domain.MaxLineQuantity {
		return ErrQuantityLimit
	}
	i := c.state.find(productID)
	if i < 0 || c.state.Lines[i].Quantity == quantity {
		return nil
	}
	next := c.state.clone()
	next.Lines[i].Quantity = quantity
	return c.commit(ctx, next)
}

func (c *Cart) ClearCart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.state.Lines) == 0 {
		return nil
	}
	return c.commit(ctx, cartState{})
}

// CommitCheckout runs place and then empties the cart, all under the cart's
// write lock. It fails with ErrCartChanged when the cart is no longer at the
// given revision, in which case place is not called.
func (c *Cart) CommitCheckout(ctx context.Context, revision uint64, place func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Revision != revision {
		return ErrCartChanged
	}
	if err := place(ctx); err != nil {
		return err
	}
	return c.commit(ctx, cartState{})
}

// ClearIfRevision empties the cart only if it is still at revision.
func (c *Cart) ClearIfRevision(ctx context.Context, revision uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Revision != revision || len(c.state.Lines) == 0 {
		return nil
	}
	return c.commit(ctx, cartState{})
}

// commit persists next and then makes it current. On a failed save the
// current state is kept. Caller holds the write lock.
func (c *Cart) commit(ctx context.Context, next cartState) error {
	next.Revision = c.state.Revision + 1
	if err := c.persist.Save(ctx, next); err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Cart) Lines() []domain.CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.CloneLines(c.state.Lines)
}

func (c *Cart) Snapshot() domain.CartSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.CartSnapshot{
		Lines:    domain.CloneLines(c.state.Lines),
		Revision: c.state.Revision,
	}
}

func (c *Cart) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Revision
}

// TotalPrice is the sum of price * quantity over all lines.
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.SumLines(c.state.Lines)
}

func (c *Cart) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, l := range c.state.Lines {
		total += l.Quantity
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.state.Lines) == 0
}
