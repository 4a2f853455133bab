// Package shop keeps the stores of every client that has talked to the
// service. A client's stores are loaded from the repository on first use and
// stay in memory afterwards.
package shop

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidClientID = errors.New("invalid client id")

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

const loadTimeout = 10 * time.Second

// Shop is everything one client owns.
type Shop struct {
	ClientID string
	Cart     *store.Cart
	Session  *store.Session
	Orders   *store.Orders
	Checkout *checkout.Service
}

type Config struct {
	Repository     repository.RecordRepository
	Gateway        payment.Gateway
	Publisher      events.Publisher
	PaymentTimeout time.Duration
}

type Registry struct {
	cfg Config

	mu    sync.RWMutex
	shops map[string]*Shop
	sfg   singleflight.Group // one load per client id
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	return &Registry{cfg: cfg, shops: make(map[string]*Shop)}
}

// Get returns the shop of clientID, loading it on first use.
func (r *Registry) Get(ctx context.Context, clientID string) (*Shop, error) {
	if !clientIDPattern.MatchString(clientID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}

	r.mu.RLock()
	shop, ok := r.shops[clientID]
	r.mu.RUnlock()
	if ok {
		return shop, nil
	}

	// the load is shared by every request for clientID, so no single
	// request's cancellation may abort it
	ch := r.sfg.DoChan(clientID, func() (interface{}, error) {
		r.mu.RLock()
		shop, ok := r.shops[clientID]
		r.mu.RUnlock()
		if ok {
			return shop, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		shop, err := r.load(loadCtx, clientID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.shops[clientID] = shop
		r.mu.Unlock()
		return shop, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Shop), nil
	}
}

func (r *Registry) load(ctx context.Context, clientID string) (*Shop, error) {
	repo := r.cfg.Repository

	cart, err := store.LoadCart(ctx, repo, store.CartRecord(clientID))
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	session, err := store.LoadSession(ctx, repo, store.SessionRecord(clientID))
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	orders, err := store.LoadOrders(ctx, repo, store.OrdersRecord(clientID))
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"client_id":  clientID,
		"cart_items": cart.TotalItems(),
		"orders":     orders.Len(),
	}).Debug("client state loaded")

	return &Shop{
		ClientID: clientID,
		Cart:     cart,
		Session:  session,
		Orders:   orders,
		Checkout: checkout.NewService(checkout.Deps{
			Cart:           cart,
			Session:        session,
			Orders:         orders,
			Gateway:        r.cfg.Gateway,
			Publisher:      r.cfg.Publisher,
			PaymentTimeout: r.cfg.PaymentTimeout,
		}),
	}, nil
}

// Len is the number of clients currently in memory.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shops)
}
