// Package checkout turns a client's cart, identity and checkout form into an
// order. An attempt moves the client's checkout from IDLE to PROCESSING and
// ends in COMPLETE, or back in IDLE when it fails.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPaymentTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
)

type Deps struct {
	Cart      *store.Cart
	Session   *store.Session
	Orders    *store.Orders
	Gateway   payment.Gateway
	Publisher events.Publisher
	// PaymentTimeout bounds the wait for the gateway; zero means 10s.
	PaymentTimeout time.Duration
	Clock          func() time.Time
}

type Request struct {
	// IdempotencyKey identifies the attempt across retries. A key is
	// generated when empty, which makes the attempt unrepeatable.
	IdempotencyKey string
	Form           Form
}

type Result struct {
	Order domain.Order
	// Replayed is set when the order was placed by an earlier attempt with
	// the same idempotency key.
	Replayed bool
}

// State is the checkout status of a client and the error that ended the
// last failed attempt.
type State struct {
	Status    domain.CheckoutStatus
	LastError error
}

type FormDefaults struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type Service struct {
	cart           *store.Cart
	session        *store.Session
	orders         *store.Orders
	gateway        payment.Gateway
	publisher      events.Publisher
	paymentTimeout time.Duration
	now            func() time.Time

	mu      sync.Mutex
	status  domain.CheckoutStatus
	lastErr error
}

func NewService(d Deps) *Service {
	s := &Service{
		cart:           d.Cart,
		session:        d.Session,
		orders:         d.Orders,
		gateway:        d.Gateway,
		publisher:      d.Publisher,
		paymentTimeout: d.PaymentTimeout,
		now:            d.Clock,
		status:         domain.CheckoutStatusIdle,
	}
	if s.paymentTimeout <= 0 {
		s.paymentTimeout = defaultPaymentTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	return s
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Status: s.status, LastError: s.lastErr}
}

// Defaults pre-fills the checkout form from the logged in identity.
func (s *Service) Defaults() FormDefaults {
	user, ok := s.session.Current()
	if !ok {
		return FormDefaults{}
	}
	return FormDefaults{Email: user.Email, FullName: user.Name}
}

// PlaceOrder charges the buyer for the current cart and records the order.
// On success the cart is empty and the order is in the history; on any
// failure neither the cart nor the history has changed.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	entry := log.WithContext(ctx).WithField("idempotency_key", key)

	if existing, ok := s.orders.FindByIdempotencyKey(key); ok {
		entry.WithField("order_id", existing.ID).Info("duplicate checkout request, returning existing order")
		// a crash between recording the order and clearing the cart leaves
		// the cart at the revision the order was placed from
		if err := s.cart.ClearIfRevision(ctx, existing.CartRevision); err != nil {
			entry.WithError(err).Warn("failed to finish clearing cart on replay")
		}
		metrics.RecordCheckout(metrics.ResultReplayed)
		return &Result{Order: existing, Replayed: true}, nil
	}

	snapshot := s.cart.Snapshot()
	if len(snapshot.Lines) == 0 {
		metrics.RecordCheckout(metrics.ResultEmptyCart)
		return nil, ErrEmptyCart
	}
	if err := req.Form.Validate(); err != nil {
		metrics.RecordCheckout(metrics.ResultInvalid)
		return nil, err
	}

	if err := s.transition(domain.CheckoutStatusProcessing, nil); err != nil {
		return nil, err
	}

	order, err := s.process(ctx, key, snapshot, req.Form)
	if err != nil {
		s.fail(err)
		metrics.RecordCheckout(resultOf(err))
		entry.WithError(err).Warn("checkout failed")
		return nil, err
	}

	_ = s.transition(domain.CheckoutStatusComplete, nil)
	metrics.RecordCheckout(metrics.ResultPlaced)
	metrics.RecordRevenue(order.Currency, order.Total.InexactFloat64())
	entry.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.Total.StringFixed(2),
	}).Info("order placed")
	return &Result{Order: *order}, nil
}

func (s *Service) process(ctx context.Context, key string, snapshot domain.CartSnapshot, form Form) (*domain.Order, error) {
	pricing := domain.PriceFor(snapshot.Subtotal())
	checkoutID := uuid.NewString()
	owner := s.session.OwnerID()

	charge, err := s.charge(ctx, payment.ChargeRequest{
		CheckoutID: checkoutID,
		Amount:     pricing.Total,
		Currency:   domain.Currency,
		CardLast4:  form.CardLast4(),
	})
	if err != nil {
		return nil, err
	}

	// the buyer has paid: the rest must not be abandoned halfway
	ctx = context.WithoutCancel(ctx)

	now := s.now().UTC()
	order := domain.Order{
		ID:             uuid.NewString(),
		CheckoutID:     checkoutID,
		IdempotencyKey: key,
		UserID:         owner,
		Items:          snapshot.Lines,
		Subtotal:       pricing.Subtotal,
		Shipping:       pricing.Shipping,
		Tax:            pricing.Tax,
		Total:          pricing.Total,
		Currency:       domain.Currency,
		Status:         domain.OrderStatusProcessing,
		ShippingAddress: domain.ShippingAddress{
			FullName:   form.FullName,
			Address:    form.Address,
			City:       form.City,
			PostalCode: form.PostalCode,
			Country:    form.Country,
		},
		CartRevision: snapshot.Revision,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.cart.CommitCheckout(ctx, snapshot.Revision, func(ctx context.Context) error {
		return s.orders.AddOrder(ctx, order)
	})
	if err != nil {
		if _, placed := s.orders.FindByIdempotencyKey(key); placed {
			// recorded but the cart could not be cleared; a replay finishes it
			log.WithContext(ctx).WithError(err).WithField("order_id", order.ID).Error("order placed but cart not cleared")
		} else {
			s.refund(ctx, charge.TransactionID)
			return nil, err
		}
	}

	s.publish(ctx, order)
	return &order, nil
}

func (s *Service) charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	payCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.gateway.Charge(payCtx, req)
	metrics.RecordPayment(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("charge payment: %w", err)
	}
	if result.Status != payment.ChargeStatusSuccess {
		return nil, &DeclinedError{Reason: result.DeclineReason()}
	}
	return result, nil
}

func (s *Service) refund(ctx context.Context, transactionID string) {
	if err := s.gateway.Refund(ctx, transactionID); err != nil {
		log.WithContext(ctx).WithError(err).WithField("transaction_id", transactionID).Error("refund failed")
	}
}

func (s *Service) publish(ctx context.Context, order domain.Order) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishOrderPlaced(ctx, order); err != nil {
		metrics.RecordPublishFailure()
		log.WithContext(ctx).WithError(err).WithField("order_id", order.ID).Error("failed to publish order event")
	}
}

func (s *Service) transition(next domain.CheckoutStatus, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next == domain.CheckoutStatusProcessing && s.status == domain.CheckoutStatusProcessing {
		return ErrCheckoutInProgress
	}
	if !domain.CanTransitionTo(s.status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.status, next)
	}
	s.status = next
	s.lastErr = cause
	return nil
}

func (s *Service) fail(err error) {
	_ = s.transition(domain.CheckoutStatusIdle, err)
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, ErrPaymentDeclined):
		return metrics.ResultDeclined
	case errors.Is(err, ErrCartChanged):
		return metrics.ResultCartChanged
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCancelled
	default:
		return metrics.ResultError
	}
}
