package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	cart      *store.Cart
	session   *store.Session
	orders    *store.Orders
	gateway   *MockGateway
	publisher *MockPublisher
}

func setup(t *testing.T, repo repository.RecordRepository) *fixture {
	t.Helper()
	if repo == nil {
		repo = repository.NewMemoryRepository()
	}
	ctx := context.Background()
	cart, err := store.LoadCart(ctx, repo, store.CartRecord("c"))
	require.NoError(t, err)
	session, err := store.LoadSession(ctx, repo, store.SessionRecord("c"))
	require.NoError(t, err)
	orders, err := store.LoadOrders(ctx, repo, store.OrdersRecord("c"))
	require.NoError(t, err)

	f := &fixture{
		cart:      cart,
		session:   session,
		orders:    orders,
		gateway:   &MockGateway{Status: payment.ChargeStatusSuccess},
		publisher: &MockPublisher{},
	}
	f.svc = NewService(Deps{
		Cart:           cart,
		Session:        session,
		Orders:         orders,
		Gateway:        f.gateway,
		Publisher:      f.publisher,
		PaymentTimeout: time.Second,
		Clock:          func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.cart.AddItem(ctx, domain.Product{ID: 1, Title: "Backpack", Price: decimal.RequireFromString("20.00")}))
	require.NoError(t, f.cart.AddItem(ctx, domain.Product{ID: 1, Title: "Backpack", Price: decimal.RequireFromString("20.00")}))
	require.NoError(t, f.cart.AddItem(ctx, domain.Product{ID: 2, Title: "T-Shirt", Price: decimal.RequireFromString("5.50")}))
}

func TestPlaceOrder_Success(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	require.NoError(t, f.session.Login(context.Background(), domain.UserIdentity{ID: "u-1", Name: "Jane", Email: "jane@example.com"}))
	lines := f.cart.Lines()

	res, err := f.svc.PlaceOrder(context.Background(), Request{IdempotencyKey: "k-1", Form: validForm()})

	require.NoError(t, err)
	order := res.Order
	assert.False(t, res.Replayed)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "u-1", order.UserID)
	assert.Equal(t, "k-1", order.IdempotencyKey)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, fixedNow, order.CreatedAt)
	assert.Equal(t, lines, order.Items)
	// 45.50 subtotal: shipping applies, 3.64 tax
	assert.True(t, decimal.RequireFromString("45.50").Equal(order.Subtotal))
	assert.True(t, decimal.RequireFromString("9.99").Equal(order.Shipping))
	assert.True(t, decimal.RequireFromString("3.64").Equal(order.Tax))
	assert.True(t, decimal.RequireFromString("59.13").Equal(order.Total), "total = %s", order.Total)
	assert.Equal(t, "Springfield", order.ShippingAddress.City)

	assert.True(t, f.cart.IsEmpty())
	assert.Equal(t, []domain.Order{order}, f.orders.GetOrdersByUserID("u-1"))
	assert.Equal(t, domain.CheckoutStatusComplete, f.svc.State().Status)
	require.Len(t, f.publisher.Published, 1)
	assert.Equal(t, order.ID, f.publisher.Published[0].ID)
}

func TestPlaceOrder_LaterCartChangesLeaveOrderIntact(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	ctx := context.Background()
	before := f.cart.Lines()

	res, err := f.svc.PlaceOrder(ctx, Request{Form: validForm()})
	require.NoError(t, err)

	require.NoError(t, f.cart.AddItem(ctx, domain.Product{ID: 1, Title: "Backpack", Price: decimal.RequireFromString("20.00")}))
	require.NoError(t, f.cart.AddItem(ctx, domain.Product{ID: 3, Title: "Ring", Price: decimal.RequireFromString("7.00")}))
	require.NoError(t, f.cart.UpdateQuantity(ctx, 1, 7))

	stored, err := f.orders.GetOrder(res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, before, stored.Items)
	assert.True(t, decimal.RequireFromString("59.13").Equal(stored.Total))
}

func TestPlaceOrder_FreeShippingOverThreshold(t *testing.T) {
	f := setup(t, nil)
	require.NoError(t, f.cart.AddItem(context.Background(), domain.Product{ID: 1, Price: decimal.RequireFromString("60")}))

	res, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	require.NoError(t, err)
	assert.True(t, res.Order.Shipping.IsZero())
	assert.True(t, decimal.RequireFromString("64.80").Equal(res.Order.Total))
}

func TestPlaceOrder_GuestWhenNotLoggedIn(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)

	res, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	require.NoError(t, err)
	assert.Equal(t, domain.GuestUserID, res.Order.UserID)
	assert.Len(t, f.orders.GetOrdersByUserID(domain.GuestUserID), 1)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := setup(t, nil)

	res, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, res)
	assert.Equal(t, 0, f.gateway.chargeCount())
	assert.Equal(t, domain.CheckoutStatusIdle, f.svc.State().Status)
}

func TestPlaceOrder_InvalidForm(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	form := validForm()
	form.CVV = "1"
	form.Email = "nope"

	_, err := f.svc.PlaceOrder(context.Background(), Request{Form: form})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "cvv")
	assert.Contains(t, verr.Fields, "email")
	assert.Equal(t, 0, f.gateway.chargeCount())
	assert.Equal(t, 3, f.cart.TotalItems())
	assert.Equal(t, 0, f.orders.Len())
	assert.Equal(t, domain.CheckoutStatusIdle, f.svc.State().Status)
}

func TestPlaceOrder_Declined(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	f.gateway.Status = payment.ChargeStatusFailed
	f.gateway.Refusal = payment.RefusalInsufficientFunds
	revision := f.cart.Revision()

	_, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	assert.ErrorIs(t, err, ErrPaymentDeclined)
	var declined *DeclinedError
	require.True(t, errors.As(err, &declined))
	assert.Equal(t, "insufficient funds", declined.Reason)

	assert.Equal(t, revision, f.cart.Revision())
	assert.Equal(t, 0, f.orders.Len())
	state := f.svc.State()
	assert.Equal(t, domain.CheckoutStatusIdle, state.Status)
	assert.ErrorIs(t, state.LastError, ErrPaymentDeclined)
	assert.Empty(t, f.publisher.Published)
}

func TestPlaceOrder_RetryAfterDecline(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	f.gateway.Status = payment.ChargeStatusFailed

	_, err := f.svc.PlaceOrder(context.Background(), Request{IdempotencyKey: "k", Form: validForm()})
	require.ErrorIs(t, err, ErrPaymentDeclined)

	f.gateway.Status = payment.ChargeStatusSuccess
	res, err := f.svc.PlaceOrder(context.Background(), Request{IdempotencyKey: "k", Form: validForm()})

	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 1, f.orders.Len())
}

func TestPlaceOrder_ReplaySameKey(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)

	first, err := f.svc.PlaceOrder(context.Background(), Request{IdempotencyKey: "k-1", Form: validForm()})
	require.NoError(t, err)
	// the buyer keeps shopping before the retry arrives
	require.NoError(t, f.cart.AddItem(context.Background(), domain.Product{ID: 9, Price: decimal.NewFromInt(1)}))

	second, err := f.svc.PlaceOrder(context.Background(), Request{IdempotencyKey: "k-1", Form: validForm()})

	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, f.orders.Len())
	assert.Equal(t, 1, f.gateway.chargeCount())
	assert.Equal(t, 1, f.cart.TotalItems(), "new cart must survive the replay")
}

func TestPlaceOrder_ReplayFinishesInterruptedClear(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	ctx := context.Background()
	// an order recorded from the current cart whose clear never happened
	require.NoError(t, f.orders.AddOrder(ctx, domain.Order{
		ID:             "o-1",
		IdempotencyKey: "k-1",
		UserID:         domain.GuestUserID,
		Items:          f.cart.Lines(),
		Status:         domain.OrderStatusProcessing,
		CartRevision:   f.cart.Revision(),
	}))

	res, err := f.svc.PlaceOrder(ctx, Request{IdempotencyKey: "k-1", Form: validForm()})

	require.NoError(t, err)
	assert.Equal(t, "o-1", res.Order.ID)
	assert.True(t, f.cart.IsEmpty())
	assert.Equal(t, 0, f.gateway.chargeCount())
}

func TestPlaceOrder_CartChangedDuringPayment(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	f.gateway.OnCharge = func(context.Context) {
		require.NoError(t, f.cart.AddItem(context.Background(), domain.Product{ID: 3, Price: decimal.NewFromInt(2)}))
	}

	_, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	assert.ErrorIs(t, err, ErrCartChanged)
	assert.Equal(t, 1, f.gateway.refundCount())
	assert.Equal(t, 0, f.orders.Len())
	assert.Equal(t, 4, f.cart.TotalItems())
	assert.Equal(t, domain.CheckoutStatusIdle, f.svc.State().Status)
}

func TestPlaceOrder_CancelledDuringPayment(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.gateway.OnCharge = func(context.Context) { cancel() }

	_, err := f.svc.PlaceOrder(ctx, Request{Form: validForm()})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.orders.Len())
	assert.Equal(t, 3, f.cart.TotalItems())
	assert.Equal(t, domain.CheckoutStatusIdle, f.svc.State().Status)
}

func TestPlaceOrder_PaymentTimeout(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	f.svc.paymentTimeout = 10 * time.Millisecond
	f.gateway.OnCharge = func(ctx context.Context) { <-ctx.Done() }

	_, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.CheckoutStatusIdle, f.svc.State().Status)
}

func TestPlaceOrder_SecondAttemptWhileProcessing(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gateway.OnCharge = func(context.Context) {
		close(entered)
		<-release
	}

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})
	}()
	<-entered

	assert.Equal(t, domain.CheckoutStatusProcessing, f.svc.State().Status)
	_, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 1, f.orders.Len())
}

func TestPlaceOrder_OrderSaveFailsRefunds(t *testing.T) {
	repo := newFailingRepository()
	f := setup(t, repo)
	f.fillCart(t)
	repo.setFailPut(store.OrdersRecord("c"), true)

	_, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.Equal(t, 1, f.gateway.refundCount())
	assert.Equal(t, 3, f.cart.TotalItems())
	assert.Equal(t, 0, f.orders.Len())
}

func TestPlaceOrder_CartClearFailsKeepsOrder(t *testing.T) {
	repo := newFailingRepository()
	f := setup(t, repo)
	f.fillCart(t)
	repo.setFailPut(store.CartRecord("c"), true)

	res, err := f.svc.PlaceOrder(context.Background(), Request{IdempotencyKey: "k-1", Form: validForm()})

	require.NoError(t, err)
	assert.Equal(t, 0, f.gateway.refundCount())
	assert.Equal(t, 1, f.orders.Len())
	assert.False(t, f.cart.IsEmpty())

	// once storage recovers a retry clears the cart without charging again
	repo.setFailPut(store.CartRecord("c"), false)
	replay, err := f.svc.PlaceOrder(context.Background(), Request{IdempotencyKey: "k-1", Form: validForm()})
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, replay.Order.ID)
	assert.True(t, f.cart.IsEmpty())
	assert.Equal(t, 1, f.gateway.chargeCount())
}

func TestPlaceOrder_PublishFailureDoesNotFailCheckout(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t)
	f.publisher.Err = errors.New("broker down")

	res, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})

	require.NoError(t, err)
	assert.NotEmpty(t, res.Order.ID)
	assert.Equal(t, 1, f.orders.Len())
}

func TestPlaceOrder_GeneratesDistinctIDs(t *testing.T) {
	f := setup(t, nil)
	seen := map[string]bool{}

	for i := 0; i < 3; i++ {
		f.fillCart(t)
		res, err := f.svc.PlaceOrder(context.Background(), Request{Form: validForm()})
		require.NoError(t, err)
		assert.False(t, seen[res.Order.ID])
		seen[res.Order.ID] = true
	}
	assert.Equal(t, 3, f.orders.Len())
}

func TestDefaults(t *testing.T) {
	f := setup(t, nil)
	assert.Equal(t, FormDefaults{}, f.svc.Defaults())

	require.NoError(t, f.session.Login(context.Background(), domain.UserIdentity{ID: "u-1", Name: "Jane", Email: "jane@example.com"}))

	assert.Equal(t, FormDefaults{Email: "jane@example.com", FullName: "Jane"}, f.svc.Defaults())
}
