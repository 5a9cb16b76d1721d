package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"pear/internal/models"
	"pear/internal/repositories"
	"pear/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *capturingPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type orderFixture struct {
	service   *services.OrderService
	products  *repositories.MockProductRepository
	orders    *repositories.MemoryOrderRepository
	publisher *capturingPublisher
	x1        models.Product
}

func newOrderFixture(t *testing.T, opts ...services.EngineOption) *orderFixture {
	t.Helper()
	products := repositories.NewMockProductRepository()
	x1 := phone("", "Quantum X1", 999, 750)
	require.NoError(t, products.Create(&x1))

	orders := repositories.NewMemoryOrderRepository()
	publisher := &capturingPublisher{}
	opts = append([]services.EngineOption{services.WithDelays(time.Millisecond, 0, time.Millisecond)}, opts...)
	engine := services.NewStatusEngine(services.NewLocalMessageProvider(0), opts...)

	service := services.NewOrderService(orders, products, engine, publisher, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = service.Shutdown(ctx)
	})
	return &orderFixture{service: service, products: products, orders: orders, publisher: publisher, x1: x1}
}

func TestOrderService_SessionDefaults(t *testing.T) {
	f := newOrderFixture(t)

	view := f.service.CreateSession()

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, models.OrderModeRetail, view.Mode)
	assert.Equal(t, models.DeliveryStandard, view.DeliveryOption)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())

	_, err := f.service.Session("missing")
	assert.ErrorIs(t, err, services.ErrSessionNotFound)
}

func TestOrderService_CartAndModeSwitch(t *testing.T) {
	f := newOrderFixture(t)
	sid := f.service.CreateSession().ID

	view, err := f.service.AddToCart(sid, f.x1.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "999", view.Lines[0].UnitPrice.String())
	assert.Equal(t, "1998", view.Total.String())

	view, err = f.service.SetMode(sid, models.OrderModeWholesale)
	require.NoError(t, err)
	assert.Equal(t, "750", view.Lines[0].UnitPrice.String())
	assert.Equal(t, "1500", view.Lines[0].LineTotal.String())
	assert.Equal(t, "1500", view.Total.String())
	assert.Equal(t, 2, view.Lines[0].Quantity)

	_, err = f.service.SetMode(sid, "Bulk")
	assert.ErrorIs(t, err, services.ErrInvalidMode)

	_, err = f.service.AddToCart(sid, "missing", 1)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = f.service.AddToCart(sid, f.x1.ID, 0)
	assert.ErrorIs(t, err, services.ErrInvalidQuantity)

	view, err = f.service.SetQuantity(sid, f.x1.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestOrderService_PlaceOrderRejectsEmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	sid := f.service.CreateSession().ID

	order, err := f.service.PlaceOrder(context.Background(), sid)

	assert.Nil(t, order)
	assert.ErrorIs(t, err, services.ErrEmptyCart)
	assert.Empty(t, f.publisher.types())

	_, err = f.service.OrderStatus(sid)
	assert.ErrorIs(t, err, services.ErrNoActiveOrder)
}

func TestOrderService_PlaceOrderRunsToDelivered(t *testing.T) {
	f := newOrderFixture(t)
	sid := f.service.CreateSession().ID
	_, err := f.service.AddToCart(sid, f.x1.ID, 2)
	require.NoError(t, err)
	_, err = f.service.SetDeliveryOption(sid, models.DeliveryPickup)
	require.NoError(t, err)

	order, err := f.service.PlaceOrder(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "1998", order.TotalPrice.String())
	assert.Equal(t, models.DeliveryPickup, order.DeliveryOption)

	assert.Eventually(t, func() bool {
		tracking, err := f.service.OrderStatus(sid)
		return err == nil && tracking.Completed
	}, 2*time.Second, 5*time.Millisecond)

	tracking, err := f.service.OrderStatus(sid)
	require.NoError(t, err)
	require.Len(t, tracking.Updates, 5)
	for i, u := range tracking.Updates {
		assert.Equal(t, models.OrderStatus(i), u.Status)
	}
	assert.Equal(t, services.PlacedMessage(order.ID), tracking.Updates[0].Message)
	assert.Equal(t, models.StatusDelivered, tracking.Current)

	assert.Eventually(t, func() bool { return len(f.publisher.types()) == 5 }, time.Second, 5*time.Millisecond)
	types := f.publisher.types()
	assert.Equal(t, models.EventOrderCreated, types[0])
	for _, typ := range types[1:] {
		assert.Equal(t, models.EventOrderStatusUpdated, typ)
	}
}

func TestOrderService_ActiveOrderFreezesCart(t *testing.T) {
	block := func(ctx context.Context, d time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}
	f := newOrderFixture(t, services.WithSleeper(block))
	sid := f.service.CreateSession().ID
	_, err := f.service.AddToCart(sid, f.x1.ID, 1)
	require.NoError(t, err)

	order, err := f.service.PlaceOrder(context.Background(), sid)
	require.NoError(t, err)

	_, err = f.service.AddToCart(sid, f.x1.ID, 1)
	assert.ErrorIs(t, err, services.ErrOrderInProgress)
	_, err = f.service.PlaceOrder(context.Background(), sid)
	assert.ErrorIs(t, err, services.ErrOrderInProgress)
	_, err = f.service.StartNewOrder(sid)
	assert.ErrorIs(t, err, services.ErrOrderInProgress)

	tracking, err := f.service.OrderStatus(sid)
	require.NoError(t, err)
	assert.Equal(t, order.ID, tracking.Order.ID)
	assert.Equal(t, models.StatusPlaced, tracking.Current)
	assert.False(t, tracking.Completed)

	// Shutdown cancels the progression.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.service.Shutdown(ctx))
	tracking, err = f.service.OrderStatus(sid)
	require.NoError(t, err)
	assert.Len(t, tracking.Updates, 1)
}

func TestOrderService_StartNewOrderAfterDelivery(t *testing.T) {
	f := newOrderFixture(t)
	sid := f.service.CreateSession().ID
	_, err := f.service.AddToCart(sid, f.x1.ID, 1)
	require.NoError(t, err)

	order, err := f.service.PlaceOrder(context.Background(), sid)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		tracking, err := f.service.OrderStatus(sid)
		return err == nil && tracking.Completed
	}, 2*time.Second, 5*time.Millisecond)

	view, err := f.service.StartNewOrder(sid)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Empty(t, view.ActiveOrderID)

	_, err = f.orders.GetByID(order.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = f.service.OrderStatus(sid)
	assert.ErrorIs(t, err, services.ErrNoActiveOrder)

	// The session can shop again.
	_, err = f.service.AddToCart(sid, f.x1.ID, 3)
	require.NoError(t, err)
	second, err := f.service.PlaceOrder(context.Background(), sid)
	require.NoError(t, err)
	assert.NotEqual(t, order.ID, second.ID)
	assert.Equal(t, "2997", second.TotalPrice.String())
}

// stalledPublisher blocks every publish until its context ends.
type stalledPublisher struct {
	mu        sync.Mutex
	attempts  int
	cancelled int
}

func (p *stalledPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	p.attempts++
	p.mu.Unlock()

	<-ctx.Done()

	p.mu.Lock()
	p.cancelled++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *stalledPublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, p.cancelled
}

func TestOrderService_SlowBrokerDoesNotDelayProgression(t *testing.T) {
	products := repositories.NewMockProductRepository()
	x1 := phone("", "Quantum X1", 999, 750)
	require.NoError(t, products.Create(&x1))
	engine := services.NewStatusEngine(services.NewLocalMessageProvider(0),
		services.WithDelays(time.Millisecond, 0, time.Millisecond))
	publisher := &stalledPublisher{}
	service := services.NewOrderService(repositories.NewMemoryOrderRepository(), products, engine, publisher, nil)

	sid := service.CreateSession().ID
	_, err := service.AddToCart(sid, x1.ID, 1)
	require.NoError(t, err)
	_, err = service.PlaceOrder(context.Background(), sid)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		tracking, err := service.OrderStatus(sid)
		return err == nil && tracking.Completed
	}, time.Second, 5*time.Millisecond)

	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, service.Shutdown(ctx))
	assert.Less(t, time.Since(started), time.Second)

	attempts, cancelled := publisher.counts()
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, cancelled)
}
