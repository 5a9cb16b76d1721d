package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pear/internal/models"
	"pear/internal/repositories"
	"pear/pkg/logging"
	"pear/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	publishTimeout = 5 * time.Second
	eventBuffer    = 256
)

// Session is the state of one shopper: cart, pricing mode, delivery choice
// and the active order with its progression.
type Session struct {
	ID string

	mu          sync.Mutex
	cart        *Cart
	mode        models.OrderMode
	delivery    models.DeliveryOption
	order       *models.Order
	progression *Progression
}

// LineView is a cart line priced under the session's mode.
type LineView struct {
	Product   models.Product  `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// SessionView is a read-only snapshot of a session.
type SessionView struct {
	ID             string                `json:"id"`
	Mode           models.OrderMode      `json:"order_mode"`
	DeliveryOption models.DeliveryOption `json:"delivery_option"`
	Lines          []LineView            `json:"lines"`
	Total          decimal.Decimal       `json:"total"`
	ActiveOrderID  string                `json:"active_order_id,omitempty"`
}

// OrderTracking is the order of a session together with its status history.
type OrderTracking struct {
	Order     *models.Order         `json:"order"`
	Updates   []models.StatusUpdate `json:"updates"`
	Current   models.OrderStatus    `json:"current_status"`
	Completed bool                  `json:"completed"`
}

// OrderService handles carts, checkout and order tracking per session.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	factory     *OrderFactory
	engine      *StatusEngine
	publisher   EventPublisher
	metrics     *metrics.OrderMetrics
	tracer      trace.Tracer

	// ctx is the parent of every progression and publish; cancelled by
	// Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// events is drained in order by a single publisher goroutine.
	events        chan models.OrderEvent
	publisherDone chan struct{}

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewOrderService creates a new OrderService. publisher and m may be nil.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, engine *StatusEngine, publisher EventPublisher, m *metrics.OrderMetrics) *OrderService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		factory:     NewOrderFactory(nil),
		engine:      engine,
		publisher:   publisher,
		metrics:     m,
		tracer:      otel.Tracer("pear/services"),
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*Session),

		events:        make(chan models.OrderEvent, eventBuffer),
		publisherDone: make(chan struct{}),
	}
	go s.runPublisher()
	return s
}

// CreateSession opens a new session with an empty Retail cart and standard
// shipping.
func (s *OrderService) CreateSession() *SessionView {
	sess := &Session{
		ID:       uuid.New().String(),
		cart:     NewCart(s.productRepo.GetByID),
		mode:     models.OrderModeRetail,
		delivery: models.DeliveryStandard,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.view()
}

func (s *OrderService) session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// Session returns a snapshot of the session.
func (s *OrderService) Session(id string) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// mutate runs fn on an unlocked-for-shopping session and returns the
// resulting snapshot. Carts are frozen while an order is active.
func (s *OrderService) mutate(id string, fn func(sess *Session) error) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.order != nil {
		return nil, fmt.Errorf("session %s has order %s: %w", id, sess.order.ID, ErrOrderInProgress)
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// AddToCart adds quantity units of the catalog product to the cart.
func (s *OrderService) AddToCart(sessionID, productID string, quantity int) (*SessionView, error) {
	if quantity <= 0 {
		return nil, invalid("quantity", ErrInvalidQuantity)
	}
	return s.mutate(sessionID, func(sess *Session) error {
		product, err := s.productRepo.GetByID(productID)
		if err != nil {
			return err
		}
		return sess.cart.Add(*product, quantity)
	})
}

// SetQuantity replaces the quantity of a line; non-positive removes it.
func (s *OrderService) SetQuantity(sessionID, productID string, quantity int) (*SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) error {
		return sess.cart.SetQuantity(productID, quantity)
	})
}

// ClearCart empties the cart.
func (s *OrderService) ClearCart(sessionID string) (*SessionView, error) {
	return s.mutate(sessionID, func(sess *Session) error {
		sess.cart.Clear()
		return nil
	})
}

// SetMode switches between retail and wholesale pricing. Quantities are
// not touched.
func (s *OrderService) SetMode(sessionID string, mode models.OrderMode) (*SessionView, error) {
	if !mode.Valid() {
		return nil, invalid("order_mode", ErrInvalidMode)
	}
	return s.mutate(sessionID, func(sess *Session) error {
		sess.mode = mode
		return nil
	})
}

// SetDeliveryOption records the delivery choice for the next order.
func (s *OrderService) SetDeliveryOption(sessionID string, option models.DeliveryOption) (*SessionView, error) {
	if !option.Valid() {
		return nil, invalid("delivery_option", ErrInvalidDeliveryOption)
	}
	return s.mutate(sessionID, func(sess *Session) error {
		sess.delivery = option
		return nil
	})
}

// PlaceOrder snapshots the cart into an order, records its Placed update
// and starts the status progression.
func (s *OrderService) PlaceOrder(ctx context.Context, sessionID string) (*models.Order, error) {
	_, span := s.tracer.Start(ctx, "OrderService.PlaceOrder", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.order != nil {
		return nil, fmt.Errorf("session %s has order %s: %w", sessionID, sess.order.ID, ErrOrderInProgress)
	}

	order, err := s.factory.PlaceOrder(sess.cart, sess.mode, sess.delivery)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := s.orderRepo.Create(order, s.engine.PlacedUpdate(order)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	s.metrics.OrderPlaced(string(order.Mode))
	logging.Log(logging.Fields{
		Service:   "orders",
		SessionID: sessionID,
		OrderID:   order.ID,
		Step:      "placed",
		Status:    models.StatusPlaced.String(),
		Message:   fmt.Sprintf("total=%s mode=%s delivery=%s", order.TotalPrice.StringFixed(2), order.Mode, order.DeliveryOption),
	})
	// order.created goes out before any order.status_updated.
	s.enqueue(NewOrderEvent(models.EventOrderCreated, order, nil))

	sess.order = order
	sess.progression = s.engine.Start(s.ctx, order, &trackingSink{service: s, order: order})
	return order, nil
}

// OrderStatus returns the active order of the session and its history.
func (s *OrderService) OrderStatus(sessionID string) (*OrderTracking, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	order := sess.order
	sess.mu.Unlock()

	if order == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNoActiveOrder)
	}
	stored, err := s.orderRepo.GetByID(order.ID)
	if err != nil {
		return nil, err
	}
	updates, err := s.orderRepo.Updates(order.ID)
	if err != nil {
		return nil, err
	}
	current := updates[len(updates)-1].Status
	return &OrderTracking{
		Order:     stored,
		Updates:   updates,
		Current:   current,
		Completed: current.Terminal(),
	}, nil
}

// StartNewOrder discards a delivered order and empties the cart. It is
// refused while the progression is still running.
func (s *OrderService) StartNewOrder(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.progression != nil && sess.progression.Running() {
		return nil, fmt.Errorf("order %s has not been delivered yet: %w", sess.order.ID, ErrOrderInProgress)
	}
	if sess.order != nil {
		if err := s.orderRepo.Delete(sess.order.ID); err != nil {
			log.Printf("Error discarding order %s: %v", sess.order.ID, err)
		}
	}
	sess.order = nil
	sess.progression = nil
	sess.cart.Clear()
	return sess.view(), nil
}

// Shutdown cancels every running progression and the event publisher and
// waits for them to stop or for ctx to expire. Queued events are dropped.
func (s *OrderService) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.RLock()
	var running []*Progression
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.progression != nil {
			running = append(running, sess.progression)
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, p := range running {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return fmt.Errorf("progression of order %s did not stop: %w", p.OrderID, ctx.Err())
		}
	}
	select {
	case <-s.publisherDone:
	case <-ctx.Done():
		return fmt.Errorf("event publisher did not stop: %w", ctx.Err())
	}
	return nil
}

// enqueue hands event to the publisher goroutine without waiting on the
// broker. Events are dropped when the queue is full.
func (s *OrderService) enqueue(event models.OrderEvent) {
	if s.publisher == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		log.Printf("Warning: Event queue full, dropping %s event for order %s", event.Type, event.OrderID)
	}
}

func (s *OrderService) runPublisher() {
	defer close(s.publisherDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.events:
			if s.ctx.Err() != nil {
				return
			}
			s.publish(event)
		}
	}
}

func (s *OrderService) publish(event models.OrderEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %s: %v", event.Type, event.OrderID, err)
	}
}

// trackingSink records progression updates and announces them.
type trackingSink struct {
	service *OrderService
	order   *models.Order
}

func (t *trackingSink) AppendUpdate(orderID string, update models.StatusUpdate) error {
	if err := t.service.orderRepo.AppendUpdate(orderID, update); err != nil {
		return err
	}
	t.service.enqueue(NewOrderEvent(models.EventOrderStatusUpdated, t.order, &update))
	return nil
}

// view must be called with sess.mu held.
func (sess *Session) view() *SessionView {
	lines := sess.cart.Lines()
	views := make([]LineView, 0, len(lines))
	for _, line := range lines {
		views = append(views, LineView{
			Product:   line.Product,
			Quantity:  line.Quantity,
			UnitPrice: UnitPrice(line.Product, sess.mode),
			LineTotal: LineTotal(line, sess.mode),
		})
	}
	v := &SessionView{
		ID:             sess.ID,
		Mode:           sess.mode,
		DeliveryOption: sess.delivery,
		Lines:          views,
		Total:          sess.cart.Total(sess.mode),
	}
	if sess.order != nil {
		v.ActiveOrderID = sess.order.ID
	}
	return v
}
