package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"pear/internal/models"
	"pear/pkg/logging"
	"pear/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseDelay      = 3 * time.Second
	DefaultJitterMin      = 2 * time.Second
	DefaultJitterMax      = 4 * time.Second
	DefaultMessageTimeout = 10 * time.Second
)

// UpdateSink receives each status update as soon as it is produced.
type UpdateSink interface {
	AppendUpdate(orderID string, update models.StatusUpdate) error
}

// Random is the source of the inter-step jitter. *rand.Rand satisfies it.
type Random interface {
	Int63n(n int64) int64
}

// Sleeper suspends for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// StatusEngine advances orders from Placed to Delivered. The first step
// waits the base delay; every following wait is the previous one plus a
// jitter drawn uniformly from [jitterMin, jitterMax).
type StatusEngine struct {
	provider       MessageProvider
	baseDelay      time.Duration
	jitterMin      time.Duration
	jitterMax      time.Duration
	messageTimeout time.Duration
	sleep          Sleeper
	now            func() time.Time
	metrics        *metrics.OrderMetrics
	tracer         trace.Tracer

	randMu sync.Mutex
	random Random
}

// EngineOption configures a StatusEngine.
type EngineOption func(*StatusEngine)

// WithDelays sets the base delay and the jitter bounds.
func WithDelays(base, jitterMin, jitterMax time.Duration) EngineOption {
	return func(e *StatusEngine) {
		e.baseDelay = base
		e.jitterMin = jitterMin
		e.jitterMax = jitterMax
	}
}

// WithRandom sets the jitter source.
func WithRandom(r Random) EngineOption {
	return func(e *StatusEngine) { e.random = r }
}

// WithSleeper replaces the timer based wait.
func WithSleeper(s Sleeper) EngineOption {
	return func(e *StatusEngine) { e.sleep = s }
}

// WithClock sets the timestamp source of status updates.
func WithClock(now func() time.Time) EngineOption {
	return func(e *StatusEngine) { e.now = now }
}

// WithMessageTimeout bounds each Message Provider call.
func WithMessageTimeout(d time.Duration) EngineOption {
	return func(e *StatusEngine) { e.messageTimeout = d }
}

// WithEngineMetrics records appended updates and fallbacks.
func WithEngineMetrics(m *metrics.OrderMetrics) EngineOption {
	return func(e *StatusEngine) { e.metrics = m }
}

// NewStatusEngine creates a StatusEngine asking provider for messages.
func NewStatusEngine(provider MessageProvider, opts ...EngineOption) *StatusEngine {
	e := &StatusEngine{
		provider:       provider,
		baseDelay:      DefaultBaseDelay,
		jitterMin:      DefaultJitterMin,
		jitterMax:      DefaultJitterMax,
		messageTimeout: DefaultMessageTimeout,
		sleep:          sleepContext,
		now:            time.Now,
		tracer:         otel.Tracer("pear/services"),
		random:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlacedUpdate is the initial update of order, stamped with its creation
// time. It does not involve the Message Provider.
func (e *StatusEngine) PlacedUpdate(order *models.Order) models.StatusUpdate {
	return models.StatusUpdate{
		Status:    models.StatusPlaced,
		Message:   PlacedMessage(order.ID),
		Timestamp: order.CreatedAt,
	}
}

// Progression is the handle of one running order progression.
type Progression struct {
	OrderID string
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Cancel stops the progression at its next suspension point.
func (p *Progression) Cancel() { p.cancel() }

// Done is closed once the progression has stopped.
func (p *Progression) Done() <-chan struct{} { return p.done }

// Wait blocks until the progression stops and returns why it stopped; nil
// means Delivered was reached.
func (p *Progression) Wait() error {
	<-p.done
	return p.err
}

// Running reports whether the progression is still in flight.
func (p *Progression) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Start runs the progression of order in its own goroutine. The Placed
// update must already be recorded.
func (e *StatusEngine) Start(ctx context.Context, order *models.Order, sink UpdateSink) *Progression {
	ctx, cancel := context.WithCancel(ctx)
	p := &Progression{
		OrderID: order.ID,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		defer cancel()
		p.err = e.Run(ctx, order, sink)
	}()
	return p
}

// Run appends Processing, Packaged, Shipped and Delivered to sink, one at a
// time, waiting before each. It returns ctx.Err() when cancelled and nil
// once Delivered has been appended.
func (e *StatusEngine) Run(ctx context.Context, order *models.Order, sink UpdateSink) error {
	delay := e.baseDelay
	current := models.StatusPlaced
	for {
		next, ok := current.Next()
		if !ok {
			logging.Log(logging.Fields{Service: "status-engine", OrderID: order.ID, Step: "complete", Status: current.String()})
			return nil
		}
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
		if err := e.advance(ctx, order, next, sink); err != nil {
			return err
		}
		current = next
		delay += e.jitter()
	}
}

func (e *StatusEngine) advance(ctx context.Context, order *models.Order, status models.OrderStatus, sink UpdateSink) error {
	ctx, span := e.tracer.Start(ctx, "StatusEngine.advance", trace.WithAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.status", status.String()),
	))
	defer span.End()

	started := time.Now()
	message := e.message(ctx, order.ID, status)
	if err := ctx.Err(); err != nil {
		return err
	}

	update := models.StatusUpdate{Status: status, Message: message, Timestamp: e.now()}
	if err := sink.AppendUpdate(order.ID, update); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append %s update for order %s: %w", status, order.ID, err)
	}
	e.metrics.StatusUpdated(status.String())
	logging.Log(logging.Fields{
		Service:    "status-engine",
		OrderID:    order.ID,
		Step:       "advance",
		Status:     status.String(),
		DurationMS: time.Since(started).Milliseconds(),
	})
	return nil
}

// message never fails: provider errors and empty answers become the
// fallback text.
func (e *StatusEngine) message(ctx context.Context, orderID string, status models.OrderStatus) string {
	mctx, cancel := context.WithTimeout(ctx, e.messageTimeout)
	defer cancel()

	type answer struct {
		msg string
		err error
	}
	// Buffered so a provider that ignores mctx can still finish and exit.
	answers := make(chan answer, 1)
	go func() {
		msg, err := e.provider.StatusMessage(mctx, status)
		answers <- answer{msg: msg, err: err}
	}()

	var msg string
	var err error
	select {
	case a := <-answers:
		msg, err = a.msg, a.err
	case <-mctx.Done():
		err = &ProviderError{Status: status, Err: mctx.Err()}
	}
	if err == nil && strings.TrimSpace(msg) != "" {
		return msg
	}
	if err == nil {
		err = fmt.Errorf("empty message")
	}
	e.metrics.MessageFallback()
	logging.Log(logging.Fields{
		Service: "status-engine",
		OrderID: orderID,
		Step:    "fallback",
		Status:  status.String(),
		Error:   err.Error(),
	})
	return FallbackMessage(status)
}

func (e *StatusEngine) jitter() time.Duration {
	span := e.jitterMax - e.jitterMin
	if span <= 0 {
		return e.jitterMin
	}
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.jitterMin + time.Duration(e.random.Int63n(int64(span)))
}
