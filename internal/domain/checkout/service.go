// Package checkout turns a cart and a payment selection into a tracked order.
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
	"github.com/xenking/comeia-checkout/internal/events"
)

// Sentinel errors for checkout preconditions.
var (
	ErrMissingUser = errors.New("user required")
	ErrEmptyCart   = errors.New("cart is empty")
)

// Notification is forwarded to the caller on every status transition.
// Retryable is set on terminal failures, when Retry is allowed.
type Notification struct {
	Status        order.Status
	OrderID       string
	MethodType    payment.MethodType
	TransactionID string
	Reason        string
	Retryable     bool
	Order         *order.Order
}

// Listener receives the notifications of one order, in transition order.
type Listener func(n Notification)

// SubmitRequest is a checkout submission.
type SubmitRequest struct {
	User   *identity.User
	Items  []cart.Item
	Method payment.MethodType
	Form   payment.Form
}

// Options configures a Service.
type Options struct {
	Factory   *order.Factory
	Processor order.PaymentProcessor
	Orders    order.Repository
	Publisher events.Publisher
	Tracker   order.TrackerConfig

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type attempt struct {
	tracker *order.Tracker
}

// Service orchestrates order creation, payment tracking and notification.
type Service struct {
	base       context.Context
	factory    *order.Factory
	processor  order.PaymentProcessor
	orders     order.Repository
	publisher  events.Publisher
	trackerCfg order.TrackerConfig

	tracer      trace.Tracer
	submissions metric.Int64Counter
	outcomes    metric.Int64Counter
	settleTime  metric.Float64Histogram

	mu       sync.Mutex
	attempts map[string]*attempt
	// retried holds failed orders already resubmitted, or being resubmitted.
	retried map[string]struct{}
}

// NewService creates a checkout Service. Trackers started by the service
// live in base: they outlive the submitting request and are cancelled with
// base, which resolves in-flight orders to expired.
func NewService(base context.Context, opts Options) (*Service, error) {
	if opts.Factory == nil {
		opts.Factory = order.NewFactory(order.FactoryConfig{})
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Processor == nil || opts.Orders == nil {
		return nil, errors.New("checkout: processor and order repository are required")
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	s := &Service{
		base:       base,
		factory:    opts.Factory,
		processor:  opts.Processor,
		orders:     opts.Orders,
		publisher:  opts.Publisher,
		trackerCfg: opts.Tracker,
		tracer:     opts.TracerProvider.Tracer("comeia/checkout"),
		attempts:   make(map[string]*attempt),
		retried:    make(map[string]struct{}),
	}
	if opts.MeterProvider != nil {
		if err := s.initMetrics(opts.MeterProvider.Meter("comeia/checkout")); err != nil {
			return nil, errors.Wrap(err, "init metrics")
		}
	}
	return s, nil
}

func (s *Service) initMetrics(m metric.Meter) error {
	var err error
	if s.submissions, err = m.Int64Counter("checkout.submissions",
		metric.WithDescription("Checkout submissions that created an order"),
	); err != nil {
		return err
	}
	if s.outcomes, err = m.Int64Counter("checkout.outcomes",
		metric.WithDescription("Orders reaching a terminal status"),
	); err != nil {
		return err
	}
	if s.settleTime, err = m.Float64Histogram("checkout.settle.duration",
		metric.WithDescription("Time from processing to terminal status"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}
	return nil
}

// Submit validates req, creates the order and starts tracking it. The
// processing notification is delivered before Submit returns; the terminal
// one follows from the tracker goroutine. No order is created when a
// precondition fails.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, listener Listener) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Submit",
		trace.WithAttributes(attribute.String("payment.method", string(req.Method))),
	)
	defer span.End()

	if req.User == nil || req.User.ID == "" {
		return nil, ErrMissingUser
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	method, err := payment.BuildMethod(req.Method, req.Form)
	if err != nil {
		return nil, err
	}

	o, err := s.place(ctx, req.User.ID, req.Items, method, 1, listener)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	return o, nil
}

// Retry resubmits the checkout of a failed or expired order as a brand-new
// order with the same user, items and payment method. Each failed order can
// be retried once; the new order carries the next attempt number.
func (s *Service) Retry(ctx context.Context, userID, orderID string, listener Listener) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Retry",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	prev, err := s.retrySource(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	o, err := s.place(ctx, prev.UserID, prev.Items, prev.PaymentMethod, prev.Attempt+1, listener)
	if err != nil {
		s.mu.Lock()
		delete(s.retried, orderID)
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	zctx.From(ctx).Info("Checkout retried",
		zap.String("previous_order_id", orderID),
		zap.String("order_id", o.ID),
		zap.Int("attempt", o.Attempt),
	)
	return o, nil
}

// retrySource returns the stored order to resubmit and reserves it, so that
// concurrent retries of the same order cannot both succeed. The caller
// releases the reservation when the resubmission fails.
func (s *Service) retrySource(ctx context.Context, userID, orderID string) (*order.Order, error) {
	prev, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if prev.UserID != userID {
		return nil, order.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	status := prev.Status
	if a, ok := s.attempts[orderID]; ok {
		status = a.tracker.Status()
	}
	if !status.IsFailure() {
		return nil, errors.Wrapf(order.ErrRetryNotAllowed, "status %s", status)
	}
	if _, ok := s.retried[orderID]; ok {
		return nil, errors.Wrap(order.ErrRetryNotAllowed, "already retried")
	}
	s.retried[orderID] = struct{}{}
	return prev, nil
}

func (s *Service) place(
	ctx context.Context,
	userID string,
	items []cart.Item,
	method payment.Method,
	attemptNo int,
	listener Listener,
) (*order.Order, error) {
	o, err := s.factory.CreateOrder(ctx, userID, items, method, cart.Sum(items))
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	o.Attempt = attemptNo

	if err := s.orders.Save(ctx, stored(o)); err != nil {
		return nil, errors.Wrap(err, "save order")
	}

	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	trackCtx := zctx.Base(s.base, lg)

	if listener == nil {
		listener = func(Notification) {}
	}
	tr := order.NewTracker(s.processor, s.transitionHandler(trackCtx, listener), s.trackerCfg)

	s.mu.Lock()
	s.attempts[o.ID] = &attempt{tracker: tr}
	s.mu.Unlock()

	if s.submissions != nil {
		s.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(method.Type))))
	}
	lg.Info("Order created",
		zap.String("method", string(method.Type)),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Int("attempt", o.Attempt),
	)

	if err := tr.Start(trackCtx, o); err != nil {
		s.forget(o.ID)
		return nil, errors.Wrap(err, "start tracking")
	}
	return o, nil
}

// transitionHandler persists, measures, publishes and forwards each
// transition of one order.
func (s *Service) transitionHandler(ctx context.Context, listener Listener) order.Listener {
	var processingAt time.Time
	return func(o *order.Order) {
		lg := zctx.From(ctx)

		if err := s.orders.Update(ctx, stored(o)); err != nil {
			lg.Warn("Update order", zap.Error(err))
		}
		if err := s.publisher.Publish(ctx, events.FromOrder(o)); err != nil {
			lg.Warn("Publish order event", zap.Error(err))
		}

		switch {
		case o.Status == order.StatusProcessing:
			processingAt = o.UpdatedAt
		case o.Status.IsTerminal():
			s.recordOutcome(ctx, o, o.UpdatedAt.Sub(processingAt))
			// The listener runs first so that Wait covers it.
			defer s.forget(o.ID)
		}

		lg.Info("Order status changed",
			zap.String("status", o.Status.String()),
			zap.String("transaction_id", o.TransactionID),
			zap.String("reason", o.FailureReason),
		)

		listener(Notification{
			Status:        o.Status,
			OrderID:       o.ID,
			MethodType:    o.PaymentMethod.Type,
			TransactionID: o.TransactionID,
			Reason:        o.FailureReason,
			Retryable:     o.Status.IsFailure(),
			Order:         o,
		})
	}
}

func (s *Service) recordOutcome(ctx context.Context, o *order.Order, took time.Duration) {
	if s.outcomes == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("status", o.Status.String()),
		attribute.String("method", string(o.PaymentMethod.Type)),
	)
	s.outcomes.Add(ctx, 1, attrs)
	s.settleTime.Record(ctx, took.Seconds(), attrs)
}

func (s *Service) forget(orderID string) {
	s.mu.Lock()
	delete(s.attempts, orderID)
	s.mu.Unlock()
}

// stored returns the copy of o written to the repository, without card
// secrets.
func stored(o *order.Order) *order.Order {
	c := o.Clone()
	c.PaymentMethod = c.PaymentMethod.Redacted()
	return c
}

// Order returns the order id owned by userID.
func (s *Service) Order(ctx context.Context, userID, id string) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrNotFound
	}
	return o, nil
}

// Orders lists the orders of userID.
func (s *Service) Orders(ctx context.Context, userID string) ([]order.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Active returns the number of orders still being processed.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.tracker.Status() == order.StatusProcessing {
			n++
		}
	}
	return n
}

// Wait blocks until the tracking of orderID finished or ctx is done.
// Orders no longer tracked, terminal ones included, return immediately.
func (s *Service) Wait(ctx context.Context, orderID string) error {
	s.mu.Lock()
	a, ok := s.attempts[orderID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-a.tracker.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
