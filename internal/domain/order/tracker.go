package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/comeia-checkout/internal/domain/payment"
)

// ReasonTimeout is the failure reason of orders whose payment did not
// settle in time.
const ReasonTimeout = "Tempo limite para pagamento expirado"

// Default tracker timings.
const (
	DefaultAckDelay     = time.Second
	DefaultExpiredShare = 0.3
)

// Sentinel errors for tracker operations.
var (
	ErrAlreadyStarted  = errors.New("tracking already started")
	ErrRetryNotAllowed = errors.New("retry is only allowed after a failed or expired payment")
)

// Listener receives a copy of the order after each status transition.
type Listener func(o *Order)

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// AckDelay models the gateway acknowledging the payment request.
	AckDelay time.Duration

	// Watchdog bounds the time spent waiting for the processor. Zero disables it.
	Watchdog time.Duration

	// ExpiredShare is the probability that a declined payment resolves to
	// expired rather than failed.
	ExpiredShare float64

	Source payment.Source
	Sleep  Sleeper
	Now    func() time.Time
}

// DefaultTrackerConfig returns the standard tracker timings.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		AckDelay:     DefaultAckDelay,
		ExpiredShare: DefaultExpiredShare,
	}
}

// Tracker drives one order through pending, processing and a terminal
// status. The listener is invoked exactly once per transition: first with
// processing, then with the terminal status.
type Tracker struct {
	cfg       TrackerConfig
	processor PaymentProcessor
	listener  Listener

	mu     sync.Mutex
	status Status
	order  *Order
	done   chan struct{}
}

// NewTracker creates a Tracker in the pending state.
func NewTracker(processor PaymentProcessor, listener Listener, cfg TrackerConfig) *Tracker {
	if cfg.Source == nil {
		cfg.Source = payment.DefaultSource()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if listener == nil {
		listener = func(*Order) {}
	}
	return &Tracker{
		cfg:       cfg,
		processor: processor,
		listener:  listener,
		status:    StatusPending,
		done:      make(chan struct{}),
	}
}

// Status returns the current status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Order returns a copy of the tracked order, or nil before Start.
func (t *Tracker) Order() *Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.order == nil {
		return nil
	}
	return t.order.Clone()
}

// Done is closed once the current cycle reached a terminal status and the
// listener returned.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Start moves o to processing, notifies the listener before returning and
// settles the payment in the background. The tracker works on its own copy
// of o. Cancelling ctx resolves the order to expired.
func (t *Tracker) Start(ctx context.Context, o *Order) error {
	t.mu.Lock()
	if t.status != StatusPending || t.order != nil {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	own := o.Clone()
	if err := own.Advance(StatusProcessing, t.cfg.Now()); err != nil {
		t.mu.Unlock()
		return err
	}
	t.order = own
	t.status = StatusProcessing
	done := t.done
	snapshot := own.Clone()
	t.mu.Unlock()

	zctx.From(ctx).Debug("Payment processing",
		zap.String("order_id", own.ID),
		zap.String("method", string(own.PaymentMethod.Type)),
	)
	t.listener(snapshot)

	go t.run(ctx, own, done)
	return nil
}

func (t *Tracker) run(ctx context.Context, o *Order, done chan struct{}) {
	defer close(done)

	res, timedOut := t.settle(ctx, o)

	next, reason := StatusPaid, ""
	switch {
	case res.Success:
	case timedOut:
		next, reason = StatusExpired, ReasonTimeout
	default:
		next, reason = StatusFailed, res.Error
		if t.cfg.Source.Float64() < t.cfg.ExpiredShare {
			next = StatusExpired
		}
	}

	t.mu.Lock()
	o.TransactionID = res.TransactionID
	o.FailureReason = reason
	// Processing always admits a terminal status.
	_ = o.Advance(next, t.cfg.Now())
	t.status = next
	snapshot := o.Clone()
	t.mu.Unlock()

	zctx.From(ctx).Debug("Payment settled",
		zap.String("order_id", o.ID),
		zap.String("status", next.String()),
	)
	t.listener(snapshot)
}

// settle waits for the acknowledgment delay and the processor. It reports
// timedOut when ctx or the watchdog ended the wait first.
func (t *Tracker) settle(ctx context.Context, o *Order) (payment.Result, bool) {
	if err := t.cfg.Sleep(ctx, t.cfg.AckDelay); err != nil {
		return payment.Declined(ReasonTimeout), true
	}

	pctx, cancel := ctx, context.CancelFunc(func() {})
	if t.cfg.Watchdog > 0 {
		pctx, cancel = context.WithTimeout(ctx, t.cfg.Watchdog)
	}
	defer cancel()

	results := make(chan payment.Result, 1)
	t.mu.Lock()
	input := o.Clone()
	t.mu.Unlock()
	go func() {
		results <- t.processor.Process(pctx, input)
	}()

	select {
	case res := <-results:
		if !res.Success && pctx.Err() != nil {
			return payment.Declined(ReasonTimeout), true
		}
		return res, false
	case <-pctx.Done():
		return payment.Declined(ReasonTimeout), true
	}
}

// Retry resets a tracker whose payment failed or expired to a fresh pending
// cycle, ready for Start with a new order.
func (t *Tracker) Retry() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.IsFailure() {
		return errors.Wrapf(ErrRetryNotAllowed, "status %s", t.status)
	}
	t.status = StatusPending
	t.order = nil
	t.done = make(chan struct{})
	return nil
}
