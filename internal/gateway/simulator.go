// Package gateway simulates the payment gateway the checkout settles against.
package gateway

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
)

// TransactionPrefix marks transaction ids.
const TransactionPrefix = "TXN-"

// DefaultBoletoURL is the base URL of issued payment slips.
const DefaultBoletoURL = "https://boleto.example.com/"

// BoletoDueDays is how long an issued slip stays payable.
const BoletoDueDays = 3

// Config configures a Simulator. Zero values select defaults.
type Config struct {
	// TimeScale multiplies the drawn processing time. Zero means 1.
	TimeScale float64
	BoletoURL string
	Source    payment.Source
	Sleep     order.Sleeper
	NewTxID   func() string
}

// Simulator is an order.PaymentProcessor that waits a drawn processing time
// and approves or declines according to the method's profile.
type Simulator struct {
	engine    *payment.Engine
	scale     float64
	boletoURL string
	sleep     order.Sleeper
	newTxID   func() string
}

var _ order.PaymentProcessor = (*Simulator)(nil)

// New creates a Simulator from cfg.
func New(cfg Config) *Simulator {
	s := &Simulator{
		engine:    payment.NewEngine(cfg.Source),
		scale:     cfg.TimeScale,
		boletoURL: cfg.BoletoURL,
		sleep:     cfg.Sleep,
		newTxID:   cfg.NewTxID,
	}
	if s.scale <= 0 {
		s.scale = 1
	}
	if s.boletoURL == "" {
		s.boletoURL = DefaultBoletoURL
	}
	if s.sleep == nil {
		s.sleep = order.Sleep
	}
	if s.newTxID == nil {
		s.newTxID = func() string { return TransactionPrefix + uuid.NewString() }
	}
	return s
}

// Process settles the payment of o. It never returns an error: when ctx
// ends before the processing time elapsed the payment is declined with
// order.ReasonTimeout.
func (s *Simulator) Process(ctx context.Context, o *order.Order) payment.Result {
	method := o.PaymentMethod.Type
	outcome := s.engine.DrawOutcome(method)
	wait := time.Duration(float64(outcome.ProcessingTime) * s.scale)

	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("method", string(method)),
	)
	lg.Debug("Simulating gateway", zap.Duration("processing_time", wait), zap.Bool("will_fail", outcome.WillFail))

	if err := s.sleep(ctx, wait); err != nil {
		lg.Debug("Gateway wait interrupted", zap.Error(err))
		return payment.Declined(order.ReasonTimeout)
	}
	if outcome.WillFail {
		return payment.Declined(s.engine.ErrorMessage(method))
	}
	return payment.Approved(s.newTxID())
}

// Boleto is an issued payment slip.
type Boleto struct {
	URL     string
	DueDate time.Time
}

// IssueBoleto returns the payment slip for orderID, due BoletoDueDays after now.
func (s *Simulator) IssueBoleto(orderID string, now time.Time) Boleto {
	return Boleto{
		URL:     s.boletoURL + orderID,
		DueDate: now.AddDate(0, 0, BoletoDueDays),
	}
}
