package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
	"github.com/xenking/comeia-checkout/internal/domain/product"
	"github.com/xenking/comeia-checkout/internal/events"
	"github.com/xenking/comeia-checkout/internal/gateway"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	mu      sync.Mutex
	byID    map[string]*order.Order
	saves   int
	saveErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[string]*order.Order)}
}

func (m *mockOrderRepo) Save(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.byID[o.ID] = o.Clone()
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[o.ID]; !ok {
		return order.ErrNotFound
	}
	m.byID[o.ID] = o.Clone()
	return nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o.Clone())
		}
	}
	return out, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// gatedProcessor holds every payment until release is closed.
type gatedProcessor struct {
	release chan struct{}
}

func (p *gatedProcessor) Process(ctx context.Context, _ *order.Order) payment.Result {
	select {
	case <-p.release:
		return payment.Approved("TXN-gated")
	case <-ctx.Done():
		return payment.Declined(order.ReasonTimeout)
	}
}

type constSource float64

func (s constSource) Float64() float64 { return float64(s) }

// recorder collects the notifications of one submission.
type recorder struct {
	mu       sync.Mutex
	got      []Notification
	terminal chan struct{}
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan struct{})}
}

func (r *recorder) listen(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	if n.Status.IsTerminal() {
		close(r.terminal)
	}
}

func (r *recorder) wait(t *testing.T) []Notification {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal notification")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

// --- Helpers ---

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fixture struct {
	svc       *Service
	orders    *mockOrderRepo
	publisher *mockPublisher
	ids       *atomic.Int64
}

// newFixture wires a service whose gateway and tracker draw from src and
// never sleep.
func newFixture(t *testing.T, src payment.Source, processor order.PaymentProcessor) *fixture {
	t.Helper()
	ids := &atomic.Int64{}
	if processor == nil {
		processor = gateway.New(gateway.Config{Source: src, Sleep: noSleep})
	}
	trackerCfg := order.DefaultTrackerConfig()
	trackerCfg.Source = src
	trackerCfg.Sleep = noSleep

	f := &fixture{
		orders:    newMockOrderRepo(),
		publisher: &mockPublisher{},
		ids:       ids,
	}
	svc, err := NewService(context.Background(), Options{
		Factory: order.NewFactory(order.FactoryConfig{
			Sleep: noSleep,
			NewID: func() string {
				return fmt.Sprintf("ORD-%d", ids.Add(1))
			},
		}),
		Processor:     processor,
		Orders:        f.orders,
		Publisher:     f.publisher,
		Tracker:       trackerCfg,
		MeterProvider: metricnoop.NewMeterProvider(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func testUser(id string) *identity.User {
	return &identity.User{ID: id, Name: "User " + id, Email: id + "@email.com"}
}

func testItem(id, price string, qty int) cart.Item {
	return cart.Item{
		Product:  product.Product{ID: id, Name: id, Price: decimal.RequireFromString(price), Stock: 99},
		Quantity: qty,
	}
}

func pixRequest(user *identity.User, items ...cart.Item) SubmitRequest {
	return SubmitRequest{
		User:   user,
		Items:  items,
		Method: payment.Pix,
		Form:   payment.Form{Pix: &payment.PixForm{Key: "chave@pix.com"}},
	}
}

func statuses(ns []Notification) []order.Status {
	out := make([]order.Status, len(ns))
	for i, n := range ns {
		out[i] = n.Status
	}
	return out
}

// --- Tests ---

func TestSubmit_PaidPix(t *testing.T) {
	f := newFixture(t, constSource(0.5), nil)
	rec := newRecorder()

	o, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "10.00", 2)), rec.listen)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20.00").Equal(o.Total))
	assert.Equal(t, order.StatusPending, o.Status)

	got := rec.wait(t)
	require.Equal(t, []order.Status{order.StatusProcessing, order.StatusPaid}, statuses(got))
	final := got[1]
	assert.Equal(t, o.ID, final.OrderID)
	assert.Equal(t, payment.Pix, final.MethodType)
	assert.Contains(t, final.TransactionID, gateway.TransactionPrefix)
	assert.Empty(t, final.Reason)
	assert.False(t, final.Retryable)
	assert.True(t, decimal.RequireFromString("20.00").Equal(final.Order.Total))

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, stored.Status)
	assert.Equal(t, final.TransactionID, stored.TransactionID)
}

func TestSubmit_DeclinedCard(t *testing.T) {
	f := newFixture(t, constSource(0.01), nil)
	rec := newRecorder()

	req := SubmitRequest{
		User:   testUser("1"),
		Items:  []cart.Item{testItem("p", "50.00", 1)},
		Method: payment.CreditCard,
		Form: payment.Form{CreditCard: &payment.CardForm{
			Number: "4111 1111 1111 1111",
			Name:   "Joao Silva",
			Expiry: "12/30",
			CVV:    "123",
		}},
	}
	o, err := f.svc.Submit(context.Background(), req, rec.listen)
	require.NoError(t, err)

	got := rec.wait(t)
	require.Len(t, got, 2)
	final := got[1]
	assert.Contains(t, []order.Status{order.StatusFailed, order.StatusExpired}, final.Status)
	assert.Contains(t, payment.ProfileOf(payment.CreditCard).Errors, final.Reason)
	assert.Empty(t, final.TransactionID)
	assert.True(t, final.Retryable)
	assert.True(t, decimal.RequireFromString("50.00").Equal(final.Order.Total))

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	card := stored.PaymentMethod.Data.(payment.CreditCardData)
	assert.Equal(t, "**** **** **** 1111", card.Number)
	assert.Empty(t, card.CVV)
}

func TestSubmit_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr error
	}{
		{name: "empty cart", req: pixRequest(testUser("1")), wantErr: ErrEmptyCart},
		{name: "missing user", req: pixRequest(nil, testItem("p", "1.00", 1)), wantErr: ErrMissingUser},
		{name: "anonymous user", req: pixRequest(&identity.User{}, testItem("p", "1.00", 1)), wantErr: ErrMissingUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, constSource(0.5), nil)
			called := false

			_, err := f.svc.Submit(context.Background(), tt.req, func(Notification) { called = true })

			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.ids.Load(), "no order created")
			assert.Zero(t, f.orders.saves)
			assert.False(t, called)
		})
	}
}

func TestSubmit_InvalidForm(t *testing.T) {
	f := newFixture(t, constSource(0.5), nil)
	req := pixRequest(testUser("1"), testItem("p", "1.00", 1))
	req.Form.Pix.Key = "abc"

	_, err := f.svc.Submit(context.Background(), req, nil)

	var verr *payment.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "key")
	assert.Zero(t, f.ids.Load())
}

func TestSubmit_SaveFailure(t *testing.T) {
	f := newFixture(t, constSource(0.5), nil)
	f.orders.saveErr = fmt.Errorf("disk full")

	_, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "1.00", 1)), nil)
	require.ErrorContains(t, err, "disk full")
	assert.Zero(t, f.svc.Active())
}

func TestSubmit_PublishesEveryTransition(t *testing.T) {
	f := newFixture(t, constSource(0.5), nil)
	rec := newRecorder()

	o, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "3.00", 1)), rec.listen)
	require.NoError(t, err)
	rec.wait(t)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, order.StatusProcessing, f.publisher.events[0].Status)
	assert.Equal(t, order.StatusPaid, f.publisher.events[1].Status)
	for _, ev := range f.publisher.events {
		assert.Equal(t, o.ID, ev.OrderID)
	}
}

func TestSubmit_ConcurrentOrdersDoNotCrossNotify(t *testing.T) {
	f := newFixture(t, payment.NewSeededSource(3), nil)

	const n = 20
	var wg sync.WaitGroup
	recs := make([]*recorder, n)
	ids := make([]string, n)
	for i := range n {
		recs[i] = newRecorder()
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := testUser(fmt.Sprintf("u%d", i))
			o, err := f.svc.Submit(context.Background(), pixRequest(user, testItem("p", "1.00", i+1)), recs[i].listen)
			if assert.NoError(t, err) {
				ids[i] = o.ID
			}
		}()
	}
	wg.Wait()

	for i, rec := range recs {
		got := rec.wait(t)
		require.Len(t, got, 2)
		assert.Equal(t, order.StatusProcessing, got[0].Status)
		for _, note := range got {
			assert.Equal(t, ids[i], note.OrderID)
			assert.Equal(t, fmt.Sprintf("u%d", i), note.Order.UserID)
			assert.Equal(t, i+1, note.Order.Items[0].Quantity)
		}
	}
}

func TestSubmit_TotalFixedAfterCartChanges(t *testing.T) {
	f := newFixture(t, constSource(0.5), nil)
	rec := newRecorder()
	items := []cart.Item{testItem("a", "10.00", 2), testItem("b", "2.50", 4)}

	o, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), items...), rec.listen)
	require.NoError(t, err)
	items[0].Quantity = 99

	final := rec.wait(t)[1].Order
	assert.True(t, decimal.RequireFromString("30.00").Equal(o.Total))
	assert.True(t, o.Total.Equal(final.Total))
	assert.True(t, cart.Sum(final.Items).Equal(final.Total))
}

func TestRetry_AfterFailure(t *testing.T) {
	src := &switchSource{v: 0.01}
	f := newFixture(t, src, nil)
	rec := newRecorder()

	first, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "7.00", 3)), rec.listen)
	require.NoError(t, err)
	require.True(t, rec.wait(t)[1].Retryable)

	src.set(0.5)
	retryRec := newRecorder()
	second, err := f.svc.Retry(context.Background(), "1", first.ID, retryRec.listen)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempt)
	assert.True(t, first.Total.Equal(second.Total))
	assert.Equal(t, first.PaymentMethod, second.PaymentMethod)
	assert.Equal(t, []order.Status{order.StatusProcessing, order.StatusPaid}, statuses(retryRec.wait(t)))

	_, err = f.svc.Retry(context.Background(), "1", first.ID, nil)
	require.ErrorIs(t, err, order.ErrRetryNotAllowed, "a failed order is retried once")
}

func TestRetry_Rejected(t *testing.T) {
	t.Run("paid", func(t *testing.T) {
		f := newFixture(t, constSource(0.5), nil)
		rec := newRecorder()
		o, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "1.00", 1)), rec.listen)
		require.NoError(t, err)
		rec.wait(t)

		_, err = f.svc.Retry(context.Background(), "1", o.ID, nil)
		require.ErrorIs(t, err, order.ErrRetryNotAllowed)
	})

	t.Run("processing", func(t *testing.T) {
		proc := &gatedProcessor{release: make(chan struct{})}
		f := newFixture(t, constSource(0.5), proc)
		rec := newRecorder()
		o, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "1.00", 1)), rec.listen)
		require.NoError(t, err)
		assert.Equal(t, 1, f.svc.Active())

		_, err = f.svc.Retry(context.Background(), "1", o.ID, nil)
		require.ErrorIs(t, err, order.ErrRetryNotAllowed)

		close(proc.release)
		rec.wait(t)
	})

	t.Run("other user", func(t *testing.T) {
		f := newFixture(t, constSource(0.01), nil)
		rec := newRecorder()
		o, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "1.00", 1)), rec.listen)
		require.NoError(t, err)
		rec.wait(t)

		_, err = f.svc.Retry(context.Background(), "2", o.ID, nil)
		require.ErrorIs(t, err, order.ErrNotFound)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t, constSource(0.5), nil)
		_, err := f.svc.Retry(context.Background(), "1", "ORD-missing", nil)
		require.ErrorIs(t, err, order.ErrNotFound)
	})
}

func TestRetry_StoredOrder(t *testing.T) {
	f := newFixture(t, constSource(0.5), nil)
	items := []cart.Item{testItem("p", "4.00", 1)}
	require.NoError(t, f.orders.Save(context.Background(), &order.Order{
		ID:            "ORD-old",
		UserID:        "1",
		Items:         items,
		PaymentMethod: payment.Method{Type: payment.Boleto, Data: payment.BoletoData{}},
		Status:        order.StatusExpired,
		Total:         cart.Sum(items),
		Attempt:       1,
	}))

	rec := newRecorder()
	o, err := f.svc.Retry(context.Background(), "1", "ORD-old", rec.listen)
	require.NoError(t, err)
	assert.Equal(t, 2, o.Attempt)
	assert.Equal(t, payment.Boleto, o.PaymentMethod.Type)
	rec.wait(t)
}

func TestRetry_AfterInterruptedResubmission(t *testing.T) {
	src := &switchSource{v: 0.01}
	f := newFixture(t, src, nil)
	rec := newRecorder()

	first, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "5.00", 1)), rec.listen)
	require.NoError(t, err)
	rec.wait(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.svc.Retry(ctx, "1", first.ID, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "create order: create order")

	src.set(0.5)
	retryRec := newRecorder()
	second, err := f.svc.Retry(context.Background(), "1", first.ID, retryRec.listen)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempt)
	assert.Equal(t, []order.Status{order.StatusProcessing, order.StatusPaid}, statuses(retryRec.wait(t)))
}

func TestRetry_SaveFailureKeepsOrderRetryable(t *testing.T) {
	f := newFixture(t, constSource(0.01), nil)
	rec := newRecorder()

	first, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "5.00", 1)), rec.listen)
	require.NoError(t, err)
	rec.wait(t)

	f.orders.mu.Lock()
	f.orders.saveErr = fmt.Errorf("disk full")
	f.orders.mu.Unlock()
	_, err = f.svc.Retry(context.Background(), "1", first.ID, nil)
	require.ErrorContains(t, err, "disk full")

	f.orders.mu.Lock()
	f.orders.saveErr = nil
	f.orders.mu.Unlock()
	retryRec := newRecorder()
	_, err = f.svc.Retry(context.Background(), "1", first.ID, retryRec.listen)
	require.NoError(t, err)
	retryRec.wait(t)
}

func TestRetry_ConcurrentOnce(t *testing.T) {
	f := newFixture(t, constSource(0.01), nil)
	rec := newRecorder()

	first, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "5.00", 1)), rec.listen)
	require.NoError(t, err)
	rec.wait(t)

	const n = 10
	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
		recs     = make([]*recorder, n)
	)
	for i := range n {
		recs[i] = newRecorder()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Retry(context.Background(), "1", first.ID, recs[i].listen)
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, order.ErrRetryNotAllowed)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), accepted.Load())
}

func TestWait_RetiredOrders(t *testing.T) {
	f := newFixture(t, constSource(0.01), nil)
	rec := newRecorder()

	first, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "5.00", 1)), rec.listen)
	require.NoError(t, err)
	rec.wait(t)

	retryRec := newRecorder()
	second, err := f.svc.Retry(context.Background(), "1", first.ID, retryRec.listen)
	require.NoError(t, err)
	retryRec.wait(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, f.svc.Wait(ctx, first.ID))
	require.NoError(t, f.svc.Wait(ctx, second.ID))

	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	assert.Empty(t, f.svc.attempts, "terminal orders are no longer tracked")
}

func TestOrderLookups(t *testing.T) {
	f := newFixture(t, constSource(0.5), nil)
	rec := newRecorder()
	o, err := f.svc.Submit(context.Background(), pixRequest(testUser("1"), testItem("p", "1.00", 1)), rec.listen)
	require.NoError(t, err)
	rec.wait(t)

	got, err := f.svc.Order(context.Background(), "1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.Order(context.Background(), "2", o.ID)
	require.ErrorIs(t, err, order.ErrNotFound)

	list, err := f.svc.Orders(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.NoError(t, f.svc.Wait(context.Background(), o.ID))
	assert.Zero(t, f.svc.Active())
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(context.Background(), Options{})
	require.Error(t, err)
}

// switchSource returns a value that tests can change between submissions.
type switchSource struct {
	mu sync.Mutex
	v  float64
}

func (s *switchSource) set(v float64) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

func (s *switchSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}
