package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetick/cinetick/internal/adapter"
	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/internal/events"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/logger"
)

type fakeGateway struct {
	sweepErr    error
	swept       int
	createErr   error
	created     []string
	detail      adapter.OrderDetailResult
	detailErr   error
	bindResult  adapter.BindVoucherResult
	bindErr     error
	bindCalls   int
	payErr      error
	paid        []string
	cancelErr   error
	cancelled   []string
	nextOrderID string
}

func (f *fakeGateway) CancelUnpaidOrders(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string) (int, error) {
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	return f.swept, nil
}

func (f *fakeGateway) CreateOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, sessionID string, seats []string) (*adapter.CreateOrderResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := f.nextOrderID
	if id == "" {
		id = "ord-1"
	}
	f.created = append(f.created, id)
	return &adapter.CreateOrderResult{OrderID: id}, nil
}

func (f *fakeGateway) OrderDetail(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) (*adapter.OrderDetailResult, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	det := f.detail
	det.OrderID = orderID
	return &det, nil
}

func (f *fakeGateway) BindVoucher(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID, voucherCode, voucherType string) (*adapter.BindVoucherResult, error) {
	f.bindCalls++
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	res := f.bindResult
	return &res, nil
}

func (f *fakeGateway) PayOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) error {
	if f.payErr != nil {
		return f.payErr
	}
	f.paid = append(f.paid, orderID)
	return nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type capturingPublisher struct {
	events []events.Event
}

func (c *capturingPublisher) Publish(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *capturingPublisher) types() []string {
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func newTestManager(gw Gateway) (*Manager, *capturingPublisher) {
	pub := &capturingPublisher{}
	return NewManager(gw, NewMemoryStore(), pub, 15*time.Minute, logger.InitializeTestZapLogger()), pub
}

func testSession() domain.AccountSession {
	return domain.AccountSession{UserID: "u-1", Token: "tok", OpenID: "oid-1"}
}

func TestBeginSweepsUnpaidOrdersFirst(t *testing.T) {
	gw := &fakeGateway{swept: 2}
	m, pub := newTestManager(gw)

	o, err := m.Begin(context.Background(), testSession(), "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderCreated, o.Status)
	assert.Equal(t, "oid-1", o.AccountRef)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), o.ExpireAt, time.Second)
	assert.Equal(t, []string{events.TypeOrderCreated}, pub.types())
}

func TestBeginAbortsWhenSweepFails(t *testing.T) {
	gw := &fakeGateway{sweepErr: errors.New("backend down")}
	m, _ := newTestManager(gw)

	_, err := m.Begin(context.Background(), testSession(), "wmyc", "880", "s1", []string{"5-8"})
	require.Error(t, err)
	assert.Empty(t, gw.created, "seat hold must not be attempted after a failed sweep")
}

func TestBeginRetiresPreviousLiveOrder(t *testing.T) {
	gw := &fakeGateway{}
	m, pub := newTestManager(gw)

	gw.nextOrderID = "ord-1"
	first, err := m.Begin(context.Background(), testSession(), "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)

	gw.nextOrderID = "ord-2"
	second, err := m.Begin(context.Background(), testSession(), "wmyc", "880", "s2", []string{"6-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, second.OrderID)

	prev, err := m.Get(context.Background(), first.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, prev.Status)
	assert.Equal(t, []string{
		events.TypeOrderCreated,
		events.TypeOrderCancelled,
		events.TypeOrderCreated,
	}, pub.types())
}

func TestFullLifecycleWithFullCoverVoucher(t *testing.T) {
	gw := &fakeGateway{
		detail: adapter.OrderDetailResult{
			TotalPriceCents:   3900,
			PayablePriceCents: 3900,
			Ticket:            domain.TicketCode{QRCode: "QR1", SerialCode: "S1", ValidationCode: "V1"},
		},
		bindResult: adapter.BindVoucherResult{
			TotalPriceCents:   3900,
			PayablePriceCents: 0,
			DiscountCents:     3900,
			UsedCodes:         []string{"GZJY0001A"},
		},
	}
	m, pub := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)

	o, err = m.LoadDetail(ctx, sess, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDetailed, o.Status)
	assert.Equal(t, int64(3900), o.PayablePriceCents)

	// Voucher covers the order in full; zero payable is a valid outcome.
	o, err = m.BindVoucher(ctx, sess, o.OrderID, "GZJY0001A")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderVoucherBound, o.Status)
	assert.Equal(t, int64(0), o.PayablePriceCents)

	o, err = m.RequestPayment(ctx, sess, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, o.Status)

	tc, err := m.RetrieveTicketCode(ctx, sess, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "QR1", tc.QRCode)
	assert.Equal(t, o.OrderID, tc.OrderID)

	assert.Equal(t, []string{
		events.TypeOrderCreated,
		events.TypeVoucherBound,
		events.TypeOrderPaid,
	}, pub.types())
}

func TestBindVoucherIsIdempotentPerOrder(t *testing.T) {
	gw := &fakeGateway{
		detail:     adapter.OrderDetailResult{TotalPriceCents: 3900, PayablePriceCents: 3900},
		bindResult: adapter.BindVoucherResult{TotalPriceCents: 3900, PayablePriceCents: 1900, DiscountCents: 2000},
	}
	m, _ := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)
	_, err = m.LoadDetail(ctx, sess, o.OrderID)
	require.NoError(t, err)

	first, err := m.BindVoucher(ctx, sess, o.OrderID, "CODE-1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.bindCalls)

	second, err := m.BindVoucher(ctx, sess, o.OrderID, "CODE-1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.bindCalls, "repeat bind must not hit the backend")
	assert.Equal(t, first.PayablePriceCents, second.PayablePriceCents)
}

func TestBindVoucherRejectsDifferentCodeOnBoundOrder(t *testing.T) {
	gw := &fakeGateway{
		detail:     adapter.OrderDetailResult{TotalPriceCents: 3900, PayablePriceCents: 3900},
		bindResult: adapter.BindVoucherResult{TotalPriceCents: 3900, PayablePriceCents: 1900, DiscountCents: 2000},
	}
	m, _ := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)
	_, err = m.LoadDetail(ctx, sess, o.OrderID)
	require.NoError(t, err)

	_, err = m.BindVoucher(ctx, sess, o.OrderID, "CODE-1")
	require.NoError(t, err)

	_, err = m.BindVoucher(ctx, sess, o.OrderID, "CODE-2")
	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, apperrors.CodeInvalidTransition, be.Code)
	assert.Equal(t, 1, gw.bindCalls, "a second code must never reach the backend")

	got, err := m.Get(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "CODE-1", got.AppliedVoucherCode)
	assert.Equal(t, int64(1900), got.PayablePriceCents)
}

func TestBindVoucherUnchangedPriceIsRejected(t *testing.T) {
	gw := &fakeGateway{
		detail:     adapter.OrderDetailResult{TotalPriceCents: 3900, PayablePriceCents: 3900},
		bindResult: adapter.BindVoucherResult{TotalPriceCents: 3900, PayablePriceCents: 3900, DiscountCents: 0},
	}
	m, _ := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)
	_, err = m.LoadDetail(ctx, sess, o.OrderID)
	require.NoError(t, err)

	_, err = m.BindVoucher(ctx, sess, o.OrderID, "CODE-1")
	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, apperrors.CodeVoucherNotApplied, be.Code)

	// The order stays usable without the voucher.
	got, err := m.Get(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDetailed, got.Status)
	assert.Empty(t, got.AppliedVoucherCode)
}

func TestRequestPaymentRequiresDetailedOrder(t *testing.T) {
	gw := &fakeGateway{}
	m, _ := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)

	_, err = m.RequestPayment(ctx, sess, o.OrderID)
	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, apperrors.CodeInvalidTransition, be.Code)
	assert.Empty(t, gw.paid)
}

func TestRequestPaymentParksOrderAwaitingPayment(t *testing.T) {
	gw := &fakeGateway{
		detail: adapter.OrderDetailResult{TotalPriceCents: 3900, PayablePriceCents: 3900},
		payErr: errors.New("gateway timeout"),
	}
	m, _ := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)
	_, err = m.LoadDetail(ctx, sess, o.OrderID)
	require.NoError(t, err)

	// A failed pay attempt leaves the order parked, not DETAILED.
	_, err = m.RequestPayment(ctx, sess, o.OrderID)
	require.Error(t, err)
	got, err := m.Get(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderAwaitingPayment, got.Status)

	// Retrying from AWAITING_PAYMENT succeeds once the backend recovers.
	gw.payErr = nil
	got, err = m.RequestPayment(ctx, sess, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, got.Status)
	assert.Equal(t, []string{o.OrderID}, gw.paid)
}

func TestRetrieveTicketCodeRequiresPaid(t *testing.T) {
	gw := &fakeGateway{detail: adapter.OrderDetailResult{PayablePriceCents: 3900}}
	m, _ := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)

	_, err = m.RetrieveTicketCode(ctx, sess, o.OrderID)
	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, apperrors.CodeInvalidTransition, be.Code)
}

func TestExpireCheck(t *testing.T) {
	gw := &fakeGateway{}
	m, pub := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)

	// Inside the hold window nothing changes.
	got, err := m.ExpireCheck(ctx, sess, o.OrderID, o.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCreated, got.Status)

	got, err = m.ExpireCheck(ctx, sess, o.OrderID, o.ExpireAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderExpired, got.Status)
	assert.Contains(t, pub.types(), events.TypeOrderExpired)

	// Terminal orders are left alone.
	got, err = m.ExpireCheck(ctx, sess, o.OrderID, o.ExpireAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderExpired, got.Status)
	assert.Len(t, gw.cancelled, 1)
}

func TestCancel(t *testing.T) {
	gw := &fakeGateway{}
	m, pub := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)

	got, err := m.Cancel(ctx, sess, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, got.Status)
	assert.Equal(t, []string{o.OrderID}, gw.cancelled)
	assert.Contains(t, pub.types(), events.TypeOrderCancelled)

	// Cancelling twice is an invalid transition.
	_, err = m.Cancel(ctx, sess, o.OrderID)
	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, apperrors.CodeInvalidTransition, be.Code)
}

func TestUnknownOrder(t *testing.T) {
	m, _ := newTestManager(&fakeGateway{})

	_, err := m.Get(context.Background(), "ghost")
	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, apperrors.CodeOrderNotFound, be.Code)
}

func TestEventsCarryMaskedVoucherCode(t *testing.T) {
	gw := &fakeGateway{
		detail:     adapter.OrderDetailResult{TotalPriceCents: 3900, PayablePriceCents: 3900},
		bindResult: adapter.BindVoucherResult{PayablePriceCents: 1900, DiscountCents: 2000},
	}
	m, pub := newTestManager(gw)
	ctx := context.Background()
	sess := testSession()

	o, err := m.Begin(ctx, sess, "wmyc", "880", "s1", []string{"5-8"})
	require.NoError(t, err)
	_, err = m.LoadDetail(ctx, sess, o.OrderID)
	require.NoError(t, err)
	_, err = m.BindVoucher(ctx, sess, o.OrderID, "GZJY00011234")
	require.NoError(t, err)

	var bound *events.Event
	for i := range pub.events {
		if pub.events[i].Type == events.TypeVoucherBound {
			bound = &pub.events[i]
		}
	}
	require.NotNil(t, bound)
	assert.Equal(t, "GZJ******234", bound.VoucherCodeMask)
	assert.NotContains(t, bound.VoucherCodeMask, "00011")
}
