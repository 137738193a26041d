// Package order drives the ticket purchase lifecycle: seat hold, detail
// load, voucher bind, payment and expiry. Every price on an order is copied
// from the backend response; nothing is computed locally.
package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cinetick/cinetick/internal/adapter"
	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/internal/events"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/logger"
	"github.com/cinetick/cinetick/pkg/util"
)

// Gateway is the backend surface the manager drives.
// *adapter.UnifiedCinemaAdapter satisfies it.
type Gateway interface {
	CancelUnpaidOrders(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string) (int, error)
	CreateOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, sessionID string, seats []string) (*adapter.CreateOrderResult, error)
	OrderDetail(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) (*adapter.OrderDetailResult, error)
	BindVoucher(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID, voucherCode, voucherType string) (*adapter.BindVoucherResult, error)
	PayOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) error
	CancelOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) error
}

type bindOutcome struct {
	code   string
	result adapter.BindVoucherResult
}

// Manager owns order state transitions. All mutation goes through it so the
// single-live-order rule and the transition table hold.
type Manager struct {
	gw    Gateway
	store Store
	pub   events.Publisher
	ttl   time.Duration
	l     logger.Logger

	mu    sync.Mutex
	binds map[string]bindOutcome
}

func NewManager(gw Gateway, store Store, pub events.Publisher, ttl time.Duration, l logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{
		gw:    gw,
		store: store,
		pub:   pub,
		ttl:   ttl,
		l:     l,
		binds: map[string]bindOutcome{},
	}
}

var transitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderCreated:         {domain.OrderDetailed, domain.OrderCancelled, domain.OrderExpired},
	domain.OrderDetailed:        {domain.OrderVoucherBound, domain.OrderAwaitingPayment, domain.OrderCancelled, domain.OrderExpired},
	domain.OrderVoucherBound:    {domain.OrderAwaitingPayment, domain.OrderCancelled, domain.OrderExpired},
	domain.OrderAwaitingPayment: {domain.OrderPaid, domain.OrderCancelled, domain.OrderExpired},
}

func canTransition(from, to domain.OrderStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func invalidTransition(orderID string, from, to domain.OrderStatus) error {
	return apperrors.NewBusinessError(apperrors.CodeInvalidTransition, "",
		fmt.Sprintf("order %s cannot move %s -> %s", orderID, from, to))
}

func (m *Manager) load(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := m.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperrors.NewBusinessError(apperrors.CodeOrderNotFound, "", "order "+orderID+" is not tracked")
	}
	return o, nil
}

func (m *Manager) transition(ctx context.Context, o *domain.Order, to domain.OrderStatus) error {
	if !canTransition(o.Status, to) {
		return invalidTransition(o.OrderID, o.Status, to)
	}
	o.Status = to
	return m.store.Save(ctx, o)
}

func (m *Manager) publish(ctx context.Context, typ string, o *domain.Order) {
	ev := events.Event{
		Type:              typ,
		TenantID:          o.TenantID,
		AccountRef:        o.AccountRef,
		CinemaID:          o.CinemaID,
		OrderID:           o.OrderID,
		Status:            o.Status,
		PayablePriceCents: o.PayablePriceCents,
	}
	if o.AppliedVoucherCode != "" {
		ev.VoucherCodeMask = util.MaskCode(o.AppliedVoucherCode)
	}
	if err := m.pub.Publish(ctx, ev); err != nil {
		// Event loss is tolerated; order state is already saved.
		m.l.Warnf(ctx, "event %s for order %s not published: %v", typ, o.OrderID, err)
	}
}

// Begin places a seat hold. Any unpaid orders the backend still holds for the
// account are cancelled first; if that sweep fails the hold is not attempted,
// because the backend rejects a second concurrent order anyway.
func (m *Manager) Begin(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, sessionID string, seats []string) (*domain.Order, error) {
	cancelled, err := m.gw.CancelUnpaidOrders(ctx, sess, tenantID, cinemaID)
	if err != nil {
		return nil, fmt.Errorf("cancel stale orders: %w", err)
	}
	if cancelled > 0 {
		m.l.Infof(ctx, "cancelled %d stale unpaid orders for %s", cancelled, sess.Ref())
	}

	// Retire whatever we were tracking locally for this account/cinema; the
	// sweep above already voided it on the backend.
	if prev, err := m.store.FindLive(ctx, sess.Ref(), cinemaID); err != nil {
		return nil, err
	} else if prev != nil {
		prev.Status = domain.OrderCancelled
		if err := m.store.Save(ctx, prev); err != nil {
			return nil, err
		}
		m.publish(ctx, events.TypeOrderCancelled, prev)
	}

	res, err := m.gw.CreateOrder(ctx, sess, tenantID, cinemaID, sessionID, seats)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	o := &domain.Order{
		OrderID:    res.OrderID,
		AccountRef: sess.Ref(),
		CinemaID:   cinemaID,
		TenantID:   tenantID,
		SessionID:  sessionID,
		Seats:      append([]string(nil), seats...),
		Status:     domain.OrderCreated,
		CreatedAt:  now,
		ExpireAt:   now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, o); err != nil {
		return nil, err
	}
	m.publish(ctx, events.TypeOrderCreated, o)
	return o, nil
}

// LoadDetail pulls the backend's view of the order and copies its prices in.
func (m *Manager) LoadDetail(ctx context.Context, sess domain.AccountSession, orderID string) (*domain.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsTerminal() {
		return nil, invalidTransition(orderID, o.Status, domain.OrderDetailed)
	}

	det, err := m.gw.OrderDetail(ctx, sess, o.TenantID, o.CinemaID, orderID)
	if err != nil {
		return nil, err
	}

	o.TotalPriceCents = det.TotalPriceCents
	o.PayablePriceCents = det.PayablePriceCents
	if o.Status == domain.OrderCreated {
		if err := m.transition(ctx, o, domain.OrderDetailed); err != nil {
			return nil, err
		}
	} else if err := m.store.Save(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// BindVoucher attaches a voucher and records the backend's recomputed prices.
// The call is idempotent per order: repeating it with the code already bound
// returns the recorded outcome without a second backend call, and a different
// code against an already-bound order is rejected before reaching the backend.
//
// A response that reports success but leaves the payable price untouched is
// surfaced as a VOUCHER_NOT_APPLIED rejection, so the caller never pays full
// price believing a discount applied. A payable price of zero is a valid
// outcome: the voucher covered the order in full.
func (m *Manager) BindVoucher(ctx context.Context, sess domain.AccountSession, orderID, voucherCode string) (*domain.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	cached, ok := m.binds[orderID]
	m.mu.Unlock()
	if ok || o.AppliedVoucherCode != "" {
		if cached.code == voucherCode || o.AppliedVoucherCode == voucherCode {
			return o, nil
		}
		return nil, apperrors.NewBusinessError(apperrors.CodeInvalidTransition, "",
			"order "+orderID+" already has voucher "+util.MaskCode(o.AppliedVoucherCode)+" bound")
	}

	if !canTransition(o.Status, domain.OrderVoucherBound) {
		return nil, invalidTransition(orderID, o.Status, domain.OrderVoucherBound)
	}

	before := o.PayablePriceCents
	res, err := m.gw.BindVoucher(ctx, sess, o.TenantID, o.CinemaID, orderID, voucherCode, "")
	if err != nil {
		return nil, err
	}

	if res.PayablePriceCents == before && res.DiscountCents == 0 {
		return nil, apperrors.NewBusinessError(apperrors.CodeVoucherNotApplied, "",
			"voucher "+util.MaskCode(voucherCode)+" accepted but payable price unchanged")
	}

	o.TotalPriceCents = res.TotalPriceCents
	o.PayablePriceCents = res.PayablePriceCents
	o.AppliedVoucherCode = voucherCode
	if err := m.transition(ctx, o, domain.OrderVoucherBound); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.binds[orderID] = bindOutcome{code: voucherCode, result: *res}
	m.mu.Unlock()

	m.publish(ctx, events.TypeVoucherBound, o)
	return o, nil
}

// RequestPayment settles the order. The order is parked in AWAITING_PAYMENT
// before the backend call, so a failed pay attempt leaves it in a retryable
// state. The pay call itself is synchronous: when it returns without error
// the order is paid.
func (m *Manager) RequestPayment(ctx context.Context, sess domain.AccountSession, orderID string) (*domain.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderAwaitingPayment {
		if err := m.transition(ctx, o, domain.OrderAwaitingPayment); err != nil {
			return nil, err
		}
	}

	if err := m.gw.PayOrder(ctx, sess, o.TenantID, o.CinemaID, orderID); err != nil {
		return nil, err
	}
	if err := m.transition(ctx, o, domain.OrderPaid); err != nil {
		return nil, err
	}
	m.publish(ctx, events.TypeOrderPaid, o)
	return o, nil
}

// RetrieveTicketCode returns the redemption codes for a paid order.
func (m *Manager) RetrieveTicketCode(ctx context.Context, sess domain.AccountSession, orderID string) (*domain.TicketCode, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderPaid {
		return nil, apperrors.NewBusinessError(apperrors.CodeInvalidTransition, "",
			"ticket code for order "+orderID+" requires status PAID, have "+string(o.Status))
	}

	det, err := m.gw.OrderDetail(ctx, sess, o.TenantID, o.CinemaID, orderID)
	if err != nil {
		return nil, err
	}
	tc := det.Ticket
	tc.OrderID = orderID
	return &tc, nil
}

// Cancel voids a live order on the backend and locally.
func (m *Manager) Cancel(ctx context.Context, sess domain.AccountSession, orderID string) (*domain.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canTransition(o.Status, domain.OrderCancelled) {
		return nil, invalidTransition(orderID, o.Status, domain.OrderCancelled)
	}

	if err := m.gw.CancelOrder(ctx, sess, o.TenantID, o.CinemaID, orderID); err != nil {
		return nil, err
	}
	o.Status = domain.OrderCancelled
	if err := m.store.Save(ctx, o); err != nil {
		return nil, err
	}
	m.publish(ctx, events.TypeOrderCancelled, o)
	return o, nil
}

// ExpireCheck marks the order expired when its hold window has elapsed at the
// given time. Callers drive this; there is no background sweeper. The backend
// cancel is best-effort since the backend expires the hold on its own clock.
func (m *Manager) ExpireCheck(ctx context.Context, sess domain.AccountSession, orderID string, now time.Time) (*domain.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsTerminal() || !o.PastExpiry(now) {
		return o, nil
	}

	if err := m.gw.CancelOrder(ctx, sess, o.TenantID, o.CinemaID, orderID); err != nil {
		m.l.Warnf(ctx, "backend cancel of expired order %s failed: %v", orderID, err)
	}
	o.Status = domain.OrderExpired
	if err := m.store.Save(ctx, o); err != nil {
		return nil, err
	}
	m.publish(ctx, events.TypeOrderExpired, o)
	return o, nil
}

// Get returns the tracked order.
func (m *Manager) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.load(ctx, orderID)
}
