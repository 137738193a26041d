package domain

import "time"

type OrderStatus string

const (
	OrderCreated         OrderStatus = "CREATED"
	OrderDetailed        OrderStatus = "DETAILED"
	OrderVoucherBound    OrderStatus = "VOUCHER_BOUND"
	OrderAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderPaid            OrderStatus = "PAID"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// Order is the lifecycle engine's mutable state for one ticket purchase. At
// most one Order per (account_ref, cinema_id) may be live at any time.
type Order struct {
	OrderID            string      `json:"order_id"`
	AccountRef         string      `json:"account_ref"`
	CinemaID           string      `json:"cinema_id"`
	TenantID           string      `json:"tenant_id"`
	SessionID          string      `json:"session_id,omitempty"`
	Seats              []string    `json:"seats"`
	AppliedVoucherCode string      `json:"applied_voucher_code,omitempty"`
	TotalPriceCents    int64       `json:"total_price_cents"`
	PayablePriceCents  int64       `json:"payable_price_cents"`
	Status             OrderStatus `json:"status"`
	CreatedAt          time.Time   `json:"created_at"`
	ExpireAt           time.Time   `json:"expire_at"`
}

func (o *Order) IsTerminal() bool {
	return o.Status == OrderPaid || o.Status == OrderCancelled || o.Status == OrderExpired
}

func (o *Order) IsLive() bool {
	return !o.IsTerminal()
}

// PastExpiry reports whether the order's hold window has elapsed at the given
// wall-clock time.
func (o *Order) PastExpiry(now time.Time) bool {
	return now.After(o.ExpireAt)
}

// TicketCode is the redemption payload for a paid order: the scannable code
// plus the serial/validation split some halls print separately.
type TicketCode struct {
	OrderID        string `json:"order_id"`
	QRCode         string `json:"qr_code"`
	SerialCode     string `json:"serial_code,omitempty"`
	ValidationCode string `json:"validation_code,omitempty"`
}

// OrderSummary is one row of the user's order history listing.
type OrderSummary struct {
	OrderID    string `json:"order_id"`
	MovieName  string `json:"movie_name"`
	CinemaName string `json:"cinema_name"`
	StatusDesc string `json:"status_desc"`
	ShowDate   string `json:"show_date,omitempty"`
	TicketNum  int    `json:"ticket_num,omitempty"`
}
