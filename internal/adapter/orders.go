package adapter

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/pkg/apperrors"
)

// Order endpoint tables, kept separate from the catalogue ones because the
// write paths differ more between the two backend families.
var orderEndpoints = map[string]map[string]string{
	tenant.TenantWM: {
		"orderCreate": "/ticket/wmyc/cinema/{cinema_id}/order/ticket/",
		"orderInfo":   "/ticket/wmyc/cinema/{cinema_id}/order/info/",
		"orderChange": "/ticket/wmyc/cinema/{cinema_id}/order/change/",
		"orderPay":    "/ticket/wmyc/cinema/{cinema_id}/order/pay/",
		"orderCancel": "/ticket/wmyc/cinema/{cinema_id}/order/cancel/",
		"orderList":   "/ticket/wmyc/user/orders/",
		"voucherPage": "/ticket/wmyc/cinema/{cinema_id}/user/vouchers_page",
		"voucherAdd":  "/ticket/wmyc/cinema/{cinema_id}/user/voucher/add/",
	},
	tenant.TenantHY: {
		"orderCreate": "/MiniTicket/index.php/MiniOrder/createOrder",
		"orderInfo":   "/MiniTicket/index.php/MiniOrder/getOrderDetail",
		"orderChange": "/MiniTicket/index.php/MiniCoupon/bindCoupon",
		"orderPay":    "/MiniTicket/index.php/MiniPay/couponPay",
		"orderCancel": "/MiniTicket/index.php/MiniOrder/cancelorder",
		"orderList":   "/MiniTicket/index.php/MiniOrder/getOrderList",
		"voucherPage": "/MiniTicket/index.php/MiniCoupon/getCouponList",
		"voucherAdd":  "/MiniTicket/index.php/MiniCoupon/addCoupon",
	},
}

func orderEndpoint(tenantID, op, cinemaID string) (string, error) {
	table, ok := orderEndpoints[tenantID]
	if !ok {
		return "", tenant.ErrUnknownTenant
	}
	tpl, ok := table[op]
	if !ok {
		return "", apperrors.NewBusinessError(apperrors.CodeUnknownTenant, "",
			"operation "+op+" not supported by tenant "+tenantID)
	}
	return expandPath(tpl, cinemaID), nil
}

// wmVersionQuery carries the query marker the WM order endpoints require.
func wmVersionQuery(tenantID string) url.Values {
	q := url.Values{}
	if tenantID == tenant.TenantWM {
		q.Set("version", "tp_version")
	}
	return q
}

type CreateOrderResult struct {
	OrderID    string
	ServerTime string
}

type OrderDetailResult struct {
	OrderID           string
	TotalPriceCents   int64
	PayablePriceCents int64
	StatusDesc        string
	MovieName         string
	CinemaName        string
	ShowDate          string
	HallName          string
	SeatInfo          string
	Ticket            domain.TicketCode
}

type BindVoucherResult struct {
	TotalPriceCents   int64
	PayablePriceCents int64
	UsedCodes         []string
	DiscountCents     int64
}

func (a *UnifiedCinemaAdapter) orderCall(ctx context.Context, op string, sess domain.AccountSession, tenantID, cinemaID string, query, form url.Values) (json.RawMessage, error) {
	path, err := orderEndpoint(tenantID, op, cinemaID)
	if err != nil {
		return nil, err
	}
	dom, err := a.domainFor(ctx, tenantID, cinemaID)
	if err != nil {
		return nil, err
	}

	var body []byte
	if form != nil {
		body, err = a.client.postForm(ctx, op, tenantID, dom, path, sess.Token, query, form)
	} else {
		body, err = a.client.get(ctx, op, tenantID, dom, path, sess.Token, query)
	}
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(op, tenantID, body)
}

// CreateOrder places a seat hold. Seats travel as the backend's seat-label
// string ("row-col", comma separated).
func (a *UnifiedCinemaAdapter) CreateOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, sessionID string, seats []string) (*CreateOrderResult, error) {
	form := url.Values{}
	form.Set("schedule_id", sessionID)
	form.Set("seatlable", strings.Join(seats, ","))

	payload, err := a.orderCall(ctx, "orderCreate", sess, tenantID, cinemaID, nil, form)
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, apperrors.NewNormalizationError("orderCreate", tenantID, len(payload), "order payload is not an object")
	}
	orderID := rec.str(orderIDAliases...)
	if orderID == "" {
		return nil, apperrors.NewNormalizationError("orderCreate", tenantID, len(payload), "no order id in payload")
	}
	return &CreateOrderResult{
		OrderID:    orderID,
		ServerTime: rec.str("server_time", "serverTime"),
	}, nil
}

// OrderDetail fetches the current backend view of an order, including the
// ticket codes once paid.
func (a *UnifiedCinemaAdapter) OrderDetail(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) (*OrderDetailResult, error) {
	query := wmVersionQuery(tenantID)
	query.Set("order_id", orderID)

	payload, err := a.orderCall(ctx, "orderInfo", sess, tenantID, cinemaID, query, nil)
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, apperrors.NewNormalizationError("orderInfo", tenantID, len(payload), "detail payload is not an object")
	}

	out := &OrderDetailResult{
		OrderID:           rec.str(orderIDAliases...),
		TotalPriceCents:   rec.priceCents(tenantID, orderTotalAliases...),
		PayablePriceCents: rec.priceCents(tenantID, orderPayableAliases...),
		StatusDesc:        rec.str(orderStatusDescAliases...),
		MovieName:         rec.str(orderMovieNameAliases...),
		CinemaName:        rec.str(orderCinemaNameAliases...),
		ShowDate:          rec.str(orderShowDateAliases...),
	}
	if out.OrderID == "" {
		out.OrderID = orderID
	}
	if items := rec.sub("ticket_items"); items != nil {
		out.HallName = items.str(hallNameAliases...)
		out.SeatInfo = items.str("seat_info", "seatInfo")
	}
	out.Ticket = extractTicketCode(rec, out.OrderID)
	return out, nil
}

// extractTicketCode splits the ticket_code_arr entries into the serial and
// validation codes some halls print separately.
func extractTicketCode(rec record, orderID string) domain.TicketCode {
	tc := domain.TicketCode{
		OrderID: orderID,
		QRCode:  rec.str(ticketCodeAliases...),
	}
	tc.SerialCode = rec.str(serialCodeAliases...)
	tc.ValidationCode = rec.str(validateCodeAliases...)

	var arrRaw []any
	for _, key := range ticketCodeArrAliases {
		if arr, ok := rec[key].([]any); ok {
			arrRaw = arr
			break
		}
	}
	for _, item := range arrRaw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.ToLower(record(entry).str("name"))
		code := record(entry).str("code")
		if code == "" {
			continue
		}
		switch {
		case strings.Contains(name, "serial") || strings.Contains(name, "序列号"):
			tc.SerialCode = code
			if tc.QRCode == "" {
				tc.QRCode = code
			}
		case strings.Contains(name, "valid") || strings.Contains(name, "verify") || strings.Contains(name, "验证码"):
			tc.ValidationCode = code
		}
	}
	return tc
}

// BindVoucher attaches a voucher through the order-change endpoint. The
// response prices are backend truth; nothing is recomputed locally.
func (a *UnifiedCinemaAdapter) BindVoucher(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID, voucherCode, voucherType string) (*BindVoucherResult, error) {
	if voucherType == "" {
		voucherType = "VGC_T"
	}

	form := url.Values{}
	form.Set("order_id", orderID)
	form.Set("discount_id", "0")
	form.Set("discount_type", "TP_VOUCHER")
	form.Set("card_id", "")
	form.Set("pay_type", "WECHAT")
	form.Set("rewards", "[]")
	form.Set("use_rewards", "Y")
	form.Set("use_limit_cards", "N")
	form.Set("limit_cards", "[]")
	form.Set("voucher_code", voucherCode)
	form.Set("voucher_code_type", voucherType)
	form.Set("ticket_pack_goods", " ")

	payload, err := a.orderCall(ctx, "orderChange", sess, tenantID, cinemaID, wmVersionQuery(tenantID), form)
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, apperrors.NewNormalizationError("orderChange", tenantID, len(payload), "bind payload is not an object")
	}

	out := &BindVoucherResult{
		TotalPriceCents:   rec.priceCents(tenantID, orderTotalAliases...),
		PayablePriceCents: rec.priceCents(tenantID, orderPayableAliases...),
	}
	if use := rec.sub("voucher_use"); use != nil {
		out.DiscountCents = use.priceCents(tenantID, voucherUseTotalAliases...)
		if codes, ok := use["use_codes"].([]any); ok {
			for _, c := range codes {
				if s, ok := c.(string); ok {
					out.UsedCodes = append(out.UsedCodes, s)
				}
			}
		}
	}
	return out, nil
}

// PayOrder settles the order. The pay call is synchronous; an envelope
// success means the order is paid.
func (a *UnifiedCinemaAdapter) PayOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) error {
	form := url.Values{}
	form.Set("order_id", orderID)
	form.Set("pay_type", "WECHANT_OFFICIAL")

	_, err := a.orderCall(ctx, "orderPay", sess, tenantID, cinemaID, wmVersionQuery(tenantID), form)
	return err
}

// CancelOrder voids one unpaid order.
func (a *UnifiedCinemaAdapter) CancelOrder(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, orderID string) error {
	form := url.Values{}
	form.Set("order_id", orderID)

	_, err := a.orderCall(ctx, "orderCancel", sess, tenantID, cinemaID, nil, form)
	return err
}

// ListOrders pages through the account's order history. A zero nextOffset
// means the listing is exhausted.
func (a *UnifiedCinemaAdapter) ListOrders(ctx context.Context, sess domain.AccountSession, tenantID string, offset int) ([]domain.OrderSummary, int, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))

	payload, err := a.orderCall(ctx, "orderList", sess, tenantID, "", query, nil)
	if err != nil {
		return nil, 0, err
	}

	var rec struct {
		Orders     []record `json:"orders"`
		NextOffset int      `json:"next_offset"`
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		// HY returns the list directly.
		var list []record
		if err := json.Unmarshal(payload, &list); err != nil {
			return nil, 0, apperrors.NewNormalizationError("orderList", tenantID, len(payload), "unrecognized order list shape")
		}
		rec.Orders = list
	}

	out := make([]domain.OrderSummary, 0, len(rec.Orders))
	for _, o := range rec.Orders {
		out = append(out, domain.OrderSummary{
			OrderID:    o.str(orderIDAliases...),
			MovieName:  o.str(orderMovieNameAliases...),
			CinemaName: o.str(orderCinemaNameAliases...),
			StatusDesc: o.str(orderStatusDescAliases...),
			ShowDate:   o.str(orderShowDateAliases...),
			TicketNum:  o.intVal(orderTicketNumAliases...),
		})
	}
	return out, rec.NextOffset, nil
}

// CancelUnpaidOrders walks the order listing and cancels every order still
// reported as unpaid. Returns how many cancel calls were issued; the first
// failing call aborts the sweep.
func (a *UnifiedCinemaAdapter) CancelUnpaidOrders(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string) (int, error) {
	summaries, _, err := a.ListOrders(ctx, sess, tenantID, 0)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, s := range summaries {
		if !isUnpaidStatus(s.StatusDesc) {
			continue
		}
		if err := a.CancelOrder(ctx, sess, tenantID, cinemaID, s.OrderID); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

func isUnpaidStatus(desc string) bool {
	switch strings.TrimSpace(desc) {
	case "待支付", "待付款", "未付款", "未支付", "UNPAID", "PENDING_PAYMENT":
		return true
	}
	return false
}
