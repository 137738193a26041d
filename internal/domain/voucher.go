package domain

import "time"

type VoucherStatus string

const (
	VoucherUnused   VoucherStatus = "UNUSED"
	VoucherUsed     VoucherStatus = "USED"
	VoucherDisabled VoucherStatus = "DISABLED"
)

type Voucher struct {
	Code         string        `json:"code"`
	CodeMask     string        `json:"code_mask"`
	Name         string        `json:"name"`
	Status       VoucherStatus `json:"status"`
	ExpireTime   time.Time     `json:"expire_time"`
	BalanceCents int64         `json:"balance_cents"`
	Description  string        `json:"description,omitempty"`
	ScopeDesc    string        `json:"scope_desc,omitempty"`
}

// Expired reports whether the voucher has passed its expiry at the given
// wall-clock time. Vouchers without an expiry never expire.
func (v Voucher) Expired(now time.Time) bool {
	return !v.ExpireTime.IsZero() && now.After(v.ExpireTime)
}

// Usable reports whether the voucher can be attached to an order.
func (v Voucher) Usable(now time.Time) bool {
	return v.Status == VoucherUnused && !v.Expired(now)
}

// PageInfo describes a paginated voucher listing response.
type PageInfo struct {
	PageNum   int `json:"page_num"`
	TotalPage int `json:"total_page"`
	Total     int `json:"total"`
}
