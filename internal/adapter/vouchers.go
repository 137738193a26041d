package adapter

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/util"
)

type VoucherPage struct {
	Vouchers []domain.Voucher
	Page     domain.PageInfo
}

// ListVoucherPage fetches one page of the account's voucher wallet. Page
// indexes start at 1; the returned PageInfo tells the caller how many pages
// the backend reports in total.
func (a *UnifiedCinemaAdapter) ListVoucherPage(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string, pageIndex int) (*VoucherPage, error) {
	query := url.Values{}
	query.Set("voucher_type", "VGC_T")
	query.Set("page_index", strconv.Itoa(pageIndex))

	payload, err := a.orderCall(ctx, "voucherPage", sess, tenantID, cinemaID, query, nil)
	if err != nil {
		return nil, err
	}
	return parseVoucherPage(tenantID, payload, pageIndex)
}

// AddVoucher binds a voucher code to the account wallet so the next wallet
// fetch lists it.
func (a *UnifiedCinemaAdapter) AddVoucher(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, code string) error {
	form := url.Values{}
	form.Set("voucher_code", code)

	_, err := a.orderCall(ctx, "voucherAdd", sess, tenantID, cinemaID, nil, form)
	return err
}

func parseVoucherPage(tenantID string, payload json.RawMessage, pageIndex int) (*VoucherPage, error) {
	out := &VoucherPage{
		Page: domain.PageInfo{PageNum: pageIndex, TotalPage: 1},
	}

	// Bare-array shape: a single unpaginated page.
	var list []record
	if err := json.Unmarshal(payload, &list); err == nil {
		for _, r := range list {
			out.Vouchers = append(out.Vouchers, toVoucher(tenantID, r))
		}
		out.Page.Total = len(out.Vouchers)
		return out, nil
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, apperrors.NewNormalizationError("voucherPage", tenantID, len(payload), "unrecognized voucher page shape")
	}
	if page := rec.sub("page"); page != nil {
		out.Page.PageNum = page.intVal("page_num", "pageNum", "pageindex")
		out.Page.TotalPage = page.intVal("total_page", "totalPage", "totalpage")
		out.Page.Total = page.intVal("counts", "total", "count")
	} else if tp := rec.intVal("total_page", "totalpage"); tp > 0 {
		out.Page.TotalPage = tp
	}
	if out.Page.PageNum == 0 {
		out.Page.PageNum = pageIndex
	}
	if out.Page.TotalPage == 0 {
		out.Page.TotalPage = 1
	}

	for _, key := range []string{"result", "list", "vouchers", "data"} {
		raw, ok := rec[key].([]any)
		if !ok {
			continue
		}
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				out.Vouchers = append(out.Vouchers, toVoucher(tenantID, record(m)))
			}
		}
		break
	}
	if out.Page.Total == 0 {
		out.Page.Total = len(out.Vouchers)
	}
	return out, nil
}

func toVoucher(tenantID string, r record) domain.Voucher {
	v := domain.Voucher{
		Code:         r.str(voucherCodeAliases...),
		Name:         r.str(voucherNameAliases...),
		Status:       voucherStatusOf(r.str(voucherStatusAliases...)),
		BalanceCents: r.priceCents(tenantID, voucherBalanceAliases...),
		Description:  r.str(voucherDescAliases...),
		ScopeDesc:    r.str(voucherScopeAliases...),
	}
	v.CodeMask = util.MaskCode(v.Code)
	if t, ok := util.ParseExpireTime(r.str(voucherExpireAliases...)); ok {
		v.ExpireTime = t
	}
	return v
}

func voucherStatusOf(raw string) domain.VoucherStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "UN_USE", "UNUSED", "0", "":
		return domain.VoucherUnused
	case "USED", "USE", "1":
		return domain.VoucherUsed
	default:
		return domain.VoucherDisabled
	}
}
