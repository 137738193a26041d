package adapter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cinetick/cinetick/internal/tenant"
)

// record is one loosely-typed backend object. The alias tables below map each
// canonical field to the source field names the two backend families use, so
// adding a tenant is a data change, not a code change.
type record map[string]any

// str returns the first non-empty string value among the aliased keys.
// Numeric values are stringified, since both backends mix number and string
// identifiers freely.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			if t == math.Trunc(t) {
				return strconv.FormatInt(int64(t), 10)
			}
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		}
	}
	return ""
}

// intVal returns the first numeric value among the aliased keys.
func (r record) intVal(keys ...string) int {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return n
			}
		}
	}
	return 0
}

// priceCents normalizes a price among the aliased keys to integer cents. The
// unit is a property of the tenant's wire family, not of the value: WM
// backends send integer cents, HY backends send decimal yuan. Either family
// may stringify the number, and a WM value carrying a decimal point is yuan
// regardless of tenant.
func (r record) priceCents(tenantID string, keys ...string) int64 {
	cents := tenantID == tenant.TenantWM
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			if cents && t == math.Trunc(t) {
				return int64(t)
			}
			return int64(math.Round(t * 100))
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			if !strings.Contains(s, ".") {
				if n, err := strconv.ParseInt(s, 10, 64); err == nil {
					if cents {
						return n
					}
					return n * 100
				}
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return int64(math.Round(f * 100))
			}
		}
	}
	return 0
}

// sub returns a nested object value.
func (r record) sub(key string) record {
	if v, ok := r[key].(map[string]any); ok {
		return record(v)
	}
	return nil
}

// Per-entity alias tables. Order within a slice is the lookup priority; WM
// snake_case names come first since WM is the busier tenant.
var (
	cityIDAliases     = []string{"city_id", "id", "cityId", "code"}
	cityNameAliases   = []string{"city_name", "name", "cityName"}
	cityPinyinAliases = []string{"city_pinyin", "pinyin", "code", "cityCode"}

	cinemaIDAliases      = []string{"cinema_id", "id", "cinemaId", "cinemaid"}
	cinemaNameAliases    = []string{"cinema_name", "name", "cinemaName", "cinemaShortName"}
	cinemaAddressAliases = []string{"cinema_addr", "address", "cinemaAddress", "addr"}
	cinemaPhoneAliases   = []string{"cinema_phone", "phone", "cinemaPhone"}
	cinemaDomainAliases  = []string{"base_url", "baseUrl", "domain"}

	movieIDAliases       = []string{"movie_id", "id", "movieId", "fc"}
	movieNameAliases     = []string{"movie_name", "name", "movieName", "fn"}
	movieDurationAliases = []string{"duration", "movieDuration", "fl"}
	movieGenreAliases    = []string{"movie_type", "type", "movieType"}
	moviePosterAliases   = []string{"poster", "moviePoster", "pic_url"}

	sessionIDAliases    = []string{"schedule_id", "id", "sessionId", "seqno"}
	sessionHallAliases  = []string{"hall_name", "hall", "hallName", "hname"}
	sessionTimeAliases  = []string{"show_time", "time", "sessionTime", "st"}
	sessionDateAliases  = []string{"show_date", "date", "sessionDate"}
	sessionPriceAliases = []string{"sale_price", "price", "sessionPrice", "selling_price"}

	hallNameAliases   = []string{"hall_name", "hallName", "hname"}
	seatGridAliases   = []string{"seats", "seat_matrix", "seatMatrix", "room"}
	seatRowAliases    = []string{"row", "rowNum", "row_num"}
	seatColAliases    = []string{"col", "columnNum", "col_num"}
	seatLabelAliases  = []string{"seat_no", "seatNo", "name", "label"}
	seatStatusAliases = []string{"status", "seat_status", "state", "flag"}

	voucherCodeAliases    = []string{"voucher_code", "couponcode", "code"}
	voucherNameAliases    = []string{"voucher_name", "couponname", "name"}
	voucherExpireAliases  = []string{"expire_time_string", "expire_time", "expiredate", "expireTime"}
	voucherBalanceAliases = []string{"voucher_balance", "balance", "leftmoney"}
	voucherStatusAliases  = []string{"status", "voucher_status", "coupon_status"}
	voucherDescAliases    = []string{"voucher_desc", "use_desc", "coupondesc"}
	voucherScopeAliases   = []string{"scope_desc", "use_rule_desc"}

	orderIDAliases         = []string{"order_id", "orderno", "orderNo", "orderId"}
	orderTotalAliases      = []string{"order_total_price", "total_price", "totalprice", "payAmount"}
	orderPayableAliases    = []string{"order_payment_price", "payment_price", "payprice", "actualPayAmount"}
	orderStatusDescAliases = []string{"status_desc", "orderStatusDesc", "statusdesc"}
	orderMovieNameAliases  = []string{"movie_name", "filmname", "filmName"}
	orderCinemaNameAliases = []string{"cinema_name", "cinemaname", "cinemaName"}
	orderShowDateAliases   = []string{"show_date", "showtime", "showTime"}
	orderTicketNumAliases  = []string{"ticket_num", "ticketcount", "ticketNum"}

	ticketCodeAliases      = []string{"ticket_code", "qrCode", "ticketCode"}
	ticketCodeArrAliases   = []string{"ticket_code_arr", "codeList"}
	validateCodeAliases    = []string{"dsValidateCode", "validate_code", "verify_code"}
	serialCodeAliases      = []string{"serial_code", "serialCode"}
	voucherUseTotalAliases = []string{"use_total_price", "discount_price"}
)

// seatStateOf maps the assorted backend seat flags onto the canonical state.
func seatStateOf(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "0", "Y", "OK", "AVAILABLE", "EMPTY":
		return "AVAILABLE"
	case "1", "N", "SOLD", "LOCKED", "S":
		return "SOLD"
	default:
		return "UNAVAILABLE"
	}
}
