// Package http exposes the catalogue, voucher and order operations over a
// JSON API. Sessions are carried as signed bearer tokens minted from the
// backend account credentials.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cinetick/cinetick/internal/adapter"
	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/internal/order"
	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/internal/voucher"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/logger"
)

type Handler struct {
	catalog   *adapter.UnifiedCinemaAdapter
	vouchers  *voucher.Service
	orders    *order.Manager
	auth      *authenticator
	logger    logger.Logger
	validator *validator.Validate
}

func NewHandler(catalog *adapter.UnifiedCinemaAdapter, vouchers *voucher.Service, orders *order.Manager, jwtSecret string, jwtExpiry time.Duration, l logger.Logger) *Handler {
	return &Handler{
		catalog:   catalog,
		vouchers:  vouchers,
		orders:    orders,
		auth:      newAuthenticator(jwtSecret, jwtExpiry),
		logger:    l,
		validator: validator.New(),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "cinetick",
	})
}

type createSessionRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	Token    string `json:"token" validate:"required"`
	OpenID   string `json:"open_id"`
	CinemaID string `json:"cinema_id"`
}

// CreateSession exchanges backend account credentials for an API token.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Validation failed", err)
		return
	}

	sess := domain.AccountSession{
		UserID:   req.UserID,
		Token:    req.Token,
		OpenID:   req.OpenID,
		CinemaID: req.CinemaID,
	}
	token, err := h.auth.mint(req.TenantID, sess)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "Failed to mint token", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	cities, err := h.catalog.ListCities(r.Context(), s.sess, s.tenantID)
	if err != nil {
		h.respondBackendError(w, r, "list cities", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"cities": cities})
}

func (h *Handler) ListCinemas(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	cityID := chi.URLParam(r, "cityID")
	cinemas, err := h.catalog.ListCinemas(r.Context(), s.sess, s.tenantID, cityID)
	if err != nil {
		h.respondBackendError(w, r, "list cinemas", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"cinemas": cinemas})
}

func (h *Handler) ListMovies(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	cinemaID := chi.URLParam(r, "cinemaID")
	movies, err := h.catalog.ListMovies(r.Context(), s.sess, s.tenantID, cinemaID)
	if err != nil {
		h.respondBackendError(w, r, "list movies", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"movies": movies})
}

// ListSessions serves one date by default; a comma-separated dates parameter
// fans out across dates.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	cinemaID := chi.URLParam(r, "cinemaID")
	movieID := chi.URLParam(r, "movieID")

	var (
		sessions []domain.Session
		err      error
	)
	if dates := r.URL.Query().Get("dates"); dates != "" {
		sessions, err = h.catalog.ListSessionsRange(r.Context(), s.sess, s.tenantID, cinemaID, movieID, strings.Split(dates, ","))
	} else {
		sessions, err = h.catalog.ListSessions(r.Context(), s.sess, s.tenantID, cinemaID, movieID, r.URL.Query().Get("date"))
	}
	if err != nil {
		h.respondBackendError(w, r, "list sessions", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) GetSeatMap(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	cinemaID := chi.URLParam(r, "cinemaID")
	sessionID := chi.URLParam(r, "sessionID")
	sm, err := h.catalog.GetSeatMap(r.Context(), s.sess, s.tenantID, cinemaID, sessionID)
	if err != nil {
		h.respondBackendError(w, r, "get seat map", err)
		return
	}
	h.respondJSON(w, http.StatusOK, sm)
}

// RefreshVouchers re-fetches the whole wallet. A partial fetch answers 206
// with whatever pages completed.
func (h *Handler) RefreshVouchers(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	cinemaID := r.URL.Query().Get("cinema_id")
	vouchers, err := h.vouchers.FetchAll(r.Context(), s.sess, s.tenantID, cinemaID)
	if err != nil {
		var pf *apperrors.PartialFetchError
		if errors.As(err, &pf) {
			h.respondJSON(w, http.StatusPartialContent, map[string]any{
				"vouchers":        vouchers,
				"pages_completed": pf.Pages,
				"total_pages":     pf.TotalPages,
			})
			return
		}
		h.respondBackendError(w, r, "refresh vouchers", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"vouchers": vouchers})
}

func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := voucher.FilterOptions{Name: q.Get("name")}
	if v := q.Get("status"); v != "" {
		st := domain.VoucherStatus(strings.ToUpper(v))
		opts.Status = &st
	}
	if v := q.Get("expired"); v != "" {
		expired := v == "true" || v == "1"
		opts.Expired = &expired
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"vouchers": h.vouchers.Filter(opts)})
}

func (h *Handler) VoucherStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.vouchers.Stats(time.Now()))
}

type addVoucherRequest struct {
	Code     string `json:"code" validate:"required"`
	CinemaID string `json:"cinema_id"`
}

func (h *Handler) AddVoucher(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	var req addVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Validation failed", err)
		return
	}
	if err := h.catalog.AddVoucher(r.Context(), s.sess, s.tenantID, req.CinemaID, req.Code); err != nil {
		h.respondBackendError(w, r, "add voucher", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

type beginOrderRequest struct {
	CinemaID  string   `json:"cinema_id" validate:"required"`
	SessionID string   `json:"session_id" validate:"required"`
	Seats     []string `json:"seats" validate:"required,min=1"`
}

func (h *Handler) BeginOrder(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	var req beginOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Validation failed", err)
		return
	}

	o, err := h.orders.Begin(r.Context(), s.sess, s.tenantID, req.CinemaID, req.SessionID, req.Seats)
	if err != nil {
		h.respondBackendError(w, r, "begin order", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondBackendError(w, r, "get order", err)
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

func (h *Handler) RefreshOrder(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	o, err := h.orders.LoadDetail(r.Context(), s.sess, chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondBackendError(w, r, "refresh order", err)
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

type bindVoucherRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) BindVoucher(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	var req bindVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Validation failed", err)
		return
	}

	o, err := h.orders.BindVoucher(r.Context(), s.sess, chi.URLParam(r, "orderID"), req.Code)
	if err != nil {
		h.respondBackendError(w, r, "bind voucher", err)
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	o, err := h.orders.RequestPayment(r.Context(), s.sess, chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondBackendError(w, r, "pay order", err)
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

func (h *Handler) GetTicketCode(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	tc, err := h.orders.RetrieveTicketCode(r.Context(), s.sess, chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondBackendError(w, r, "get ticket code", err)
		return
	}
	h.respondJSON(w, http.StatusOK, tc)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	o, err := h.orders.Cancel(r.Context(), s.sess, chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondBackendError(w, r, "cancel order", err)
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

func (h *Handler) ExpireCheck(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	o, err := h.orders.ExpireCheck(r.Context(), s.sess, chi.URLParam(r, "orderID"), time.Now())
	if err != nil {
		h.respondBackendError(w, r, "expire check", err)
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrderHistory(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	summaries, next, err := h.catalog.ListOrders(r.Context(), s.sess, s.tenantID, offset)
	if err != nil {
		h.respondBackendError(w, r, "list orders", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"orders":      summaries,
		"next_offset": next,
	})
}

func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf(context.Background(), "failed to encode JSON response: %v", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	if err != nil {
		h.logger.Debugf(r.Context(), "error response %d: %s: %v", statusCode, message, err)
	}
	h.respondJSON(w, statusCode, map[string]any{
		"error": message,
		"code":  statusCode,
	})
}

// respondBackendError maps the error taxonomy onto HTTP statuses. Backend
// reason codes are passed through so the client can map them to display text.
func (h *Handler) respondBackendError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var be *apperrors.BusinessError
	if errors.As(err, &be) {
		status := http.StatusBadGateway
		switch be.Code {
		case apperrors.CodeOrderNotFound:
			status = http.StatusNotFound
		case apperrors.CodeInvalidTransition, apperrors.CodeVoucherNotApplied:
			status = http.StatusConflict
		case apperrors.CodeUnknownTenant:
			status = http.StatusBadRequest
		default:
			status = http.StatusUnprocessableEntity
		}
		h.respondJSON(w, status, map[string]any{
			"error": be.Message,
			"ret":   be.Code,
			"sub":   be.Sub,
		})
		return
	}
	if errors.Is(err, tenant.ErrUnknownTenant) {
		h.respondError(w, r, http.StatusBadRequest, "Unknown tenant", err)
		return
	}

	var ne *apperrors.NormalizationError
	if errors.As(err, &ne) {
		h.logger.Errorf(r.Context(), "%s: %v", op, err)
		h.respondError(w, r, http.StatusBadGateway, "Backend response not understood", err)
		return
	}
	if apperrors.IsRetryable(err) {
		h.respondError(w, r, http.StatusBadGateway, "Backend unreachable", err)
		return
	}

	h.logger.Errorf(r.Context(), "%s failed: %v", op, err)
	h.respondError(w, r, http.StatusInternalServerError, "Internal error", err)
}
