package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the API. Everything below /api/v1 except session creation
// requires a bearer token.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/session", h.CreateSession)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.middleware)

			r.Route("/catalog", func(r chi.Router) {
				r.Get("/cities", h.ListCities)
				r.Get("/cities/{cityID}/cinemas", h.ListCinemas)
				r.Get("/cinemas/{cinemaID}/movies", h.ListMovies)
				r.Get("/cinemas/{cinemaID}/movies/{movieID}/sessions", h.ListSessions)
				r.Get("/cinemas/{cinemaID}/sessions/{sessionID}/seatmap", h.GetSeatMap)
			})

			r.Route("/vouchers", func(r chi.Router) {
				r.Post("/refresh", h.RefreshVouchers)
				r.Get("/", h.ListVouchers)
				r.Get("/stats", h.VoucherStats)
				r.Post("/", h.AddVoucher)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.BeginOrder)
				r.Get("/", h.ListOrderHistory)
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", h.GetOrder)
					r.Post("/refresh", h.RefreshOrder)
					r.Post("/voucher", h.BindVoucher)
					r.Post("/pay", h.PayOrder)
					r.Get("/ticket", h.GetTicketCode)
					r.Post("/cancel", h.CancelOrder)
					r.Post("/expire-check", h.ExpireCheck)
				})
			})
		})
	})

	return r
}
