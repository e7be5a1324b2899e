package wire

import (
	mw "cinema-ticketing/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func (wr *Wiring) bookingRoutes(router *chi.Mux) {
	router.Route("/api/bookings", func(r chi.Router) {
		r.Use(wr.auth())

		// Creation is the contended path; it alone carries the rate limit.
		r.Group(func(r chi.Router) {
			if wr.config.RateLimit.Enabled && wr.rdb != nil {
				r.Use(mw.RateLimit(wr.config.RateLimit, wr.rdb, wr.log))
			}
			r.Post("/", wr.handler.Booking.Create)
		})

		r.Get("/{id}", wr.handler.Booking.GetByID)
		r.Delete("/{id}", wr.handler.Booking.Cancel)
	})

	router.With(wr.auth()).Get("/api/user/bookings", wr.handler.Booking.GetUserBookings)
}
