package wire

import (
	"github.com/go-chi/chi/v5"
)

func (wr *Wiring) paymentRoutes(router *chi.Mux) {
	// Provider webhook; authenticated by reference knowledge, not JWT.
	router.Post("/api/payments/callback", wr.handler.Payment.Callback)

	router.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(wr.auth(), wr.admin())
		r.Post("/expire-sweep", wr.handler.Payment.ExpireSweep)
	})
}
