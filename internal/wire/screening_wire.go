package wire

import (
	"github.com/go-chi/chi/v5"
)

func (wr *Wiring) screeningRoutes(router *chi.Mux) {
	// Seat map is public so browsing does not require a session.
	router.Get("/api/screenings/{id}/seats", wr.handler.Screening.GetSeatMap)

	router.Route("/api/admin/screenings", func(r chi.Router) {
		r.Use(wr.auth(), wr.admin())
		r.Post("/", wr.handler.Screening.Create)
		r.Put("/{id}/cancel", wr.handler.Screening.Cancel)
		r.Put("/{id}/seats/maintenance", wr.handler.Screening.SetSeatStatus)
	})
}
