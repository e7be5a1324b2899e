// Package adaptor holds the HTTP handlers. Handlers decode and validate
// requests, delegate to the usecase layer and map its error taxonomy onto
// HTTP status codes.
package adaptor

import (
	"errors"
	"net/http"
	"strings"

	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Screening *ScreeningHandler
	Booking   *BookingHandler
	Payment   *PaymentHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Screening: NewScreeningHandler(service.Screening, log),
		Booking:   NewBookingHandler(service.Booking, log),
		Payment:   NewPaymentHandler(service.Payment, service.Booking, log),
	}
}

// handleServiceError maps the usecase error taxonomy to HTTP responses.
// Shared by all handlers so a given failure always looks the same on the
// wire.
func handleServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	var unavailable *usecase.SeatsUnavailableError

	switch {
	case errors.As(err, &unavailable):
		utils.ResponseConflict(w, "Some seats are no longer available", map[string]any{
			"rejected_seats": unavailable.Rejected,
		})
	case errors.Is(err, usecase.ErrCapacityExceeded):
		utils.ResponseTooManyRequests(w, "Too many concurrent bookings for this screening, try again shortly", 2)
	case errors.Is(err, usecase.ErrReservationExpired):
		utils.ResponseGone(w, "Reservation hold has expired")
	case errors.Is(err, usecase.ErrInvalidPromotion):
		utils.ResponseUnprocessable(w, "Promotion cannot be applied", map[string]any{
			"reason": err.Error(),
		})
	case errors.Is(err, usecase.ErrPaymentMismatch):
		utils.ResponseConflict(w, "Payment state conflicts with booking state", nil)
	case errors.Is(err, usecase.ErrBookingNotFound):
		utils.ResponseNotFound(w, "Booking not found")
	case errors.Is(err, usecase.ErrScreeningNotFound):
		utils.ResponseNotFound(w, "Screening not found")
	case errors.Is(err, usecase.ErrScreeningStarted):
		utils.ResponseUnprocessable(w, "Screening has already started", nil)
	case errors.Is(err, usecase.ErrNotBookable):
		utils.ResponseUnprocessable(w, "Screening is not open for booking", nil)
	default:
		if isClientError(err) {
			utils.ResponseBadRequest(w, err.Error(), nil)
			return
		}
		log.Error("Unhandled service error", zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

// isClientError recognizes validation and parse failures surfaced as plain
// wrapped errors rather than sentinels.
func isClientError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"validation failed", "invalid ", "unauthorized", "duplicate ", "booking status is", "unsupported callback status", "ends_at must"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
