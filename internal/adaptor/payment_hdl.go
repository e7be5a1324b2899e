package adaptor

import (
	"encoding/json"
	"net/http"
	"time"

	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	booking usecase.BookingService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, booking usecase.BookingService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		booking: booking,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// Callback receives the payment provider webhook. The provider retries on
// non-2xx, so conflicts are still reported honestly; only duplicate
// deliveries of an already-applied outcome come back 200.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req request.PaymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.HandleCallback(r.Context(), &req); err != nil {
		handleServiceError(w, err, h.log)
		return
	}

	utils.ResponseSuccess(w, "Callback processed", nil)
}

// ExpireSweep lets an operator force a reclamation pass without waiting
// for the background worker.
func (h *PaymentHandler) ExpireSweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.booking.ExpireSweep(r.Context(), time.Now())
	if err != nil {
		handleServiceError(w, err, h.log)
		return
	}

	utils.ResponseSuccess(w, "Expire sweep completed", map[string]any{
		"expired": count,
	})
}
