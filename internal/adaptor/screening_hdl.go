package adaptor

import (
	"encoding/json"
	"net/http"

	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ScreeningHandler struct {
	service usecase.ScreeningService
	log     *zap.Logger
}

func NewScreeningHandler(service usecase.ScreeningService, log *zap.Logger) *ScreeningHandler {
	return &ScreeningHandler{
		service: service,
		log:     log.With(zap.String("handler", "screening")),
	}
}

func (h *ScreeningHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateScreeningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	screening, err := h.service.CreateScreening(r.Context(), &req)
	if err != nil {
		handleServiceError(w, err, h.log)
		return
	}

	utils.ResponseCreated(w, "Screening created", screening)
}

func (h *ScreeningHandler) GetSeatMap(w http.ResponseWriter, r *http.Request) {
	screeningID := chi.URLParam(r, "id")

	seatMap, err := h.service.GetSeatMap(r.Context(), screeningID)
	if err != nil {
		handleServiceError(w, err, h.log)
		return
	}

	utils.ResponseSuccess(w, "Seat map retrieved", seatMap)
}

func (h *ScreeningHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	screeningID := chi.URLParam(r, "id")

	if err := h.service.CancelScreening(r.Context(), screeningID); err != nil {
		handleServiceError(w, err, h.log)
		return
	}

	utils.ResponseSuccess(w, "Screening cancelled", nil)
}

func (h *ScreeningHandler) SetSeatStatus(w http.ResponseWriter, r *http.Request) {
	screeningID := chi.URLParam(r, "id")

	var req request.SeatMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	affected, err := h.service.SetSeatStatus(r.Context(), screeningID, &req)
	if err != nil {
		handleServiceError(w, err, h.log)
		return
	}

	utils.ResponseSuccess(w, "Seat status updated", map[string]any{
		"affected": affected,
	})
}
