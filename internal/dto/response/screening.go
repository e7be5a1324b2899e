package response

import (
	"time"

	"cinema-ticketing/internal/data/entity"
)

type ScreeningResponse struct {
	ID                     string                 `json:"id"`
	MovieID                string                 `json:"movie_id"`
	VenueName              string                 `json:"venue_name"`
	RoomName               string                 `json:"room_name"`
	StartsAt               string                 `json:"starts_at"`
	EndsAt                 string                 `json:"ends_at"`
	Format                 string                 `json:"format"`
	BasePrice              float64                `json:"base_price"`
	SeatsTotal             int                    `json:"seats_total"`
	SeatsAvailable         int                    `json:"seats_available"`
	Status                 entity.ScreeningStatus `json:"status"`
	ConcurrentBookingLimit int                    `json:"concurrent_booking_limit"`
}

type SeatResponse struct {
	SeatCode string            `json:"seat_code"`
	Row      string            `json:"row"`
	Column   int               `json:"column"`
	Type     entity.SeatType   `json:"type"`
	Price    float64           `json:"price"`
	Status   entity.SeatStatus `json:"status"`
}

type SeatMapResponse struct {
	Screening ScreeningResponse `json:"screening"`
	Seats     []SeatResponse    `json:"seats"`
}

func ScreeningToResponse(s *entity.Screening) ScreeningResponse {
	return ScreeningResponse{
		ID:                     s.ID.String(),
		MovieID:                s.MovieID.String(),
		VenueName:              s.VenueName,
		RoomName:               s.RoomName,
		StartsAt:               s.StartsAt.Format(time.RFC3339),
		EndsAt:                 s.EndsAt.Format(time.RFC3339),
		Format:                 string(s.Format),
		BasePrice:              s.BasePrice,
		SeatsTotal:             s.SeatsTotal,
		SeatsAvailable:         s.SeatsAvailable,
		Status:                 s.Status,
		ConcurrentBookingLimit: s.ConcurrentBookingLimit,
	}
}

func NewSeatMapResponse(s *entity.Screening, seats []*entity.Seat) *SeatMapResponse {
	seatResponses := make([]SeatResponse, len(seats))
	for i, seat := range seats {
		seatResponses[i] = SeatToResponse(seat)
	}
	return &SeatMapResponse{
		Screening: ScreeningToResponse(s),
		Seats:     seatResponses,
	}
}

func SeatToResponse(seat *entity.Seat) SeatResponse {
	return SeatResponse{
		SeatCode: seat.SeatCode,
		Row:      seat.SeatRow,
		Column:   seat.SeatColumn,
		Type:     seat.Type,
		Price:    seat.Price,
		Status:   seat.Status,
	}
}
