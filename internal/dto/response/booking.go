package response

import (
	"time"

	"cinema-ticketing/internal/data/entity"
)

type BookingResponse struct {
	ID            string               `json:"id"`
	BookingNumber string               `json:"booking_number"`
	UserID        string               `json:"user_id"`
	ScreeningID   string               `json:"screening_id"`
	SeatCodes     []string             `json:"seat_codes"`
	Subtotal      float64              `json:"subtotal"`
	Discount      float64              `json:"discount"`
	Tax           float64              `json:"tax"`
	GrandTotal    float64              `json:"grand_total"`
	Status        entity.BookingStatus `json:"status"`
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	PaymentMethod string               `json:"payment_method"`
	HoldExpiresAt time.Time            `json:"hold_expires_at"`
	CreatedAt     time.Time            `json:"created_at"`
}

type BookingDetailResponse struct {
	BookingResponse
	Screening ScreeningSummary `json:"screening"`
}

type ScreeningSummary struct {
	MovieID   string  `json:"movie_id"`
	VenueName string  `json:"venue_name"`
	RoomName  string  `json:"room_name"`
	StartsAt  string  `json:"starts_at"`
	Format    string  `json:"format"`
	BasePrice float64 `json:"base_price"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID.String(),
		BookingNumber: b.BookingNumber,
		UserID:        b.UserID.String(),
		ScreeningID:   b.ScreeningID.String(),
		SeatCodes:     b.SeatCodes,
		Subtotal:      b.Subtotal,
		Discount:      b.Discount,
		Tax:           b.Tax,
		GrandTotal:    b.GrandTotal,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		PaymentMethod: b.PaymentMethod,
		HoldExpiresAt: b.HoldExpiresAt,
		CreatedAt:     b.CreatedAt,
	}
}

func ScreeningToSummary(s *entity.Screening) ScreeningSummary {
	return ScreeningSummary{
		MovieID:   s.MovieID.String(),
		VenueName: s.VenueName,
		RoomName:  s.RoomName,
		StartsAt:  s.StartsAt.Format(time.RFC3339),
		Format:    string(s.Format),
		BasePrice: s.BasePrice,
	}
}
