package repository

import (
	"cinema-ticketing/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Screening ScreeningRepository
	Seat      SeatRepository
	Booking   BookingRepository
	Promotion PromotionRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Screening: NewScreeningRepository(db, log),
		Seat:      NewSeatRepository(db, log),
		Booking:   NewBookingRepository(db, log),
		Promotion: NewPromotionRepository(db, log),
	}
}
