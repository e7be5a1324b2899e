package usecase

import (
	"context"

	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/gateway"
	"cinema-ticketing/internal/queue"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

// EventPublisher emits booking lifecycle events to downstream consumers.
// Satisfied by queue.Publisher.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
	BookingCancelled(ctx context.Context, event queue.BookingCancelledEvent) error
	BookingExpired(ctx context.Context, event queue.BookingExpiredEvent) error
}

type Service struct {
	Screening   ScreeningService
	Reservation ReservationService
	Promotion   PromotionService
	Booking     BookingService
	Payment     PaymentService
}

func NewService(
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
	publisher EventPublisher,
	gw gateway.PaymentGateway,
) *Service {
	reservation := NewReservationService(repo, config, log)
	promotion := NewPromotionService(repo, log)
	booking := NewBookingService(repo, reservation, promotion, gw, publisher, config, log)

	return &Service{
		Screening:   NewScreeningService(repo, config, log),
		Reservation: reservation,
		Promotion:   promotion,
		Booking:     booking,
		Payment:     NewPaymentService(repo, booking, log),
	}
}
