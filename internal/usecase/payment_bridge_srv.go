package usecase

import (
	"context"
	"fmt"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

// PaymentService translates provider callbacks into booking transitions.
// The provider addresses bookings by the reference handed out at checkout,
// which is the booking number. Callbacks may arrive late, out of order or
// more than once; every path through here must tolerate that.
type PaymentService interface {
	HandleCallback(ctx context.Context, req *request.PaymentCallbackRequest) error
	OnPaymentSucceeded(ctx context.Context, reference string) error
	OnPaymentFailed(ctx context.Context, reference string) error
}

type paymentService struct {
	repo    *repository.Repository
	booking BookingService
	log     *zap.Logger
}

func NewPaymentService(repo *repository.Repository, booking BookingService, log *zap.Logger) PaymentService {
	return &paymentService{
		repo:    repo,
		booking: booking,
		log:     log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) HandleCallback(ctx context.Context, req *request.PaymentCallbackRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Payment callback validation failed", zap.Any("errors", errs))
		return fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	switch req.Status {
	case "succeeded":
		return s.OnPaymentSucceeded(ctx, req.Reference)
	case "failed":
		return s.OnPaymentFailed(ctx, req.Reference)
	default:
		return fmt.Errorf("unsupported callback status %s", req.Status)
	}
}

func (s *paymentService) OnPaymentSucceeded(ctx context.Context, reference string) error {
	booking, err := s.lookup(ctx, reference, "succeeded")
	if err != nil {
		return err
	}
	return s.booking.Confirm(ctx, booking.ID, reference)
}

func (s *paymentService) OnPaymentFailed(ctx context.Context, reference string) error {
	booking, err := s.lookup(ctx, reference, "failed")
	if err != nil {
		return err
	}
	return s.booking.Fail(ctx, booking.ID, "payment failed")
}

func (s *paymentService) lookup(ctx context.Context, reference, outcome string) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByNumber(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("payment callback %s: %w", reference, err)
	}
	if booking == nil {
		s.log.Error("Payment callback for unknown reference, manual reconciliation required",
			zap.String("reference", reference),
			zap.String("callback_status", outcome),
		)
		return nil, ErrBookingNotFound
	}
	return booking, nil
}
