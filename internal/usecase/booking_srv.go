package usecase

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/internal/gateway"
	"cinema-ticketing/internal/queue"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService owns the booking state machine:
//
//	pending_payment → confirmed | cancelled | expired
//	confirmed       → refunded
//
// Terminal states are monotonic; the only way out of confirmed is an
// explicit refund, and nothing resurrects an expired or cancelled booking.
type BookingService interface {
	CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBookingByID(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error)
	GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	CancelByUser(ctx context.Context, userID string, bookingID string, reason string) error

	Confirm(ctx context.Context, bookingID uuid.UUID, paymentReference string) error
	Fail(ctx context.Context, bookingID uuid.UUID, reason string) error
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
	CancelConfirmed(ctx context.Context, bookingID uuid.UUID, reason string) error
}

type bookingService struct {
	repo        *repository.Repository
	reservation ReservationService
	promotion   PromotionService
	gateway     gateway.PaymentGateway
	publisher   EventPublisher
	config      *utils.Config
	log         *zap.Logger
}

func NewBookingService(
	repo *repository.Repository,
	reservation ReservationService,
	promotion PromotionService,
	gw gateway.PaymentGateway,
	publisher EventPublisher,
	config *utils.Config,
	log *zap.Logger,
) BookingService {
	return &bookingService{
		repo:        repo,
		reservation: reservation,
		promotion:   promotion,
		gateway:     gw,
		publisher:   publisher,
		config:      config,
		log:         log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID format %s: %w", userID, err)
	}

	screeningID, err := uuid.Parse(req.ScreeningID)
	if err != nil {
		return nil, fmt.Errorf("invalid screening ID format %s: %w", req.ScreeningID, err)
	}

	// The booking ID is minted before the hold so reserved seats carry
	// their owning booking reference from the first write.
	bookingID := uuid.New()

	draft, err := s.reservation.Reserve(ctx, userUUID, bookingID, screeningID, req.SeatCodes)
	if err != nil {
		return nil, err
	}

	var discount float64
	var promotionID *uuid.UUID
	if req.PromotionCode != "" {
		promo, amount, err := s.promotion.Apply(ctx, req.PromotionCode, &PromotionInput{
			UserID:        userUUID,
			MovieID:       draft.Screening.MovieID,
			ScreeningID:   screeningID,
			PaymentMethod: req.PaymentMethod,
			ShowStart:     draft.Screening.StartsAt,
			Subtotal:      draft.Subtotal,
		})
		if err != nil {
			// An invalid code fails the whole request; give the hold back.
			if rerr := s.reservation.ReleaseHold(ctx, screeningID, bookingID, req.SeatCodes); rerr != nil {
				s.log.Error("Failed to release hold after promotion rejection", zap.Error(rerr))
			}
			return nil, err
		}
		discount = amount
		promotionID = &promo.ID
	}

	tax := (draft.Subtotal - discount) * s.config.Reservation.TaxRate
	now := time.Now()

	booking := &entity.Booking{
		Base: entity.Base{
			ID:        bookingID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		BookingNumber: utils.GenerateBookingNumber(),
		UserID:        userUUID,
		ScreeningID:   screeningID,
		SeatCodes:     req.SeatCodes,
		Subtotal:      draft.Subtotal,
		Discount:      discount,
		Tax:           tax,
		GrandTotal:    draft.Subtotal - discount + tax,
		Status:        entity.BookingStatusPendingPayment,
		PaymentStatus: entity.PaymentStatusPending,
		PaymentMethod: req.PaymentMethod,
		PromotionID:   promotionID,
		HoldExpiresAt: draft.HoldExpiresAt,
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		if rerr := s.reservation.ReleaseHold(ctx, screeningID, bookingID, req.SeatCodes); rerr != nil {
			s.log.Error("Failed to release hold after booking create failure", zap.Error(rerr))
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_number", booking.BookingNumber),
		zap.String("user_id", userID),
		zap.String("screening_id", req.ScreeningID),
		zap.Strings("seat_codes", req.SeatCodes),
		zap.Float64("grand_total", booking.GrandTotal),
		zap.Time("hold_expires_at", booking.HoldExpiresAt),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) Confirm(ctx context.Context, bookingID uuid.UUID, paymentReference string) error {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("confirm booking %s: %w", bookingID.String(), err)
	}
	if booking == nil {
		return ErrBookingNotFound
	}

	if booking.Status == entity.BookingStatusConfirmed {
		if booking.PaymentReference != nil && *booking.PaymentReference == paymentReference {
			// Duplicate delivery of the same outcome; nothing to do.
			s.log.Info("Duplicate confirmation ignored",
				zap.String("booking_id", bookingID.String()),
				zap.String("payment_reference", paymentReference),
			)
			return nil
		}
		s.log.Error("Confirmation with conflicting payment reference",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_reference", paymentReference),
		)
		return ErrPaymentMismatch
	}

	if booking.Status.IsTerminal() {
		// Money was captured for a booking that no longer holds seats.
		s.log.Error("Confirmation for resolved booking, manual refund required",
			zap.String("booking_id", bookingID.String()),
			zap.String("booking_status", string(booking.Status)),
			zap.String("payment_reference", paymentReference),
		)
		return ErrPaymentMismatch
	}

	if booking.HoldExpired(time.Now()) {
		// The payment outcome arrived after the hold window; by now the
		// seats may already belong to someone else.
		return s.failConfirmation(ctx, booking, nil, booking.SeatCodes, nil)
	}

	seats, err := s.repo.Seat.FindByCodes(ctx, booking.ScreeningID, booking.SeatCodes)
	if err != nil {
		return fmt.Errorf("confirm booking %s: %w", bookingID.String(), err)
	}

	// Only seats still referencing this booking may be promoted. A seat
	// reclaimed and re-held by another booking passes the version guard at
	// its new version, so the ownership check has to happen here.
	transitions := make([]repository.SeatTransition, 0, len(seats))
	var lost []string
	for _, seat := range seats {
		if seat.BookingID == nil || *seat.BookingID != booking.ID {
			lost = append(lost, seat.SeatCode)
			continue
		}
		transitions = append(transitions, repository.SeatTransition{Code: seat.SeatCode, Version: seat.Version})
	}
	if len(lost) > 0 {
		return s.failConfirmation(ctx, booking, nil, lost, nil)
	}

	applied, rejected, terr := s.repo.Seat.TryTransition(ctx, booking.ScreeningID, transitions,
		entity.SeatStatusReserved, entity.SeatStatusBooked, &booking.UserID, &booking.ID, nil)

	if terr != nil || len(rejected) > 0 {
		return s.failConfirmation(ctx, booking, applied, rejected, terr)
	}

	ok, err := s.repo.Booking.MarkConfirmed(ctx, bookingID, paymentReference)
	if err != nil {
		return fmt.Errorf("confirm booking %s: %w", bookingID.String(), err)
	}
	if !ok {
		// A concurrent resolution (sweep or cancellation) won the status
		// race; undo the seat bookings and report the mismatch.
		s.revertBookedSeats(ctx, booking, applied)
		s.log.Error("Booking resolved concurrently during confirmation",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_reference", paymentReference),
		)
		return ErrPaymentMismatch
	}

	// Second phase of the discount commit: usage counts only for bookings
	// that actually confirmed.
	if booking.PromotionID != nil {
		if err := s.promotion.CommitUsage(ctx, *booking.PromotionID, booking.ID, booking.UserID, booking.Discount); err != nil {
			s.log.Error("Failed to commit promotion usage", zap.Error(err),
				zap.String("booking_id", bookingID.String()))
		}
	}

	s.resolveHold(ctx, booking.ScreeningID)

	s.log.Info("Booking confirmed",
		zap.String("booking_id", bookingID.String()),
		zap.String("booking_number", booking.BookingNumber),
		zap.String("payment_reference", paymentReference),
	)

	if err := s.publisher.BookingConfirmed(ctx, queue.BookingConfirmedEvent{
		BookingID:     booking.ID.String(),
		BookingNumber: booking.BookingNumber,
		UserID:        booking.UserID.String(),
		ScreeningID:   booking.ScreeningID.String(),
		SeatCodes:     booking.SeatCodes,
		GrandTotal:    booking.GrandTotal,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Warn("Failed to publish booking confirmed event", zap.Error(err))
	}

	return nil
}

// failConfirmation handles a confirm call whose seat transitions did not
// fully apply. Inside the original hold window the booked subset is put
// back to reserved and the caller may retry; past it the booking is
// force-expired and the captured payment must be refunded.
func (s *bookingService) failConfirmation(ctx context.Context, booking *entity.Booking, applied, rejected []string, terr error) error {
	now := time.Now()

	if terr == nil && !booking.HoldExpired(now) {
		s.revertBookedSeats(ctx, booking, applied)
		s.log.Error("Confirmation lost seats inside hold window, manual reconciliation required",
			zap.String("booking_id", booking.ID.String()),
			zap.Strings("rejected", rejected),
		)
		return ErrPaymentMismatch
	}

	// Hold lapsed: release whatever this booking still holds, expire it
	// and surface the refund obligation. Seats that moved on to another
	// booking are not ours to touch.
	if err := s.repo.Seat.Release(ctx, booking.ScreeningID, booking.ID, booking.SeatCodes); err != nil {
		s.log.Error("Failed to release seats of expired confirmation", zap.Error(err),
			zap.String("booking_id", booking.ID.String()))
	}

	ok, err := s.repo.Booking.TransitionStatus(ctx, booking.ID,
		entity.BookingStatusPendingPayment, entity.BookingStatusExpired)
	if err != nil {
		s.log.Error("Failed to expire booking after lost confirmation", zap.Error(err),
			zap.String("booking_id", booking.ID.String()))
	}
	if ok {
		s.resolveHold(ctx, booking.ScreeningID)
		s.publishExpired(ctx, booking, now)
	}

	s.log.Error("Confirmation arrived after hold expiry, payment must be refunded",
		zap.String("booking_id", booking.ID.String()),
		zap.Strings("rejected", rejected),
	)

	if terr != nil {
		return fmt.Errorf("confirm booking %s: %w", booking.ID.String(), terr)
	}
	return fmt.Errorf("confirm booking %s: %w", booking.ID.String(), ErrReservationExpired)
}

// revertBookedSeats puts a partially booked subset back to reserved with
// the original expiry, re-reading versions for the check-and-set.
func (s *bookingService) revertBookedSeats(ctx context.Context, booking *entity.Booking, applied []string) {
	if len(applied) == 0 {
		return
	}

	seats, err := s.repo.Seat.FindByCodes(ctx, booking.ScreeningID, applied)
	if err != nil {
		s.log.Error("Failed to re-read seats for confirmation rollback", zap.Error(err),
			zap.String("booking_id", booking.ID.String()))
		return
	}

	transitions := make([]repository.SeatTransition, 0, len(seats))
	for _, seat := range seats {
		if seat.Status == entity.SeatStatusBooked {
			transitions = append(transitions, repository.SeatTransition{Code: seat.SeatCode, Version: seat.Version})
		}
	}

	expiry := booking.HoldExpiresAt
	if _, rejected, err := s.repo.Seat.TryTransition(ctx, booking.ScreeningID, transitions,
		entity.SeatStatusBooked, entity.SeatStatusReserved, &booking.UserID, &booking.ID, &expiry); err != nil || len(rejected) > 0 {
		s.log.Error("Confirmation rollback incomplete, seats left to expiry sweep",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.Strings("rejected", rejected),
		)
	}
}

func (s *bookingService) Fail(ctx context.Context, bookingID uuid.UUID, reason string) error {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("fail booking %s: %w", bookingID.String(), err)
	}
	if booking == nil {
		return ErrBookingNotFound
	}

	if booking.Status == entity.BookingStatusCancelled {
		// Duplicate failure delivery.
		return nil
	}
	if booking.Status != entity.BookingStatusPendingPayment {
		s.log.Error("Failure callback for resolved booking",
			zap.String("booking_id", bookingID.String()),
			zap.String("booking_status", string(booking.Status)),
		)
		return ErrPaymentMismatch
	}

	ok, err := s.repo.Booking.TransitionStatus(ctx, bookingID,
		entity.BookingStatusPendingPayment, entity.BookingStatusCancelled)
	if err != nil {
		return fmt.Errorf("fail booking %s: %w", bookingID.String(), err)
	}
	if !ok {
		return ErrPaymentMismatch
	}

	if err := s.repo.Seat.Release(ctx, booking.ScreeningID, booking.ID, booking.SeatCodes); err != nil {
		s.log.Error("Failed to release seats of cancelled booking", zap.Error(err),
			zap.String("booking_id", bookingID.String()))
	}

	s.resolveHold(ctx, booking.ScreeningID)

	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("booking_number", booking.BookingNumber),
		zap.String("reason", reason),
	)

	if err := s.publisher.BookingCancelled(ctx, queue.BookingCancelledEvent{
		BookingID:     booking.ID.String(),
		BookingNumber: booking.BookingNumber,
		UserID:        booking.UserID.String(),
		ScreeningID:   booking.ScreeningID.String(),
		SeatCodes:     booking.SeatCodes,
		Reason:        reason,
		CancelledAt:   time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Warn("Failed to publish booking cancelled event", zap.Error(err))
	}

	return nil
}

// ExpireSweep reclaims pending bookings whose holds lapsed; the
// compensating action for abandoned checkouts. Safe to run concurrently
// with live confirmations: the status compare-and-set decides the winner.
func (s *bookingService) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	batch := s.config.Reservation.SweepBatchSize
	if batch < 1 {
		batch = 100
	}

	expired, err := s.repo.Booking.FindExpiredPending(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("expire sweep: %w", err)
	}

	count := 0
	for _, booking := range expired {
		ok, err := s.repo.Booking.TransitionStatus(ctx, booking.ID,
			entity.BookingStatusPendingPayment, entity.BookingStatusExpired)
		if err != nil {
			s.log.Error("Failed to expire booking", zap.Error(err),
				zap.String("booking_id", booking.ID.String()))
			continue
		}
		if !ok {
			// Confirmed or cancelled since the read; not ours to expire.
			continue
		}

		if err := s.repo.Seat.Release(ctx, booking.ScreeningID, booking.ID, booking.SeatCodes); err != nil {
			s.log.Error("Failed to release seats of expired booking", zap.Error(err),
				zap.String("booking_id", booking.ID.String()))
		}

		s.resolveHold(ctx, booking.ScreeningID)
		s.publishExpired(ctx, booking, now)
		count++
	}

	if count > 0 {
		s.log.Info("Expire sweep reclaimed bookings", zap.Int("count", count))
	}

	return count, nil
}

func (s *bookingService) CancelConfirmed(ctx context.Context, bookingID uuid.UUID, reason string) error {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("cancel confirmed booking %s: %w", bookingID.String(), err)
	}
	if booking == nil {
		return ErrBookingNotFound
	}

	if booking.Status != entity.BookingStatusConfirmed {
		return fmt.Errorf("booking %s is %s, cannot refund", bookingID.String(), booking.Status)
	}

	screening, err := s.repo.Screening.FindByID(ctx, booking.ScreeningID)
	if err != nil {
		return fmt.Errorf("cancel confirmed booking %s: %w", bookingID.String(), err)
	}
	if screening == nil {
		return ErrScreeningNotFound
	}
	if !screening.StartsAt.After(time.Now()) {
		return ErrScreeningStarted
	}

	ok, err := s.repo.Booking.MarkRefunded(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("cancel confirmed booking %s: %w", bookingID.String(), err)
	}
	if !ok {
		return ErrPaymentMismatch
	}

	// Seats go straight back on sale, not into a new hold.
	if err := s.repo.Seat.Release(ctx, booking.ScreeningID, booking.ID, booking.SeatCodes); err != nil {
		s.log.Error("Failed to release seats of refunded booking", zap.Error(err),
			zap.String("booking_id", bookingID.String()))
	}

	if err := s.repo.Screening.RefreshAvailability(ctx, booking.ScreeningID); err != nil {
		s.log.Warn("Availability refresh failed", zap.Error(err))
	}

	// Fire-and-forget: the provider tracks refund completion.
	reference := booking.BookingNumber
	if booking.PaymentReference != nil {
		reference = *booking.PaymentReference
	}
	if err := s.gateway.Refund(ctx, reference, booking.GrandTotal); err != nil {
		s.log.Error("Refund request failed", zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("reference", reference))
	}

	s.log.Info("Booking refunded",
		zap.String("booking_id", bookingID.String()),
		zap.String("booking_number", booking.BookingNumber),
		zap.String("reason", reason),
	)

	if err := s.publisher.BookingCancelled(ctx, queue.BookingCancelledEvent{
		BookingID:     booking.ID.String(),
		BookingNumber: booking.BookingNumber,
		UserID:        booking.UserID.String(),
		ScreeningID:   booking.ScreeningID.String(),
		SeatCodes:     booking.SeatCodes,
		Reason:        reason,
		Refunded:      true,
		CancelledAt:   time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Warn("Failed to publish booking cancelled event", zap.Error(err))
	}

	return nil
}

func (s *bookingService) CancelByUser(ctx context.Context, userID string, bookingID string, reason string) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user ID format %s: %w", userID, err)
	}

	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking ID format %s: %w", bookingID, err)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return ErrBookingNotFound
	}

	if booking.UserID != userUUID {
		return fmt.Errorf("unauthorized to cancel this booking")
	}

	switch booking.Status {
	case entity.BookingStatusPendingPayment:
		return s.Fail(ctx, id, reason)
	case entity.BookingStatusConfirmed:
		return s.CancelConfirmed(ctx, id, reason)
	default:
		return fmt.Errorf("booking status is %s, cannot cancel", booking.Status)
	}
}

func (s *bookingService) GetBookingByID(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking ID format %s: %w", bookingID, err)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	detail := &response.BookingDetailResponse{
		BookingResponse: response.BookingToResponse(booking),
	}

	screening, _ := s.repo.Screening.FindByID(ctx, booking.ScreeningID)
	if screening != nil {
		detail.Screening = response.ScreeningToSummary(screening)
	}

	return detail, nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID format %s: %w", userID, err)
	}

	bookings, err := s.repo.Booking.FindByUserID(ctx, userUUID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("get user bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByUserID(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("count user bookings: %w", err)
	}

	bookingResponses := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		bookingResponses[i] = response.BookingToResponse(booking)
	}

	return response.NewPaginatedResponse(bookingResponses, req.Page, req.PerPage, total), nil
}

// resolveHold ends a hold's occupancy of the concurrency ceiling and
// refreshes the derived availability numbers.
func (s *bookingService) resolveHold(ctx context.Context, screeningID uuid.UUID) {
	if err := s.repo.Screening.DecrementConcurrent(ctx, screeningID); err != nil {
		s.log.Error("Failed to return concurrency slot", zap.Error(err),
			zap.String("screening_id", screeningID.String()))
	}
	if err := s.repo.Screening.RefreshAvailability(ctx, screeningID); err != nil {
		s.log.Warn("Availability refresh failed", zap.Error(err))
	}
}

func (s *bookingService) publishExpired(ctx context.Context, booking *entity.Booking, now time.Time) {
	if err := s.publisher.BookingExpired(ctx, queue.BookingExpiredEvent{
		BookingID:     booking.ID.String(),
		BookingNumber: booking.BookingNumber,
		UserID:        booking.UserID.String(),
		ScreeningID:   booking.ScreeningID.String(),
		SeatCodes:     booking.SeatCodes,
		ExpiredAt:     now.UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Warn("Failed to publish booking expired event", zap.Error(err))
	}
}
