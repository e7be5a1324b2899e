package usecase

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingDraft is the outcome of a successful hold: the seats are reserved
// with an expiry and already reference the booking that is about to be
// persisted.
type BookingDraft struct {
	BookingID     uuid.UUID
	Screening     *entity.Screening
	Seats         []*entity.Seat
	SeatCodes     []string
	Subtotal      float64
	HoldExpiresAt time.Time
}

// ReservationService turns a seat-selection request into a time-limited
// hold. The hold is all-or-nothing from the caller's perspective even
// though the underlying ledger primitive only promises per-seat atomicity.
type ReservationService interface {
	Reserve(ctx context.Context, userID, bookingID, screeningID uuid.UUID, seatCodes []string) (*BookingDraft, error)

	// ReleaseHold undoes a hold that never became a confirmed booking and
	// frees the concurrency slot it occupied. Only seats still held for
	// the given booking are released.
	ReleaseHold(ctx context.Context, screeningID, bookingID uuid.UUID, seatCodes []string) error
}

type reservationService struct {
	repo   *repository.Repository
	config *utils.Config
	log    *zap.Logger
}

func NewReservationService(repo *repository.Repository, config *utils.Config, log *zap.Logger) ReservationService {
	return &reservationService{
		repo:   repo,
		config: config,
		log:    log.With(zap.String("service", "reservation")),
	}
}

func (s *reservationService) Reserve(ctx context.Context, userID, bookingID, screeningID uuid.UUID, seatCodes []string) (*BookingDraft, error) {
	if len(seatCodes) == 0 {
		return nil, fmt.Errorf("invalid seat selection: no seats requested")
	}
	if utils.HasDuplicates(seatCodes) {
		return nil, fmt.Errorf("invalid seat selection: duplicate seat codes")
	}

	now := time.Now()

	screening, err := s.repo.Screening.FindByID(ctx, screeningID)
	if err != nil {
		return nil, fmt.Errorf("reserve on screening %s: %w", screeningID.String(), err)
	}
	if screening == nil {
		return nil, ErrScreeningNotFound
	}
	if !screening.Bookable(now) {
		return nil, ErrNotBookable
	}

	// Opportunistic sweep so stale holds never block a live sale.
	if released, err := s.repo.Seat.ReleaseExpired(ctx, screeningID, now); err != nil {
		s.log.Warn("Pre-reserve expiry sweep failed", zap.Error(err),
			zap.String("screening_id", screeningID.String()))
	} else if len(released) > 0 {
		s.log.Info("Reclaimed expired holds before reserve",
			zap.String("screening_id", screeningID.String()),
			zap.Strings("seat_codes", released),
		)
		if err := s.repo.Screening.RefreshAvailability(ctx, screeningID); err != nil {
			s.log.Warn("Availability refresh failed", zap.Error(err))
		}
	}

	// The ceiling bounds in-flight holds, not seat availability. Take the
	// slot before touching any seat so a throttled request provably leaves
	// the ledger untouched.
	ok, err := s.repo.Screening.IncrementConcurrent(ctx, screeningID)
	if err != nil {
		return nil, fmt.Errorf("reserve on screening %s: %w", screeningID.String(), err)
	}
	if !ok {
		return nil, ErrCapacityExceeded
	}

	draft, err := s.holdSeats(ctx, userID, bookingID, screening, seatCodes, now)
	if err != nil {
		if derr := s.repo.Screening.DecrementConcurrent(ctx, screeningID); derr != nil {
			s.log.Error("Failed to return concurrency slot", zap.Error(derr),
				zap.String("screening_id", screeningID.String()))
		}
		return nil, err
	}

	if err := s.repo.Screening.RefreshAvailability(ctx, screeningID); err != nil {
		s.log.Warn("Availability refresh failed", zap.Error(err))
	}

	s.log.Info("Seats held",
		zap.String("screening_id", screeningID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("user_id", userID.String()),
		zap.Strings("seat_codes", seatCodes),
		zap.Time("hold_expires_at", draft.HoldExpiresAt),
	)

	return draft, nil
}

// holdSeats runs the optimistic transition and reconstructs all-or-nothing
// semantics with a compensating release of whatever subset succeeded.
func (s *reservationService) holdSeats(ctx context.Context, userID, bookingID uuid.UUID, screening *entity.Screening, seatCodes []string, now time.Time) (*BookingDraft, error) {
	seats, err := s.repo.Seat.FindByCodes(ctx, screening.ID, seatCodes)
	if err != nil {
		return nil, fmt.Errorf("read seats for hold: %w", err)
	}

	if len(seats) != len(seatCodes) {
		known := make(map[string]struct{}, len(seats))
		for _, seat := range seats {
			known[seat.SeatCode] = struct{}{}
		}
		var missing []string
		for _, code := range seatCodes {
			if _, ok := known[code]; !ok {
				missing = append(missing, code)
			}
		}
		return nil, &SeatsUnavailableError{Rejected: missing}
	}

	transitions := make([]repository.SeatTransition, len(seats))
	for i, seat := range seats {
		transitions[i] = repository.SeatTransition{Code: seat.SeatCode, Version: seat.Version}
	}

	expiresAt := now.Add(s.config.Reservation.HoldTTL)
	applied, rejected, terr := s.repo.Seat.TryTransition(ctx, screening.ID, transitions,
		entity.SeatStatusAvailable, entity.SeatStatusReserved, &userID, &bookingID, &expiresAt)

	if terr != nil || len(rejected) > 0 {
		s.rollbackHold(ctx, screening.ID, bookingID, applied)
		if terr != nil {
			return nil, fmt.Errorf("hold seats on screening %s: %w", screening.ID.String(), terr)
		}
		return nil, &SeatsUnavailableError{Rejected: rejected}
	}

	var subtotal float64
	for _, seat := range seats {
		subtotal += seat.Price
	}

	return &BookingDraft{
		BookingID:     bookingID,
		Screening:     screening,
		Seats:         seats,
		SeatCodes:     seatCodes,
		Subtotal:      subtotal,
		HoldExpiresAt: expiresAt,
	}, nil
}

// rollbackHold releases a partially applied hold. The release is retried on
// transient failure; if it still cannot complete, the seats stay held until
// the expiry sweep reclaims them instead of blocking the caller.
func (s *reservationService) rollbackHold(ctx context.Context, screeningID, bookingID uuid.UUID, applied []string) {
	if len(applied) == 0 {
		return
	}

	retries := s.config.Reservation.RollbackRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = s.repo.Seat.Release(ctx, screeningID, bookingID, applied); err == nil {
			return
		}
		s.log.Warn("Hold rollback attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.String("screening_id", screeningID.String()),
			zap.Strings("seat_codes", applied),
		)
	}

	s.log.Error("Hold rollback exhausted retries; seats left to expiry sweep",
		zap.Error(err),
		zap.String("screening_id", screeningID.String()),
		zap.Strings("seat_codes", applied),
	)
}

func (s *reservationService) ReleaseHold(ctx context.Context, screeningID, bookingID uuid.UUID, seatCodes []string) error {
	if err := s.repo.Seat.Release(ctx, screeningID, bookingID, seatCodes); err != nil {
		return fmt.Errorf("release hold on screening %s: %w", screeningID.String(), err)
	}

	if err := s.repo.Screening.DecrementConcurrent(ctx, screeningID); err != nil {
		s.log.Error("Failed to return concurrency slot", zap.Error(err),
			zap.String("screening_id", screeningID.String()))
	}

	if err := s.repo.Screening.RefreshAvailability(ctx, screeningID); err != nil {
		s.log.Warn("Availability refresh failed", zap.Error(err))
	}

	return nil
}
