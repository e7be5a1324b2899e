package usecase

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ScreeningService interface {
	CreateScreening(ctx context.Context, req *request.CreateScreeningRequest) (*response.ScreeningResponse, error)
	GetSeatMap(ctx context.Context, screeningID string) (*response.SeatMapResponse, error)
	CancelScreening(ctx context.Context, screeningID string) error
	SetSeatStatus(ctx context.Context, screeningID string, req *request.SeatMaintenanceRequest) (int64, error)
}

type screeningService struct {
	repo   *repository.Repository
	config *utils.Config
	log    *zap.Logger
}

func NewScreeningService(repo *repository.Repository, config *utils.Config, log *zap.Logger) ScreeningService {
	return &screeningService{
		repo:   repo,
		config: config,
		log:    log.With(zap.String("service", "screening")),
	}
}

func (s *screeningService) CreateScreening(ctx context.Context, req *request.CreateScreeningRequest) (*response.ScreeningResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create screening validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	movieID, err := uuid.Parse(req.MovieID)
	if err != nil {
		return nil, fmt.Errorf("invalid movie ID format %s: %w", req.MovieID, err)
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, fmt.Errorf("invalid starts_at %s: %w", req.StartsAt, err)
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("invalid ends_at %s: %w", req.EndsAt, err)
	}
	if !endsAt.After(startsAt) {
		return nil, fmt.Errorf("ends_at must be after starts_at")
	}

	limit := req.ConcurrentBookingLimit
	if limit < 1 {
		limit = s.config.Reservation.ConcurrentLimit
	}

	now := time.Now()
	screening := &entity.Screening{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		MovieID:                movieID,
		VenueName:              req.VenueName,
		RoomName:               req.RoomName,
		StartsAt:               startsAt,
		EndsAt:                 endsAt,
		Format:                 entity.ScreeningFormat(req.Format),
		BasePrice:              req.BasePrice,
		Status:                 entity.ScreeningStatusOpen,
		ConcurrentBookingLimit: limit,
	}

	seats, err := buildSeats(screening, req.Layout, now)
	if err != nil {
		return nil, err
	}
	screening.SeatsTotal = len(seats)
	screening.SeatsAvailable = len(seats)

	if err := s.repo.Screening.Create(ctx, screening, seats); err != nil {
		return nil, fmt.Errorf("create screening: %w", err)
	}

	s.log.Info("Screening created",
		zap.String("screening_id", screening.ID.String()),
		zap.String("movie_id", req.MovieID),
		zap.String("venue", req.VenueName),
		zap.Int("seats_total", screening.SeatsTotal),
	)

	resp := response.ScreeningToResponse(screening)
	return &resp, nil
}

// buildSeats expands the room layout into one seat row per position. Seat
// codes are row label plus column number, prices scale the base price by
// the seat type multiplier.
func buildSeats(screening *entity.Screening, layout []request.RoomRow, now time.Time) ([]*entity.Seat, error) {
	seats := make([]*entity.Seat, 0, len(layout)*8)
	seen := make(map[string]bool, len(layout))

	for _, row := range layout {
		if seen[row.Row] {
			return nil, fmt.Errorf("duplicate row label %s in layout", row.Row)
		}
		seen[row.Row] = true

		seatType := entity.SeatType(row.SeatType)
		price := screening.BasePrice * seatType.PriceMultiplier()

		for col := 1; col <= row.Seats; col++ {
			seats = append(seats, &entity.Seat{
				ID:          uuid.New(),
				ScreeningID: screening.ID,
				SeatCode:    fmt.Sprintf("%s%d", row.Row, col),
				SeatRow:     row.Row,
				SeatColumn:  col,
				Type:        seatType,
				Price:       price,
				Status:      entity.SeatStatusAvailable,
				Version:     0,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}

	return seats, nil
}

func (s *screeningService) GetSeatMap(ctx context.Context, screeningID string) (*response.SeatMapResponse, error) {
	id, err := uuid.Parse(screeningID)
	if err != nil {
		return nil, fmt.Errorf("invalid screening ID format %s: %w", screeningID, err)
	}

	screening, err := s.repo.Screening.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get seat map: %w", err)
	}
	if screening == nil {
		return nil, ErrScreeningNotFound
	}

	// Lapsed holds are swept lazily so the map the user sees reflects
	// seats that are actually claimable.
	if released, err := s.repo.Seat.ReleaseExpired(ctx, id, time.Now()); err != nil {
		s.log.Warn("Expired hold sweep failed", zap.Error(err))
	} else if len(released) > 0 {
		if err := s.repo.Screening.RefreshAvailability(ctx, id); err != nil {
			s.log.Warn("Availability refresh failed", zap.Error(err))
		}
	}

	seats, err := s.repo.Seat.FindByScreening(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get seat map: %w", err)
	}

	return response.NewSeatMapResponse(screening, seats), nil
}

func (s *screeningService) CancelScreening(ctx context.Context, screeningID string) error {
	id, err := uuid.Parse(screeningID)
	if err != nil {
		return fmt.Errorf("invalid screening ID format %s: %w", screeningID, err)
	}

	screening, err := s.repo.Screening.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel screening: %w", err)
	}
	if screening == nil {
		return ErrScreeningNotFound
	}

	if err := s.repo.Screening.UpdateStatus(ctx, id, entity.ScreeningStatusCancelled); err != nil {
		return fmt.Errorf("cancel screening %s: %w", screeningID, err)
	}

	s.log.Info("Screening cancelled", zap.String("screening_id", screeningID))
	return nil
}

func (s *screeningService) SetSeatStatus(ctx context.Context, screeningID string, req *request.SeatMaintenanceRequest) (int64, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Seat maintenance validation failed", zap.Any("errors", errs))
		return 0, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	id, err := uuid.Parse(screeningID)
	if err != nil {
		return 0, fmt.Errorf("invalid screening ID format %s: %w", screeningID, err)
	}

	target := entity.SeatStatus(req.Status)

	var affected int64
	if target == entity.SeatStatusAvailable {
		// Reopening can come from either admin state.
		for _, from := range []entity.SeatStatus{entity.SeatStatusUnavailable, entity.SeatStatusMaintenance} {
			n, err := s.repo.Seat.SetAdminStatus(ctx, id, req.SeatCodes, from, target)
			if err != nil {
				return affected, fmt.Errorf("set seat status: %w", err)
			}
			affected += n
		}
	} else {
		affected, err = s.repo.Seat.SetAdminStatus(ctx, id, req.SeatCodes, entity.SeatStatusAvailable, target)
		if err != nil {
			return 0, fmt.Errorf("set seat status: %w", err)
		}
	}

	if err := s.repo.Screening.RefreshAvailability(ctx, id); err != nil {
		s.log.Warn("Availability refresh failed", zap.Error(err))
	}

	s.log.Info("Seat status updated",
		zap.String("screening_id", screeningID),
		zap.Strings("seat_codes", req.SeatCodes),
		zap.String("status", req.Status),
		zap.Int64("affected", affected),
	)

	return affected, nil
}
