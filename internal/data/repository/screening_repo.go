package repository

import (
	"context"
	"fmt"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ScreeningRepository interface {
	Create(ctx context.Context, screening *entity.Screening, seats []*entity.Seat) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Screening, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.ScreeningStatus) error

	// IncrementConcurrent atomically bumps the in-flight hold counter,
	// guarded by the configured ceiling in the same statement. Returns
	// false when the ceiling is reached.
	IncrementConcurrent(ctx context.Context, id uuid.UUID) (bool, error)

	// DecrementConcurrent releases one slot, clamped at zero.
	DecrementConcurrent(ctx context.Context, id uuid.UUID) error

	// RefreshAvailability recomputes seats_available from the seat rows and
	// derives open/almost_full/sold_out. Cancelled screenings keep their
	// status.
	RefreshAvailability(ctx context.Context, id uuid.UUID) error
}

type screeningRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewScreeningRepository(db database.PgxIface, log *zap.Logger) ScreeningRepository {
	return &screeningRepository{
		db:  db,
		log: log.With(zap.String("repository", "screening")),
	}
}

const screeningColumns = `id, movie_id, venue_name, room_name, starts_at, ends_at, format, base_price, seats_total, seats_available, status, concurrent_booking_limit, concurrent_bookings, created_at, updated_at`

func (r *screeningRepository) Create(ctx context.Context, screening *entity.Screening, seats []*entity.Seat) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create screening: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO screenings (` + screeningColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = tx.Exec(ctx, query,
		screening.ID,
		screening.MovieID,
		screening.VenueName,
		screening.RoomName,
		screening.StartsAt,
		screening.EndsAt,
		screening.Format,
		screening.BasePrice,
		screening.SeatsTotal,
		screening.SeatsAvailable,
		screening.Status,
		screening.ConcurrentBookingLimit,
		screening.ConcurrentBookings,
		screening.CreatedAt,
		screening.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create screening",
			zap.Error(err),
			zap.String("screening_id", screening.ID.String()),
		)
		return fmt.Errorf("create screening %s: %w", screening.ID.String(), err)
	}

	seatQuery := `
		INSERT INTO screening_seats (id, screening_id, seat_code, seat_row, seat_column, seat_type, price, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, seat := range seats {
		_, err := tx.Exec(ctx, seatQuery,
			seat.ID,
			seat.ScreeningID,
			seat.SeatCode,
			seat.SeatRow,
			seat.SeatColumn,
			seat.Type,
			seat.Price,
			seat.Status,
			seat.Version,
			seat.CreatedAt,
			seat.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create screening seat %s: %w", seat.SeatCode, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *screeningRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Screening, error) {
	query := `
		SELECT ` + screeningColumns + `
		FROM screenings
		WHERE id = $1
	`

	var s entity.Screening
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.MovieID,
		&s.VenueName,
		&s.RoomName,
		&s.StartsAt,
		&s.EndsAt,
		&s.Format,
		&s.BasePrice,
		&s.SeatsTotal,
		&s.SeatsAvailable,
		&s.Status,
		&s.ConcurrentBookingLimit,
		&s.ConcurrentBookings,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find screening by ID",
			zap.Error(err),
			zap.String("screening_id", id.String()),
		)
		return nil, fmt.Errorf("find screening by ID %s: %w", id.String(), err)
	}

	return &s, nil
}

func (r *screeningRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.ScreeningStatus) error {
	query := `UPDATE screenings SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		r.log.Error("Failed to update screening status",
			zap.Error(err),
			zap.String("screening_id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update screening %s status to %s: %w", id.String(), string(status), err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("screening %s not found", id.String())
	}

	return nil
}

func (r *screeningRepository) IncrementConcurrent(ctx context.Context, id uuid.UUID) (bool, error) {
	// Guard and increment in one statement so the ceiling check cannot race
	// a concurrent increment.
	query := `
		UPDATE screenings
		SET concurrent_bookings = concurrent_bookings + 1, updated_at = NOW()
		WHERE id = $1 AND concurrent_bookings < concurrent_booking_limit
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to increment concurrent bookings",
			zap.Error(err),
			zap.String("screening_id", id.String()),
		)
		return false, fmt.Errorf("increment concurrent bookings on %s: %w", id.String(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *screeningRepository) DecrementConcurrent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE screenings
		SET concurrent_bookings = GREATEST(concurrent_bookings - 1, 0), updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to decrement concurrent bookings",
			zap.Error(err),
			zap.String("screening_id", id.String()),
		)
		return fmt.Errorf("decrement concurrent bookings on %s: %w", id.String(), err)
	}

	return nil
}

func (r *screeningRepository) RefreshAvailability(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE screenings s
		SET seats_available = c.avail,
		    status = CASE
		        WHEN s.status = 'cancelled' THEN s.status
		        WHEN c.avail = 0 THEN 'sold_out'
		        WHEN c.avail <= GREATEST(s.seats_total / 10, 1) THEN 'almost_full'
		        ELSE 'open'
		    END,
		    updated_at = NOW()
		FROM (
			SELECT COUNT(*) FILTER (WHERE status = 'available') AS avail
			FROM screening_seats
			WHERE screening_id = $1
		) c
		WHERE s.id = $1
	`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to refresh screening availability",
			zap.Error(err),
			zap.String("screening_id", id.String()),
		)
		return fmt.Errorf("refresh availability on %s: %w", id.String(), err)
	}

	return nil
}
