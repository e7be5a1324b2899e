package repository

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SeatTransition pairs a seat code with the version observed at read time.
// The conditional update only applies when the stored version still equals
// the observed one (exact equality, not ordering).
type SeatTransition struct {
	Code    string
	Version int64
}

// SeatRef identifies a seat across screenings; returned by the global
// expiry sweep so callers can refresh availability per screening.
type SeatRef struct {
	ScreeningID uuid.UUID
	SeatCode    string
}

// SeatRepository is the seat ledger: the authoritative per-screening seat
// store with optimistic check-and-set semantics. Cross-seat atomicity is
// not provided here; callers reconstruct it with compensating releases.
type SeatRepository interface {
	CreateBatch(ctx context.Context, seats []*entity.Seat) error
	FindByScreening(ctx context.Context, screeningID uuid.UUID) ([]*entity.Seat, error)
	FindByCodes(ctx context.Context, screeningID uuid.UUID, codes []string) ([]*entity.Seat, error)

	// TryTransition applies from→to per seat, guarded by current status and
	// version. Seats failing the guard land in rejected; partial success is
	// the expected contract under contention.
	TryTransition(ctx context.Context, screeningID uuid.UUID, seats []SeatTransition, from, to entity.SeatStatus, holderID, bookingID *uuid.UUID, reservedUntil *time.Time) (applied, rejected []string, err error)

	// Release returns seats to available, clearing holder, booking
	// reference and expiry. Only seats still referencing the given booking
	// are touched, so releasing a hold that has since been reclaimed and
	// re-sold never frees the new owner's seats.
	Release(ctx context.Context, screeningID, bookingID uuid.UUID, codes []string) error

	// ReleaseExpired reclaims reserved seats whose hold lapsed at or before
	// now, returning the reclaimed codes.
	ReleaseExpired(ctx context.Context, screeningID uuid.UUID, now time.Time) ([]string, error)

	// ReleaseAllExpired is the cross-screening variant used by the
	// background sweeper.
	ReleaseAllExpired(ctx context.Context, now time.Time, limit int) ([]SeatRef, error)

	// SetAdminStatus moves available seats to unavailable/maintenance and
	// back; it never touches reserved or booked seats.
	SetAdminStatus(ctx context.Context, screeningID uuid.UUID, codes []string, from, to entity.SeatStatus) (int64, error)
}

type seatRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSeatRepository(db database.PgxIface, log *zap.Logger) SeatRepository {
	return &seatRepository{
		db:  db,
		log: log.With(zap.String("repository", "seat")),
	}
}

const seatColumns = `id, screening_id, seat_code, seat_row, seat_column, seat_type, price, status, booking_id, holder_id, reserved_until, version, created_at, updated_at`

func (r *seatRepository) CreateBatch(ctx context.Context, seats []*entity.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	query := `
		INSERT INTO screening_seats (id, screening_id, seat_code, seat_row, seat_column, seat_type, price, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seat batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, seat := range seats {
		_, err := tx.Exec(ctx, query,
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
			r.log.Error("Failed to insert seat",
				zap.Error(err),
				zap.String("screening_id", seat.ScreeningID.String()),
				zap.String("seat_code", seat.SeatCode),
			)
			return fmt.Errorf("insert seat %s: %w", seat.SeatCode, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *seatRepository) FindByScreening(ctx context.Context, screeningID uuid.UUID) ([]*entity.Seat, error) {
	query := `
		SELECT ` + seatColumns + `
		FROM screening_seats
		WHERE screening_id = $1
		ORDER BY seat_row, seat_column
	`

	rows, err := r.db.Query(ctx, query, screeningID)
	if err != nil {
		r.log.Error("Failed to find seats by screening",
			zap.Error(err),
			zap.String("screening_id", screeningID.String()),
		)
		return nil, fmt.Errorf("find seats by screening %s: %w", screeningID.String(), err)
	}
	defer rows.Close()

	return scanSeats(rows)
}

func (r *seatRepository) FindByCodes(ctx context.Context, screeningID uuid.UUID, codes []string) ([]*entity.Seat, error) {
	query := `
		SELECT ` + seatColumns + `
		FROM screening_seats
		WHERE screening_id = $1 AND seat_code = ANY($2)
		ORDER BY seat_row, seat_column
	`

	rows, err := r.db.Query(ctx, query, screeningID, codes)
	if err != nil {
		r.log.Error("Failed to find seats by codes",
			zap.Error(err),
			zap.String("screening_id", screeningID.String()),
			zap.Strings("seat_codes", codes),
		)
		return nil, fmt.Errorf("find seats by codes: %w", err)
	}
	defer rows.Close()

	return scanSeats(rows)
}

func (r *seatRepository) TryTransition(ctx context.Context, screeningID uuid.UUID, seats []SeatTransition, from, to entity.SeatStatus, holderID, bookingID *uuid.UUID, reservedUntil *time.Time) ([]string, []string, error) {
	query := `
		UPDATE screening_seats
		SET status = $5, holder_id = $6, booking_id = $7, reserved_until = $8,
		    version = version + 1, updated_at = NOW()
		WHERE screening_id = $1 AND seat_code = $2 AND status = $3 AND version = $4
	`

	applied := make([]string, 0, len(seats))
	var rejected []string

	for _, seat := range seats {
		tag, err := r.db.Exec(ctx, query,
			screeningID,
			seat.Code,
			from,
			seat.Version,
			to,
			holderID,
			bookingID,
			reservedUntil,
		)
		if err != nil {
			r.log.Error("Seat transition failed",
				zap.Error(err),
				zap.String("screening_id", screeningID.String()),
				zap.String("seat_code", seat.Code),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
			)
			// Remaining seats are untouched; report them rejected so the
			// caller can compensate the applied subset.
			for _, rest := range seats[len(applied)+len(rejected):] {
				rejected = append(rejected, rest.Code)
			}
			return applied, rejected, fmt.Errorf("transition seat %s %s->%s: %w", seat.Code, from, to, err)
		}

		if tag.RowsAffected() == 1 {
			applied = append(applied, seat.Code)
		} else {
			rejected = append(rejected, seat.Code)
		}
	}

	return applied, rejected, nil
}

func (r *seatRepository) Release(ctx context.Context, screeningID, bookingID uuid.UUID, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	query := `
		UPDATE screening_seats
		SET status = 'available', holder_id = NULL, booking_id = NULL, reserved_until = NULL,
		    version = version + 1, updated_at = NOW()
		WHERE screening_id = $1 AND seat_code = ANY($2) AND booking_id = $3
		  AND status IN ('reserved', 'booked')
	`

	_, err := r.db.Exec(ctx, query, screeningID, codes, bookingID)
	if err != nil {
		r.log.Error("Failed to release seats",
			zap.Error(err),
			zap.String("screening_id", screeningID.String()),
			zap.Strings("seat_codes", codes),
		)
		return fmt.Errorf("release seats on screening %s: %w", screeningID.String(), err)
	}

	return nil
}

func (r *seatRepository) ReleaseExpired(ctx context.Context, screeningID uuid.UUID, now time.Time) ([]string, error) {
	query := `
		UPDATE screening_seats
		SET status = 'available', holder_id = NULL, booking_id = NULL, reserved_until = NULL,
		    version = version + 1, updated_at = NOW()
		WHERE screening_id = $1 AND status = 'reserved' AND reserved_until <= $2
		RETURNING seat_code
	`

	rows, err := r.db.Query(ctx, query, screeningID, now)
	if err != nil {
		r.log.Error("Failed to release expired seats",
			zap.Error(err),
			zap.String("screening_id", screeningID.String()),
		)
		return nil, fmt.Errorf("release expired seats on screening %s: %w", screeningID.String(), err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan released seat code: %w", err)
		}
		codes = append(codes, code)
	}

	return codes, rows.Err()
}

func (r *seatRepository) ReleaseAllExpired(ctx context.Context, now time.Time, limit int) ([]SeatRef, error) {
	query := `
		UPDATE screening_seats s
		SET status = 'available', holder_id = NULL, booking_id = NULL, reserved_until = NULL,
		    version = version + 1, updated_at = NOW()
		FROM (
			SELECT id FROM screening_seats
			WHERE status = 'reserved' AND reserved_until <= $1
			ORDER BY reserved_until
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		) expired
		WHERE s.id = expired.id
		RETURNING s.screening_id, s.seat_code
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to sweep expired seats", zap.Error(err))
		return nil, fmt.Errorf("sweep expired seats: %w", err)
	}
	defer rows.Close()

	var refs []SeatRef
	for rows.Next() {
		var ref SeatRef
		if err := rows.Scan(&ref.ScreeningID, &ref.SeatCode); err != nil {
			return nil, fmt.Errorf("scan swept seat: %w", err)
		}
		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

func (r *seatRepository) SetAdminStatus(ctx context.Context, screeningID uuid.UUID, codes []string, from, to entity.SeatStatus) (int64, error) {
	if !from.CanTransitionTo(to) {
		return 0, fmt.Errorf("seat transition %s->%s not allowed", from, to)
	}

	query := `
		UPDATE screening_seats
		SET status = $4, version = version + 1, updated_at = NOW()
		WHERE screening_id = $1 AND seat_code = ANY($2) AND status = $3
	`

	tag, err := r.db.Exec(ctx, query, screeningID, codes, from, to)
	if err != nil {
		r.log.Error("Failed to set admin seat status",
			zap.Error(err),
			zap.String("screening_id", screeningID.String()),
			zap.String("to", string(to)),
		)
		return 0, fmt.Errorf("set seats %s on screening %s: %w", to, screeningID.String(), err)
	}

	return tag.RowsAffected(), nil
}

func scanSeats(rows pgx.Rows) ([]*entity.Seat, error) {
	var seats []*entity.Seat
	for rows.Next() {
		var seat entity.Seat
		err := rows.Scan(
			&seat.ID,
			&seat.ScreeningID,
			&seat.SeatCode,
			&seat.SeatRow,
			&seat.SeatColumn,
			&seat.Type,
			&seat.Price,
			&seat.Status,
			&seat.BookingID,
			&seat.HolderID,
			&seat.ReservedUntil,
			&seat.Version,
			&seat.CreatedAt,
			&seat.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan seat row: %w", err)
		}
		seats = append(seats, &seat)
	}
	return seats, rows.Err()
}
