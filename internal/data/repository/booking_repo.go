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

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByNumber(ctx context.Context, number string) (*entity.Booking, error)
	FindByPaymentReference(ctx context.Context, reference string) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)

	// TransitionStatus is a compare-and-set on the status column: the
	// update only applies while the row is still in the expected state, so
	// concurrent resolutions (confirm vs. sweep) cannot both win.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus) (bool, error)

	// MarkConfirmed transitions pending_payment→confirmed and records the
	// payment outcome in the same statement.
	MarkConfirmed(ctx context.Context, id uuid.UUID, paymentReference string) (bool, error)

	// MarkRefunded transitions confirmed→refunded together with the
	// payment status.
	MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error)

	// FindExpiredPending lists pending_payment bookings whose hold expiry
	// has passed, oldest first.
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `id, booking_number, user_id, screening_id, seat_codes, subtotal, discount, tax, grand_total, status, payment_status, payment_method, payment_reference, promotion_id, hold_expires_at, created_at, updated_at`

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.BookingNumber,
		booking.UserID,
		booking.ScreeningID,
		booking.SeatCodes,
		booking.Subtotal,
		booking.Discount,
		booking.Tax,
		booking.GrandTotal,
		booking.Status,
		booking.PaymentStatus,
		booking.PaymentMethod,
		booking.PaymentReference,
		booking.PromotionID,
		booking.HoldExpiresAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_number", booking.BookingNumber),
			zap.String("user_id", booking.UserID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.BookingNumber, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *bookingRepository) FindByNumber(ctx context.Context, number string) (*entity.Booking, error) {
	return r.findOne(ctx, `WHERE booking_number = $1`, number)
}

func (r *bookingRepository) FindByPaymentReference(ctx context.Context, reference string) (*entity.Booking, error) {
	return r.findOne(ctx, `WHERE payment_reference = $1`, reference)
}

func (r *bookingRepository) findOne(ctx context.Context, where string, arg any) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ` + where

	var b entity.Booking
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&b.ID,
		&b.BookingNumber,
		&b.UserID,
		&b.ScreeningID,
		&b.SeatCodes,
		&b.Subtotal,
		&b.Discount,
		&b.Tax,
		&b.GrandTotal,
		&b.Status,
		&b.PaymentStatus,
		&b.PaymentMethod,
		&b.PaymentReference,
		&b.PromotionID,
		&b.HoldExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking", zap.Error(err))
		return nil, fmt.Errorf("find booking: %w", err)
	}

	return &b, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find bookings by user ID %s: %w", userID.String(), err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE user_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("booking transition %s->%s not allowed", from, to)
	}

	query := `UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query, id, from, to)
	if err != nil {
		r.log.Error("Failed to transition booking status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("transition booking %s %s->%s: %w", id.String(), from, to, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, paymentReference string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'confirmed', payment_status = 'completed', payment_reference = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_payment'
	`

	tag, err := r.db.Exec(ctx, query, id, paymentReference)
	if err != nil {
		r.log.Error("Failed to mark booking confirmed",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return false, fmt.Errorf("mark booking %s confirmed: %w", id.String(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepository) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'refunded', payment_status = 'refunded', updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to mark booking refunded",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return false, fmt.Errorf("mark booking %s refunded: %w", id.String(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending_payment' AND hold_expires_at <= $1
		ORDER BY hold_expires_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find expired pending bookings", zap.Error(err))
		return nil, fmt.Errorf("find expired pending bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func scanBookings(rows pgx.Rows) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	for rows.Next() {
		var b entity.Booking
		err := rows.Scan(
			&b.ID,
			&b.BookingNumber,
			&b.UserID,
			&b.ScreeningID,
			&b.SeatCodes,
			&b.Subtotal,
			&b.Discount,
			&b.Tax,
			&b.GrandTotal,
			&b.Status,
			&b.PaymentStatus,
			&b.PaymentMethod,
			&b.PaymentReference,
			&b.PromotionID,
			&b.HoldExpiresAt,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, &b)
	}
	return bookings, rows.Err()
}
