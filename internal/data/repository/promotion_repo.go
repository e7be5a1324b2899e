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

type PromotionRepository interface {
	FindActiveByCode(ctx context.Context, code string) (*entity.Promotion, error)

	// IncrementUsage bumps usage_count guarded by the usage ceiling in the
	// same statement; returns false when the code is exhausted.
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)

	CountUsageByUser(ctx context.Context, promotionID, userID uuid.UUID) (int64, error)
	RecordUsage(ctx context.Context, usage *entity.PromotionUsage) error
}

type promotionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPromotionRepository(db database.PgxIface, log *zap.Logger) PromotionRepository {
	return &promotionRepository{
		db:  db,
		log: log.With(zap.String("repository", "promotion")),
	}
}

func (r *promotionRepository) FindActiveByCode(ctx context.Context, code string) (*entity.Promotion, error) {
	query := `
		SELECT id, code, name, description, promotion_type, value, max_discount, min_purchase,
		       starts_at, ends_at, usage_limit, usage_count, per_user_limit, is_active,
		       movie_ids, screening_ids, payment_methods, days_of_week, created_at, updated_at
		FROM promotions
		WHERE code = $1 AND is_active = TRUE
	`

	var p entity.Promotion
	var days []int32
	err := r.db.QueryRow(ctx, query, code).Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.Description,
		&p.Type,
		&p.Value,
		&p.MaxDiscount,
		&p.MinPurchase,
		&p.StartsAt,
		&p.EndsAt,
		&p.UsageLimit,
		&p.UsageCount,
		&p.PerUserLimit,
		&p.IsActive,
		&p.MovieIDs,
		&p.ScreeningIDs,
		&p.PaymentMethods,
		&days,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find promotion by code",
			zap.Error(err),
			zap.String("code", code),
		)
		return nil, fmt.Errorf("find promotion by code %s: %w", code, err)
	}

	for _, d := range days {
		p.DaysOfWeek = append(p.DaysOfWeek, time.Weekday(d))
	}

	return &p, nil
}

func (r *promotionRepository) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to increment promotion usage",
			zap.Error(err),
			zap.String("promotion_id", id.String()),
		)
		return false, fmt.Errorf("increment promotion %s usage: %w", id.String(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *promotionRepository) CountUsageByUser(ctx context.Context, promotionID, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM promotion_usages WHERE promotion_id = $1 AND user_id = $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, promotionID, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count promotion usage by user",
			zap.Error(err),
			zap.String("promotion_id", promotionID.String()),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count promotion %s usage by user: %w", promotionID.String(), err)
	}

	return count, nil
}

func (r *promotionRepository) RecordUsage(ctx context.Context, usage *entity.PromotionUsage) error {
	query := `
		INSERT INTO promotion_usages (id, promotion_id, booking_id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		usage.ID,
		usage.PromotionID,
		usage.BookingID,
		usage.UserID,
		usage.Amount,
		usage.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to record promotion usage",
			zap.Error(err),
			zap.String("promotion_id", usage.PromotionID.String()),
			zap.String("booking_id", usage.BookingID.String()),
		)
		return fmt.Errorf("record promotion usage for booking %s: %w", usage.BookingID.String(), err)
	}

	return nil
}
