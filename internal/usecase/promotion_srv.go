package usecase

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PromotionInput carries everything the evaluator needs to judge a code
// against a pending booking.
type PromotionInput struct {
	UserID        uuid.UUID
	MovieID       uuid.UUID
	ScreeningID   uuid.UUID
	PaymentMethod string
	ShowStart     time.Time
	Subtotal      float64
}

// PromotionService validates and prices promotion codes. Applying a code
// never consumes it; usage is committed separately at booking confirmation
// so abandoned checkouts do not burn limited-use codes.
type PromotionService interface {
	Apply(ctx context.Context, code string, in *PromotionInput) (*entity.Promotion, float64, error)
	CommitUsage(ctx context.Context, promotionID, bookingID, userID uuid.UUID, amount float64) error
}

type promotionService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewPromotionService(repo *repository.Repository, log *zap.Logger) PromotionService {
	return &promotionService{
		repo: repo,
		log:  log.With(zap.String("service", "promotion")),
	}
}

func (s *promotionService) Apply(ctx context.Context, code string, in *PromotionInput) (*entity.Promotion, float64, error) {
	promo, err := s.repo.Promotion.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, 0, fmt.Errorf("apply promotion %s: %w", code, err)
	}
	if promo == nil {
		return nil, 0, fmt.Errorf("code %s not found: %w", code, ErrInvalidPromotion)
	}

	now := time.Now()

	if !promo.WithinWindow(now) {
		return nil, 0, fmt.Errorf("code %s outside activity window: %w", code, ErrInvalidPromotion)
	}
	if promo.UsageExhausted() {
		return nil, 0, fmt.Errorf("code %s usage limit reached: %w", code, ErrInvalidPromotion)
	}

	if promo.PerUserLimit > 0 {
		used, err := s.repo.Promotion.CountUsageByUser(ctx, promo.ID, in.UserID)
		if err != nil {
			return nil, 0, fmt.Errorf("apply promotion %s: %w", code, err)
		}
		if used >= int64(promo.PerUserLimit) {
			return nil, 0, fmt.Errorf("code %s per-user limit reached: %w", code, ErrInvalidPromotion)
		}
	}

	if !containsUUID(promo.MovieIDs, in.MovieID) {
		return nil, 0, fmt.Errorf("code %s not valid for this movie: %w", code, ErrInvalidPromotion)
	}
	if !containsUUID(promo.ScreeningIDs, in.ScreeningID) {
		return nil, 0, fmt.Errorf("code %s not valid for this screening: %w", code, ErrInvalidPromotion)
	}
	if !containsString(promo.PaymentMethods, in.PaymentMethod) {
		return nil, 0, fmt.Errorf("code %s not valid for payment method %s: %w", code, in.PaymentMethod, ErrInvalidPromotion)
	}
	if !containsWeekday(promo.DaysOfWeek, in.ShowStart.Weekday()) {
		return nil, 0, fmt.Errorf("code %s not valid on %s: %w", code, in.ShowStart.Weekday(), ErrInvalidPromotion)
	}

	if in.Subtotal < promo.MinPurchase {
		return nil, 0, fmt.Errorf("code %s requires minimum purchase %.2f: %w", code, promo.MinPurchase, ErrInvalidPromotion)
	}

	discount := s.computeDiscount(promo, in.Subtotal)

	s.log.Info("Promotion applied",
		zap.String("code", code),
		zap.String("user_id", in.UserID.String()),
		zap.Float64("subtotal", in.Subtotal),
		zap.Float64("discount", discount),
	)

	return promo, discount, nil
}

func (s *promotionService) computeDiscount(promo *entity.Promotion, subtotal float64) float64 {
	var discount float64

	switch promo.Type {
	case entity.PromotionTypePercentage:
		discount = subtotal * promo.Value / 100
		if promo.MaxDiscount > 0 && discount > promo.MaxDiscount {
			discount = promo.MaxDiscount
		}
	case entity.PromotionTypeFixedAmount:
		discount = promo.Value
	}

	if discount > subtotal {
		discount = subtotal
	}

	return discount
}

// CommitUsage is the second phase of the discount commit: invoked only when
// the booking confirms.
func (s *promotionService) CommitUsage(ctx context.Context, promotionID, bookingID, userID uuid.UUID, amount float64) error {
	ok, err := s.repo.Promotion.IncrementUsage(ctx, promotionID)
	if err != nil {
		return fmt.Errorf("commit promotion usage for booking %s: %w", bookingID.String(), err)
	}
	if !ok {
		// The code ran out between apply and confirm. The discount was
		// already granted; honor it but flag the overrun.
		s.log.Warn("Promotion usage ceiling crossed at confirmation",
			zap.String("promotion_id", promotionID.String()),
			zap.String("booking_id", bookingID.String()),
		)
	}

	usage := &entity.PromotionUsage{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
		},
		PromotionID: promotionID,
		BookingID:   bookingID,
		UserID:      userID,
		Amount:      amount,
	}

	if err := s.repo.Promotion.RecordUsage(ctx, usage); err != nil {
		return fmt.Errorf("commit promotion usage for booking %s: %w", bookingID.String(), err)
	}

	return nil
}

func containsUUID(list []uuid.UUID, id uuid.UUID) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsWeekday(list []time.Weekday, d time.Weekday) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == d {
			return true
		}
	}
	return false
}
