package entity

import (
	"time"

	"github.com/google/uuid"
)

type PromotionType string

const (
	PromotionTypePercentage  PromotionType = "percentage"
	PromotionTypeFixedAmount PromotionType = "fixed_amount"
)

// Promotion is a discount code with eligibility rules and a shared usage
// counter. UsageCount is committed only when a booking confirms, never when
// the code is merely applied to a pending booking.
type Promotion struct {
	Base
	Code         string        `db:"code"`
	Name         string        `db:"name"`
	Description  string        `db:"description"`
	Type         PromotionType `db:"promotion_type"`
	Value        float64       `db:"value"`
	MaxDiscount  float64       `db:"max_discount"` // 0 = uncapped
	MinPurchase  float64       `db:"min_purchase"`
	StartsAt     time.Time     `db:"starts_at"`
	EndsAt       time.Time     `db:"ends_at"`
	UsageLimit   int           `db:"usage_limit"` // 0 = unlimited
	UsageCount   int           `db:"usage_count"`
	PerUserLimit int           `db:"per_user_limit"` // 0 = unlimited
	IsActive     bool          `db:"is_active"`

	// Applicability lists; empty list = applies to all.
	MovieIDs       []uuid.UUID    `db:"movie_ids"`
	ScreeningIDs   []uuid.UUID    `db:"screening_ids"`
	PaymentMethods []string       `db:"payment_methods"`
	DaysOfWeek     []time.Weekday `db:"days_of_week"`
}

// WithinWindow reports whether the promotion is active at the given time.
func (p *Promotion) WithinWindow(now time.Time) bool {
	return !now.Before(p.StartsAt) && now.Before(p.EndsAt)
}

// UsageExhausted reports whether the global usage ceiling has been reached.
func (p *Promotion) UsageExhausted() bool {
	return p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit
}

// PromotionUsage records one committed redemption, written at booking
// confirmation.
type PromotionUsage struct {
	BaseSimple
	PromotionID uuid.UUID `db:"promotion_id"`
	BookingID   uuid.UUID `db:"booking_id"`
	UserID      uuid.UUID `db:"user_id"`
	Amount      float64   `db:"amount"`
}
