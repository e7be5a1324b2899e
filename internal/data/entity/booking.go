package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusExpired        BookingStatus = "expired"
	BookingStatusRefunded       BookingStatus = "refunded"
)

// bookingTransitions defines allowed booking status transitions.
// confirmed→refunded is the only edge out of a terminal-ish state; expired,
// cancelled and refunded accept nothing further.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingPayment: {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusConfirmed:      {BookingStatusRefunded},
	BookingStatusCancelled:      {},
	BookingStatusExpired:        {},
	BookingStatusRefunded:       {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is accepted.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusExpired || s == BookingStatusRefunded
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Booking is a user's claim on a set of seats for one screening. SeatCodes
// is denormalized onto the row; the authoritative seat state lives in
// screening_seats. HoldExpiresAt mirrors the hold expiry written to the
// seats when the booking was created.
type Booking struct {
	Base
	BookingNumber    string        `db:"booking_number"`
	UserID           uuid.UUID     `db:"user_id"`
	ScreeningID      uuid.UUID     `db:"screening_id"`
	SeatCodes        []string      `db:"seat_codes"`
	Subtotal         float64       `db:"subtotal"`
	Discount         float64       `db:"discount"`
	Tax              float64       `db:"tax"`
	GrandTotal       float64       `db:"grand_total"`
	Status           BookingStatus `db:"status"`
	PaymentStatus    PaymentStatus `db:"payment_status"`
	PaymentMethod    string        `db:"payment_method"`
	PaymentReference *string       `db:"payment_reference"`
	PromotionID      *uuid.UUID    `db:"promotion_id"`
	HoldExpiresAt    time.Time     `db:"hold_expires_at"`
}

// HoldExpired reports whether the booking's seat holds have lapsed.
func (b *Booking) HoldExpired(now time.Time) bool {
	return !b.HoldExpiresAt.After(now)
}
