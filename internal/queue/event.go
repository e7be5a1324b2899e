// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names for booking lifecycle events.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
	QueueBookingExpired   = "booking.expired"
)

// BookingConfirmedEvent is published when a booking reaches confirmed. It
// carries enough for the notification collaborator to message the user
// without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     string   `json:"booking_id"`
	BookingNumber string   `json:"booking_number"`
	UserID        string   `json:"user_id"`
	ScreeningID   string   `json:"screening_id"`
	SeatCodes     []string `json:"seats"`
	GrandTotal    float64  `json:"grand_total"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// BookingCancelledEvent is published on cancellation or refund.
type BookingCancelledEvent struct {
	BookingID     string   `json:"booking_id"`
	BookingNumber string   `json:"booking_number"`
	UserID        string   `json:"user_id"`
	ScreeningID   string   `json:"screening_id"`
	SeatCodes     []string `json:"seats"`
	Reason        string   `json:"reason"`
	Refunded      bool     `json:"refunded"`
	CancelledAt   string   `json:"cancelled_at"`
}

// BookingExpiredEvent is published when the sweep reclaims an abandoned
// checkout.
type BookingExpiredEvent struct {
	BookingID     string   `json:"booking_id"`
	BookingNumber string   `json:"booking_number"`
	UserID        string   `json:"user_id"`
	ScreeningID   string   `json:"screening_id"`
	SeatCodes     []string `json:"seats"`
	ExpiredAt     string   `json:"expired_at"`
}
