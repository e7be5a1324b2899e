package entity

import (
	"time"

	"github.com/google/uuid"
)

type ScreeningStatus string

const (
	ScreeningStatusScheduled  ScreeningStatus = "scheduled"
	ScreeningStatusOpen       ScreeningStatus = "open"
	ScreeningStatusAlmostFull ScreeningStatus = "almost_full"
	ScreeningStatusSoldOut    ScreeningStatus = "sold_out"
	ScreeningStatusCancelled  ScreeningStatus = "cancelled"
)

type ScreeningFormat string

const (
	Format2D   ScreeningFormat = "2D"
	Format3D   ScreeningFormat = "3D"
	FormatIMAX ScreeningFormat = "IMAX"
	Format4DX  ScreeningFormat = "4DX"
)

// Screening is one showing of a movie in a room. Seats live in their own
// table keyed by screening_id + seat_code. ConcurrentBookings counts
// in-flight holds, not sales; it is bounded by ConcurrentBookingLimit and
// only ever changes through the guarded counter updates in the repository.
type Screening struct {
	Base
	MovieID                uuid.UUID       `db:"movie_id"`
	VenueName              string          `db:"venue_name"`
	RoomName               string          `db:"room_name"`
	StartsAt               time.Time       `db:"starts_at"`
	EndsAt                 time.Time       `db:"ends_at"`
	Format                 ScreeningFormat `db:"format"`
	BasePrice              float64         `db:"base_price"`
	SeatsTotal             int             `db:"seats_total"`
	SeatsAvailable         int             `db:"seats_available"`
	Status                 ScreeningStatus `db:"status"`
	ConcurrentBookingLimit int             `db:"concurrent_booking_limit"`
	ConcurrentBookings     int             `db:"concurrent_bookings"`
}

// Bookable reports whether new holds may be taken on this screening.
func (s *Screening) Bookable(now time.Time) bool {
	if s.Status == ScreeningStatusCancelled || s.Status == ScreeningStatusSoldOut {
		return false
	}
	return s.StartsAt.After(now)
}
