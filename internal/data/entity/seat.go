package entity

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatStatusAvailable   SeatStatus = "available"
	SeatStatusReserved    SeatStatus = "reserved"
	SeatStatusBooked      SeatStatus = "booked"
	SeatStatusUnavailable SeatStatus = "unavailable"
	SeatStatusMaintenance SeatStatus = "maintenance"
)

type SeatType string

const (
	SeatTypeStandard   SeatType = "standard"
	SeatTypePremium    SeatType = "premium"
	SeatTypeVIP        SeatType = "vip"
	SeatTypeCouple     SeatType = "couple"
	SeatTypeAccessible SeatType = "accessible"
)

// seatTransitions defines the legal seat status transitions. The
// reserved→available edge covers expiry, cancellation and payment failure;
// unavailable/maintenance edges are administrative and never touched by
// the booking flow.
var seatTransitions = map[SeatStatus][]SeatStatus{
	SeatStatusAvailable:   {SeatStatusReserved, SeatStatusUnavailable, SeatStatusMaintenance},
	SeatStatusReserved:    {SeatStatusBooked, SeatStatusAvailable},
	SeatStatusBooked:      {SeatStatusAvailable, SeatStatusReserved},
	SeatStatusUnavailable: {SeatStatusAvailable},
	SeatStatusMaintenance: {SeatStatusAvailable},
}

func (s SeatStatus) IsValid() bool {
	_, ok := seatTransitions[s]
	return ok
}

func (s SeatStatus) CanTransitionTo(target SeatStatus) bool {
	for _, allowed := range seatTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PriceMultiplier scales the screening base price per seat type.
func (t SeatType) PriceMultiplier() float64 {
	switch t {
	case SeatTypePremium:
		return 1.25
	case SeatTypeVIP:
		return 1.75
	case SeatTypeCouple:
		return 2.0
	case SeatTypeAccessible:
		return 1.0
	default:
		return 1.0
	}
}

// Seat is the per-screening seat record. Version is a monotonically
// increasing counter bumped on every write; conditional updates compare it
// with exact equality to detect concurrent writers.
type Seat struct {
	ID            uuid.UUID  `db:"id"`
	ScreeningID   uuid.UUID  `db:"screening_id"`
	SeatCode      string     `db:"seat_code"` // A1, A2, B1, etc.
	SeatRow       string     `db:"seat_row"`  // A, B, C, etc.
	SeatColumn    int        `db:"seat_column"`
	Type          SeatType   `db:"seat_type"`
	Price         float64    `db:"price"`
	Status        SeatStatus `db:"status"`
	BookingID     *uuid.UUID `db:"booking_id"`
	HolderID      *uuid.UUID `db:"holder_id"`
	ReservedUntil *time.Time `db:"reserved_until"`
	Version       int64      `db:"version"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// HoldExpired reports whether a reserved seat's hold has lapsed.
func (s *Seat) HoldExpired(now time.Time) bool {
	return s.Status == SeatStatusReserved && s.ReservedUntil != nil && !s.ReservedUntil.After(now)
}
