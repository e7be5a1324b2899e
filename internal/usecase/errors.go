package usecase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapacityExceeded means the screening's concurrent-hold ceiling is
	// reached. This throttles request rate, not seat availability; callers
	// should retry after backoff.
	ErrCapacityExceeded = errors.New("concurrent booking limit reached")

	// ErrReservationExpired means the hold lapsed before resolution; the
	// only recovery is re-reserving.
	ErrReservationExpired = errors.New("reservation expired")

	// ErrPaymentMismatch means a payment outcome arrived for a booking no
	// longer eligible for it. Surfaced for manual reconciliation, never
	// auto-retried or silently accepted.
	ErrPaymentMismatch = errors.New("payment does not match booking state")

	// ErrInvalidPromotion covers every promotion eligibility failure.
	ErrInvalidPromotion = errors.New("promotion not applicable")

	ErrBookingNotFound   = errors.New("booking not found")
	ErrScreeningNotFound = errors.New("screening not found")
	ErrScreeningStarted  = errors.New("screening already started")
	ErrNotBookable       = errors.New("screening not open for booking")
)

// SeatsUnavailableError reports the specific seats that could not be held
// so the client can re-offer alternatives.
type SeatsUnavailableError struct {
	Rejected []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Rejected, ", "))
}
