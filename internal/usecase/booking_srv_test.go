package usecase

import (
	"context"
	"testing"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/dto/request"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBooking(t *testing.T, env *testEnv, screeningID uuid.UUID, userID uuid.UUID, codes []string, promoCode string) uuid.UUID {
	t.Helper()

	resp, err := env.booking.CreateBooking(context.Background(), userID.String(), &request.CreateBookingRequest{
		ScreeningID:   screeningID.String(),
		SeatCodes:     codes,
		PaymentMethod: "card",
		PromotionCode: promoCode,
	})
	require.NoError(t, err)

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func TestCreateBookingComputesTotals(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1", "A2")
	userID := uuid.New()

	resp, err := env.booking.CreateBooking(context.Background(), userID.String(), &request.CreateBookingRequest{
		ScreeningID:   screening.ID.String(),
		SeatCodes:     []string{"A1", "A2"},
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	assert.Equal(t, 200.0, resp.Subtotal)
	assert.Equal(t, 0.0, resp.Discount)
	assert.InDelta(t, 20.0, resp.Tax, 0.001)
	assert.InDelta(t, 220.0, resp.GrandTotal, 0.001)
	assert.Equal(t, entity.BookingStatusPendingPayment, resp.Status)
	assert.NotEmpty(t, resp.BookingNumber)

	// Held seats reference the booking from the start.
	id, _ := uuid.Parse(resp.ID)
	for _, code := range []string{"A1", "A2"} {
		seat := env.seats.get(screening.ID, code)
		assert.Equal(t, entity.SeatStatusReserved, seat.Status)
		require.NotNil(t, seat.BookingID)
		assert.Equal(t, id, *seat.BookingID)
	}
}

func TestCreateBookingWithPromotionDefersUsage(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1", "A2")
	now := time.Now()

	env.promotions.add(&entity.Promotion{
		Base:       entity.Base{ID: uuid.New()},
		Code:       "SAVE20",
		Type:       entity.PromotionTypePercentage,
		Value:      20,
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(24 * time.Hour),
		UsageLimit: 5,
		IsActive:   true,
	})

	resp, err := env.booking.CreateBooking(context.Background(), uuid.New().String(), &request.CreateBookingRequest{
		ScreeningID:   screening.ID.String(),
		SeatCodes:     []string{"A1", "A2"},
		PaymentMethod: "card",
		PromotionCode: "SAVE20",
	})
	require.NoError(t, err)

	assert.Equal(t, 40.0, resp.Discount)
	assert.InDelta(t, 16.0, resp.Tax, 0.001) // 10% of the discounted subtotal
	assert.InDelta(t, 176.0, resp.GrandTotal, 0.001)

	// Applying never consumes the code; that happens at confirmation.
	env.promotions.mu.Lock()
	assert.Equal(t, 0, env.promotions.promotions["SAVE20"].UsageCount)
	env.promotions.mu.Unlock()
}

func TestCreateBookingInvalidPromotionReleasesHold(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	_, err := env.booking.CreateBooking(context.Background(), uuid.New().String(), &request.CreateBookingRequest{
		ScreeningID:   screening.ID.String(),
		SeatCodes:     []string{"A1"},
		PaymentMethod: "card",
		PromotionCode: "NOSUCH",
	})
	assert.ErrorIs(t, err, ErrInvalidPromotion)

	seat := env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusAvailable, seat.Status)
	assert.Equal(t, 0, env.screenings.get(screening.ID).ConcurrentBookings)
}

func TestConfirmBooksSeatsAndIsIdempotent(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1", "A2")
	now := time.Now()

	env.promotions.add(&entity.Promotion{
		Base:       entity.Base{ID: uuid.New()},
		Code:       "SAVE20",
		Type:       entity.PromotionTypePercentage,
		Value:      20,
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(24 * time.Hour),
		UsageLimit: 5,
		IsActive:   true,
	})

	userID := uuid.New()
	bookingID := createBooking(t, env, screening.ID, userID, []string{"A1", "A2"}, "SAVE20")
	reference := env.bookings.get(bookingID).BookingNumber

	require.NoError(t, env.booking.Confirm(context.Background(), bookingID, reference))

	booking := env.bookings.get(bookingID)
	assert.Equal(t, entity.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, entity.PaymentStatusCompleted, booking.PaymentStatus)
	require.NotNil(t, booking.PaymentReference)
	assert.Equal(t, reference, *booking.PaymentReference)

	for _, code := range []string{"A1", "A2"} {
		seat := env.seats.get(screening.ID, code)
		assert.Equal(t, entity.SeatStatusBooked, seat.Status)
	}

	assert.Equal(t, 0, env.screenings.get(screening.ID).ConcurrentBookings)
	assert.Len(t, env.publisher.confirmed, 1)

	env.promotions.mu.Lock()
	assert.Equal(t, 1, env.promotions.promotions["SAVE20"].UsageCount)
	env.promotions.mu.Unlock()

	// Duplicate delivery of the same outcome is a no-op.
	require.NoError(t, env.booking.Confirm(context.Background(), bookingID, reference))

	assert.Len(t, env.publisher.confirmed, 1)
	env.promotions.mu.Lock()
	assert.Equal(t, 1, env.promotions.promotions["SAVE20"].UsageCount)
	env.promotions.mu.Unlock()
}

func TestConfirmConflictingReference(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")
	reference := env.bookings.get(bookingID).BookingNumber

	require.NoError(t, env.booking.Confirm(context.Background(), bookingID, reference))

	err := env.booking.Confirm(context.Background(), bookingID, "other-ref")
	assert.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestConfirmLostSeatInsideWindowRevertsBookedSubset(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1", "A2")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1", "A2"}, "")

	// A racing duplicate confirmation already moved A2 to booked, so the
	// reserved->booked compare-and-set rejects it.
	env.seats.mu.Lock()
	a2 := env.seats.seats[screening.ID]["A2"]
	a2.Status = entity.SeatStatusBooked
	a2.Version++
	env.seats.mu.Unlock()

	err := env.booking.Confirm(context.Background(), bookingID, "ref-1")
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	// A1 briefly became booked and must be reserved again.
	seat := env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusReserved, seat.Status)
	require.NotNil(t, seat.ReservedUntil)

	assert.Equal(t, entity.BookingStatusPendingPayment, env.bookings.get(bookingID).Status)
}

func TestExpireSweepReclaimsLapsedBookings(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1", "A2")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1", "A2"}, "")

	env.bookings.mu.Lock()
	env.bookings.bookings[bookingID].HoldExpiresAt = time.Now().Add(-time.Minute)
	env.bookings.mu.Unlock()

	count, err := env.booking.ExpireSweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	booking := env.bookings.get(bookingID)
	assert.Equal(t, entity.BookingStatusExpired, booking.Status)

	for _, code := range []string{"A1", "A2"} {
		seat := env.seats.get(screening.ID, code)
		assert.Equal(t, entity.SeatStatusAvailable, seat.Status)
	}
	assert.Equal(t, 0, env.screenings.get(screening.ID).ConcurrentBookings)
	assert.Len(t, env.publisher.expired, 1)

	// A second sweep finds nothing.
	count, err = env.booking.ExpireSweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLateConfirmationNeverResurrects(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")
	reference := env.bookings.get(bookingID).BookingNumber

	env.bookings.mu.Lock()
	env.bookings.bookings[bookingID].HoldExpiresAt = time.Now().Add(-time.Minute)
	env.bookings.mu.Unlock()

	_, err := env.booking.ExpireSweep(context.Background(), time.Now())
	require.NoError(t, err)

	// Another user takes the freed seat.
	_, err = env.reservation.Reserve(context.Background(), uuid.New(), uuid.New(), screening.ID, []string{"A1"})
	require.NoError(t, err)

	// The payment callback arrives after the fact.
	err = env.booking.Confirm(context.Background(), bookingID, reference)
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	assert.Equal(t, entity.BookingStatusExpired, env.bookings.get(bookingID).Status)
	seat := env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusReserved, seat.Status)
}

// lapseHold backdates a booking's hold window and the reserved_until of
// its seats, as if the payment never arrived in time.
func lapseHold(env *testEnv, screeningID, bookingID uuid.UUID, codes ...string) {
	past := time.Now().Add(-time.Minute)

	env.bookings.mu.Lock()
	env.bookings.bookings[bookingID].HoldExpiresAt = past
	env.bookings.mu.Unlock()

	env.seats.mu.Lock()
	for _, code := range codes {
		env.seats.seats[screeningID][code].ReservedUntil = &past
	}
	env.seats.mu.Unlock()
}

func TestConfirmLapsedHoldDoesNotStealReheldSeat(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	firstUser := uuid.New()
	firstID := createBooking(t, env, screening.ID, firstUser, []string{"A1"}, "")
	firstRef := env.bookings.get(firstID).BookingNumber

	lapseHold(env, screening.ID, firstID, "A1")

	// The next buyer's reserve reclaims the stale hold and takes the seat.
	secondID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")
	secondRef := env.bookings.get(secondID).BookingNumber

	seat := env.seats.get(screening.ID, "A1")
	require.NotNil(t, seat.BookingID)
	require.Equal(t, secondID, *seat.BookingID)

	// The first payment lands anyway; its booking expires with a refund
	// obligation and the live hold is untouched.
	err := env.booking.Confirm(context.Background(), firstID, firstRef)
	assert.ErrorIs(t, err, ErrReservationExpired)

	assert.Equal(t, entity.BookingStatusExpired, env.bookings.get(firstID).Status)
	assert.Equal(t, entity.BookingStatusPendingPayment, env.bookings.get(secondID).Status)

	seat = env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusReserved, seat.Status)
	require.NotNil(t, seat.BookingID)
	assert.Equal(t, secondID, *seat.BookingID)

	// The live hold still confirms normally.
	require.NoError(t, env.booking.Confirm(context.Background(), secondID, secondRef))
	seat = env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusBooked, seat.Status)
	assert.Equal(t, entity.BookingStatusConfirmed, env.bookings.get(secondID).Status)
}

func TestConfirmSkipsSeatsHeldByAnotherBooking(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")

	// The seat references a different booking even though the window is
	// still open; the version guard alone would not catch this.
	other := uuid.New()
	env.seats.mu.Lock()
	env.seats.seats[screening.ID]["A1"].BookingID = &other
	env.seats.mu.Unlock()

	err := env.booking.Confirm(context.Background(), bookingID, "ref-1")
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	seat := env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusReserved, seat.Status)
	require.NotNil(t, seat.BookingID)
	assert.Equal(t, other, *seat.BookingID)
}

func TestExpireSweepSparesResoldSeats(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	abandonedID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")
	lapseHold(env, screening.ID, abandonedID, "A1")

	// Before the sweep reaches the abandoned booking, the seat is resold
	// and the sale completes.
	resoldID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")
	resoldRef := env.bookings.get(resoldID).BookingNumber
	require.NoError(t, env.booking.Confirm(context.Background(), resoldID, resoldRef))

	count, err := env.booking.ExpireSweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, entity.BookingStatusExpired, env.bookings.get(abandonedID).Status)
	assert.Equal(t, entity.BookingStatusConfirmed, env.bookings.get(resoldID).Status)

	// The sold seat stays sold; nobody else can take it.
	seat := env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusBooked, seat.Status)
	require.NotNil(t, seat.BookingID)
	assert.Equal(t, resoldID, *seat.BookingID)

	_, err = env.reservation.Reserve(context.Background(), uuid.New(), uuid.New(), screening.ID, []string{"A1"})
	var unavailable *SeatsUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestFailCancelsAndIsIdempotent(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")

	require.NoError(t, env.booking.Fail(context.Background(), bookingID, "payment failed"))

	booking := env.bookings.get(bookingID)
	assert.Equal(t, entity.BookingStatusCancelled, booking.Status)

	seat := env.seats.get(screening.ID, "A1")
	assert.Equal(t, entity.SeatStatusAvailable, seat.Status)
	assert.Equal(t, 0, env.screenings.get(screening.ID).ConcurrentBookings)
	assert.Len(t, env.publisher.cancelled, 1)

	require.NoError(t, env.booking.Fail(context.Background(), bookingID, "payment failed"))
	assert.Len(t, env.publisher.cancelled, 1)
}

func TestCancelConfirmedRefunds(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1", "A2")

	userID := uuid.New()
	bookingID := createBooking(t, env, screening.ID, userID, []string{"A1", "A2"}, "")
	reference := env.bookings.get(bookingID).BookingNumber
	require.NoError(t, env.booking.Confirm(context.Background(), bookingID, reference))

	require.NoError(t, env.booking.CancelConfirmed(context.Background(), bookingID, "plans changed"))

	booking := env.bookings.get(bookingID)
	assert.Equal(t, entity.BookingStatusRefunded, booking.Status)
	assert.Equal(t, entity.PaymentStatusRefunded, booking.PaymentStatus)

	for _, code := range []string{"A1", "A2"} {
		seat := env.seats.get(screening.ID, code)
		assert.Equal(t, entity.SeatStatusAvailable, seat.Status)
	}

	env.gateway.mu.Lock()
	require.Len(t, env.gateway.refunds, 1)
	assert.InDelta(t, booking.GrandTotal, env.gateway.refunds[0], 0.001)
	env.gateway.mu.Unlock()

	require.Len(t, env.publisher.cancelled, 1)
	assert.True(t, env.publisher.cancelled[0].Refunded)
}

func TestCancelConfirmedAfterShowtimeRejected(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")
	reference := env.bookings.get(bookingID).BookingNumber
	require.NoError(t, env.booking.Confirm(context.Background(), bookingID, reference))

	env.screenings.mu.Lock()
	env.screenings.screenings[screening.ID].StartsAt = time.Now().Add(-time.Minute)
	env.screenings.mu.Unlock()

	err := env.booking.CancelConfirmed(context.Background(), bookingID, "too late")
	assert.ErrorIs(t, err, ErrScreeningStarted)

	assert.Equal(t, entity.BookingStatusConfirmed, env.bookings.get(bookingID).Status)
}

func TestCancelByUserOwnership(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	owner := uuid.New()
	bookingID := createBooking(t, env, screening.ID, owner, []string{"A1"}, "")

	err := env.booking.CancelByUser(context.Background(), uuid.New().String(), bookingID.String(), "not mine")
	assert.Error(t, err)
	assert.Equal(t, entity.BookingStatusPendingPayment, env.bookings.get(bookingID).Status)

	require.NoError(t, env.booking.CancelByUser(context.Background(), owner.String(), bookingID.String(), "changed my mind"))
	assert.Equal(t, entity.BookingStatusCancelled, env.bookings.get(bookingID).Status)
}

func TestPaymentCallbackRoutesByReference(t *testing.T) {
	env := newTestEnv()
	screening := env.seedScreening(10, 100, "A1")

	bookingID := createBooking(t, env, screening.ID, uuid.New(), []string{"A1"}, "")
	reference := env.bookings.get(bookingID).BookingNumber

	require.NoError(t, env.payment.HandleCallback(context.Background(), &request.PaymentCallbackRequest{
		Reference: reference,
		Status:    "succeeded",
	}))
	assert.Equal(t, entity.BookingStatusConfirmed, env.bookings.get(bookingID).Status)

	err := env.payment.HandleCallback(context.Background(), &request.PaymentCallbackRequest{
		Reference: "TIX-00000000-000000-XXXX",
		Status:    "succeeded",
	})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
