package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/queue"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// In-memory repository fakes with the same guarded-update semantics as the
// SQL implementations, so concurrency tests exercise real contention.

type fakeSeatRepo struct {
	mu    sync.Mutex
	seats map[uuid.UUID]map[string]*entity.Seat // screeningID -> code -> seat

	failRelease  int // fail the next N Release calls
	releaseCalls int
}

func newFakeSeatRepo() *fakeSeatRepo {
	return &fakeSeatRepo{seats: make(map[uuid.UUID]map[string]*entity.Seat)}
}

func (f *fakeSeatRepo) add(seat *entity.Seat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seats[seat.ScreeningID] == nil {
		f.seats[seat.ScreeningID] = make(map[string]*entity.Seat)
	}
	f.seats[seat.ScreeningID][seat.SeatCode] = seat
}

func (f *fakeSeatRepo) get(screeningID uuid.UUID, code string) entity.Seat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.seats[screeningID][code]
}

func (f *fakeSeatRepo) CreateBatch(ctx context.Context, seats []*entity.Seat) error {
	for _, seat := range seats {
		f.add(seat)
	}
	return nil
}

func (f *fakeSeatRepo) FindByScreening(ctx context.Context, screeningID uuid.UUID) ([]*entity.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Seat
	for _, seat := range f.seats[screeningID] {
		copied := *seat
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeSeatRepo) FindByCodes(ctx context.Context, screeningID uuid.UUID, codes []string) ([]*entity.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Seat
	for _, code := range codes {
		if seat, ok := f.seats[screeningID][code]; ok {
			copied := *seat
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSeatRepo) TryTransition(ctx context.Context, screeningID uuid.UUID, seats []repository.SeatTransition, from, to entity.SeatStatus, holderID, bookingID *uuid.UUID, reservedUntil *time.Time) ([]string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var applied, rejected []string
	for _, tr := range seats {
		seat, ok := f.seats[screeningID][tr.Code]
		if !ok || seat.Status != from || seat.Version != tr.Version {
			rejected = append(rejected, tr.Code)
			continue
		}
		seat.Status = to
		seat.HolderID = holderID
		seat.BookingID = bookingID
		seat.ReservedUntil = reservedUntil
		seat.Version++
		applied = append(applied, tr.Code)
	}
	return applied, rejected, nil
}

func (f *fakeSeatRepo) Release(ctx context.Context, screeningID, bookingID uuid.UUID, codes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseCalls++
	if f.failRelease > 0 {
		f.failRelease--
		return errors.New("release failed")
	}

	for _, code := range codes {
		seat, ok := f.seats[screeningID][code]
		if !ok {
			continue
		}
		if seat.BookingID == nil || *seat.BookingID != bookingID {
			continue
		}
		if seat.Status != entity.SeatStatusReserved && seat.Status != entity.SeatStatusBooked {
			continue
		}
		seat.Status = entity.SeatStatusAvailable
		seat.HolderID = nil
		seat.BookingID = nil
		seat.ReservedUntil = nil
		seat.Version++
	}
	return nil
}

func (f *fakeSeatRepo) ReleaseExpired(ctx context.Context, screeningID uuid.UUID, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var released []string
	for code, seat := range f.seats[screeningID] {
		if seat.HoldExpired(now) {
			seat.Status = entity.SeatStatusAvailable
			seat.HolderID = nil
			seat.BookingID = nil
			seat.ReservedUntil = nil
			seat.Version++
			released = append(released, code)
		}
	}
	return released, nil
}

func (f *fakeSeatRepo) ReleaseAllExpired(ctx context.Context, now time.Time, limit int) ([]repository.SeatRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var refs []repository.SeatRef
	for screeningID, seats := range f.seats {
		for code, seat := range seats {
			if len(refs) >= limit {
				return refs, nil
			}
			if seat.HoldExpired(now) {
				seat.Status = entity.SeatStatusAvailable
				seat.HolderID = nil
				seat.BookingID = nil
				seat.ReservedUntil = nil
				seat.Version++
				refs = append(refs, repository.SeatRef{ScreeningID: screeningID, SeatCode: code})
			}
		}
	}
	return refs, nil
}

func (f *fakeSeatRepo) SetAdminStatus(ctx context.Context, screeningID uuid.UUID, codes []string, from, to entity.SeatStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var affected int64
	for _, code := range codes {
		seat, ok := f.seats[screeningID][code]
		if !ok || seat.Status != from {
			continue
		}
		seat.Status = to
		seat.Version++
		affected++
	}
	return affected, nil
}

type fakeScreeningRepo struct {
	mu         sync.Mutex
	screenings map[uuid.UUID]*entity.Screening
	seats      *fakeSeatRepo
}

func newFakeScreeningRepo(seats *fakeSeatRepo) *fakeScreeningRepo {
	return &fakeScreeningRepo{
		screenings: make(map[uuid.UUID]*entity.Screening),
		seats:      seats,
	}
}

func (f *fakeScreeningRepo) add(s *entity.Screening) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenings[s.ID] = s
}

func (f *fakeScreeningRepo) get(id uuid.UUID) entity.Screening {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.screenings[id]
}

func (f *fakeScreeningRepo) Create(ctx context.Context, screening *entity.Screening, seats []*entity.Seat) error {
	f.add(screening)
	return f.seats.CreateBatch(ctx, seats)
}

func (f *fakeScreeningRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Screening, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeScreeningRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.ScreeningStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok {
		return errors.New("screening not found")
	}
	s.Status = status
	return nil
}

func (f *fakeScreeningRepo) IncrementConcurrent(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok {
		return false, errors.New("screening not found")
	}
	if s.ConcurrentBookings >= s.ConcurrentBookingLimit {
		return false, nil
	}
	s.ConcurrentBookings++
	return true, nil
}

func (f *fakeScreeningRepo) DecrementConcurrent(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok {
		return errors.New("screening not found")
	}
	if s.ConcurrentBookings > 0 {
		s.ConcurrentBookings--
	}
	return nil
}

func (f *fakeScreeningRepo) RefreshAvailability(ctx context.Context, id uuid.UUID) error {
	f.seats.mu.Lock()
	avail := 0
	for _, seat := range f.seats.seats[id] {
		if seat.Status == entity.SeatStatusAvailable {
			avail++
		}
	}
	f.seats.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok {
		return nil
	}
	s.SeatsAvailable = avail
	if s.Status == entity.ScreeningStatusCancelled {
		return nil
	}
	threshold := s.SeatsTotal / 10
	if threshold < 1 {
		threshold = 1
	}
	switch {
	case avail == 0:
		s.Status = entity.ScreeningStatusSoldOut
	case avail <= threshold:
		s.Status = entity.ScreeningStatusAlmostFull
	default:
		s.Status = entity.ScreeningStatusOpen
	}
	return nil
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*entity.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*entity.Booking)}
}

func (f *fakeBookingRepo) get(id uuid.UUID) entity.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.bookings[id]
}

func (f *fakeBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *booking
	f.bookings[booking.ID] = &copied
	return nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingRepo) FindByNumber(ctx context.Context, number string) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.BookingNumber == number {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeBookingRepo) FindByPaymentReference(ctx context.Context, reference string) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.PaymentReference != nil && *b.PaymentReference == reference {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeBookingRepo) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (f *fakeBookingRepo) MarkConfirmed(ctx context.Context, id uuid.UUID, paymentReference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != entity.BookingStatusPendingPayment {
		return false, nil
	}
	b.Status = entity.BookingStatusConfirmed
	b.PaymentStatus = entity.PaymentStatusCompleted
	b.PaymentReference = &paymentReference
	return true, nil
}

func (f *fakeBookingRepo) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != entity.BookingStatusConfirmed {
		return false, nil
	}
	b.Status = entity.BookingStatusRefunded
	b.PaymentStatus = entity.PaymentStatusRefunded
	return true, nil
}

func (f *fakeBookingRepo) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Booking
	for _, b := range f.bookings {
		if len(out) >= limit {
			break
		}
		if b.Status == entity.BookingStatusPendingPayment && !b.HoldExpiresAt.After(now) {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakePromotionRepo struct {
	mu         sync.Mutex
	promotions map[string]*entity.Promotion
	usages     []*entity.PromotionUsage
}

func newFakePromotionRepo() *fakePromotionRepo {
	return &fakePromotionRepo{promotions: make(map[string]*entity.Promotion)}
}

func (f *fakePromotionRepo) add(p *entity.Promotion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promotions[p.Code] = p
}

func (f *fakePromotionRepo) FindActiveByCode(ctx context.Context, code string) (*entity.Promotion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promotions[code]
	if !ok || !p.IsActive {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakePromotionRepo) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.promotions {
		if p.ID == id {
			if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
				return false, nil
			}
			p.UsageCount++
			return true, nil
		}
	}
	return false, errors.New("promotion not found")
}

func (f *fakePromotionRepo) CountUsageByUser(ctx context.Context, promotionID, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.usages {
		if u.PromotionID == promotionID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakePromotionRepo) RecordUsage(ctx context.Context, usage *entity.PromotionUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usages = append(f.usages, usage)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	confirmed []queue.BookingConfirmedEvent
	cancelled []queue.BookingCancelledEvent
	expired   []queue.BookingExpiredEvent
}

func (p *fakePublisher) BookingConfirmed(ctx context.Context, e queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, e)
	return nil
}

func (p *fakePublisher) BookingCancelled(ctx context.Context, e queue.BookingCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *fakePublisher) BookingExpired(ctx context.Context, e queue.BookingExpiredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, e)
	return nil
}

type fakeGateway struct {
	mu      sync.Mutex
	refunds []float64
}

func (g *fakeGateway) Refund(ctx context.Context, reference string, amount float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, amount)
	return nil
}

func (g *fakeGateway) Name() string { return "fake" }

// testEnv bundles the fakes with fully wired services.
type testEnv struct {
	seats      *fakeSeatRepo
	screenings *fakeScreeningRepo
	bookings   *fakeBookingRepo
	promotions *fakePromotionRepo
	publisher  *fakePublisher
	gateway    *fakeGateway
	repo       *repository.Repository
	config     *utils.Config

	reservation ReservationService
	promotion   PromotionService
	booking     BookingService
	payment     PaymentService
}

func newTestEnv() *testEnv {
	seats := newFakeSeatRepo()
	screenings := newFakeScreeningRepo(seats)
	bookings := newFakeBookingRepo()
	promotions := newFakePromotionRepo()
	publisher := &fakePublisher{}
	gw := &fakeGateway{}

	repo := &repository.Repository{
		Screening: screenings,
		Seat:      seats,
		Booking:   bookings,
		Promotion: promotions,
	}

	config := &utils.Config{
		Reservation: utils.ReservationConfig{
			HoldTTL:         10 * time.Minute,
			SweepInterval:   5 * time.Second,
			SweepBatchSize:  100,
			ConcurrentLimit: 50,
			RollbackRetries: 3,
			TaxRate:         0.10,
		},
	}

	log := zap.NewNop()
	reservation := NewReservationService(repo, config, log)
	promotion := NewPromotionService(repo, log)
	booking := NewBookingService(repo, reservation, promotion, gw, publisher, config, log)

	return &testEnv{
		seats:       seats,
		screenings:  screenings,
		bookings:    bookings,
		promotions:  promotions,
		publisher:   publisher,
		gateway:     gw,
		repo:        repo,
		config:      config,
		reservation: reservation,
		promotion:   promotion,
		booking:     booking,
		payment:     NewPaymentService(repo, booking, log),
	}
}

// seedScreening creates an open screening with the given seat codes, all
// available at the given price.
func (env *testEnv) seedScreening(limit int, price float64, codes ...string) *entity.Screening {
	now := time.Now()
	screening := &entity.Screening{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		MovieID:                uuid.New(),
		VenueName:              "Grand Central",
		RoomName:               "Room 1",
		StartsAt:               now.Add(4 * time.Hour),
		EndsAt:                 now.Add(6 * time.Hour),
		Format:                 entity.Format2D,
		BasePrice:              price,
		SeatsTotal:             len(codes),
		SeatsAvailable:         len(codes),
		Status:                 entity.ScreeningStatusOpen,
		ConcurrentBookingLimit: limit,
	}
	env.screenings.add(screening)

	for i, code := range codes {
		env.seats.add(&entity.Seat{
			ID:          uuid.New(),
			ScreeningID: screening.ID,
			SeatCode:    code,
			SeatRow:     code[:1],
			SeatColumn:  i + 1,
			Type:        entity.SeatTypeStandard,
			Price:       price,
			Status:      entity.SeatStatusAvailable,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return screening
}
