// Package worker runs the background reclamation loop for lapsed holds.
package worker

import (
	"context"
	"sync"
	"time"

	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpiryWorkerConfig controls the sweep cadence.
type ExpiryWorkerConfig struct {
	ScanInterval time.Duration
	BatchSize    int
}

func DefaultExpiryWorkerConfig() ExpiryWorkerConfig {
	return ExpiryWorkerConfig{
		ScanInterval: 5 * time.Second,
		BatchSize:    100,
	}
}

// ExpiryWorker periodically expires pending bookings whose holds lapsed
// and releases orphaned seat holds that no longer have a live booking.
// It is the backstop behind the opportunistic sweeps on the request path.
type ExpiryWorker struct {
	config    ExpiryWorkerConfig
	bookings  usecase.BookingService
	seats     repository.SeatRepository
	screening repository.ScreeningRepository
	log       *zap.Logger

	mu               sync.Mutex
	running          bool
	cancel           context.CancelFunc
	done             chan struct{}
	totalExpired     int64
	totalReleased    int64
	lastScanTime     time.Time
	lastExpiredCount int
}

func NewExpiryWorker(
	config ExpiryWorkerConfig,
	bookings usecase.BookingService,
	seats repository.SeatRepository,
	screening repository.ScreeningRepository,
	log *zap.Logger,
) *ExpiryWorker {
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultExpiryWorkerConfig().ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultExpiryWorkerConfig().BatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &ExpiryWorker{
		config:    config,
		bookings:  bookings,
		seats:     seats,
		screening: screening,
		log:       log.With(zap.String("worker", "expiry")),
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.log.Info("Expiry worker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	go w.loop(ctx)
}

func (w *ExpiryWorker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *ExpiryWorker) scan(ctx context.Context) {
	now := time.Now()

	expired, err := w.bookings.ExpireSweep(ctx, now)
	if err != nil {
		w.log.Error("Booking expiry sweep failed", zap.Error(err))
	}

	// Orphaned holds: seat rows past reserved_until whose booking the
	// sweep above did not cover, e.g. after a crashed rollback.
	released, err := w.seats.ReleaseAllExpired(ctx, now, w.config.BatchSize)
	if err != nil {
		w.log.Error("Orphaned hold release failed", zap.Error(err))
	}

	if len(released) > 0 {
		seen := make(map[uuid.UUID]bool)
		for _, ref := range released {
			if seen[ref.ScreeningID] {
				continue
			}
			seen[ref.ScreeningID] = true
			if err := w.screening.RefreshAvailability(ctx, ref.ScreeningID); err != nil {
				w.log.Warn("Availability refresh failed", zap.Error(err),
					zap.String("screening_id", ref.ScreeningID.String()))
			}
		}
		w.log.Info("Released orphaned holds", zap.Int("count", len(released)))
	}

	w.mu.Lock()
	w.totalExpired += int64(expired)
	w.totalReleased += int64(len(released))
	w.lastScanTime = now
	w.lastExpiredCount = expired
	w.mu.Unlock()
}

func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// ExpiryWorkerStats is a snapshot of the worker counters.
type ExpiryWorkerStats struct {
	Running          bool
	TotalExpired     int64
	TotalReleased    int64
	LastScanTime     time.Time
	LastExpiredCount int
}

func (w *ExpiryWorker) GetStats() ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ExpiryWorkerStats{
		Running:          w.running,
		TotalExpired:     w.totalExpired,
		TotalReleased:    w.totalReleased,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}
