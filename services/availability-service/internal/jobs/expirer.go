package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/libs/db"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/availability"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/outbox"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/storage"
)

type cacheClearer interface {
	ClearAvailabilityCache(ctx context.Context, chaletID uuid.UUID, dates ...time.Time)
}

// Expirer cancels pending bookings whose payment hold has lapsed, so their
// slots return to the available pool. Each expired booking emits an event and
// clears the affected cache entries.
type Expirer struct {
	pool      *db.Pool
	repo      *storage.BookingRepository
	outbox    *outbox.Repository
	cache     cacheClearer
	logger    *slog.Logger
	hold      time.Duration
	interval  time.Duration
	batchSize int
}

type ExpirerConfig struct {
	// Hold is how long a pending booking keeps its slots reserved.
	Hold      time.Duration
	Interval  time.Duration
	BatchSize int
}

func NewExpirer(pool *db.Pool, repo *storage.BookingRepository, outboxRepo *outbox.Repository, cache cacheClearer, logger *slog.Logger, cfg ExpirerConfig) *Expirer {
	if cfg.Hold <= 0 {
		cfg.Hold = 30 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Expirer{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		cache:     cache,
		logger:    logger,
		hold:      cfg.Hold,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (e *Expirer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.expireBatch(ctx); err != nil {
				e.logger.Error("pending booking expiry failed", "err", err)
			}
		}
	}
}

func (e *Expirer) expireBatch(ctx context.Context) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cutoff := time.Now().UTC().Add(-e.hold)
	expired, err := e.repo.ExpireStalePending(ctx, tx, cutoff, e.batchSize)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return tx.Commit(ctx)
	}

	for _, b := range expired {
		payload, err := json.Marshal(map[string]any{
			"booking_id": b.ID,
			"chalet_id":  b.ChaletID,
			"start_at":   b.StartAt.UTC().Format(time.RFC3339),
			"end_at":     b.EndAt.UTC().Format(time.RFC3339),
			"expired_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := e.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "booking",
			AggregateID:   b.ID.String(),
			EventType:     outbox.EventBookingExpired,
			Payload:       payload,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	for _, b := range expired {
		e.cache.ClearAvailabilityCache(ctx, b.ChaletID, bookingDates(b)...)
	}
	e.logger.Info("expired stale pending bookings", "count", len(expired))
	return nil
}

// bookingDates lists every calendar date the booking touches.
func bookingDates(b model.Booking) []time.Time {
	first := availability.DateOnly(b.StartAt)
	last := availability.DateOnly(b.EndAt)
	var dates []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
