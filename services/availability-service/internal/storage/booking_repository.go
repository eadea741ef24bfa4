package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/msaldawsari/chaletbook/libs/db"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

// BookingRepository owns booking mutations. Creation is the one mandatory
// serialization point of the engine: callers lock the chalet row, re-validate
// inside the same transaction, then insert.
type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockChalet takes an exclusive row lock on the chalet, closing the
// read-then-write race between two concurrent booking requests.
func (r *BookingRepository) LockChalet(ctx context.Context, tx pgx.Tx, chaletID uuid.UUID) error {
	var id uuid.UUID
	return tx.QueryRow(ctx, `
		SELECT id FROM chalets WHERE id = $1 FOR UPDATE
	`, chaletID).Scan(&id)
}

// Create inserts the booking and its slot associations inside tx.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(chalet_id, user_id, start_at, end_at, mode, status, payment_status,
			 base_price, seasonal_adjustment, discount_amount, commission, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, b.ChaletID, b.UserID, b.StartAt, b.EndAt, b.Mode, b.Status, b.PaymentStatus,
		b.BasePrice, b.SeasonalAdjustment, b.DiscountAmount, b.Commission, b.TotalPrice).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	for _, slotID := range b.SlotIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_slots (booking_id, time_slot_id)
			VALUES ($1, $2)
		`, id, slotID); err != nil {
			return uuid.Nil, err
		}
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, chaletID, bookingID uuid.UUID) (model.Booking, error) {
	var b model.Booking
	err := tx.QueryRow(ctx, `
		SELECT id, chalet_id, user_id, start_at, end_at, mode, status, payment_status,
			base_price, seasonal_adjustment, discount_amount, commission, total_price, created_at
		FROM bookings
		WHERE id = $1 AND chalet_id = $2
		FOR UPDATE
	`, bookingID, chaletID).Scan(
		&b.ID, &b.ChaletID, &b.UserID, &b.StartAt, &b.EndAt, &b.Mode, &b.Status, &b.PaymentStatus,
		&b.BasePrice, &b.SeasonalAdjustment, &b.DiscountAmount, &b.Commission, &b.TotalPrice, &b.CreatedAt,
	)
	return b, err
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, status model.BookingStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $2 WHERE id = $1
	`, bookingID, status)
	return err
}

// ExpireStalePending cancels pending bookings created before cutoff and
// returns them so the caller can clear affected cache entries. SKIP LOCKED
// keeps concurrent workers from stepping on each other.
func (r *BookingRepository) ExpireStalePending(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := tx.Query(ctx, `
		WITH stale AS (
			SELECT id FROM bookings
			WHERE status = 'pending' AND created_at < $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE bookings b
		SET status = 'cancelled'
		FROM stale
		WHERE b.id = stale.id
		RETURNING b.id, b.chalet_id, b.start_at, b.end_at
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.ChaletID, &b.StartAt, &b.EndAt); err != nil {
			return nil, err
		}
		b.Status = model.BookingCancelled
		expired = append(expired, b)
	}
	return expired, rows.Err()
}
