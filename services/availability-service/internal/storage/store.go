package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/msaldawsari/chaletbook/libs/db"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same store
// can serve lock-free engine reads and tx-scoped booking validation.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	q querier
}

func NewStore(pool *db.Pool) *Store {
	return &Store{q: pool.Pool}
}

// WithTx returns a store whose queries run inside tx. Used by the booking
// creation flow to re-validate under the chalet row lock.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{q: tx}
}

func (s *Store) GetChalet(ctx context.Context, id uuid.UUID) (model.Chalet, error) {
	var c model.Chalet
	var weekendDays []string
	err := s.q.QueryRow(ctx, `
		SELECT id, name, COALESCE(weekend_days, '{}'), commission_rate, is_active
		FROM chalets
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &weekendDays, &c.CommissionRate, &c.IsActive)
	if err != nil {
		return model.Chalet{}, err
	}
	c.WeekendDays, err = model.ParseWeekdaySet(weekendDays)
	if err != nil {
		return model.Chalet{}, err
	}
	return c, nil
}

const slotColumns = `
	id, chalet_id, name, start_time, end_time, is_overnight, duration_hours,
	weekday_price, weekend_price, allow_extra_hours, extra_hour_price,
	max_extra_hours, COALESCE(allowed_days, '{}'), is_active, created_at`

func scanSlot(row pgx.Row) (model.TimeSlot, error) {
	var slot model.TimeSlot
	var allowedDays []string
	err := row.Scan(
		&slot.ID,
		&slot.ChaletID,
		&slot.Name,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsOvernight,
		&slot.DurationHours,
		&slot.WeekdayPrice,
		&slot.WeekendPrice,
		&slot.AllowExtraHours,
		&slot.ExtraHourPrice,
		&slot.MaxExtraHours,
		&allowedDays,
		&slot.IsActive,
		&slot.CreatedAt,
	)
	if err != nil {
		return model.TimeSlot{}, err
	}
	slot.AllowedDays, err = model.ParseWeekdaySet(allowedDays)
	if err != nil {
		return model.TimeSlot{}, err
	}
	return slot, nil
}

// GetSlot loads one slot by id, active or not. Historical bookings keep
// referencing deactivated slots, so no active filter here.
func (s *Store) GetSlot(ctx context.Context, slotID uuid.UUID) (model.TimeSlot, error) {
	row := s.q.QueryRow(ctx, `SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1`, slotID)
	return scanSlot(row)
}

// FindActiveSlots lists a chalet's active slots, optionally restricted to one
// booking mode. Deactivated slots are hidden from new searches but remain
// referenced by historical bookings.
func (s *Store) FindActiveSlots(ctx context.Context, chaletID uuid.UUID, mode *model.BookingMode) ([]model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM time_slots
		WHERE chalet_id = $1 AND is_active`
	args := []any{chaletID}
	if mode != nil {
		query += ` AND is_overnight = $2`
		args = append(args, *mode == model.ModeOvernight)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// FindBlockedDates returns block rows with date in [from, to] inclusive. Slot
// wall-clock times are joined in so the scanner needs no extra lookups.
func (s *Store) FindBlockedDates(ctx context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.BlockedDate, error) {
	rows, err := s.q.Query(ctx, `
		SELECT b.id, b.chalet_id, b.date, b.time_slot_id,
			COALESCE(s.start_time, ''), COALESCE(s.end_time, ''),
			COALESCE(s.is_overnight, false), b.reason, COALESCE(b.note, '')
		FROM blocked_dates b
		LEFT JOIN time_slots s ON s.id = b.time_slot_id
		WHERE b.chalet_id = $1 AND b.date >= $2 AND b.date <= $3
		ORDER BY b.date ASC
	`, chaletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.BlockedDate
	for rows.Next() {
		var b model.BlockedDate
		var slotID *string
		if err := rows.Scan(&b.ID, &b.ChaletID, &b.Date, &slotID, &b.SlotStart, &b.SlotEnd, &b.SlotOvernight, &b.Reason, &b.Note); err != nil {
			return nil, err
		}
		if slotID != nil {
			id, err := uuid.Parse(*slotID)
			if err != nil {
				return nil, err
			}
			b.SlotID = &id
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// FindBookingsOverlapping returns confirmed and pending bookings whose
// [start_at, end_at) instant range intersects [from, to).
func (s *Store) FindBookingsOverlapping(ctx context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	rows, err := s.q.Query(ctx, `
		SELECT k.id, k.chalet_id, k.user_id, k.start_at, k.end_at, k.mode,
			k.status, k.payment_status, k.created_at,
			ARRAY(SELECT bs.time_slot_id::text FROM booking_slots bs WHERE bs.booking_id = k.id)
		FROM bookings k
		WHERE k.chalet_id = $1
			AND k.status IN ('confirmed', 'pending')
			AND k.start_at < $3
			AND k.end_at > $2
		ORDER BY k.start_at ASC
	`, chaletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		var slotIDs []string
		if err := rows.Scan(&b.ID, &b.ChaletID, &b.UserID, &b.StartAt, &b.EndAt, &b.Mode, &b.Status, &b.PaymentStatus, &b.CreatedAt, &slotIDs); err != nil {
			return nil, err
		}
		for _, raw := range slotIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, err
			}
			b.SlotIDs = append(b.SlotIDs, id)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// FindActivePricingRules returns active rules for the slot whose date range
// contains date, newest first. The caller picks the latest-created match.
func (s *Store) FindActivePricingRules(ctx context.Context, chaletID, slotID uuid.UUID, date time.Time) ([]model.PricingRule, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, chalet_id, time_slot_id, start_date, end_date, adjustment, name, is_active, created_at
		FROM pricing_rules
		WHERE chalet_id = $1 AND time_slot_id = $2 AND is_active
			AND start_date <= $3 AND end_date >= $3
		ORDER BY created_at DESC
	`, chaletID, slotID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.PricingRule
	for rows.Next() {
		var r model.PricingRule
		if err := rows.Scan(&r.ID, &r.ChaletID, &r.SlotID, &r.StartDate, &r.EndDate, &r.Adjustment, &r.Name, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertBlockedDate inserts or refreshes a block row, keeping the
// one-row-per-(chalet, date, slot) invariant. Whole-day and per-slot rows
// live under separate partial unique indexes.
func (s *Store) UpsertBlockedDate(ctx context.Context, b model.BlockedDate) (uuid.UUID, error) {
	var id uuid.UUID
	var err error
	if b.SlotID == nil {
		err = s.q.QueryRow(ctx, `
			INSERT INTO blocked_dates (chalet_id, date, time_slot_id, reason, note)
			VALUES ($1, $2, NULL, $3, $4)
			ON CONFLICT (chalet_id, date) WHERE time_slot_id IS NULL
			DO UPDATE SET reason = EXCLUDED.reason, note = EXCLUDED.note
			RETURNING id
		`, b.ChaletID, b.Date, b.Reason, b.Note).Scan(&id)
	} else {
		err = s.q.QueryRow(ctx, `
			INSERT INTO blocked_dates (chalet_id, date, time_slot_id, reason, note)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (chalet_id, date, time_slot_id) WHERE time_slot_id IS NOT NULL
			DO UPDATE SET reason = EXCLUDED.reason, note = EXCLUDED.note
			RETURNING id
		`, b.ChaletID, b.Date, *b.SlotID, b.Reason, b.Note).Scan(&id)
	}
	return id, err
}

func (s *Store) DeleteBlockedDate(ctx context.Context, chaletID uuid.UUID, date time.Time, slotID *uuid.UUID) error {
	if slotID == nil {
		_, err := s.q.Exec(ctx, `
			DELETE FROM blocked_dates
			WHERE chalet_id = $1 AND date = $2 AND time_slot_id IS NULL
		`, chaletID, date)
		return err
	}
	_, err := s.q.Exec(ctx, `
		DELETE FROM blocked_dates
		WHERE chalet_id = $1 AND date = $2 AND time_slot_id = $3
	`, chaletID, date, *slotID)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23P01")
}
