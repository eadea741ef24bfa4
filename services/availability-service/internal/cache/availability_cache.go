package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const dateFormat = "2006-01-02"

// Key builds the canonical availability cache key:
// {chaletId}_{startDate}_{endDate}_{mode}_{sortedSlotIdsOrAll}.
// The format is part of the engine's external contract and must stay stable.
func Key(chaletID uuid.UUID, start, end time.Time, mode model.BookingMode, slotIDs []uuid.UUID) string {
	slots := "all"
	if len(slotIDs) > 0 {
		ids := make([]string, 0, len(slotIDs))
		for _, id := range slotIDs {
			ids = append(ids, id.String())
		}
		sort.Strings(ids)
		slots = strings.Join(ids, ",")
	}
	return strings.Join([]string{
		chaletID.String(),
		start.Format(dateFormat),
		end.Format(dateFormat),
		string(mode),
		slots,
	}, "_")
}

// Availability is a best-effort read-through cache for availability results.
// Entries are whole-value overwrites read by exact key; invalidation
// enumerates affected keys through per-chalet and per-date index sets
// maintained on every write, so clearing never needs wildcard scans. Any
// Redis failure degrades to direct computation, never to an error.
type Availability struct {
	rdb    *redis.Client
	logger *slog.Logger
	prefix string
}

func New(rdb *redis.Client, logger *slog.Logger, prefix string) *Availability {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "availability"
	}
	return &Availability{rdb: rdb, logger: logger, prefix: prefix}
}

func (c *Availability) entryKey(key string) string {
	return c.prefix + ":" + key
}

func (c *Availability) chaletIndex(chaletID uuid.UUID) string {
	return c.prefix + ":idx:" + chaletID.String()
}

func (c *Availability) dateIndex(chaletID uuid.UUID, date time.Time) string {
	return c.prefix + ":idx:" + chaletID.String() + ":" + date.Format(dateFormat)
}

// Get loads a cached entry into dest. A miss or any Redis/decoding failure
// returns false.
func (c *Availability) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, c.entryKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("availability cache read failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("availability cache entry corrupt", "key", key, "err", err)
		return false
	}
	return true
}

// Set stores value under key and registers the key in the chalet index and in
// one index per covered date. Index sets live as long as the longest entry.
func (c *Availability) Set(ctx context.Context, key string, chaletID uuid.UUID, dates []time.Time, value any, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("availability cache encode failed", "key", key, "err", err)
		return
	}
	entry := c.entryKey(key)
	if err := c.rdb.Set(ctx, entry, raw, ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "key", key, "err", err)
		return
	}

	idx := c.chaletIndex(chaletID)
	if err := c.rdb.SAdd(ctx, idx, entry).Err(); err != nil {
		c.logger.Warn("availability cache index failed", "key", key, "err", err)
		return
	}
	_ = c.rdb.Expire(ctx, idx, ttl).Err()
	for _, date := range dates {
		didx := c.dateIndex(chaletID, date)
		if err := c.rdb.SAdd(ctx, didx, entry).Err(); err != nil {
			c.logger.Warn("availability cache index failed", "key", key, "err", err)
			return
		}
		_ = c.rdb.Expire(ctx, didx, ttl).Err()
	}
}

// Clear drops every cached entry touching the given dates for the chalet, or
// every entry for the chalet when no dates are given. Must be invoked by any
// mutation of bookings, blocks, or slots for the affected chalet and dates.
func (c *Availability) Clear(ctx context.Context, chaletID uuid.UUID, dates ...time.Time) {
	if c == nil || c.rdb == nil {
		return
	}
	if len(dates) == 0 {
		idx := c.chaletIndex(chaletID)
		members, err := c.rdb.SMembers(ctx, idx).Result()
		if err != nil {
			c.logger.Warn("availability cache clear failed", "chalet_id", chaletID, "err", err)
			return
		}
		if len(members) > 0 {
			_ = c.rdb.Del(ctx, members...).Err()
		}
		_ = c.rdb.Del(ctx, idx).Err()
		return
	}

	idx := c.chaletIndex(chaletID)
	for _, date := range dates {
		didx := c.dateIndex(chaletID, date)
		members, err := c.rdb.SMembers(ctx, didx).Result()
		if err != nil {
			c.logger.Warn("availability cache clear failed", "chalet_id", chaletID, "err", err)
			continue
		}
		if len(members) > 0 {
			_ = c.rdb.Del(ctx, members...).Err()
			_ = c.rdb.SRem(ctx, idx, toAny(members)...).Err()
		}
		_ = c.rdb.Del(ctx, didx).Err()
	}
}

func (c *Availability) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		if c == nil || c.rdb == nil {
			return errors.New("redis not configured")
		}
		return c.rdb.Ping(ctx).Err()
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
