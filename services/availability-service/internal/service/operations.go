package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/availability"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/pricing"
)

type ValidateRequest struct {
	ChaletID  string
	SlotIDs   []string
	StartDate string
	EndDate   string
	Mode      string
}

type ValidateResult struct {
	Valid  bool        `json:"valid"`
	Errors []Error     `json:"errors,omitempty"`
	Check  CheckResult `json:"check"`
	// Slots are the validated slot records, for callers that go on to build
	// a booking from them.
	Slots []model.TimeSlot `json:"-"`
}

// ValidateBookingRequest is the authoritative server-side gate before a
// booking is accepted: it re-runs the availability check (bypassing the
// cache), asserts every requested slot is among the winners, and re-validates
// consecutiveness for multi-slot day-use selections. Run it inside the
// booking transaction, after locking the chalet row.
func (s *AvailabilityService) ValidateBookingRequest(ctx context.Context, req ValidateRequest) ValidateResult {
	if len(req.SlotIDs) == 0 {
		return ValidateResult{Valid: false, Errors: []Error{newError(ErrInvalidSlotSelection, "at least one slot id is required")}}
	}

	check, winners := s.checkAvailability(ctx, CheckRequest{
		ChaletID:  req.ChaletID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Mode:      req.Mode,
		SlotIDs:   req.SlotIDs,
	}, false)

	out := ValidateResult{Check: check, Errors: append([]Error(nil), check.Errors...)}
	if len(out.Errors) > 0 {
		return out
	}

	byID := make(map[uuid.UUID]model.TimeSlot, len(winners))
	for _, w := range winners {
		byID[w.ID] = w
	}
	var requested []model.TimeSlot
	for _, raw := range req.SlotIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			// Unparsable ids were already reported by the check.
			continue
		}
		slot, ok := byID[id]
		if !ok {
			out.Errors = append(out.Errors, newError(ErrSlotUnavailable, "slot "+raw+" is not available for the requested dates"))
			continue
		}
		requested = append(requested, slot)
	}
	if len(out.Errors) > 0 {
		return out
	}

	mode, _ := model.ParseBookingMode(req.Mode)
	switch mode {
	case model.ModeOvernight:
		if len(requested) != 1 {
			out.Errors = append(out.Errors, newError(ErrInvalidSlotSelection, "overnight bookings reference exactly one slot"))
		}
	case model.ModeDayUse:
		if len(requested) > 1 && !availability.AreConsecutive(requested) {
			out.Errors = append(out.Errors, newError(ErrSlotsNotConsecutive, "selected slots are not consecutive"))
		}
	}
	if len(out.Errors) > 0 {
		return out
	}

	out.Valid = check.Available
	out.Slots = requested
	return out
}

// ClearAvailabilityCache drops cached results for the chalet, optionally only
// those touching the given dates. Every mutation of bookings, blocks, or
// slots must call this for the affected chalet and date set.
func (s *AvailabilityService) ClearAvailabilityCache(ctx context.Context, chaletID uuid.UUID, dates ...time.Time) {
	if s.cache == nil {
		return
	}
	s.cache.Clear(ctx, chaletID, dates...)
}

// CalculatePrice resolves one slot's price on one date.
func (s *AvailabilityService) CalculatePrice(ctx context.Context, chaletID, slotID uuid.UUID, date time.Time) (pricing.NightPrice, error) {
	chalet, err := s.store.GetChalet(ctx, chaletID)
	if err != nil {
		return pricing.NightPrice{}, err
	}
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return pricing.NightPrice{}, err
	}
	return s.calc.PriceFor(ctx, chalet, slot, date)
}

// CalculateRangePrice sums per-night prices over [start, end) and applies the
// promotion to the total.
func (s *AvailabilityService) CalculateRangePrice(ctx context.Context, chaletID, slotID uuid.UUID, start, end time.Time) (pricing.RangePrice, pricing.Quote, error) {
	chalet, err := s.store.GetChalet(ctx, chaletID)
	if err != nil {
		return pricing.RangePrice{}, pricing.Quote{}, err
	}
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return pricing.RangePrice{}, pricing.Quote{}, err
	}
	rp, err := s.calc.RangePrice(ctx, chalet, slot, start, end)
	if err != nil {
		return pricing.RangePrice{}, pricing.Quote{}, err
	}
	return rp, s.calc.Quote(rp.Total), nil
}

// FindConsecutiveCombinations enumerates the contiguous day-use groupings
// available on a date.
func (s *AvailabilityService) FindConsecutiveCombinations(ctx context.Context, chaletID uuid.UUID, date time.Time) ([]CombinationOffer, []Error) {
	check, _ := s.checkAvailability(ctx, CheckRequest{
		ChaletID:  chaletID.String(),
		StartDate: date.Format(dateFormat),
		Mode:      string(model.ModeDayUse),
	}, true)
	if len(check.Errors) > 0 {
		return nil, check.Errors
	}
	if check.Combinations != nil {
		return check.Combinations, nil
	}
	// A single available slot still forms its one-slot combination.
	var combos []CombinationOffer
	for _, sa := range check.Slots {
		price := 0.0
		if len(sa.PerNight) > 0 {
			price = sa.PerNight[0].Price
		}
		combos = append(combos, CombinationOffer{
			Combination: availability.Combination{
				SlotIDs:    []uuid.UUID{sa.SlotID},
				SlotNames:  []string{sa.Name},
				StartTime:  sa.StartTime,
				EndTime:    sa.EndTime,
				TotalPrice: price,
			},
			Pricing: s.calc.Quote(price),
		})
	}
	return combos, nil
}
