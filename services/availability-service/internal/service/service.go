package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/availability"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/cache"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/pricing"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/storage"
)

const dateFormat = "2006-01-02"

// Store is the persistence collaborator the orchestrator reads. The engine
// never writes through it; mutations live in the booking repository.
type Store interface {
	GetChalet(ctx context.Context, id uuid.UUID) (model.Chalet, error)
	GetSlot(ctx context.Context, slotID uuid.UUID) (model.TimeSlot, error)
	FindActiveSlots(ctx context.Context, chaletID uuid.UUID, mode *model.BookingMode) ([]model.TimeSlot, error)
	FindBlockedDates(ctx context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.BlockedDate, error)
	FindBookingsOverlapping(ctx context.Context, chaletID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	FindActivePricingRules(ctx context.Context, chaletID, slotID uuid.UUID, date time.Time) ([]model.PricingRule, error)
}

type Config struct {
	// BookingGraceMinutes tolerates minor scheduling slack (cleaning buffers)
	// against existing bookings. Never applied to manual blocks.
	BookingGraceMinutes int
	AvailabilityTTL     time.Duration
	SearchTTL           time.Duration
	Promotion           pricing.Promotion
	// Diagnostic exposes internal fault detail in system_error entries.
	Diagnostic bool
	Now        func() time.Time
}

// AvailabilityService is the public entry point of the engine: it validates
// inputs, fans out per slot through the checker, prices winners, explores
// consecutive combinations, and fronts everything with a best-effort
// read-through cache.
type AvailabilityService struct {
	store   Store
	cache   *cache.Availability
	logger  *slog.Logger
	cfg     Config
	checker *availability.Checker
	calc    *pricing.Calculator
}

func New(store Store, availCache *cache.Availability, logger *slog.Logger, cfg Config) *AvailabilityService {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = time.Hour
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = 30 * time.Minute
	}
	return &AvailabilityService{
		store:   store,
		cache:   availCache,
		logger:  logger,
		cfg:     cfg,
		checker: availability.NewChecker(store, cfg.BookingGraceMinutes),
		calc:    pricing.NewCalculator(store, cfg.Promotion, cfg.Now),
	}
}

// WithStore rebinds the service to another store, typically one scoped to the
// booking-creation transaction. The copy bypasses the cache so validation
// under the chalet lock always sees fresh state.
func (s *AvailabilityService) WithStore(store Store) *AvailabilityService {
	out := *s
	out.store = store
	out.cache = nil
	out.checker = availability.NewChecker(store, s.cfg.BookingGraceMinutes)
	out.calc = pricing.NewCalculator(store, s.cfg.Promotion, s.cfg.Now)
	return &out
}

type CheckRequest struct {
	ChaletID  string
	StartDate string
	EndDate   string
	Mode      string
	SlotIDs   []string
}

// SlotAvailability is one winning slot with its resolved pricing. PerNight
// always carries the base/adjustment breakdown (a single entry for day-use).
type SlotAvailability struct {
	SlotID      uuid.UUID            `json:"slot_id"`
	Name        string               `json:"name"`
	StartTime   string               `json:"start_time"`
	EndTime     string               `json:"end_time"`
	IsOvernight bool                 `json:"is_overnight"`
	Nights      int                  `json:"nights"`
	Pricing     pricing.Quote        `json:"pricing"`
	PerNight    []pricing.NightPrice `json:"per_night"`
}

// CombinationOffer is a contiguous day-use run priced as one session, with
// the promotion applied to the summed total.
type CombinationOffer struct {
	availability.Combination
	Pricing pricing.Quote `json:"pricing"`
}

type CheckResult struct {
	Available    bool               `json:"available"`
	Nights       int                `json:"nights,omitempty"`
	Slots        []SlotAvailability `json:"available_slots"`
	Combinations []CombinationOffer `json:"consecutive_combinations,omitempty"`
	Errors       []Error            `json:"errors,omitempty"`
}

// CheckAvailability answers whether the chalet's candidate slots are free for
// the requested date (day-use) or date range (overnight). Faults never
// propagate: they are logged and folded into the error list.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, req CheckRequest) CheckResult {
	result, _ := s.checkAvailability(ctx, req, true)
	return result
}

type parsedRequest struct {
	chaletID uuid.UUID
	start    time.Time
	end      time.Time
	mode     model.BookingMode
	slotIDs  []uuid.UUID
}

func (s *AvailabilityService) parseRequest(req CheckRequest) (parsedRequest, []Error) {
	var p parsedRequest
	var errs []Error

	chaletID, err := uuid.Parse(req.ChaletID)
	if err != nil {
		errs = append(errs, newError(ErrInvalidChalet, "chalet id is not a valid identifier"))
	}
	p.chaletID = chaletID

	mode, ok := model.ParseBookingMode(req.Mode)
	if !ok {
		errs = append(errs, newError(ErrInvalidMode, "booking mode must be day_use or overnight"))
	}
	p.mode = mode

	start, startErr := time.ParseInLocation(dateFormat, req.StartDate, time.UTC)
	if startErr != nil {
		errs = append(errs, newError(ErrInvalidDate, "start date must be YYYY-MM-DD"))
	}
	p.start = start

	switch mode {
	case model.ModeOvernight:
		if req.EndDate == "" {
			errs = append(errs, newError(ErrMissingEndDate, "overnight requests require an end date"))
			break
		}
		end, err := time.ParseInLocation(dateFormat, req.EndDate, time.UTC)
		if err != nil {
			errs = append(errs, newError(ErrInvalidDate, "end date must be YYYY-MM-DD"))
			break
		}
		p.end = end
		if !end.After(start) {
			errs = append(errs, newError(ErrEndBeforeStart, "end date must be after start date"))
		}
	case model.ModeDayUse:
		// Day-use ranges normalize to the start date.
		p.end = start
	}

	if startErr == nil {
		today := availability.DateOnly(s.cfg.Now())
		if availability.DateOnly(p.start).Before(today) {
			errs = append(errs, newError(ErrDateInPast, "start date is in the past"))
		}
	}

	for _, raw := range req.SlotIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs = append(errs, newError(ErrInvalidSlotSelection, "slot id is not a valid identifier"))
			continue
		}
		p.slotIDs = append(p.slotIDs, id)
	}
	return p, errs
}

// checkAvailability is the shared compute path. It additionally returns the
// winning slot records so ValidateBookingRequest can gate consecutiveness
// without refetching.
func (s *AvailabilityService) checkAvailability(ctx context.Context, req CheckRequest, useCache bool) (CheckResult, []model.TimeSlot) {
	p, errs := s.parseRequest(req)
	if len(errs) > 0 {
		return CheckResult{Available: false, Errors: errs}, nil
	}

	key := cache.Key(p.chaletID, p.start, p.end, p.mode, p.slotIDs)
	if useCache && s.cache != nil {
		var cached CheckResult
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	chalet, err := s.store.GetChalet(ctx, p.chaletID)
	if err != nil {
		if storage.IsNotFound(err) {
			return CheckResult{Available: false, Errors: []Error{newError(ErrChaletNotFound, "chalet not found")}}, nil
		}
		return s.systemFailure("load chalet", err), nil
	}

	span := s.spanDates(p)
	blocks, err := s.store.FindBlockedDates(ctx, p.chaletID, span[0], span[len(span)-1])
	if err != nil {
		return s.systemFailure("load blocked dates", err), nil
	}
	if date, blocked := fullDayBlocked(blocks, span); blocked {
		return CheckResult{
			Available: false,
			Errors:    []Error{newError(ErrFullDayBlocked, "the whole day is blocked on "+date.Format(dateFormat))},
		}, nil
	}

	slots, err := s.store.FindActiveSlots(ctx, p.chaletID, &p.mode)
	if err != nil {
		return s.systemFailure("load slots", err), nil
	}
	slots = filterSlots(slots, p.slotIDs)
	if len(slots) == 0 {
		return CheckResult{
			Available: false,
			Errors:    []Error{newError(ErrNoSlotsConfigured, "no time slots configured for the requested mode")},
		}, nil
	}

	result := CheckResult{Slots: []SlotAvailability{}}
	if p.mode == model.ModeOvernight {
		result.Nights = availability.Nights(p.start, p.end)
	}

	var winners []model.TimeSlot
	var pricedDayUse []availability.PricedSlot
	for _, slot := range slots {
		verdict, err := s.checkSlot(ctx, p, slot)
		if err != nil {
			return s.systemFailure("check slot", err), nil
		}
		if !verdict.Available {
			continue
		}
		sa, nightPrice, err := s.priceWinner(ctx, chalet, slot, p)
		if err != nil {
			return s.systemFailure("price slot", err), nil
		}
		winners = append(winners, slot)
		result.Slots = append(result.Slots, sa)
		if p.mode == model.ModeDayUse {
			pricedDayUse = append(pricedDayUse, availability.PricedSlot{Slot: slot, Price: nightPrice})
		}
	}

	if p.mode == model.ModeDayUse && len(pricedDayUse) > 1 {
		for _, combo := range availability.ConsecutiveCombinations(pricedDayUse) {
			result.Combinations = append(result.Combinations, CombinationOffer{
				Combination: combo,
				Pricing:     s.calc.Quote(combo.TotalPrice),
			})
		}
	}
	result.Available = len(winners) > 0

	if useCache && s.cache != nil {
		ttl := s.cfg.SearchTTL
		if len(p.slotIDs) > 0 {
			ttl = s.cfg.AvailabilityTTL
		}
		s.cache.Set(ctx, key, p.chaletID, span, result, ttl)
	}
	return result, winners
}

func (s *AvailabilityService) checkSlot(ctx context.Context, p parsedRequest, slot model.TimeSlot) (availability.Verdict, error) {
	if p.mode == model.ModeOvernight {
		return s.checker.CheckOvernight(ctx, p.chaletID, slot, p.start, p.end)
	}
	return s.checker.CheckDayUse(ctx, p.chaletID, slot, p.start)
}

// priceWinner resolves pricing for an available slot. The day-use per-slot
// price (pre-promotion) is returned separately for combination sums.
func (s *AvailabilityService) priceWinner(ctx context.Context, chalet model.Chalet, slot model.TimeSlot, p parsedRequest) (SlotAvailability, float64, error) {
	sa := SlotAvailability{
		SlotID:      slot.ID,
		Name:        slot.Name,
		StartTime:   slot.StartTime,
		EndTime:     slot.EndTime,
		IsOvernight: slot.IsOvernight,
	}
	if p.mode == model.ModeOvernight {
		rp, err := s.calc.RangePrice(ctx, chalet, slot, p.start, p.end)
		if err != nil {
			return SlotAvailability{}, 0, err
		}
		sa.Nights = rp.Nights
		sa.PerNight = rp.PerNight
		sa.Pricing = s.calc.Quote(rp.Total)
		return sa, rp.Total, nil
	}
	np, err := s.calc.PriceFor(ctx, chalet, slot, p.start)
	if err != nil {
		return SlotAvailability{}, 0, err
	}
	sa.Nights = 1
	sa.PerNight = []pricing.NightPrice{np}
	sa.Pricing = s.calc.Quote(np.Price)
	return sa, np.Price, nil
}

func (s *AvailabilityService) spanDates(p parsedRequest) []time.Time {
	if p.mode == model.ModeOvernight {
		return availability.NightsOf(p.start, p.end)
	}
	return []time.Time{availability.DateOnly(p.start)}
}

func (s *AvailabilityService) systemFailure(op string, err error) CheckResult {
	s.logger.Error("availability engine failure", "op", op, "err", err)
	msg := "internal error, please retry later"
	if s.cfg.Diagnostic {
		msg = op + ": " + err.Error()
	}
	return CheckResult{Available: false, Errors: []Error{newError(ErrSystem, msg)}}
}

func fullDayBlocked(blocks []model.BlockedDate, span []time.Time) (time.Time, bool) {
	for _, b := range blocks {
		if !b.IsFullDay() {
			continue
		}
		for _, d := range span {
			if availability.DateOnly(b.Date).Equal(availability.DateOnly(d)) {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

func filterSlots(slots []model.TimeSlot, ids []uuid.UUID) []model.TimeSlot {
	if len(ids) == 0 {
		return slots
	}
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := slots[:0]
	for _, slot := range slots {
		if want[slot.ID] {
			out = append(out, slot)
		}
	}
	return out
}
