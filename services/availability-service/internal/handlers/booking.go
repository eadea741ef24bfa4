package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/availability"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/outbox"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/service"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/storage"
)

// BookingHandler owns the write side of the engine. Creation follows the
// lock-then-revalidate protocol: take the chalet row lock, re-run the
// availability check inside the transaction, and only then insert.
type BookingHandler struct {
	svc        *service.AvailabilityService
	store      *storage.Store
	repo       *storage.BookingRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewBookingHandler(svc *service.AvailabilityService, store *storage.Store, repo *storage.BookingRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		svc:        svc,
		store:      store,
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

type createBookingRequest struct {
	ChaletID  string   `json:"chalet_id"`
	UserID    string   `json:"user_id"`
	SlotIDs   []string `json:"slot_ids"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Mode      string   `json:"mode"`
}

type createBookingResponse struct {
	BookingID  string          `json:"booking_id"`
	Status     string          `json:"status"`
	StartAt    string          `json:"start_at"`
	EndAt      string          `json:"end_at"`
	TotalPrice float64         `json:"total_price"`
	Pricing    bookingPricing  `json:"pricing"`
	Errors     []service.Error `json:"errors,omitempty"`
}

type bookingPricing struct {
	BasePrice          float64 `json:"base_price"`
	SeasonalAdjustment float64 `json:"seasonal_adjustment"`
	DiscountAmount     float64 `json:"discount_amount"`
	Commission         float64 `json:"commission"`
	TotalPrice         float64 `json:"total_price"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		http.Error(w, "user_id is not a valid identifier", http.StatusBadRequest)
		return
	}
	chaletID, err := uuid.Parse(strings.TrimSpace(req.ChaletID))
	if err != nil {
		http.Error(w, "chalet_id is not a valid identifier", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.LockChalet(ctx, tx, chaletID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "chalet not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to lock chalet", http.StatusInternalServerError)
		return
	}

	// Revalidate under the lock. The tx-scoped service bypasses the cache, so
	// a concurrent booking that committed first is visible here.
	txStore := h.store.WithTx(tx)
	txSvc := h.svc.WithStore(txStore)
	validation := txSvc.ValidateBookingRequest(ctx, service.ValidateRequest{
		ChaletID:  req.ChaletID,
		SlotIDs:   req.SlotIDs,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Mode:      req.Mode,
	})
	if !validation.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, createBookingResponse{Errors: validation.Errors})
		return
	}

	booking, err := buildBooking(chaletID, userID, validation, req)
	if err != nil {
		h.logger.Error("booking assembly failed", "err", err)
		http.Error(w, "failed to assemble booking", http.StatusInternalServerError)
		return
	}
	chalet, err := txStore.GetChalet(ctx, chaletID)
	if err != nil {
		http.Error(w, "failed to load chalet", http.StatusInternalServerError)
		return
	}
	booking.Commission = booking.TotalPrice * chalet.CommissionRate

	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "slots already booked", http.StatusConflict)
			return
		}
		h.logger.Error("booking insert failed", "err", err)
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":  id,
		"chalet_id":   chaletID,
		"user_id":     userID,
		"slot_ids":    booking.SlotIDs,
		"mode":        booking.Mode,
		"start_at":    booking.StartAt.UTC().Format(time.RFC3339),
		"end_at":      booking.EndAt.UTC().Format(time.RFC3339),
		"total_price": booking.TotalPrice,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   id.String(),
		EventType:     outbox.EventBookingCreated,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.svc.ClearAvailabilityCache(ctx, chaletID, affectedDates(booking.StartAt, booking.EndAt)...)

	writeJSON(w, http.StatusCreated, createBookingResponse{
		BookingID:  id.String(),
		Status:     string(booking.Status),
		StartAt:    booking.StartAt.UTC().Format(time.RFC3339),
		EndAt:      booking.EndAt.UTC().Format(time.RFC3339),
		TotalPrice: booking.TotalPrice,
		Pricing: bookingPricing{
			BasePrice:          booking.BasePrice,
			SeasonalAdjustment: booking.SeasonalAdjustment,
			DiscountAmount:     booking.DiscountAmount,
			Commission:         booking.Commission,
			TotalPrice:         booking.TotalPrice,
		},
	})
}

// Validate runs the booking gate without a transaction or lock, for clients
// that want a dry run before committing to a booking.
func (h *BookingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	validation := h.svc.ValidateBookingRequest(r.Context(), service.ValidateRequest{
		ChaletID:  req.ChaletID,
		SlotIDs:   req.SlotIDs,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Mode:      req.Mode,
	})
	status := http.StatusOK
	if !validation.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, validation)
}

type cancelBookingRequest struct {
	ChaletID  string `json:"chalet_id"`
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	chaletID, err := uuid.Parse(strings.TrimSpace(req.ChaletID))
	if err != nil {
		http.Error(w, "chalet_id is not a valid identifier", http.StatusBadRequest)
		return
	}
	bookingID, err := uuid.Parse(strings.TrimSpace(req.BookingID))
	if err != nil {
		http.Error(w, "booking_id is not a valid identifier", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, chaletID, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	if booking.Status == model.BookingCancelled {
		writeJSON(w, http.StatusOK, map[string]string{"booking_id": bookingID.String(), "status": string(model.BookingCancelled)})
		return
	}
	if !booking.Status.CanTransitionTo(model.BookingCancelled) {
		http.Error(w, "booking cannot be cancelled", http.StatusConflict)
		return
	}

	if err := h.repo.UpdateStatus(ctx, tx, bookingID, model.BookingCancelled); err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":   bookingID,
		"chalet_id":    chaletID,
		"start_at":     booking.StartAt.UTC().Format(time.RFC3339),
		"end_at":       booking.EndAt.UTC().Format(time.RFC3339),
		"reason":       strings.TrimSpace(req.Reason),
		"cancelled_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   bookingID.String(),
		EventType:     outbox.EventBookingCancelled,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.svc.ClearAvailabilityCache(ctx, chaletID, affectedDates(booking.StartAt, booking.EndAt)...)
	writeJSON(w, http.StatusOK, map[string]string{"booking_id": bookingID.String(), "status": string(model.BookingCancelled)})
}

// buildBooking derives the booking's instants and monetary breakdown from a
// successful validation. Day-use instants span the first slot's start to the
// last slot's end on the booking date; overnight instants run from check-in
// on the start date to check-out on the end date.
func buildBooking(chaletID, userID uuid.UUID, validation service.ValidateResult, req createBookingRequest) (*model.Booking, error) {
	mode, _ := model.ParseBookingMode(req.Mode)
	startDate, err := time.ParseInLocation(dateFormat, req.StartDate, time.UTC)
	if err != nil {
		return nil, err
	}

	slots := append([]model.TimeSlot(nil), validation.Slots...)
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })

	var startAt, endAt time.Time
	if mode == model.ModeOvernight {
		endDate, err := time.ParseInLocation(dateFormat, req.EndDate, time.UTC)
		if err != nil {
			return nil, err
		}
		startAt, err = availability.ToInstant(startDate, slots[0].StartTime)
		if err != nil {
			return nil, err
		}
		endAt, err = availability.ToInstant(endDate, slots[0].EndTime)
		if err != nil {
			return nil, err
		}
	} else {
		startAt, err = availability.ToInstant(startDate, slots[0].StartTime)
		if err != nil {
			return nil, err
		}
		lastStart, err := availability.ToInstant(startDate, slots[len(slots)-1].StartTime)
		if err != nil {
			return nil, err
		}
		endAt, err = availability.EndInstant(lastStart, slots[len(slots)-1].EndTime)
		if err != nil {
			return nil, err
		}
	}

	booking := &model.Booking{
		ChaletID:      chaletID,
		UserID:        userID,
		StartAt:       startAt,
		EndAt:         endAt,
		Mode:          mode,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentUnpaid,
	}
	for _, slot := range slots {
		booking.SlotIDs = append(booking.SlotIDs, slot.ID)
	}

	priced := make(map[uuid.UUID]service.SlotAvailability, len(validation.Check.Slots))
	for _, sa := range validation.Check.Slots {
		priced[sa.SlotID] = sa
	}
	var original float64
	for _, slot := range slots {
		sa, ok := priced[slot.ID]
		if !ok {
			continue
		}
		for _, np := range sa.PerNight {
			booking.BasePrice += np.Base
			booking.SeasonalAdjustment += np.Adjustment
		}
		original += sa.Pricing.OriginalPrice
		booking.TotalPrice += sa.Pricing.FinalPrice
	}
	booking.DiscountAmount = original - booking.TotalPrice
	return booking, nil
}

// affectedDates lists every calendar date the interval touches, for cache
// invalidation.
func affectedDates(start, end time.Time) []time.Time {
	first := availability.DateOnly(start)
	last := availability.DateOnly(end)
	var dates []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
