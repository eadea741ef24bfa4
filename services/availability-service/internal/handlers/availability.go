package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/service"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/storage"
)

const dateFormat = "2006-01-02"

// AvailabilityHandler serves the read side: availability checks, consecutive
// day-use combinations, and price quotes.
type AvailabilityHandler struct {
	svc    *service.AvailabilityService
	logger *slog.Logger
}

func NewAvailabilityHandler(svc *service.AvailabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, logger: logger}
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := service.CheckRequest{
		ChaletID:  strings.TrimSpace(q.Get("chalet_id")),
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		Mode:      strings.TrimSpace(q.Get("mode")),
		SlotIDs:   splitIDs(q.Get("slot_ids")),
	}

	result := h.svc.CheckAvailability(r.Context(), req)
	writeJSON(w, statusForErrors(result.Errors), result)
}

func (h *AvailabilityHandler) Combinations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	chaletID, err := uuid.Parse(strings.TrimSpace(q.Get("chalet_id")))
	if err != nil {
		http.Error(w, "chalet_id is not a valid identifier", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation(dateFormat, strings.TrimSpace(q.Get("date")), time.UTC)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	combos, errs := h.svc.FindConsecutiveCombinations(r.Context(), chaletID, date)
	if len(errs) > 0 {
		writeJSON(w, statusForErrors(errs), map[string]any{"errors": errs})
		return
	}
	if combos == nil {
		combos = []service.CombinationOffer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"combinations": combos})
}

func (h *AvailabilityHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	chaletID, err := uuid.Parse(strings.TrimSpace(q.Get("chalet_id")))
	if err != nil {
		http.Error(w, "chalet_id is not a valid identifier", http.StatusBadRequest)
		return
	}
	slotID, err := uuid.Parse(strings.TrimSpace(q.Get("slot_id")))
	if err != nil {
		http.Error(w, "slot_id is not a valid identifier", http.StatusBadRequest)
		return
	}

	if rawEnd := strings.TrimSpace(q.Get("end_date")); rawEnd != "" {
		start, err := time.ParseInLocation(dateFormat, strings.TrimSpace(q.Get("start_date")), time.UTC)
		if err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end, err := time.ParseInLocation(dateFormat, rawEnd, time.UTC)
		if err != nil {
			http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if !end.After(start) {
			http.Error(w, "end_date must be after start_date", http.StatusBadRequest)
			return
		}
		rp, quote, err := h.svc.CalculateRangePrice(r.Context(), chaletID, slotID, start, end)
		if err != nil {
			h.writePricingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"range": rp, "pricing": quote})
		return
	}

	rawDate := strings.TrimSpace(q.Get("date"))
	if rawDate == "" {
		rawDate = strings.TrimSpace(q.Get("start_date"))
	}
	date, err := time.ParseInLocation(dateFormat, rawDate, time.UTC)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	np, err := h.svc.CalculatePrice(r.Context(), chaletID, slotID, date)
	if err != nil {
		h.writePricingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, np)
}

func (h *AvailabilityHandler) writePricingError(w http.ResponseWriter, err error) {
	if storage.IsNotFound(err) {
		http.Error(w, "chalet or slot not found", http.StatusNotFound)
		return
	}
	h.logger.Error("pricing lookup failed", "err", err)
	http.Error(w, "failed to resolve pricing", http.StatusInternalServerError)
}

// statusForErrors maps the engine's structured error list to an HTTP status.
// An empty list is a successful (possibly unavailable) answer.
func statusForErrors(errs []service.Error) int {
	if len(errs) == 0 {
		return http.StatusOK
	}
	for _, e := range errs {
		switch e.Code {
		case service.ErrSystem:
			return http.StatusInternalServerError
		case service.ErrChaletNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusBadRequest
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
