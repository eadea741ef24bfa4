package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/msaldawsari/chaletbook/libs/db"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/availability"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/outbox"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/service"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/storage"
)

// BlockHandler manages manual blocked dates: whole-day blocks and per-slot
// blocks. Mutations write an outbox event and clear the affected cache
// entries.
type BlockHandler struct {
	pool       *db.Pool
	store      *storage.Store
	outboxRepo *outbox.Repository
	svc        *service.AvailabilityService
	logger     *slog.Logger
}

func NewBlockHandler(pool *db.Pool, store *storage.Store, outboxRepo *outbox.Repository, svc *service.AvailabilityService, logger *slog.Logger) *BlockHandler {
	return &BlockHandler{
		pool:       pool,
		store:      store,
		outboxRepo: outboxRepo,
		svc:        svc,
		logger:     logger,
	}
}

type blockRequest struct {
	ChaletID string `json:"chalet_id"`
	Date     string `json:"date"`
	SlotID   string `json:"slot_id,omitempty"`
	Reason   string `json:"reason"`
	Note     string `json:"note,omitempty"`
}

func (h *BlockHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upsert(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BlockHandler) parse(w http.ResponseWriter, r *http.Request) (model.BlockedDate, bool) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return model.BlockedDate{}, false
	}
	chaletID, err := uuid.Parse(strings.TrimSpace(req.ChaletID))
	if err != nil {
		http.Error(w, "chalet_id is not a valid identifier", http.StatusBadRequest)
		return model.BlockedDate{}, false
	}
	date, err := time.ParseInLocation(dateFormat, strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return model.BlockedDate{}, false
	}

	block := model.BlockedDate{
		ChaletID: chaletID,
		Date:     availability.DateOnly(date),
		Reason:   strings.TrimSpace(req.Reason),
		Note:     strings.TrimSpace(req.Note),
	}
	if raw := strings.TrimSpace(req.SlotID); raw != "" {
		slotID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "slot_id is not a valid identifier", http.StatusBadRequest)
			return model.BlockedDate{}, false
		}
		block.SlotID = &slotID
	}
	return block, true
}

func (h *BlockHandler) upsert(w http.ResponseWriter, r *http.Request) {
	block, ok := h.parse(w, r)
	if !ok {
		return
	}
	if block.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.store.WithTx(tx).UpsertBlockedDate(ctx, block)
	if err != nil {
		h.logger.Error("block upsert failed", "err", err)
		http.Error(w, "failed to save block", http.StatusInternalServerError)
		return
	}
	if err := h.insertBlockEvent(ctx, tx, outbox.EventBlockUpserted, id, block); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.svc.ClearAvailabilityCache(ctx, block.ChaletID, block.Date)
	writeJSON(w, http.StatusCreated, map[string]string{"block_id": id.String()})
}

func (h *BlockHandler) remove(w http.ResponseWriter, r *http.Request) {
	block, ok := h.parse(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.store.WithTx(tx).DeleteBlockedDate(ctx, block.ChaletID, block.Date, block.SlotID); err != nil {
		h.logger.Error("block delete failed", "err", err)
		http.Error(w, "failed to delete block", http.StatusInternalServerError)
		return
	}
	if err := h.insertBlockEvent(ctx, tx, outbox.EventBlockRemoved, uuid.Nil, block); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.svc.ClearAvailabilityCache(ctx, block.ChaletID, block.Date)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BlockHandler) insertBlockEvent(ctx context.Context, tx pgx.Tx, eventType string, id uuid.UUID, block model.BlockedDate) error {
	payload, err := json.Marshal(map[string]any{
		"block_id":  id,
		"chalet_id": block.ChaletID,
		"date":      block.Date.Format(dateFormat),
		"slot_id":   block.SlotID,
		"reason":    block.Reason,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "blocked_date",
		AggregateID:   block.ChaletID.String(),
		EventType:     eventType,
		Payload:       payload,
	})
}
