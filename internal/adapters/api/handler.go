// Package api exposes the bid submission and item endpoints as plain
// JSON over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/outbid/paddle/internal/auction"
	"github.com/outbid/paddle/pkg/auth"
)

// ItemStore is the slice of the ledger the CRUD entry points use.
type ItemStore interface {
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*auction.Item, error)
	CreateItem(ctx context.Context, item *auction.Item) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
}

// BidHistory reads an item's ordered bid history.
type BidHistory interface {
	GetBidsByItemID(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error)
}

// HighestCache mirrors the current highest amount per item. Optional:
// every operation falls back to the ledger when it misses or fails.
type HighestCache interface {
	SetHighest(ctx context.Context, itemID uuid.UUID, amount int64) error
	GetHighest(ctx context.Context, itemID uuid.UUID) (int64, error)
	Invalidate(ctx context.Context, itemID uuid.UUID) error
}

// Handler serves the auction HTTP API.
type Handler struct {
	registry *auction.Registry
	items    ItemStore
	bids     BidHistory
	cache    HighestCache
	logger   *slog.Logger
}

// NewHandler creates the API handler. cache may be nil.
func NewHandler(registry *auction.Registry, items ItemStore, bids BidHistory, cache HighestCache, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		items:    items,
		bids:     bids,
		cache:    cache,
		logger:   logger,
	}
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type placeBidResponse struct {
	Success    bool   `json:"success"`
	Amount     string `json:"amount"`
	BidderName string `json:"bidderName"`
	Timestamp  string `json:"timestamp"`
}

type errorResponse struct {
	Error          string `json:"error"`
	CurrentHighest string `json:"currentHighest,omitempty"`
}

type bidView struct {
	BidderName string `json:"bidderName"`
	Amount     string `json:"amount"`
	Timestamp  string `json:"timestamp"`
}

type itemView struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	MinimumBid     string    `json:"minimumBid"`
	CurrentHighest string    `json:"currentHighest"`
	CreatedAt      string    `json:"createdAt"`
	Bids           []bidView `json:"bids"`
}

// PlaceBid handles POST /auction/{id}/bid.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "auction item not found"})
		return
	}

	bidderID, bidderName, ok := auth.BidderFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid bid amount"})
		return
	}
	amount, err := amountToCents(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid bid amount"})
		return
	}

	arbiter, err := h.registry.Resolve(r.Context(), itemID)
	if err != nil {
		h.writeBidError(w, itemID, err)
		return
	}

	bid, err := arbiter.SubmitBid(r.Context(), auction.Bidder{ID: bidderID, Name: bidderName}, amount)
	if err != nil {
		h.writeBidError(w, itemID, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetHighest(r.Context(), itemID, bid.Amount); err != nil {
			h.logger.Warn("failed to update highest-bid cache", "item_id", itemID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, placeBidResponse{
		Success:    true,
		Amount:     centsToAmount(bid.Amount),
		BidderName: bid.Bidder.Name,
		Timestamp:  bid.AcceptedAt.Format(time.RFC3339Nano),
	})
}

func (h *Handler) writeBidError(w http.ResponseWriter, itemID uuid.UUID, err error) {
	var tooLow *auction.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:          "bid must be higher than the current highest bid",
			CurrentHighest: centsToAmount(tooLow.CurrentHighest),
		})
	case errors.Is(err, auction.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid bid amount"})
	case errors.Is(err, auction.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "auction item not found"})
	default:
		h.logger.Error("bid submission failed", "item_id", itemID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process bid"})
	}
}

// GetItem handles GET /auction/{id}: the item, its ordered bid history
// and the current highest amount. This is the initial-state read for
// viewers joining a live room.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "auction item not found"})
		return
	}

	item, err := h.items.GetItemByID(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, auction.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "auction item not found"})
			return
		}
		h.logger.Error("failed to load item", "item_id", itemID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load item"})
		return
	}

	history, err := h.bids.GetBidsByItemID(r.Context(), itemID)
	if err != nil {
		h.logger.Error("failed to load bid history", "item_id", itemID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load item"})
		return
	}

	highest := item.HighestAmount()
	if h.cache != nil {
		if cached, err := h.cache.GetHighest(r.Context(), itemID); err == nil && cached > highest {
			highest = cached
		}
	}

	view := itemView{
		ID:             item.ID.String(),
		Title:          item.Title,
		Description:    item.Description,
		MinimumBid:     centsToAmount(item.MinimumBid),
		CurrentHighest: centsToAmount(highest),
		CreatedAt:      item.CreatedAt.Format(time.RFC3339Nano),
		Bids:           make([]bidView, 0, len(history)),
	}
	for _, bid := range history {
		view.Bids = append(view.Bids, bidView{
			BidderName: bid.Bidder.Name,
			Amount:     centsToAmount(bid.Amount),
			Timestamp:  bid.AcceptedAt.Format(time.RFC3339Nano),
		})
	}

	writeJSON(w, http.StatusOK, view)
}

type createItemRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	MinimumBid  decimal.Decimal `json:"minimumBid"`
}

// CreateItem handles POST /auction. The heavy lifting (images,
// categories) belongs to the gallery service; this only seeds the
// ledger record bidding runs against.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := auth.BidderFromContext(r.Context()); !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title is required"})
		return
	}
	minimum, err := amountToCents(req.MinimumBid)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid minimum bid"})
		return
	}

	item := &auction.Item{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		MinimumBid:  minimum,
		CreatedAt:   time.Now(),
	}
	if err := h.items.CreateItem(r.Context(), item); err != nil {
		h.logger.Error("failed to create item", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create item"})
		return
	}

	writeJSON(w, http.StatusCreated, itemView{
		ID:             item.ID.String(),
		Title:          item.Title,
		Description:    item.Description,
		MinimumBid:     centsToAmount(item.MinimumBid),
		CurrentHighest: centsToAmount(item.HighestAmount()),
		CreatedAt:      item.CreatedAt.Format(time.RFC3339Nano),
		Bids:           []bidView{},
	})
}

// DeleteItem handles DELETE /auction/{id}: the ledger record goes
// first, then the arbiter is closed so in-flight submissions resolve
// before the room is considered terminal.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := auth.BidderFromContext(r.Context()); !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "auction item not found"})
		return
	}

	if err := h.items.DeleteItem(r.Context(), itemID); err != nil {
		if errors.Is(err, auction.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "auction item not found"})
			return
		}
		h.logger.Error("failed to delete item", "item_id", itemID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete item"})
		return
	}

	h.registry.Close(itemID)
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), itemID); err != nil {
			h.logger.Warn("failed to invalidate highest-bid cache", "item_id", itemID, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// amountToCents converts a decimal monetary amount to integer cents,
// rejecting non-positive values and sub-cent precision.
func amountToCents(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, auction.ErrInvalidAmount
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() || cents.GreaterThan(maxCents) {
		return 0, auction.ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

func centsToAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
