// Package ws bridges live viewer connections to the broadcast hub:
// each websocket client joins one item's room and receives that item's
// accepted bids as JSON until it disconnects.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/outbid/paddle/internal/auction"
	"github.com/outbid/paddle/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ItemResolver checks that the item exists and its auction is open.
type ItemResolver interface {
	Resolve(ctx context.Context, itemID uuid.UUID) (*auction.Arbiter, error)
}

// Handler serves GET /auction/{id}/live.
type Handler struct {
	resolver ItemResolver
	hub      *hub.Hub
	logger   *slog.Logger
}

// NewHandler creates the live subscription handler.
func NewHandler(resolver ItemResolver, h *hub.Hub, logger *slog.Logger) *Handler {
	return &Handler{resolver: resolver, hub: h, logger: logger}
}

// event is the wire shape of one accepted bid.
type event struct {
	BidderName string `json:"bidderName"`
	Amount     string `json:"amount"`
	Timestamp  string `json:"timestamp"`
}

// Subscribe upgrades the connection and joins the item's room. The
// subscriber sees only bids accepted after joining; initial state comes
// from the item read endpoint.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"auction item not found"}`, http.StatusNotFound)
		return
	}
	if _, err := h.resolver.Resolve(r.Context(), itemID); err != nil {
		if errors.Is(err, auction.ErrItemNotFound) {
			http.Error(w, `{"error":"auction item not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"failed to join auction"}`, http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "item_id", itemID, "error", err)
		return
	}

	sub := h.hub.Subscribe(itemID)
	h.logger.Info("viewer joined room", "item_id", itemID)

	go h.writeLoop(conn, sub)

	// Nothing meaningful is read from viewers; the read loop exists to
	// notice the disconnect, which immediately removes the viewer from
	// its room.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	sub.Unsubscribe()
	_ = conn.Close()
	h.logger.Info("viewer left room", "item_id", itemID)
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *hub.Subscription) {
	for ev := range sub.Events() {
		msg := event{
			BidderName: ev.BidderName,
			Amount:     decimal.New(ev.Amount, -2).StringFixed(2),
			Timestamp:  ev.AcceptedAt.Format(time.RFC3339Nano),
		}
		if err := conn.WriteJSON(msg); err != nil {
			// Closing the connection makes the read loop fail, which
			// unsubscribes; Unsubscribe is idempotent so racing the
			// read loop here is harmless.
			sub.Unsubscribe()
			_ = conn.Close()
			return
		}
	}
	// Channel closed: room torn down or viewer unsubscribed elsewhere.
	_ = conn.Close()
}
