package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cart"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	For(caller identity.Caller) cart.Provider
	Count(ctx context.Context, caller identity.Caller) (int, error)
	Merge(ctx context.Context, guestID string, userID int64) (*domain.CartView, error)
}

// Subscriber delivers the keys of invalidated queries.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan cache.Key, error)
}

type CartHandler struct {
	carts     CartService
	updates   Subscriber
	timeout   time.Duration
	keepAlive time.Duration
	log       *slog.Logger
}

func NewCartHandler(carts CartService, updates Subscriber, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:     carts,
		updates:   updates,
		timeout:   timeout,
		keepAlive: 15 * time.Second,
		log:       log,
	}
}

type AddItemRequestDTO struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type ChangeQuantityRequestDTO struct {
	Direction domain.Direction `json:"direction"`
}

type CountResponseDTO struct {
	Count int `json:"count"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.For(identity.CallerFromContext(ctx)).Items(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GET /api/v1/cart/count
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	count, err := h.carts.Count(ctx, identity.CallerFromContext(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CountResponseDTO{Count: count})
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VariantID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variant_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	view, err := h.carts.For(identity.CallerFromContext(ctx)).AddItem(ctx, req.VariantID, req.Quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// PATCH /api/v1/cart/items/{variantID}
func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	variantID, ok := pathID(w, r, "variantID", "variant_id")
	if !ok {
		return
	}
	var req ChangeQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.carts.For(identity.CallerFromContext(ctx)).ChangeQuantity(ctx, variantID, req.Direction)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// DELETE /api/v1/cart/items/{variantID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	variantID, ok := pathID(w, r, "variantID", "variant_id")
	if !ok {
		return
	}
	view, err := h.carts.For(identity.CallerFromContext(ctx)).RemoveItem(ctx, variantID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /api/v1/cart/merge
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller := identity.CallerFromContext(ctx)
	view, err := h.carts.Merge(ctx, caller.GuestID, caller.User.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GET /api/v1/cart/events streams cart-updated events with the badge count
// whenever the caller's cart is invalidated.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := identity.CallerFromContext(ctx)
	key := cart.Key(caller)

	updates, err := h.updates.Subscribe(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() bool {
		countCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		count, err := h.carts.Count(countCtx, caller)
		if err != nil {
			h.log.WarnContext(ctx, "counting cart for event stream", "owner", caller.Owner(), "error", err)
			return true
		}
		payload, _ := json.Marshal(CountResponseDTO{Count: count})
		if _, err := fmt.Fprintf(w, "event: cart-updated\ndata: %s\n\n", payload); err != nil {
			return false
		}
		return rc.Flush() == nil
	}
	if !send() {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case k, ok := <-updates:
			if !ok {
				return
			}
			if k == key && !send() {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}

// pathID parses the positive integer URL parameter param, reported as field.
func pathID(w http.ResponseWriter, r *http.Request, param, field string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a positive integer")
		return 0, false
	}
	return id, true
}
