package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxQuantity = 99

type CartService interface {
	LoadCart(ctx context.Context, userID string) (domain.Cart, domain.UserProfile, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, lineID string) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (domain.Cart, error)
	StartCheckout(ctx context.Context, userID string) (*domain.Handoff, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, log *zap.Logger) *CartHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartResponseDTO struct {
	Items       domain.Cart         `json:"items"`
	ItemCount   int                 `json:"itemCount"`
	Total       int64               `json:"total"`
	TotalAmount string              `json:"totalAmount"`
	User        *domain.UserProfile `json:"user,omitempty"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "get cart")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	c, profile, err := h.carts.LoadCart(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.respondCart(w, r, c, &profile)
}

// PUT /api/v1/cart/items/{line_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "update quantity")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	lineID := chi.URLParam(r, "line_id")
	if lineID == "" {
		respondError(w, h.log, http.StatusBadRequest, "invalid_line_id", "line_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}
	if *req.Quantity > maxQuantity {
		respondError(w, h.log, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	c, err := h.carts.UpdateQuantity(ctx, userID, lineID, *req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.respondCart(w, r, c, nil)
}

// DELETE /api/v1/cart/items/{line_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "remove item")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	lineID := chi.URLParam(r, "line_id")
	if lineID == "" {
		respondError(w, h.log, http.StatusBadRequest, "invalid_line_id", "line_id is required")
		return
	}

	c, err := h.carts.RemoveItem(ctx, userID, lineID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.respondCart(w, r, c, nil)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "clear cart")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	c, err := h.carts.ClearCart(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.respondCart(w, r, c, nil)
}

// POST /api/v1/cart/checkout
func (h *CartHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "start checkout")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	bundle, err := h.carts.StartCheckout(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusCreated, bundle)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, c domain.Cart, profile *domain.UserProfile) {
	total, err := cart.ComputeTotal(c)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, CartResponseDTO{
		Items:       c.Clone(),
		ItemCount:   c.ItemCount(),
		Total:       int64(total),
		TotalAmount: money.Format(total),
		User:        profile,
	})
}
