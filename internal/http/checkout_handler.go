package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type SnapshotResolver interface {
	Resolve(ctx context.Context, userID string, bundle *domain.Handoff) (*checkout.Snapshot, error)
	ResolveForOrder(ctx context.Context, userID string, bundle *domain.Handoff) (*checkout.Snapshot, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *domain.OrderRecord, idempotencyKey string) (*orders.Receipt, error)
}

type CheckoutHandler struct {
	resolver  SnapshotResolver
	assembler *checkout.Assembler
	placer    OrderPlacer
	timeout   time.Duration
	log       *zap.Logger
}

func NewCheckoutHandler(resolver SnapshotResolver, assembler *checkout.Assembler, placer OrderPlacer, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{
		resolver:  resolver,
		assembler: assembler,
		placer:    placer,
		timeout:   timeout,
		log:       log,
	}
}

type QuoteRequestDTO struct {
	Handoff *domain.Handoff `json:"handoff,omitempty"`
}

type QuoteResponseDTO struct {
	Items       domain.Cart        `json:"items"`
	User        domain.UserProfile `json:"user"`
	Subtotal    string             `json:"subtotal"`
	ShippingFee string             `json:"shippingFee"`
	FinalAmount string             `json:"finalAmount"`
	Source      checkout.Source    `json:"source"`
}

type PlaceOrderRequestDTO struct {
	Handoff        *domain.Handoff      `json:"handoff,omitempty"`
	CustomerInfo   domain.CustomerInfo  `json:"customerInfo"`
	PaymentMethod  domain.PaymentMethod `json:"paymentMethod"`
	IdempotencyKey string               `json:"idempotencyKey,omitempty"`
}

type PlaceOrderResponseDTO struct {
	Order       *domain.OrderRecord `json:"order"`
	CartCleared bool                `json:"cartCleared"`
	Replayed    bool                `json:"replayed"`
	Warning     string              `json:"warning,omitempty"`
}

// POST /api/v1/checkout/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "quote")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	var req QuoteRequestDTO
	if err := decodeOptional(r.Body, &req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snap, err := h.resolver.Resolve(ctx, userID, req.Handoff)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	q := h.assembler.Quote(snap)
	respondJSON(w, h.log, http.StatusOK, QuoteResponseDTO{
		Items:       snap.Cart,
		User:        snap.User,
		Subtotal:    money.Format(q.Subtotal),
		ShippingFee: money.Format(q.ShippingFee),
		FinalAmount: money.Format(q.FinalAmount),
		Source:      snap.Source,
	})
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "place order")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	snap, err := h.resolver.ResolveForOrder(ctx, userID, req.Handoff)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	order, err := h.assembler.AssembleOrder(checkout.OrderInput{
		UserID:        userID,
		Customer:      checkout.PrefillCustomer(req.CustomerInfo, snap.User),
		Cart:          snap.Cart,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	receipt, err := h.placer.PlaceOrder(ctx, order, key)
	if err != nil && !(receipt != nil && errors.Is(err, orders.ErrCartClearPending)) {
		handleError(w, r, h.log, err)
		return
	}

	resp := PlaceOrderResponseDTO{
		Order:       receipt.Order,
		CartCleared: receipt.CartCleared,
		Replayed:    receipt.Replayed,
	}
	if err != nil {
		resp.Warning = apperr.Notice(apperr.KindPersist)
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, h.log, status, resp)
}

// decodeOptional accepts an empty body.
func decodeOptional(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
