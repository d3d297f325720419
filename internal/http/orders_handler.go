package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/history"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/gin-contrib/sse"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

type HistoryReader interface {
	FetchOrders(ctx context.Context, userID string) ([]domain.OrderRecord, error)
	GetOrder(ctx context.Context, userID, orderID string) (*domain.OrderRecord, error)
}

type HistoryViews interface {
	Subscribe(userID string) (<-chan history.Snapshot, func())
	Refresh(userID string) error
}

type OrdersHandler struct {
	reader  HistoryReader
	views   HistoryViews
	loc     *time.Location
	timeout time.Duration
	log     *zap.Logger
}

func NewOrdersHandler(reader HistoryReader, views HistoryViews, loc *time.Location, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrdersHandler{
		reader:  reader,
		views:   views,
		loc:     loc,
		timeout: timeout,
		log:     log,
	}
}

type OrderHistoryResponseDTO struct {
	Groups []history.DateGroup `json:"groups"`
	Count  int                 `json:"count"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "list orders")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	orders, err := h.reader.FetchOrders(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, OrderHistoryResponseDTO{
		Groups: history.GroupByDate(orders, h.loc),
		Count:  len(orders),
	})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, err := session.UserID(r.Context(), "get order")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, h.log, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.reader.GetOrder(ctx, userID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		err = apperr.NotFound("get order", err)
	}
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, order)
}

// POST /api/v1/orders/refresh
func (h *OrdersHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, err := session.UserID(r.Context(), "refresh orders")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	err = h.views.Refresh(userID)
	switch {
	case errors.Is(err, history.ErrRateLimited):
		handleError(w, r, h.log, apperr.New(apperr.KindRateLimited, "refresh orders", err))
	case errors.Is(err, history.ErrNoView):
		// nothing is streaming, answer with a direct read
		h.ListOrders(w, r)
	case err != nil:
		handleError(w, r, h.log, err)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// GET /api/v1/orders/stream
//
// Server-sent events: a "history" event per applied refresh and a "ping"
// heartbeat. The view stays open until the client disconnects or the hub
// shuts down.
func (h *OrdersHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, err := session.UserID(r.Context(), "stream orders")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		handleError(w, r, h.log, apperr.New(apperr.KindInternal, "stream orders", errors.New("streaming unsupported")))
		return
	}
	// long-lived response
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	snapshots, closeView := h.views.Subscribe(userID)
	defer closeView()

	log := logger.For(r.Context(), h.log)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		var event sse.Event
		select {
		case <-r.Context().Done():
			return
		case s, ok := <-snapshots:
			if !ok {
				return
			}
			event = sse.Event{Event: "history", Id: s.UpdatedAt.Format(time.RFC3339Nano), Data: s}
		case <-heartbeat.C:
			event = sse.Event{Event: "ping", Data: time.Now().Unix()}
		}

		if err := sse.Encode(w, event); err != nil {
			log.Debug("history stream closed", zap.Error(err))
			return
		}
		flusher.Flush()
	}
}
