package history

import (
	"context"
	"sort"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

// DateLayout is the day key of a history group, dd/mm/yyyy.
const DateLayout = "02/01/2006"

type OrderLister interface {
	ListOrders(ctx context.Context, userID string) ([]domain.OrderRecord, error)
	GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error)
}

// DateGroup holds the orders placed on one local calendar day.
type DateGroup struct {
	Date   string               `json:"date"`
	Orders []domain.OrderRecord `json:"orders"`
}

type Reader struct {
	orders OrderLister
	log    *zap.Logger
}

func NewReader(orders OrderLister, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{orders: orders, log: log}
}

// FetchOrders returns the user's orders, newest first. A failed read is an
// error, never an empty history.
func (r *Reader) FetchOrders(ctx context.Context, userID string) ([]domain.OrderRecord, error) {
	const op = "fetch orders"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, err
	}

	orders, err := r.orders.ListOrders(ctx, userID)
	if err != nil {
		logger.For(ctx, r.log).Warn("order history fetch failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperr.Fetch(op, err)
	}
	return SortByDateDesc(orders), nil
}

// GetOrder returns one of the user's orders. Orders of other users read as
// not found.
func (r *Reader) GetOrder(ctx context.Context, userID, orderID string) (*domain.OrderRecord, error) {
	const op = "get order"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, err
	}

	order, err := r.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Fetch(op, err)
	}
	if order.UserID != userID {
		return nil, apperr.Fetch(op, store.ErrNotFound)
	}
	return order, nil
}

// SortByDateDesc returns a copy sorted newest first. Orders with equal
// dates keep their relative order.
func SortByDateDesc(orders []domain.OrderRecord) []domain.OrderRecord {
	out := make([]domain.OrderRecord, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	return out
}

// GroupByDate buckets orders by calendar day in loc. Buckets appear in the
// order their first order appears, and orders keep their input order inside
// a bucket.
func GroupByDate(orders []domain.OrderRecord, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}

	groups := make([]DateGroup, 0)
	index := make(map[string]int)
	for _, o := range orders {
		key := o.OrderDate.In(loc).Format(DateLayout)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key})
		}
		groups[i].Orders = append(groups[i].Orders, o)
	}
	return groups
}
