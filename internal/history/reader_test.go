package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLister struct {
	orders []domain.OrderRecord
	err    error
}

func (m *mockLister) ListOrders(context.Context, string) ([]domain.OrderRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

func (m *mockLister) GetOrder(_ context.Context, id string) (*domain.OrderRecord, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, store.ErrNotFound
}

var hcm = time.FixedZone("ICT", 7*60*60)

func order(id string, at time.Time) domain.OrderRecord {
	return domain.OrderRecord{ID: id, UserID: "u1", OrderDate: at}
}

func ids(orders []domain.OrderRecord) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

func TestFetchOrders_SortedNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lister := &mockLister{orders: []domain.OrderRecord{
		order("old", base),
		order("new", base.Add(48*time.Hour)),
		order("mid", base.Add(24*time.Hour)),
	}}

	orders, err := NewReader(lister, nil).FetchOrders(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(orders))
}

func TestFetchOrders_FailureIsFetchError(t *testing.T) {
	lister := &mockLister{err: errors.New("status 500")}

	orders, err := NewReader(lister, nil).FetchOrders(context.Background(), "u1")
	assert.Nil(t, orders)
	assert.ErrorIs(t, err, apperr.ErrFetch)
}

func TestFetchOrders_NotAuthenticated(t *testing.T) {
	_, err := NewReader(&mockLister{}, nil).FetchOrders(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestGetOrder_OtherUserIsNotFound(t *testing.T) {
	other := order("o2", time.Now())
	other.UserID = "u2"
	reader := NewReader(&mockLister{orders: []domain.OrderRecord{order("o1", time.Now()), other}}, nil)

	got, err := reader.GetOrder(context.Background(), "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)

	_, err = reader.GetOrder(context.Background(), "u1", "o2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSortByDateDesc_StableForEqualDates(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in := []domain.OrderRecord{order("a", at), order("b", at.Add(time.Hour)), order("c", at), order("d", at)}

	out := SortByDateDesc(in)
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(out))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(in), "input must not change")
}

func TestGroupByDate_LocalDayKeys(t *testing.T) {
	// 18:30 UTC on 1 May is 01:30 on 2 May in Ho Chi Minh City.
	orders := []domain.OrderRecord{
		order("late", time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)),
		order("early", time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)),
	}

	groups := GroupByDate(orders, hcm)
	require.Len(t, groups, 2)
	assert.Equal(t, "02/05/2024", groups[0].Date)
	assert.Equal(t, "01/05/2024", groups[1].Date)
}

func TestGroupByDate_FirstSeenOrder(t *testing.T) {
	d1 := time.Date(2024, 5, 1, 9, 0, 0, 0, hcm)
	d2 := time.Date(2024, 5, 2, 9, 0, 0, 0, hcm)
	orders := []domain.OrderRecord{
		order("x", d2),
		order("y", d1),
		order("z", d2.Add(time.Hour)),
	}

	groups := GroupByDate(orders, hcm)
	require.Len(t, groups, 2)
	assert.Equal(t, "02/05/2024", groups[0].Date)
	assert.Equal(t, []string{"x", "z"}, ids(groups[0].Orders))
	assert.Equal(t, "01/05/2024", groups[1].Date)
	assert.Equal(t, []string{"y"}, ids(groups[1].Orders))
}

func TestGroupByDate_Empty(t *testing.T) {
	groups := GroupByDate(nil, hcm)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
