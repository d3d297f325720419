package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := Fetch("load cart", cause)

	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPersist)
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", Placement("place order", errors.New("boom")))

	assert.ErrorIs(t, err, ErrPlacement)
	assert.Equal(t, KindPlacement, KindOf(err))
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "load cart: not_authenticated", NotAuthenticated("load cart").Error())
	assert.Equal(t, "persist cart: persist_failed: timeout", Persist("persist cart", errors.New("timeout")).Error())
	assert.Equal(t, "validation_failed: address is required", New(KindValidation, "", errors.New("address is required")).Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindNotAuthenticated))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindBusy))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindStale))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(KindRateLimited))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(KindFetch))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
}

func TestNotice_NeverEmpty(t *testing.T) {
	for _, k := range []Kind{KindNotAuthenticated, KindFetch, KindPersist, KindPlacement, KindValidation, KindBusy, KindStale, KindNotFound, KindRateLimited, KindInternal} {
		assert.NotEmpty(t, Notice(k))
	}
}
