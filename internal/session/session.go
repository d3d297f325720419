// Package session carries the signed-in user id explicitly through
// context instead of reading device storage from every component.
package session

import (
	"context"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

// HeaderUserID is where the device forwards its stored userId.
const HeaderUserID = "X-User-Id"

type ctxKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(userID))
}

// UserID returns the session user or a NotAuthenticated error for op.
func UserID(ctx context.Context, op string) (string, error) {
	id, _ := ctx.Value(ctxKey{}).(string)
	if id == "" {
		return "", apperr.NotAuthenticated(op)
	}
	return id, nil
}

// Require validates an id that was passed explicitly.
func Require(userID, op string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return "", apperr.NotAuthenticated(op)
	}
	return id, nil
}
