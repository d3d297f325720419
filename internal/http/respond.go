package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, log *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("failed to encode response", zap.Error(err))
	}
}

// respondError answers a malformed request with the validation notice.
// Failures of any other kind go through handleError.
func respondError(w http.ResponseWriter, log *zap.Logger, status int, code, message string) {
	respondJSON(w, log, status, ErrorResponse{
		Error:   apperr.Notice(apperr.KindValidation),
		Code:    code,
		Details: message,
	})
}

// handleError converts a service error into the screen's dismissable
// notice.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	details := err.Error()
	l := logger.For(r.Context(), log).With(zap.String("code", string(kind)), zap.Error(err))
	if status >= http.StatusInternalServerError {
		l.Error("request failed")
		if kind == apperr.KindInternal {
			details = ""
		}
	} else {
		l.Info("request rejected")
	}

	respondJSON(w, log, status, ErrorResponse{
		Error:   apperr.Notice(kind),
		Code:    string(kind),
		Details: details,
	})
}
