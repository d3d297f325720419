package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotAuthenticated Kind = "not_authenticated"
	KindFetch            Kind = "fetch_failed"
	KindPersist          Kind = "persist_failed"
	KindPlacement        Kind = "placement_failed"
	KindValidation       Kind = "validation_failed"
	KindBusy             Kind = "busy"
	KindStale            Kind = "cart_changed"
	KindNotFound         Kind = "not_found"
	KindRateLimited      Kind = "rate_limited"
	KindInternal         Kind = "internal_error"
)

// Error carries the failure kind the screens react to, the operation that
// failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrFetch)
// works regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated}
	ErrFetch            = &Error{Kind: KindFetch}
	ErrPersist          = &Error{Kind: KindPersist}
	ErrPlacement        = &Error{Kind: KindPlacement}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrBusy             = &Error{Kind: KindBusy}
	ErrStale            = &Error{Kind: KindStale}
	ErrNotFound         = &Error{Kind: KindNotFound}
)

func NotAuthenticated(op string) *Error      { return New(KindNotAuthenticated, op, nil) }
func Fetch(op string, err error) *Error      { return New(KindFetch, op, err) }
func Persist(op string, err error) *Error    { return New(KindPersist, op, err) }
func Placement(op string, err error) *Error  { return New(KindPlacement, op, err) }
func Validation(op string, err error) *Error { return New(KindValidation, op, err) }
func Busy(op string) *Error                  { return New(KindBusy, op, nil) }
func Stale(op string, err error) *Error      { return New(KindStale, op, err) }
func NotFound(op string, err error) *Error   { return New(KindNotFound, op, err) }
func Validationf(op, format string, a ...any) *Error {
	return New(KindValidation, op, fmt.Errorf(format, a...))
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotAuthenticated:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindBusy, KindStale:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindFetch, KindPersist, KindPlacement:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Notice is the localized, dismissable message shown to the user.
func Notice(kind Kind) string {
	switch kind {
	case KindNotAuthenticated:
		return "Vui lòng đăng nhập để tiếp tục."
	case KindFetch:
		return "Không thể tải dữ liệu. Vui lòng thử lại."
	case KindPersist:
		return "Không thể cập nhật giỏ hàng. Vui lòng thử lại."
	case KindPlacement:
		return "Đặt hàng không thành công. Vui lòng thử lại."
	case KindValidation:
		return "Vui lòng kiểm tra lại thông tin."
	case KindBusy:
		return "Yêu cầu trước đang được xử lý."
	case KindStale:
		return "Giỏ hàng đã thay đổi. Vui lòng tải lại."
	case KindNotFound:
		return "Không tìm thấy dữ liệu."
	case KindRateLimited:
		return "Bạn thao tác quá nhanh. Vui lòng thử lại sau."
	default:
		return "Đã xảy ra lỗi. Vui lòng thử lại."
	}
}
