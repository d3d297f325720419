package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// VND is an amount of Vietnamese Dong. The currency has no minor unit.
type VND int64

const Symbol = "đ"

var ErrMalformed = errors.New("malformed price")

var printer = message.NewPrinter(language.Vietnamese)

// Parse reverses Format: "1.234.567đ" -> 1234567. Grouping separators, spaces
// and the trailing currency glyph are stripped; whatever remains must be digits.
func Parse(s string) (VND, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, Symbol)
	raw = strings.TrimSuffix(raw, "₫")
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',' || r == ' ' || r == '\u00a0':
			// grouping
		default:
			return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return VND(v), nil
}

// Format renders v with Vietnamese digit grouping, e.g. 65000 -> "65.000đ".
func Format(v VND) string {
	return printer.Sprintf("%d", int64(v)) + Symbol
}

func (v VND) String() string {
	return Format(v)
}

// Text is the plain decimal form used inside hand-off bundles.
func (v VND) Text() string {
	return strconv.FormatInt(int64(v), 10)
}

func ParseText(s string) (VND, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return VND(v), nil
}
