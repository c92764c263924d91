package tool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ArgError signals malformed or missing input. It is the only error kind the
// invocation template classifies as BAD_ARGS.
type ArgError struct {
	Message string
}

func (e *ArgError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// NewArgError returns an ArgError with the given message.
func NewArgError(message string) error {
	return &ArgError{Message: message}
}

// ArgErrorf formats an ArgError.
func ArgErrorf(format string, args ...interface{}) error {
	return &ArgError{Message: fmt.Sprintf(format, args...)}
}

// IsArgError reports whether err is, or wraps, an ArgError.
func IsArgError(err error) bool {
	var argErr *ArgError
	return errors.As(err, &argErr)
}

// maxUpstreamBody caps, in runes, the response body quoted by UpstreamError.
const maxUpstreamBody = 200

// UpstreamError reports a non-success response from a remote dependency.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	body := strings.TrimSpace(e.Body)
	if r := []rune(body); len(r) > maxUpstreamBody {
		body = string(r[:maxUpstreamBody])
	}
	if body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, body)
}

// Transient reports whether err looks like a condition that may clear on its
// own: timeouts, deadline expiry, HTTP 429 and 5xx from an upstream.
// Cancellation is never transient; the caller chose to stop.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode == 429 || upstream.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}
