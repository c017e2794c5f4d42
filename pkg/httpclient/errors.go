package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Network error codes treated as transient.
const (
	CodeConnReset = "ECONNRESET"
	CodeTimeout   = "ETIMEDOUT"
	CodeNotFound  = "ENOTFOUND"
)

var (
	// ErrRequestFailed is returned when a request fails terminally.
	ErrRequestFailed = errors.New("request failed")
	// ErrInvalidEndpoint is returned when the request URL cannot be built.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// RequestError describes a terminal request failure.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int    // HTTP status, zero for network failures
	Code       string // network error code, empty for HTTP failures
	Attempts   int
	Detail     string // server-provided detail, if any
	Body       any
	Err        error
}

func (e *RequestError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s", e.Method, e.URL)

	switch {
	case e.StatusCode != 0:
		fmt.Fprintf(&sb, " failed with status %d", e.StatusCode)
	case e.Code != "":
		fmt.Fprintf(&sb, " failed with %s", e.Code)
	default:
		sb.WriteString(" failed")
	}

	if e.Attempts > 1 {
		fmt.Fprintf(&sb, " after %d attempts", e.Attempts)
	}

	if e.Detail != "" {
		fmt.Fprintf(&sb, ": %s", e.Detail)
	} else if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}

	return sb.String()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed || errors.Is(e.Err, target)
}

// StatusCode extracts the HTTP status from a request error, or zero.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}

	return 0
}

// IsUnauthorized reports whether the server rejected the credentials.
func IsUnauthorized(err error) bool {
	status := StatusCode(err)

	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// networkCode classifies a transport error; an empty code means it is not retryable.
func networkCode(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return CodeTimeout
		}

		return CodeNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return CodeConnReset
	}

	return ""
}
