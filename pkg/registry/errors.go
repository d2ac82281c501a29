package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/nicholas-fedor/regman/pkg/registry/auth"
)

// DefaultRetryAfter is the wait, in seconds, reported for rate limited requests.
// The registry's Retry-After header is not consulted.
const DefaultRetryAfter uint64 = 60

// ErrorKind classifies a registry operation failure.
type ErrorKind int

// Error kinds returned by Client operations.
const (
	KindNetwork ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindServer
	KindParse
	KindInvalidURL
)

// Sentinel errors matching each ErrorKind through errors.Is.
var (
	ErrNetwork      = errors.New("network error")
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("access forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
	ErrParse        = errors.New("parse error")
	ErrInvalidURL   = errors.New("invalid URL")
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:      ErrNetwork,
	KindUnauthorized: ErrUnauthorized,
	KindForbidden:    ErrForbidden,
	KindNotFound:     ErrNotFound,
	KindRateLimited:  ErrRateLimited,
	KindServer:       ErrServer,
	KindParse:        ErrParse,
	KindInvalidURL:   ErrInvalidURL,
}

var kindErrdefs = map[ErrorKind]error{
	KindNetwork:      errdefs.ErrUnavailable,
	KindUnauthorized: errdefs.ErrUnauthenticated,
	KindForbidden:    errdefs.ErrPermissionDenied,
	KindNotFound:     errdefs.ErrNotFound,
	KindRateLimited:  errdefs.ErrResourceExhausted,
	KindServer:       errdefs.ErrInternal,
	KindParse:        errdefs.ErrDataLoss,
	KindInvalidURL:   errdefs.ErrInvalidArgument,
}

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindRateLimited:
		return "RateLimited"
	case KindServer:
		return "ServerError"
	case KindParse:
		return "ParseError"
	case KindInvalidURL:
		return "InvalidURL"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// APIError is returned by every Client operation.
//
// Message carries the operation context such as "Failed to get tags for library/alpine".
// Detail holds the registry's own error text when the response body had one.
type APIError struct {
	Kind       ErrorKind
	Op         string
	Target     string
	Message    string
	StatusCode int
	Detail     string
	RetryAfter uint64
	// Challenge is the parsed WWW-Authenticate header of an Unauthorized response.
	Challenge *auth.Challenge
	Err       error
}

// Error renders the error the way it is shown to operators.
func (e *APIError) Error() string {
	var msg string

	switch e.Kind {
	case KindUnauthorized:
		msg = "Authentication required"
	case KindForbidden:
		msg = "Access forbidden"
	case KindNotFound:
		msg = "Resource not found: " + e.Message
	case KindRateLimited:
		msg = fmt.Sprintf("Rate limited, retry after %d seconds", e.RetryAfter)
	case KindServer:
		msg = "Server error: " + e.Message
	case KindParse:
		msg = "Parse error: " + e.Message
	case KindInvalidURL:
		msg = "Invalid URL: " + e.Message
	default:
		msg = "Network error: " + e.Message
	}

	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}

	return msg
}

// Is matches the kind sentinel, so errors.Is(err, ErrNotFound) works.
func (e *APIError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Unwrap exposes the underlying cause and the matching errdefs class.
func (e *APIError) Unwrap() []error {
	errs := []error{kindErrdefs[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// Retryable reports whether a manual retry may succeed.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

// FromStatus maps an unexpected HTTP status to an APIError.
// Statuses other than 401, 403, 404, 429 and 5xx are reported as network errors.
func FromStatus(status int, message string) *APIError {
	apiErr := &APIError{Message: message, StatusCode: status}

	switch {
	case status == http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
	case status == http.StatusForbidden:
		apiErr.Kind = KindForbidden
	case status == http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case status == http.StatusTooManyRequests:
		apiErr.Kind = KindRateLimited
		apiErr.RetryAfter = DefaultRetryAfter
	case status >= 500 && status <= 599:
		apiErr.Kind = KindServer
	default:
		apiErr.Kind = KindNetwork
	}

	return apiErr
}

// KindOf returns the kind of a registry error, and false for other errors.
func KindOf(err error) (ErrorKind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}

	return 0, false
}

// errorBody is the error document registries return alongside failure statuses.
type errorBody struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// parseErrorDetail extracts "CODE: message" pairs from a registry error body.
func parseErrorDetail(body []byte) string {
	var doc errorBody
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}

	parts := make([]string, 0, len(doc.Errors))
	for _, e := range doc.Errors {
		switch {
		case e.Code != "" && e.Message != "":
			parts = append(parts, e.Code+": "+e.Message)
		case e.Code != "":
			parts = append(parts, e.Code)
		case e.Message != "":
			parts = append(parts, e.Message)
		}
	}

	return strings.Join(parts, "; ")
}
