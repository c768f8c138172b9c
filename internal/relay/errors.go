package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a relay failure.
type Kind int

const (
	// KindCallFailed is an opaque upstream failure.
	KindCallFailed Kind = iota
	// KindUnavailable means the backend refused or could not accept the connection.
	KindUnavailable
	// KindTimeout means the backend did not answer within its time budget.
	KindTimeout
	// KindHTTP means the backend answered with a non-2xx status.
	KindHTTP
	// KindUnsupportedModel means the model identifier is not recognized.
	KindUnsupportedModel
)

func (k Kind) String() string {
	switch k {
	case KindCallFailed:
		return "call_failed"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindUnsupportedModel:
		return "unsupported_model"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Backend names used in Error.Backend.
const (
	BackendOllama = "ollama"
	BackendClaude = "claude"
)

// Error is the single failure type returned by backends and the dispatcher.
type Error struct {
	Kind    Kind
	Backend string
	// Status is the upstream HTTP status for KindHTTP.
	Status int
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindHTTP:
		msg = fmt.Sprintf("upstream returned status %d", e.Status)
	case KindUnsupportedModel:
		msg = "unsupported model"
	default:
		msg = e.Kind.String()
	}
	if e.Backend != "" {
		msg = e.Backend + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can match with errors.Is(err, &Error{Kind: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindCallFailed when err is not a *Error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindCallFailed
}

const (
	detailUnavailable = "Unable to connect to the model service. Please make sure it is running."
	detailTimeout     = "Request timed out. Please check that the model service is responding normally."
	detailUnsupported = "Unsupported model"
)

// Translate maps any error to the status code and detail message returned
// to the caller. Only the error's text reaches the detail.
func Translate(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	var re *Error
	if !errors.As(err, &re) {
		return http.StatusInternalServerError, err.Error()
	}
	switch re.Kind {
	case KindUnavailable:
		return http.StatusServiceUnavailable, detailUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout, detailTimeout
	case KindUnsupportedModel:
		if re.Err != nil {
			return http.StatusBadRequest, detailUnsupported + ": " + re.Err.Error()
		}
		return http.StatusBadRequest, detailUnsupported
	case KindCallFailed:
		cause := re.Error()
		if re.Err != nil {
			cause = re.Err.Error()
		}
		if re.Backend == BackendClaude {
			return http.StatusInternalServerError, "Claude API error: " + cause
		}
		return http.StatusInternalServerError, cause
	default:
		return http.StatusInternalServerError, re.Error()
	}
}
