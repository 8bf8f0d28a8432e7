package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GenericErrorMessage is shown when the backend gives no usable explanation.
const GenericErrorMessage = "Something went wrong. Please try again."

// ErrBackendUnavailable is returned while the circuit breaker is open.
var ErrBackendUnavailable = errors.New("optimization backend is temporarily unavailable")

// APIError is a failed backend call. StatusCode is zero for transport failures.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// UserMessage returns text suitable for a blocking alert.
func (e *APIError) UserMessage() string {
	if e.Message == "" {
		return GenericErrorMessage
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether the backend rejected the session credential.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

// UserMessage extracts display text from any error returned by this package.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return ErrBackendUnavailable.Error()
	}
	return GenericErrorMessage
}

// isServerFault reports whether err should count against the circuit breaker.
// Client errors (4xx) are the caller's problem and never trip it.
func isServerFault(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode == 0 || apiErr.StatusCode >= 500
}

// errorMessage pulls the server-provided explanation out of an error body.
// It understands {"detail": "..."}, {"detail": [{"msg": "..."}]}, {"message": "..."} and {"error": "..."}.
func errorMessage(body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil && text != "" {
			return text
		}
		var items []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg == "" {
					continue
				}
				if len(item.Loc) > 0 {
					msgs = append(msgs, fmt.Sprintf("%v: %s", item.Loc[len(item.Loc)-1], item.Msg))
				} else {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Error
}
