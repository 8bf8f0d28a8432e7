package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/resume-optimizer/internal/polling"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Event names sent on a job stream.
const (
	EventStatus = "status"
	EventDone   = "done"
	EventError  = "error"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	// Streams last as long as the job; lift the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	return &SSEWriter{w: w, rc: rc}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	return s.rc.Flush()
}

// WriteComment sends a keep-alive comment line.
func (s *SSEWriter) WriteComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	return s.rc.Flush()
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent(EventError, map[string]string{"error": message}) //nolint:errcheck
}

// DonePayload is the data of the final event on a job stream.
type DonePayload struct {
	Status      *types.JobStatus `json:"status,omitempty"`
	Result      *types.JobResult `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	ResultError string           `json:"result_error,omitempty"`
}

// WriteDone sends the completion event for a finished subscription.
func (s *SSEWriter) WriteDone(outcome polling.Outcome) {
	payload := DonePayload{Status: outcome.Status, Result: outcome.Result}
	if outcome.Err != nil {
		payload.Error = streamMessage(outcome.Err)
	}
	if outcome.ResultErr != nil {
		payload.ResultError = UserMessage(outcome.ResultErr)
	}
	s.WriteEvent(EventDone, payload) //nolint:errcheck
}

// streamMessage is the user-facing text for an outcome error. Job failures
// carry the backend's own explanation.
func streamMessage(err error) string {
	var failed *polling.JobFailedError
	if errors.As(err, &failed) {
		return failed.Message
	}
	return UserMessage(err)
}
