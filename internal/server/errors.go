package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/jobs"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/upload"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource the user asked for does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// clientErrors are sentinel errors whose text is safe and useful to show.
var clientErrors = map[error]int{
	state.ErrIncompleteProvider:    http.StatusBadRequest,
	state.ErrNoTemplate:            http.StatusBadRequest,
	jobs.ErrProviderNotConfigured:  http.StatusBadRequest,
	jobs.ErrTemplateTooShort:       http.StatusBadRequest,
	upload.ErrUnsupportedExtension: http.StatusBadRequest,
	upload.ErrUnsupportedResume:    http.StatusBadRequest,
	upload.ErrEmptyFile:            http.StatusBadRequest,
	upload.ErrNotText:              http.StatusBadRequest,
	upload.ErrFileTooLarge:         http.StatusRequestEntityTooLarge,
	state.ErrTooManyTemplates:      http.StatusConflict,
	state.ErrTemplateNotFound:      http.StatusNotFound,
	state.ErrJobNotFound:           http.StatusNotFound,
	fetch.ErrInvalidURL:            http.StatusBadRequest,
	fetch.ErrBlockedAddress:        http.StatusBadRequest,
	fetch.ErrNoContent:             http.StatusUnprocessableEntity,
	backend.ErrBackendUnavailable:  http.StatusServiceUnavailable,
	jobs.ErrClosed:                 http.StatusServiceUnavailable,
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	var validationErr *ErrValidation
	var fieldErrs validator.ValidationErrors
	var notFound *ErrNotFound
	var apiErr *backend.APIError
	var fetchErr *fetch.Error

	switch {
	case errors.As(err, &validationErr), errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	}

	for sentinel, status := range clientErrors {
		if errors.Is(err, sentinel) {
			return status
		}
	}

	switch {
	case errors.As(err, &apiErr):
		return backendStatus(apiErr.StatusCode)
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// backendStatus maps a backend response code onto ours. Backend outages are
// a bad gateway from the browser's point of view.
func backendStatus(code int) int {
	switch {
	case code == 0, code >= 500:
		return http.StatusBadGateway
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return http.StatusUnauthorized
	case code == http.StatusNotFound:
		return http.StatusNotFound
	case code == http.StatusUnprocessableEntity, code == http.StatusTooManyRequests:
		return code
	default:
		return http.StatusBadRequest
	}
}

// UserMessage returns the text shown to the user for an error.
func UserMessage(err error) string {
	if err == nil {
		return backend.GenericErrorMessage
	}

	var validationErr *ErrValidation
	var fieldErrs validator.ValidationErrors
	var notFound *ErrNotFound
	var apiErr *backend.APIError
	var fetchErr *fetch.Error
	var uploadErr *upload.Error

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &fieldErrs):
		return extractValidationErrors(fieldErrs)
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.As(err, &uploadErr):
		return uploadErr.Error()
	case errors.As(err, &apiErr):
		return apiErr.UserMessage()
	}

	for sentinel := range clientErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	if errors.As(err, &fetchErr) {
		return fmt.Sprintf("Could not import the job posting: %s", fetchErr.Message)
	}
	return backend.GenericErrorMessage
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrors) > 0 {
			// Return first validation error for simplicity
			ve := validationErrors[0]
			switch ve.Tag() {
			case "required":
				return fmt.Sprintf("%s is required", ve.Field())
			case "min":
				return fmt.Sprintf("%s must be at least %s characters", ve.Field(), ve.Param())
			default:
				return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
			}
		}
	}
	return "validation error: invalid request"
}
