package api

import (
	"context"
	"errors"
	"net/http"

	"dubline/internal/services"
)

// FromError builds the error body for err.
func FromError(err error) ErrorResponse {
	details := services.Details(err)
	return ErrorResponse{
		Error:    details.Message,
		Kind:     details.Kind,
		Stage:    details.Stage,
		Language: details.Language,
		Hint:     details.Hint,
	}
}

// HTTPStatus maps an error classification to a response status. Caller
// mistakes are 4xx; upstream service failures are 502 or 504.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrIngest),
		errors.Is(err, services.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrInvalidResponse),
		errors.Is(err, services.ErrTransport),
		errors.Is(err, services.ErrQuota),
		errors.Is(err, services.ErrJobNotFound),
		errors.Is(err, services.ErrJobFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
