package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "guild-dashboard/pkg/errors"
)

// MapToPublicError maps internal errors to public-facing HTTP status codes and messages
func MapToPublicError(err error) (int, string) {
	var appErr *apperrors.AppError
	hasAppErr := errors.As(err, &appErr)

	switch {
	case errors.Is(err, apperrors.ErrForbidden):
		if hasAppErr {
			return http.StatusForbidden, appErr.Message
		}
		return http.StatusForbidden, "access denied"
	case errors.Is(err, apperrors.ErrBadRequest), errors.Is(err, apperrors.ErrValidation):
		if hasAppErr {
			return http.StatusBadRequest, appErr.Message
		}
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrInvalidToken):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "credential store unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondWithMappedError responds with a mapped error, preventing information disclosure
func RespondWithMappedError(c echo.Context, err error) error {
	status, msg := MapToPublicError(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("request failed: %v", err)
	}
	return respondError(c, status, msg)
}
