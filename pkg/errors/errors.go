package errors

import (
	"errors"
	"fmt"
)

// Domain errors - Sentinel errors for use with errors.Is()
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternalServer    = errors.New("internal server error")
	ErrInvalidToken      = errors.New("invalid session token")
	ErrOracleUnavailable = errors.New("membership oracle unavailable")
	ErrStoreUnavailable  = errors.New("credential store unavailable")
	ErrConfiguration     = errors.New("authentication is not configured")
	ErrValidation        = errors.New("validation error")
)

// Custom error type with context
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructors
func NotFound(msg string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: msg, Err: ErrNotFound}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Err: ErrUnauthorized}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Err: ErrForbidden}
}

func BadRequest(msg string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: msg, Err: ErrBadRequest}
}

func Validation(msg string) *AppError {
	return &AppError{Code: "VALIDATION", Message: msg, Err: ErrValidation}
}

func InternalServer(msg string, err error) *AppError {
	return &AppError{Code: "INTERNAL_SERVER_ERROR", Message: msg, Err: err}
}

func InvalidToken(err error) *AppError {
	return &AppError{Code: "INVALID_TOKEN", Message: "invalid or expired session", Err: errors.Join(ErrInvalidToken, err)}
}

func Configuration(msg string) *AppError {
	return &AppError{Code: "CONFIGURATION_FAULT", Message: msg, Err: ErrConfiguration}
}

func StoreUnavailable(err error) *AppError {
	return &AppError{Code: "STORE_UNAVAILABLE", Message: "credential store unavailable", Err: errors.Join(ErrStoreUnavailable, err)}
}
