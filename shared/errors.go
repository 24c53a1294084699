package shared

import (
	"errors"
	"net/http"
)

// Sentinel causes for the two domain failures callers branch on.
var (
	ErrHashExhausted   = errors.New("hash generation retry budget exhausted")
	ErrLinkUnavailable = errors.New("link missing, inactive or expired")
)

// AppError is a caller-visible error carrying the HTTP status the routing
// layer should respond with.
type AppError struct {
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Err        error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(statusCode int, message string, err error) *AppError {
	return &AppError{StatusCode: statusCode, Message: message, Err: err}
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HashExhaustedError fails the single creation request that ran out of
// candidates, not the process.
func HashExhaustedError() *AppError {
	return NewAppError(http.StatusConflict, "Could not allocate a unique link hash", ErrHashExhausted)
}

// LinkUnavailableError covers a missing, deactivated or expired link.
func LinkUnavailableError() *AppError {
	return NewAppError(http.StatusNotFound, "Link not found or no longer active", ErrLinkUnavailable)
}
