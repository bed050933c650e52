package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures surfaced by the app
type ErrorKind string

const (
	KindConfig    ErrorKind = "config"
	KindAuth      ErrorKind = "auth"
	KindSignature ErrorKind = "signature"
	KindBilling   ErrorKind = "billing"
	KindRateLimit ErrorKind = "rate_limit"
)

var defaultStatus = map[ErrorKind]int{
	KindConfig:    http.StatusInternalServerError,
	KindAuth:      http.StatusBadRequest,
	KindSignature: http.StatusUnauthorized,
	KindBilling:   http.StatusInternalServerError,
	KindRateLimit: http.StatusTooManyRequests,
}

// Error is a classified failure carrying a message that is safe to return to clients
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	cause   error
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Status: defaultStatus[kind], cause: cause}
}

// NewConfigError reports a missing or invalid credential or setting
func NewConfigError(message string, cause error) *Error {
	return newError(KindConfig, message, cause)
}

// NewAuthError reports an invalid shop, failed code exchange or missing session
func NewAuthError(message string, cause error) *Error {
	return newError(KindAuth, message, cause)
}

// NewSignatureError reports an HMAC mismatch or malformed signature headers
func NewSignatureError(message string, cause error) *Error {
	return newError(KindSignature, message, cause)
}

// NewBillingError reports a failed subscription query or creation
func NewBillingError(message string, cause error) *Error {
	return newError(KindBilling, message, cause)
}

// NewRateLimitError reports a request rejected by a per-shop limiter
func NewRateLimitError(message string) *Error {
	return newError(KindRateLimit, message, nil)
}

// WithStatus overrides the HTTP status the error maps to
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// AsError extracts a classified error from err's chain, or nil
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsKind reports whether err carries a classified error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	typed := AsError(err)
	return typed != nil && typed.Kind == kind
}

// HTTPStatus maps err to a response status; unclassified errors are 500
func HTTPStatus(err error) int {
	if typed := AsError(err); typed != nil && typed.Status != 0 {
		return typed.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-safe message for err
func PublicMessage(err error) string {
	if typed := AsError(err); typed != nil {
		return typed.Message
	}
	return "Internal server error"
}
