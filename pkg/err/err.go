package errprocess

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classify an application error, each kind maps to one HTTP status
type Kind int

const (
	// KindInternal unexpected failure
	KindInternal Kind = iota
	// KindUnauthorized missing or invalid caller identity
	KindUnauthorized
	// KindForbidden caller authenticated but not allowed
	KindForbidden
	// KindValidation missing field or rejected state change
	KindValidation
	// KindNotFound unknown thread or message
	KindNotFound
	// KindCrypto stored content can't be decrypted
	KindCrypto
)

// AppError error carried from use cases to the transport layer
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is match on kind so errors.Is(err, ErrForbidden) works for any forbidden error
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// sentinels for errors.Is
var (
	ErrUnauthorized = &AppError{Kind: KindUnauthorized}
	ErrForbidden    = &AppError{Kind: KindForbidden}
	ErrValidation   = &AppError{Kind: KindValidation}
	ErrNotFound     = &AppError{Kind: KindNotFound}
	ErrCrypto       = &AppError{Kind: KindCrypto}
	ErrInternal     = &AppError{Kind: KindInternal}
)

// Unauthorized build an unauthorized error
func Unauthorized(msg string) error {
	return &AppError{Kind: KindUnauthorized, Message: msg}
}

// Forbidden build a forbidden error
func Forbidden(msg string) error {
	return &AppError{Kind: KindForbidden, Message: msg}
}

// Validation build a validation error
func Validation(msg string) error {
	return &AppError{Kind: KindValidation, Message: msg}
}

// NotFound build a not found error
func NotFound(msg string) error {
	return &AppError{Kind: KindNotFound, Message: msg}
}

// Crypto wrap a decrypt failure
func Crypto(msg string, err error) error {
	return &AppError{Kind: KindCrypto, Message: msg, Err: err}
}

// Internal wrap an unexpected failure
func Internal(msg string, err error) error {
	return &AppError{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf kind of err, KindInternal for anything that is not an AppError
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Status HTTP status for err
func Status(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage message safe to return to the caller; crypto and internal
// failures never leak their cause
func PublicMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "internal server error"
	}
	switch appErr.Kind {
	case KindCrypto, KindInternal:
		return "internal server error"
	default:
		return appErr.Message
	}
}
