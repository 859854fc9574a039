package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated         Kind = "UNAUTHENTICATED"
	KindNotFound                Kind = "NOT_FOUND"
	KindValidationFailed        Kind = "VALIDATION_FAILED"
	KindUnknownApplication      Kind = "UNKNOWN_APPLICATION"
	KindInvalidApplicationToken Kind = "INVALID_APPLICATION_TOKEN"
	KindVerificationFailed      Kind = "VERIFICATION_FAILED"
	KindDuplicateCredential     Kind = "DUPLICATE_CREDENTIAL"
	KindRateLimited             Kind = "RATE_LIMITED"
	KindStorage                 Kind = "STORAGE_ERROR"
	KindInternal                Kind = "INTERNAL"
)

// Error is the typed error every ceremony and store returns. Message is safe
// to show to callers; Cause carries the underlying diagnostic for logs.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Unauthenticated(msg string) error {
	return New(KindUnauthenticated, msg)
}

func NotFound(msg string) error {
	return New(KindNotFound, msg)
}

func Validation(msg string) error {
	return New(KindValidationFailed, msg)
}

func VerificationFailed(msg string, cause error) error {
	return Wrap(KindVerificationFailed, msg, cause)
}

func Storage(msg string, cause error) error {
	return Wrap(KindStorage, msg, cause)
}

func Internal(msg string, cause error) error {
	return Wrap(KindInternal, msg, cause)
}

var (
	ErrUserNotFound        = NotFound("user not found")
	ErrChallengeNotFound   = NotFound("no pending challenge")
	ErrChallengeUsed       = VerificationFailed("verification failed", errors.New("challenge already used"))
	ErrCredentialNotFound  = NotFound("credential not found")
	ErrNotFoundOrForbidden = NotFound("credential not found")
	ErrAppAccessNotFound   = NotFound("app access record not found")
	ErrDuplicateCredential = New(KindDuplicateCredential, "credential already registered")
	ErrUnknownApplication  = New(KindUnknownApplication, "unknown application")
	ErrUnauthenticated     = Unauthenticated("unauthorized")
	ErrRateLimited         = New(KindRateLimited, "too many requests")
)

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

func Status(kind Kind) int {
	switch kind {
	case KindUnauthenticated, KindInvalidApplicationToken:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidationFailed, KindUnknownApplication, KindVerificationFailed:
		return http.StatusBadRequest
	case KindDuplicateCredential:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text placed in the response envelope. Storage and
// internal failures never expose their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "internal server error"
	}
	switch appErr.Kind {
	case KindInternal:
		return "internal server error"
	case KindStorage:
		return "storage error"
	}
	return appErr.Message
}

// Diagnostic returns the underlying cause text, empty when there is none.
func Diagnostic(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return ""
}
