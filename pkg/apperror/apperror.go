// Package apperror is the error taxonomy shared by every component.
// Component boundaries translate foreign errors into *Error before returning.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	reasoncodes "github.com/RIKUY-ORG/Rikuy/pkg/reason_codes"

	pkgerrors "github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindMalformedProof
	KindDuplicateCredential
	KindDuplicateContent
	KindInvalidProof
	KindNullifierReused
	KindGeofence
	KindContentModeration
	KindRateLimit
	KindInsufficientFunds
	KindExternalService
	KindTransactionFailed
	KindNotFound
	KindUnauthorized
)

var kindNames = map[Kind]string{
	KindInternal:            "InternalError",
	KindValidation:          "ValidationError",
	KindMalformedProof:      "MalformedProofError",
	KindDuplicateCredential: "DuplicateCredentialError",
	KindDuplicateContent:    "DuplicateContentError",
	KindInvalidProof:        "InvalidProofError",
	KindNullifierReused:     "NullifierReusedError",
	KindGeofence:            "GeofenceError",
	KindContentModeration:   "ContentModerationError",
	KindRateLimit:           "RateLimitError",
	KindInsufficientFunds:   "InsufficientFundsError",
	KindExternalService:     "ExternalServiceError",
	KindTransactionFailed:   "TransactionFailedError",
	KindNotFound:            "NotFoundError",
	KindUnauthorized:        "UnauthorizedError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) Status() int {
	switch k {
	case KindValidation, KindMalformedProof, KindGeofence, KindContentModeration:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidProof, KindNullifierReused:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateCredential, KindDuplicateContent:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindExternalService, KindTransactionFailed:
		return http.StatusBadGateway
	case KindInsufficientFunds:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Code    reasoncodes.ReasonCode
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause is the internal error this one wraps, if any. Never shown to clients outside devMode.
func (e *Error) Cause() error { return e.cause }

func (e *Error) Status() int { return e.Kind.Status() }

// WithDetail returns a copy carrying an extra client-safe detail.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func newError(kind Kind, code reasoncodes.ReasonCode, msg string, cause error) *Error {
	if cause != nil {
		cause = pkgerrors.WithStack(cause)
	}
	return &Error{Kind: kind, Code: code, Message: msg, cause: cause}
}

// As extracts the *Error from a chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the taxonomy kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Normalize classifies err, wrapping unknown errors as internal.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(err)
}
