package apperror

import (
	reasoncodes "github.com/RIKUY-ORG/Rikuy/pkg/reason_codes"
)

func Validation(msg string, details map[string]any) *Error {
	e := newError(KindValidation, reasoncodes.ErrValidation, msg, nil)
	e.Details = details
	return e
}

func MalformedProof(msg string) *Error {
	return newError(KindMalformedProof, reasoncodes.ErrInvalidProofFormat, msg, nil)
}

func DuplicateCredential() *Error {
	return newError(KindDuplicateCredential, reasoncodes.ErrDuplicateCredential,
		"Este documento ya fue registrado", nil)
}

func DuplicateContent() *Error {
	return newError(KindDuplicateContent, reasoncodes.ErrDuplicateImage,
		"Esta imagen ya fue reportada anteriormente", nil)
}

func InvalidProof(reason string) *Error {
	e := newError(KindInvalidProof, reasoncodes.ErrInvalidZkProof,
		"La prueba de identidad no es válida", nil)
	if reason != "" {
		e.Details = map[string]any{"reason": reason}
	}
	return e
}

func NullifierReused() *Error {
	return newError(KindNullifierReused, reasoncodes.ErrNullifierUsed,
		"Esta prueba ya fue utilizada", nil)
}

func Geofence() *Error {
	return newError(KindGeofence, reasoncodes.ErrGeofence,
		"La ubicación está fuera del área de servicio", nil)
}

func ContentModeration() *Error {
	return newError(KindContentModeration, reasoncodes.ErrContentModeration,
		"La imagen no cumple con las normas de contenido", nil)
}

func RateLimit(retryAfterSeconds int64) *Error {
	e := newError(KindRateLimit, reasoncodes.ErrRateLimitExceeded,
		"Demasiados intentos, intenta más tarde", nil)
	e.Details = map[string]any{"retryAfterSeconds": retryAfterSeconds}
	return e
}

func InsufficientFunds(cause error) *Error {
	return newError(KindInsufficientFunds, reasoncodes.ErrRelayerFunds,
		"Servicio temporalmente no disponible", cause)
}

// ExternalService hides the collaborator failure behind a generic message; service names
// the collaborator for internal logs only.
func ExternalService(service string, cause error) *Error {
	e := newError(KindExternalService, reasoncodes.ErrExternalService,
		"No pudimos procesar tu solicitud, intenta nuevamente", cause)
	e.Details = map[string]any{"service": service}
	return e
}

func TransactionFailed(cause error) *Error {
	return newError(KindTransactionFailed, reasoncodes.ErrBlockchainTxFailed,
		"No se pudo registrar la transacción en la blockchain", cause)
}

func NotFound(resource string) *Error {
	e := newError(KindNotFound, reasoncodes.ErrNotFound, "Recurso no encontrado", nil)
	e.Details = map[string]any{"resource": resource}
	return e
}

func Unauthorized(msg string) *Error {
	return newError(KindUnauthorized, reasoncodes.ErrUnauthorized, msg, nil)
}

func Internal(cause error) *Error {
	return newError(KindInternal, reasoncodes.ErrInternal, "Error interno del servidor", cause)
}
