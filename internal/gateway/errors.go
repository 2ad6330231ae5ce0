package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/winston-domains/winston/internal/registrar"
)

// Error kinds surfaced to API clients. Each maps 1:1 to an HTTP status.
const (
	KindValidationError        = "ValidationError"
	KindUnsafeLabel            = "UnsafeLabel"
	KindNonASCIINotAllowed     = "NonASCIINotAllowed"
	KindUnicodeMustUsePunycode = "UnicodeMustUsePunycode"
	KindPremiumNotAllowed      = "PremiumNotAllowed"
	KindSpendCapExceeded       = "SpendCapExceeded"
	KindDailyCapExceeded       = "DailyCapExceeded"
	KindUnknownDnsTemplate     = "UnknownDnsTemplate"
	KindNameserversRequired    = "NameserversRequired"
	KindUnauthorized           = "Unauthorized"
	KindNotFound               = "NotFound"
	KindIdempotencyMismatch    = "IdempotencyMismatch"
	KindPriceDrift             = "PriceDrift"
	KindRateLimited            = "RateLimited"
	KindInternalError          = "InternalError"
)

var kindStatus = map[string]int{
	KindValidationError:        http.StatusBadRequest,
	KindUnsafeLabel:            http.StatusBadRequest,
	KindNonASCIINotAllowed:     http.StatusBadRequest,
	KindUnicodeMustUsePunycode: http.StatusBadRequest,
	KindPremiumNotAllowed:      http.StatusBadRequest,
	KindSpendCapExceeded:       http.StatusBadRequest,
	KindDailyCapExceeded:       http.StatusBadRequest,
	KindUnknownDnsTemplate:     http.StatusBadRequest,
	KindNameserversRequired:    http.StatusBadRequest,
	KindUnauthorized:           http.StatusUnauthorized,
	KindNotFound:               http.StatusNotFound,
	KindIdempotencyMismatch:    http.StatusConflict,
	KindPriceDrift:             http.StatusConflict,
	KindRateLimited:            http.StatusTooManyRequests,
	KindInternalError:          http.StatusInternalServerError,
}

// Error is a classified request failure. Details, when set, is included in
// the JSON error envelope.
type Error struct {
	Kind    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatus returns the status code for the error's kind.
func (e *Error) HTTPStatus() int {
	if code, ok := kindStatus[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// E builds a classified error.
func E(kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches the details map and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Classify coerces any error into a *Error. Unclassified errors become
// InternalError without leaking internals into the message.
func Classify(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return E(KindInternalError, "internal error")
}

// mapDriverError translates registrar driver failures into the client-facing
// taxonomy. Upstream faults stay opaque InternalErrors.
func mapDriverError(err error) *Error {
	var rerr *registrar.Error
	if !errors.As(err, &rerr) {
		return E(KindInternalError, "registrar call failed")
	}
	switch rerr.Kind {
	case registrar.KindTLDNotSupported:
		return E(KindValidationError, "%s", rerr.Message)
	case registrar.KindInvalidNameserverCount:
		return E(KindNameserversRequired, "%s", rerr.Message)
	default:
		return E(KindInternalError, "registrar %s", rerr.Kind).
			WithDetails(map[string]any{"registrar_error": rerr.Kind})
	}
}
