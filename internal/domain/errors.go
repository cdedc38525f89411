package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// OTP flow taxonomy. ErrCodeInvalid deliberately covers wrong, expired,
	// replayed and superseded codes alike so callers cannot distinguish them.
	ErrRateLimited     = errors.New("rate limited")
	ErrDeliveryFailed  = errors.New("delivery failed")
	ErrCodeInvalid     = errors.New("invalid or expired code")
	ErrAccountNotFound = errors.New("account not found")
)
