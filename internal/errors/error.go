// Package errors provides sentinel errors for catalog browsing operations.
package errors

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionLimit         = errors.New("session limit reached")
	ErrUnknownFilterType    = errors.New("unknown filter type")
	ErrInvalidFilterValue   = errors.New("invalid filter value")
	ErrInvalidDisplay       = errors.New("invalid display mode")
	ErrCatalogUnavailable   = errors.New("catalog unavailable")
	ErrUnknownSourceKind    = errors.New("unknown catalog source kind")
	ErrUnexpectedHTTPStatus = errors.New("unexpected http status")
)
