package services

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind is the stable error discriminator exposed to clients.
type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "InvalidRequest"
	KindRateLimited    ErrorKind = "RateLimited"
	KindConflict       ErrorKind = "Conflict"
	KindNotFound       ErrorKind = "NotFound"
	KindCatalogEmpty   ErrorKind = "CatalogEmpty"
)

// EconomyError is the structured error every engine operation returns.
// Storage internals never leak through it.
type EconomyError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
}

func (e *EconomyError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func ErrInvalid(msg string) *EconomyError {
	return &EconomyError{Kind: KindInvalidRequest, Message: msg}
}

func ErrRateLimited(retryAfter time.Duration) *EconomyError {
	return &EconomyError{Kind: KindRateLimited, Message: "action not yet available", RetryAfter: retryAfter}
}

func ErrConflict(msg string) *EconomyError {
	return &EconomyError{Kind: KindConflict, Message: msg}
}

func ErrMissing(msg string) *EconomyError {
	return &EconomyError{Kind: KindNotFound, Message: msg}
}

func ErrCatalogEmpty() *EconomyError {
	return &EconomyError{Kind: KindCatalogEmpty, Message: "card catalog is empty"}
}

// HTTPStatus maps an error kind to its response status.
func (e *EconomyError) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		return fiber.StatusBadRequest
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindConflict, KindCatalogEmpty:
		return fiber.StatusServiceUnavailable
	case KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// AsEconomyError unwraps err into an EconomyError, if it is one.
func AsEconomyError(err error) (*EconomyError, bool) {
	var ee *EconomyError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
