package service

import (
	"context"
	"errors"
	"fmt"

	"balance-guard/internal/repository"
)

// Error represents a custom error with code and message
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

// NewError creates a new error
func NewError(code, message string) Error {
	return Error{Code: code, Message: message}
}

var (
	// ErrStoreUnavailable wraps any transport or backend failure. It is never retried here.
	ErrStoreUnavailable = NewError("store_unavailable", "store unavailable")
	// ErrConcurrencyExhausted means a retrying strategy used its whole attempt budget.
	ErrConcurrencyExhausted = NewError("concurrency_exhausted", "concurrency retries exhausted")
	// ErrInvalidArgument is returned for non-positive charge amounts, before any store call.
	ErrInvalidArgument = NewError("invalid_argument", "invalid argument")
	// ErrKeyNotFound means the balance key must be initialized (reset) first.
	ErrKeyNotFound = NewError("key_not_found", "balance key not found")
	// ErrCanceled means the caller's context ended before the store answered.
	// The store itself is not at fault.
	ErrCanceled = NewError("request_canceled", "request canceled")
)

// Code returns the code of the first service Error in err's chain, or "internal".
func Code(err error) string {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// storeFailure classifies an error returned by the repository layer. Errors
// caused by ctx ending keep the context error in the chain.
func storeFailure(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrCanceled, op, ctxErr)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
