package entity

import (
	"context"
	"errors"
)

// Domain errors surfaced by the core. Callers match with errors.Is and decide
// what to swallow; only ingest swallows duplicates.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrItemNotFound   = errors.New("item not found")
	ErrRecordNotFound = errors.New("learning record not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateItem  = errors.New("item already exists")
	ErrDuplicateUser  = errors.New("user already exists")
	ErrPoolExhausted  = errors.New("connection pool exhausted")
	ErrLockTimeout    = errors.New("lock wait timed out")
	ErrRateLimited    = errors.New("rate limited by upstream")
	ErrUnavailable    = errors.New("upstream unavailable")
	ErrCorrupt        = errors.New("corrupt store data")
	ErrDeadline       = errors.New("request deadline exceeded")
)

// ErrorKind buckets errors for transports and the CLI.
type ErrorKind string

const (
	KindOK           ErrorKind = "ok"
	KindInvalidInput ErrorKind = "invalid_input"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindTransient    ErrorKind = "transient"
	KindRateLimited  ErrorKind = "rate_limited"
	KindCorrupt      ErrorKind = "corrupt"
	KindTimeout      ErrorKind = "timeout"
	KindInternal     ErrorKind = "internal"
)

// KindOf classifies an error chain into its taxonomy bucket.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrRecordNotFound),
		errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateItem),
		errors.Is(err, ErrDuplicateUser):
		return KindConflict
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrCorrupt):
		return KindCorrupt
	case errors.Is(err, ErrDeadline),
		errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrPoolExhausted),
		errors.Is(err, ErrLockTimeout),
		errors.Is(err, ErrUnavailable):
		return KindTransient
	default:
		return KindInternal
	}
}

// Retryable reports whether a caller may retry the failed operation.
// Only the transient and rate-limit buckets qualify.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	}
	return false
}
