package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	// ErrDuplicatePending is returned when an idempotency key is reused while
	// the first request carrying it is still being written.
	ErrDuplicatePending = errors.New("interaction with this idempotency key is still being logged")
)
