// Package gameerr defines the error taxonomy shared by the rules engine and
// the orchestrator. Callers wrap a sentinel with fmt.Errorf("%w: ...") and
// match it with errors.Is.
package gameerr

import "errors"

var (
	// ErrValidation marks malformed or out-of-range input. Nothing was mutated.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientResource marks a spend (bet) the owner cannot cover.
	ErrInsufficientResource = errors.New("insufficient resource")

	// ErrConcurrencyConflict marks a lost lock race or a stale read.
	// The whole operation may be retried from a fresh read.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrProviderUnavailable marks a difficulty evaluation that exhausted its retries.
	ErrProviderUnavailable = errors.New("evaluation provider unavailable")

	// ErrNotFound marks a missing user, activity or record.
	ErrNotFound = errors.New("not found")
)
