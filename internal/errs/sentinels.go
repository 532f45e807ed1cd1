// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrInvalidQuantity indicates a requested row count outside [1,100].
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidAmount indicates a non-positive credit amount on an admin grant.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrEmptyMessage indicates a broadcast without text.
	ErrEmptyMessage = errors.New("empty message")

	// ErrInsufficientCredits indicates the balance does not cover the request.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrPoolExhausted indicates a region has no available rows.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrStoreUnavailable indicates the shared grid could not be reached or a read/write failed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPersistence indicates the durable ledger write failed after the in-memory change applied.
	ErrPersistence = errors.New("ledger persistence failed")

	// ErrUnknownRegion indicates a region id that is not configured.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrNotFound indicates the requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates a non-admin caller on an admin operation.
	ErrForbidden = errors.New("forbidden")

	// ErrBanned indicates a banned user when ban enforcement is on.
	ErrBanned = errors.New("user banned")

	// ErrNotifierUnavailable indicates no chat sender is configured.
	ErrNotifierUnavailable = errors.New("notifier unavailable")

	// ErrLockTimeout indicates the allocation lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock timeout")
)
