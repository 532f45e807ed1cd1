// Package uid generates the identifiers used for allocations, request
// tracing and lock ownership.
package uid

import "github.com/google/uuid"

// New returns a random (v4) UUID.
func New() string {
	return uuid.NewString()
}

// NewOrdered returns a time-ordered (v7) UUID, so allocation ids sort by
// creation time in logs. Falls back to v4 if the clock source fails.
func NewOrdered() string {
	id, err := uuid.NewV7()
	if err != nil {
		return New()
	}
	return id.String()
}

// Token returns an opaque owner token for a held lock.
func Token() string {
	id := uuid.New()
	return id.String()
}

// IsValid reports whether id parses as a UUID in canonical form.
func IsValid(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
