package server

import (
	"time"
	"unicode/utf8"
)

// validateResource checks a client-supplied resource identifier.
func validateResource(resource string) error {
	if resource == "" {
		return NewValidationError("identifier", resource, "must not be empty")
	}
	if len(resource) > MaxResourceIDLength {
		return NewValidationError("identifier", len(resource), "exceeds maximum length")
	}
	if !utf8.ValidString(resource) {
		return NewValidationError("identifier", resource, "must be valid UTF-8")
	}
	return nil
}

// validateTTL converts a TTL in whole seconds and checks it against the configured bounds.
func validateTTL(seconds int64, maxTTL time.Duration) (time.Duration, error) {
	if seconds <= 0 {
		return 0, NewValidationError("ttl", seconds, "must be a positive number of seconds")
	}
	ttl := time.Duration(seconds) * time.Second
	if ttl < MinLockTTL || ttl > maxTTL {
		return 0, NewValidationError("ttl", seconds, "out of range")
	}
	return ttl, nil
}

// validateLockID checks a client-supplied lock identifier.
func validateLockID(lockID string) error {
	if lockID == "" {
		return NewValidationError("id", lockID, "must not be empty")
	}
	return nil
}
