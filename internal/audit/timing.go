package audit

import (
	"crypto/subtle"
	"time"
)

// ConstantTimeCompare reports whether a and b are equal using a
// constant-time comparison so a failed HMAC check does not leak timing
// information about how many leading bytes matched.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		// still run a comparison of equal length to avoid a length-based
		// timing signal distinct from the value comparison itself.
		subtle.ConstantTimeCompare(a, a)
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// MinimumElapsedTime runs fn and, if it returns sooner than minDuration,
// sleeps out the remainder before returning fn's error. This flattens the
// timing signal between a fast-reject (e.g. bad password shape) and a slow
// full verification, on both the success and failure paths.
func MinimumElapsedTime(minDuration time.Duration, fn func() error) error {
	start := time.Now()
	err := fn()
	if elapsed := time.Since(start); elapsed < minDuration {
		time.Sleep(minDuration - elapsed)
	}
	return err
}
