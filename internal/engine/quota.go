package engine

import (
	"errors"
	"fmt"
)

// AttemptQuota counts compilation attempts in a run and enforces a maximum.
//
// Deferrals are bounded by the number of representations squared, so a
// sane run never comes near the default. The quota catches pathological
// rule sets that keep discovering new dependencies.
type AttemptQuota struct {
	maxAttempts int
	current     int
}

// NewAttemptQuota creates a quota with the given limit. A limit of zero or
// less disables it.
func NewAttemptQuota(maxAttempts int) *AttemptQuota {
	return &AttemptQuota{maxAttempts: maxAttempts}
}

// Check increments the attempt counter and validates against the limit.
//
// Returns AttemptsExceededError if the quota is exceeded.
func (q *AttemptQuota) Check(runID string) error {
	q.current++
	if q.maxAttempts > 0 && q.current > q.maxAttempts {
		return &AttemptsExceededError{
			RunID:    runID,
			Attempts: q.current,
			Limit:    q.maxAttempts,
		}
	}
	return nil
}

// Current returns the attempt count.
func (q *AttemptQuota) Current() int {
	return q.current
}

// MaxAttempts returns the limit.
func (q *AttemptQuota) MaxAttempts() int {
	return q.maxAttempts
}

// AttemptsExceededError is returned when a run exceeds its attempt quota.
type AttemptsExceededError struct {
	RunID    string
	Attempts int
	Limit    int
}

// Error implements the error interface.
func (e *AttemptsExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded max attempts: %d attempts > %d limit",
		e.RunID, e.Attempts, e.Limit)
}

// IsAttemptsExceededError returns true if the error is an
// AttemptsExceededError. Uses errors.As to handle wrapped errors.
func IsAttemptsExceededError(err error) bool {
	var ae *AttemptsExceededError
	return errors.As(err, &ae)
}
