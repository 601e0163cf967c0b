package sheetsync

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConnected is returned when a remote operation is attempted before
// Connect has succeeded.
var ErrNotConnected = errors.New("sheetsync: not connected")

// AuthError means credentials are missing, invalid, or the user declined
// the interactive flow. It requires user action and is never retried
// silently.
type AuthError struct {
	Op    string
	Cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sheetsync: auth: %s: %v", e.Op, e.Cause)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// RemoteError is a failed remote call. Status is the HTTP status code when
// known, 0 for transport-level failures.
type RemoteError struct {
	Op     string
	Status int
	Cause  error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sheetsync: %s: status %d: %v", e.Op, e.Status, e.Cause)
	}
	return fmt.Sprintf("sheetsync: %s: %v", e.Op, e.Cause)
}

func (e *RemoteError) Unwrap() error { return e.Cause }

// retryable classifies an error for the retry wrapper. Auth errors need a
// human and 4xx (except 429) means the request itself is wrong; transport
// failures, quota, and 5xx are worth another attempt.
func retryable(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		if re.Status == 0 || re.Status == http.StatusTooManyRequests || re.Status >= 500 {
			return true
		}
		return false
	}
	return true
}
