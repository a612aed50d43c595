package gemini

import (
	"strings"
	"time"
)

// Retry budgets. Extraction gets the larger one because a full statement call
// is the expensive operation worth waiting for; counting is a best-effort
// pre-flight.
const (
	extractMaxAttempts = 5
	countMaxAttempts   = 3

	extractBaseDelay = 3 * time.Second
	extractMaxDelay  = 30 * time.Second
	countBaseDelay   = 2 * time.Second
)

// extractBackoff is the delay before retrying extraction attempt n+1:
// 3s, 6s, 12s, 24s, capped at 30s.
func extractBackoff(attempt int) time.Duration {
	d := extractBaseDelay << (attempt - 1)
	if d > extractMaxDelay {
		return extractMaxDelay
	}
	return d
}

// countBackoff is the linear delay used between count attempts: 2s, 4s.
func countBackoff(attempt int) time.Duration {
	return countBaseDelay * time.Duration(attempt)
}

// transientMarkers are the substrings that identify an overloaded or
// rate-limited downstream. Everything else is treated as fatal.
var transientMarkers = []string{"503", "overloaded", "resource exhausted", "rate limit"}

// isRetryable reports whether an error from the model transport should be
// retried with backoff.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return IsTransient(err.Error())
}

// IsTransient reports whether an error message describes an overloaded or
// rate-limited downstream. Callers further up the stack use it to decide
// whether re-running a whole file is worth it.
func IsTransient(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
