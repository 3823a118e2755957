// Package httputil provides retry helpers for outbound HTTP calls.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff. Only errors wrapped
// in [RetryableError] are retried, so callers decide which failures are
// transient:
//
//   - network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Usage:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// The font resolver uses it for stylesheet and font downloads.
package httputil
