package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError is a retryable vendor-side failure: rate limits,
// 5xx responses, connection resets.
type TransientError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient failure for %s (HTTP %d): %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure for %s: %v", e.Provider, e.Model, e.Err)
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a non-retryable vendor-side failure: auth errors,
// malformed requests. It disqualifies the model for the request.
type PermanentError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *PermanentError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: permanent failure for %s (HTTP %d): %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: permanent failure for %s: %v", e.Provider, e.Model, e.Err)
}

// Unwrap returns the underlying error
func (e *PermanentError) Unwrap() error { return e.Err }

// TimeoutError indicates the adapter call exceeded its deadline.
// Retried like a transient failure, counted against the attempt budget.
type TimeoutError struct {
	Provider string
	Model    string
	Err      error
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: call to %s timed out: %v", e.Provider, e.Model, e.Err)
}

// Unwrap returns the underlying error
func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTransient reports whether err classifies as retryable
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err classifies as non-retryable
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err classifies as a deadline failure
func IsTimeout(err error) bool {
	var to *TimeoutError
	return errors.As(err, &to)
}

// IsRetryableStatus reports whether an HTTP status code warrants a retry
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// classifyError wraps a raw adapter error into the taxonomy. Status 0
// means the request never produced an HTTP response (network failure).
func classifyError(provider, model string, statusCode int, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: provider, Model: model, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		// Caller cancellation is not a vendor failure; surface as-is.
		return err
	}

	if statusCode > 0 {
		if IsRetryableStatus(statusCode) {
			return &TransientError{Provider: provider, Model: model, StatusCode: statusCode, Err: err}
		}
		return &PermanentError{Provider: provider, Model: model, StatusCode: statusCode, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Provider: provider, Model: model, Err: err}
	}

	// Connection-level failures without a response are retryable
	return &TransientError{Provider: provider, Model: model, Err: err}
}
