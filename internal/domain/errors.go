package domain

import "fmt"

// ErrorKind classifies a BacktestError for propagation decisions: which
// kinds are retried, which are surfaced to the caller verbatim, and which
// abort the run outright.
type ErrorKind string

const (
	ErrValidation       ErrorKind = "VALIDATION"
	ErrDataUnavailable  ErrorKind = "DATA_UNAVAILABLE"
	ErrCacheTransient   ErrorKind = "CACHE_TRANSIENT"
	ErrExternalTransient ErrorKind = "EXTERNAL_TRANSIENT"
	ErrCancelled        ErrorKind = "CANCELLED"
	ErrInternal         ErrorKind = "INTERNAL"
)

// BacktestError is the structured error type returned across component
// boundaries. Code is a short machine-readable tag (e.g.
// "unknown_factor", "negative_cash"); Message is human-readable.
type BacktestError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *BacktestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BacktestError) Unwrap() error {
	return e.Err
}

// NewError builds a BacktestError with no wrapped cause.
func NewError(kind ErrorKind, code, message string) *BacktestError {
	return &BacktestError{Kind: kind, Code: code, Message: message}
}

// WrapError builds a BacktestError wrapping an underlying cause.
func WrapError(kind ErrorKind, code, message string, err error) *BacktestError {
	return &BacktestError{Kind: kind, Code: code, Message: message, Err: err}
}

// IsRetryable reports whether the error kind is one reliability.Retry should
// attempt again (transient external/cache failures), as opposed to
// validation or cancellation, which never succeed on retry.
func IsRetryable(err error) bool {
	var be *BacktestError
	if be2, ok := err.(*BacktestError); ok {
		be = be2
	} else {
		return false
	}
	switch be.Kind {
	case ErrCacheTransient, ErrExternalTransient:
		return true
	default:
		return false
	}
}
