package outbox

import "errors"

// permanentError wraps a failure that retrying cannot fix, such as a URL that
// resolves to a private address or input rejected by provider policy.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. The worker records permanent failures
// with attempts raised to the retry ceiling so the poller never re-selects
// them. Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
