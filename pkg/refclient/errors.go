package refclient

import "errors"

// ErrNotFound is returned when the reference service responds 404. It is
// a permanent, non-retryable outcome.
var ErrNotFound = errors.New("refclient: record not found")

// ErrTransient wraps a failure the caller should retry: 5xx responses,
// timeouts, connection errors, and synthetic failures from an open
// circuit breaker.
var ErrTransient = errors.New("refclient: transient failure")

// ErrPermanent wraps a non-404 4xx response. Retrying would not help.
var ErrPermanent = errors.New("refclient: permanent failure")

// IsTransient reports whether err should be retried by the caller.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err is a non-retryable rejection (NotFound
// counts as permanent for the purposes of the enrichment stage, but
// callers that care about the 404/other-4xx distinction should check
// ErrNotFound first).
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) || errors.Is(err, ErrNotFound)
}
