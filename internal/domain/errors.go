package domain

import (
	"errors"
	"fmt"
)

// FetchReason distinguishes why a fetch ultimately failed after retries.
type FetchReason string

const (
	FetchNetwork     FetchReason = "network"
	FetchRateLimited FetchReason = "rate_limited"
	FetchNotFound    FetchReason = "not_found"
)

// FetchError is returned once the retry budget is exhausted; the
// orchestrator decides whether to skip the record or abort the run.
type FetchError struct {
	URL    string
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrResource marks Resource-class failures (browser session dead,
// linguistic model unavailable). These abort the whole run; everything
// else degrades to a partial record.
var ErrResource = errors.New("resource unavailable")

// ResourceError wraps err so that errors.Is(err, ErrResource) holds.
func ResourceError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrResource, err)
}
