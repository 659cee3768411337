package providers

import (
	"errors"
	"fmt"
	"time"
)

// Failure kinds shared by every adapter. The router matches these with
// errors.Is / errors.As when deciding whether to fall back.
var (
	// ErrUnsupportedEntity marks an indicator outside a source's capability
	// set. A routing signal, not a fault.
	ErrUnsupportedEntity = errors.New("provider: unsupported indicator")

	// ErrUpstreamUnavailable covers network errors, timeouts, non-success
	// statuses and payloads with no matching record.
	ErrUpstreamUnavailable = errors.New("provider: upstream unavailable")

	// ErrAuthExpired means the upstream rejected the cached session. The
	// adapter renews once before escalating to ErrUpstreamUnavailable.
	ErrAuthExpired = errors.New("provider: upstream session expired")

	// ErrMalformedResponse means the payload parsed but lacked the fields
	// the normalizer requires.
	ErrMalformedResponse = errors.New("provider: malformed upstream response")
)

// RateLimitError is returned before any network call when the per-indicator
// token bucket is exhausted. RetryAfter is a back-off hint.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider: %s rate limited, retry after %s", e.Source, e.RetryAfter)
}
