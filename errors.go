package verifykit

import "errors"

var (
	// ErrInvalidConcurrency is returned by New when a concurrency cap is
	// negative or the per-domain cap exceeds the global cap.
	ErrInvalidConcurrency = errors.New("verifykit: invalid concurrency caps")

	// ErrInvalidDuration is returned by New when a TTL, timeout or delay
	// is negative.
	ErrInvalidDuration = errors.New("verifykit: durations must not be negative")

	// ErrInvalidRetryPolicy is returned by New when GreylistMaxRetries
	// is negative.
	ErrInvalidRetryPolicy = errors.New("verifykit: greylist retry count must not be negative")

	// ErrInvalidHeloHostname is returned by New when HeloHostname is an
	// unqualified or loopback name.
	ErrInvalidHeloHostname = errors.New("verifykit: HELO hostname must be a qualified, non-localhost name")
)
