package domain

import "errors"

var (
	// ErrNotFound is returned when the resort API answers 404. It is permanent.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation is returned when the resort API rejects request parameters (4xx other than 404).
	ErrValidation = errors.New("request rejected by resort API validation")

	// ErrNetwork is returned for timeouts, connectivity failures, 429 and 5xx responses.
	ErrNetwork = errors.New("resort API request failed")

	// ErrDecode is returned when a fetched or cached payload does not match the expected shape
	ErrDecode = errors.New("payload does not match expected shape")

	// ErrInvalidRequest is returned when caller-supplied parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when no entry exists for a key
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable wraps storage-layer I/O failures so they stay distinct from a miss
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

// IsPermanent reports whether err must reach the caller without a stale-cache fallback.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidRequest)
}
