package metadata

import "errors"

var (
	// ErrNotFound means the provider has no entry for the identifier.
	ErrNotFound = errors.New("metadata: not found")
	// ErrRateLimited means the provider refused the call because of quota; retry later.
	ErrRateLimited = errors.New("metadata: rate limited")
	// ErrRequest covers transport failures, timeouts, unexpected statuses and bad payloads.
	ErrRequest = errors.New("metadata: request failed")
	// ErrNoCrossReference means the primary provider knows the movie but has no IMDb id for it.
	ErrNoCrossReference = errors.New("metadata: no imdb cross-reference")
	// ErrNotConfigured means the provider API key is missing.
	ErrNotConfigured = errors.New("metadata: api key not configured")
)
