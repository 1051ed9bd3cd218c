package classify

import "errors"

var (
	// ErrProviderUnavailable indicates the embedding provider could not
	// produce a vector (network failure, model not loaded, malformed
	// response). It is surfaced to callers unchanged: the engine never
	// substitutes a default classification for a provider failure, and
	// it performs no retries of its own.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrNotInitialized indicates the category registry was read before
	// its vectors were computed. Every public entry point initializes
	// the registry first, so callers should never observe this error;
	// it exists as an internal guard.
	ErrNotInitialized = errors.New("category registry not initialized")
)
