package core

import "errors"

// Closed set of error kinds crossing the provider-port boundary. Drivers wrap
// vendor failures into one of these; nothing vendor-specific escapes.
var (
	// ErrPlaylistNotFound reports an identity-level playlist miss at a provider.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrTrackNotFound reports an identity-level track miss at a provider.
	ErrTrackNotFound = errors.New("track not found")
	// ErrUnsupportedFeature means the provider cannot satisfy the capability.
	ErrUnsupportedFeature = errors.New("unsupported feature")
	// ErrProvider is a generic provider-side failure (network, 4xx, 5xx, quota).
	ErrProvider = errors.New("provider error")
	// ErrAuth means credentials are missing or invalid.
	ErrAuth = errors.New("authentication failed")
	// ErrInvalidArgument means a mapper received a malformed payload or a
	// validator rejected input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTimeout means an internal budget elapsed.
	ErrTimeout = errors.New("timed out")
)
