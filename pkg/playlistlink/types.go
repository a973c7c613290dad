// Package playlistlink parses shareable playlist links from the supported
// streaming services into a (service, playlist id) reference.
package playlistlink

// Ref identifies a playlist on one service.
type Ref struct {
	Service    string // Service short name: "spotify", "youtube", "deezer".
	PlaylistID string // Provider-native playlist id.
}

// Parser handles playlist links of a single service.
type Parser interface {
	// Parse extracts the playlist reference from a link.
	Parse(url string) (*Ref, error)

	// CanParse checks if this parser can handle the given URL.
	CanParse(url string) bool
}
