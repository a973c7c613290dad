package playlistlink

import (
	"errors"
)

// Manager coordinates the per-service parsers.
type Manager struct {
	parsers []Parser
}

// NewManager creates a manager with all supported parsers.
func NewManager() *Manager {
	return &Manager{
		parsers: []Parser{
			NewSpotifyParser(),
			NewYouTubeParser(),
			NewDeezerParser(),
		},
	}
}

// Parse resolves a playlist link using the appropriate parser.
func (m *Manager) Parse(url string) (*Ref, error) {
	for _, parser := range m.parsers {
		if parser.CanParse(url) {
			return parser.Parse(url)
		}
	}
	return nil, errors.New("no parser found for URL")
}

// CanParse checks if any parser can handle the given URL.
func (m *Manager) CanParse(url string) bool {
	for _, parser := range m.parsers {
		if parser.CanParse(url) {
			return true
		}
	}
	return false
}
