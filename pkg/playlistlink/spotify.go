package playlistlink

import (
	"errors"
	"net/url"
	"strings"
)

// SpotifyParser handles open.spotify.com playlist links and spotify: URIs.
type SpotifyParser struct{}

// NewSpotifyParser creates a new Spotify playlist link parser.
func NewSpotifyParser() *SpotifyParser {
	return &SpotifyParser{}
}

// CanParse checks if the URL is a Spotify playlist link.
func (p *SpotifyParser) CanParse(rawURL string) bool {
	if strings.HasPrefix(rawURL, "spotify:playlist:") {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	hostname := strings.ToLower(u.Hostname())
	return hostname == "open.spotify.com" || hostname == "play.spotify.com"
}

// Parse extracts the playlist id. Supported forms:
//
//	https://open.spotify.com/playlist/{id}
//	https://open.spotify.com/user/{user}/playlist/{id}
//	spotify:playlist:{id}
func (p *SpotifyParser) Parse(rawURL string) (*Ref, error) {
	if !p.CanParse(rawURL) {
		return nil, errors.New("not a Spotify URL")
	}

	if id, ok := strings.CutPrefix(rawURL, "spotify:playlist:"); ok {
		if id == "" {
			return nil, errors.New("no playlist ID in Spotify URI")
		}
		return &Ref{Service: "spotify", PlaylistID: id}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "playlist" && i+1 < len(parts) && parts[i+1] != "" {
			return &Ref{Service: "spotify", PlaylistID: parts[i+1]}, nil
		}
	}
	return nil, errors.New("no playlist ID in Spotify URL")
}
