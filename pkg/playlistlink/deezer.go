package playlistlink

import (
	"errors"
	"net/url"
	"strings"
)

// DeezerParser handles deezer.com playlist links.
type DeezerParser struct{}

// NewDeezerParser creates a new Deezer playlist link parser.
func NewDeezerParser() *DeezerParser {
	return &DeezerParser{}
}

// CanParse checks if the URL is a Deezer link.
func (p *DeezerParser) CanParse(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	hostname := strings.ToLower(u.Hostname())
	return hostname == "deezer.com" || hostname == "www.deezer.com"
}

// Parse extracts the playlist id. Supported forms:
//
//	https://www.deezer.com/playlist/{id}
//	https://www.deezer.com/{lang}/playlist/{id}
func (p *DeezerParser) Parse(rawURL string) (*Ref, error) {
	if !p.CanParse(rawURL) {
		return nil, errors.New("not a Deezer URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "playlist" && i+1 < len(parts) && parts[i+1] != "" {
			return &Ref{Service: "deezer", PlaylistID: parts[i+1]}, nil
		}
	}
	return nil, errors.New("no playlist ID in Deezer URL")
}
