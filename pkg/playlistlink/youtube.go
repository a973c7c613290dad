package playlistlink

import (
	"errors"
	"net/url"
	"strings"
)

// YouTubeParser handles YouTube and YouTube Music playlist links.
type YouTubeParser struct{}

// NewYouTubeParser creates a new YouTube playlist link parser.
func NewYouTubeParser() *YouTubeParser {
	return &YouTubeParser{}
}

// CanParse checks if the URL is a YouTube or YouTube Music link.
func (p *YouTubeParser) CanParse(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		return true
	}
	return false
}

// Parse extracts the playlist id from the "list" query parameter. Supported
// forms:
//
//	https://www.youtube.com/playlist?list={id}
//	https://music.youtube.com/playlist?list={id}
//	https://www.youtube.com/watch?v={video}&list={id}
func (p *YouTubeParser) Parse(rawURL string) (*Ref, error) {
	if !p.CanParse(rawURL) {
		return nil, errors.New("not a YouTube URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	id := u.Query().Get("list")
	if id == "" {
		return nil, errors.New("no playlist ID in YouTube URL")
	}
	return &Ref{Service: "youtube", PlaylistID: id}, nil
}
