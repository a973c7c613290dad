package cache

import (
	"testing"

	"tunesync/internal/core"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Lowercases", "Hello World", "hello_world"},
		{"Collapses whitespace", "a   b\t c", "a_b_c"},
		{"Strips non-word", "rock & roll!", "rock__roll"},
		{"Keeps digits and underscore", "Track_01", "track_01"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuery(tt.input); got != tt.want {
				t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHotKeys(t *testing.T) {
	if got, want := playlistKey(core.ServiceSpotify, "37i9dQ"), "provider_cache:spotify:playlists:playlist_id#37i9dQ"; got != want {
		t.Errorf("playlistKey = %q, want %q", got, want)
	}
	if got, want := searchKey(core.ServiceDeezer, "Karma Police", 5), "provider_cache:deezer:search_results:query#karma_police:limit#5"; got != want {
		t.Errorf("searchKey = %q, want %q", got, want)
	}
	if got, want := isrcKey(core.ServiceSubsonic, "GBAYE9700164"), "provider_cache:subsonic:tracks:isrc#GBAYE9700164"; got != want {
		t.Errorf("isrcKey = %q, want %q", got, want)
	}
}
