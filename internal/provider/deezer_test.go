package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

func newTestDeezerDriver(t *testing.T, handler http.HandlerFunc) *DeezerDriver {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	driver, err := NewDeezerDriver(
		core.DeezerConfig{BaseURL: srv.URL},
		&core.Credentials{Values: map[string]string{"access_token": "tok"}},
		zap.NewNop())
	if err != nil {
		t.Fatalf("new deezer driver: %v", err)
	}
	return driver
}

func TestDeezerDriver_GetTrackByISRC(t *testing.T) {
	driver := newTestDeezerDriver(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/track/isrc:GBAYE9700164" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "tok" {
			t.Error("missing access token")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":             3135556,
			"title":          "Karma Police",
			"isrc":           "GBAYE9700164",
			"duration":       261,
			"track_position": 6,
			"release_date":   "1997-08-25",
			"artist":         map[string]any{"name": "Radiohead"},
			"album":          map[string]any{"title": "OK Computer", "cover_xl": "https://cdn.example/xl.jpg"},
			"contributors":   []map[string]any{{"name": "Radiohead"}, {"name": "Nigel Godrich"}},
		})
	})

	track, err := driver.GetTrackByISRC(context.Background(), "GBAYE9700164")
	if err != nil {
		t.Fatalf("get by isrc: %v", err)
	}

	if track.ServiceID != "3135556" || track.ServiceName != core.ServiceDeezer {
		t.Errorf("identity mismatch: %+v", track)
	}
	if track.PrimaryArtist != "Radiohead" || track.ReleaseYear != 1997 || track.TrackNumber != 6 {
		t.Errorf("metadata mismatch: %+v", track)
	}
	if len(track.AdditionalArtists) != 1 || track.AdditionalArtists[0] != "Nigel Godrich" {
		t.Errorf("contributors should exclude the primary artist: %v", track.AdditionalArtists)
	}

	assets, err := driver.TrackAssets(context.Background(), track)
	if err != nil {
		t.Fatalf("track assets: %v", err)
	}
	if assets.CoverImageURL != "https://cdn.example/xl.jpg" {
		t.Errorf("cover url = %q", assets.CoverImageURL)
	}
}

func TestDeezerDriver_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"No data", 800, core.ErrTrackNotFound},
		{"Invalid token", 300, core.ErrAuth},
		{"OAuth failure", 200, core.ErrAuth},
		{"Quota", 4, core.ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := newTestDeezerDriver(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"type": "Exception", "message": "nope", "code": tt.code},
				})
			})

			_, err := driver.GetTrack(context.Background(), "1")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestMapDeezerTrack_NilPayload(t *testing.T) {
	if _, err := mapDeezerTrack(nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("nil payload error = %v, want ErrInvalidArgument", err)
	}
	if _, err := mapDeezerPlaylist(nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("nil payload error = %v, want ErrInvalidArgument", err)
	}
}

func TestDeezerDriver_MissingCredentials(t *testing.T) {
	_, err := NewDeezerDriver(core.DeezerConfig{}, &core.Credentials{Values: map[string]string{}}, zap.NewNop())
	if !errors.Is(err, core.ErrAuth) {
		t.Errorf("error = %v, want ErrAuth", err)
	}
}
