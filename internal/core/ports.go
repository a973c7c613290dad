package core

import (
	"context"
	"time"
)

// ProviderPort is the uniform interface the matcher and the task runtime
// consume. One implementation exists per provider; each wraps the vendor SDK
// or REST API and translates payloads into the Track/Playlist vocabulary.
// All operations fail with the closed error kinds in errors.go.
type ProviderPort interface {
	// ServiceName identifies the provider this port talks to.
	ServiceName() ServiceName

	// SupportsDirectISRCQuerying reports whether GetTrackByISRC works natively.
	SupportsDirectISRCQuerying() bool
	// SupportsMusicBrainzIDQuerying reports whether SearchTracks understands a
	// bare MusicBrainz id as query.
	SupportsMusicBrainzIDQuerying() bool

	// GetUserPlaylists lists the user's playlists, bounded by limit.
	// A limit of 0 means "all reasonable".
	GetUserPlaylists(ctx context.Context, limit int) ([]Playlist, error)
	// GetPlaylist resolves a playlist by its provider id.
	GetPlaylist(ctx context.Context, playlistID string) (Playlist, error)
	// GetPlaylistTracks returns the playlist's tracks in provider order.
	// A limit of 0 means "all"; providers without native support translate it.
	GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]Track, error)
	// CreatePlaylist creates an empty playlist owned by the user.
	CreatePlaylist(ctx context.Context, name string) (Playlist, error)
	// AddTracksToPlaylist appends the given provider track ids in order.
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
	// GetTrack resolves a track by its provider id.
	GetTrack(ctx context.Context, trackID string) (Track, error)
	// SearchTracks returns candidates best-first per the vendor's ranking.
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	// GetTrackByISRC resolves a track by ISRC where the provider supports it.
	GetTrackByISRC(ctx context.Context, isrc string) (Track, error)
	// GetSavedTracks lists the user's "liked music", where supported.
	GetSavedTracks(ctx context.Context, limit int) ([]Track, error)
	// GetRandomTrack picks an arbitrary track from the catalog, where supported.
	GetRandomTrack(ctx context.Context) (*Track, error)
}

// AssetResolver computes display assets (cover art) for a track. Some
// providers derive the URL from the raw payload; subsonic has to compute a
// signed URL per request.
type AssetResolver interface {
	TrackAssets(ctx context.Context, track Track) (TrackAssets, error)
}

// TrackAssets holds user-facing asset links attached to task progress.
type TrackAssets struct {
	CoverImageURL string `json:"cover_image,omitempty"`
}

// User is the minimal identity the core needs; accounts, password hashing and
// session issuance live outside it.
type User struct {
	ID       int64
	Username string
}

// UserStore resolves users for task records.
type UserStore interface {
	Get(ctx context.Context, id int64) (*User, error)
}

// Credentials is an opaque per-user, per-provider credential blob. Its
// lifetime equals the user's provider link.
type Credentials struct {
	UserID    int64
	Service   ServiceName
	Values    map[string]string
	UpdatedAt time.Time
}

// CredentialStore is the narrow port drivers fetch credentials through at
// construction time. Deleting on failed OAuth refresh is the only mutation
// the core performs.
type CredentialStore interface {
	Get(ctx context.Context, userID int64, service ServiceName) (*Credentials, error)
	Set(ctx context.Context, creds *Credentials) error
	Delete(ctx context.Context, userID int64, service ServiceName) error
}

// MusicBrainzResolver is the external lookup the matcher consults when a
// reference track has no MusicBrainz id of its own. Failures are swallowed
// to an empty id.
type MusicBrainzResolver interface {
	IDFromISRC(ctx context.Context, isrc string) string
	IDFromQuery(ctx context.Context, artist, title string, year int, isrc string) string
}
