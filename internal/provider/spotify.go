package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"tunesync/internal/core"
)

const (
	spotifyPageSize    = 100
	spotifyAddChunk    = 100
	spotifySearchLimit = 50
)

// SpotifyDriver wraps the Spotify Web API behind the provider port.
type SpotifyDriver struct {
	client *spotify.Client
	userID string
	logger *zap.Logger
}

var _ core.ProviderPort = (*SpotifyDriver)(nil)

// NewSpotifyDriver builds an authenticated driver for one user. The stored
// OAuth token is refreshed lazily here when stale; a failed refresh deletes
// the stored credentials (forcing a re-link) and surfaces ErrAuth.
func NewSpotifyDriver(ctx context.Context, cfg core.SpotifyConfig, creds *core.Credentials, store core.CredentialStore, logger *zap.Logger) (*SpotifyDriver, error) {
	token, err := tokenFromCredentials(creds)
	if err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	fresh, err := oauthCfg.TokenSource(ctx, token).Token()
	if err != nil {
		logger.Warn("Spotify token refresh failed, deleting credentials",
			zap.Int64("user_id", creds.UserID),
			zap.Error(err))
		if delErr := store.Delete(ctx, creds.UserID, core.ServiceSpotify); delErr != nil {
			logger.Error("Failed to delete stale credentials", zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: spotify token refresh: %v", core.ErrAuth, err)
	}
	if fresh.AccessToken != token.AccessToken {
		creds.Values["access_token"] = fresh.AccessToken
		creds.Values["refresh_token"] = fresh.RefreshToken
		creds.Values["expires_at"] = strconv.FormatInt(fresh.Expiry.Unix(), 10)
		if err := store.Set(ctx, creds); err != nil {
			logger.Warn("Failed to persist refreshed spotify token", zap.Error(err))
		}
	}

	client := spotify.New(oauth2.NewClient(ctx, oauth2.StaticTokenSource(fresh)))
	me, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, mapSpotifyError(err, core.ErrProvider)
	}

	return &SpotifyDriver{
		client: client,
		userID: me.ID,
		logger: logger,
	}, nil
}

func tokenFromCredentials(creds *core.Credentials) (*oauth2.Token, error) {
	if creds == nil || creds.Values["access_token"] == "" {
		return nil, fmt.Errorf("%w: no spotify token on file", core.ErrAuth)
	}

	token := &oauth2.Token{
		AccessToken:  creds.Values["access_token"],
		RefreshToken: creds.Values["refresh_token"],
		TokenType:    "Bearer",
	}
	if raw := creds.Values["expires_at"]; raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed token expiry %q", core.ErrAuth, raw)
		}
		token.Expiry = time.Unix(unix, 0)
	}
	return token, nil
}

func (d *SpotifyDriver) ServiceName() core.ServiceName { return core.ServiceSpotify }

func (d *SpotifyDriver) SupportsDirectISRCQuerying() bool { return true }

func (d *SpotifyDriver) SupportsMusicBrainzIDQuerying() bool { return false }

func (d *SpotifyDriver) GetUserPlaylists(ctx context.Context, limit int) ([]core.Playlist, error) {
	var playlists []core.Playlist
	offset := 0

	for {
		page, err := d.client.CurrentUsersPlaylists(ctx,
			spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, mapSpotifyError(err, core.ErrProvider)
		}

		for i := range page.Playlists {
			playlist, err := mapSpotifyPlaylist(&page.Playlists[i])
			if err != nil {
				return nil, err
			}
			playlists = append(playlists, playlist)
			if limit > 0 && len(playlists) >= limit {
				return playlists, nil
			}
		}

		if len(page.Playlists) < spotifyPageSize {
			return playlists, nil
		}
		offset += spotifyPageSize
	}
}

func (d *SpotifyDriver) GetPlaylist(ctx context.Context, playlistID string) (core.Playlist, error) {
	playlist, err := d.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return core.Playlist{}, mapSpotifyError(err, core.ErrPlaylistNotFound)
	}
	return mapSpotifyPlaylist(&playlist.SimplePlaylist)
}

func (d *SpotifyDriver) GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0

	for {
		items, err := d.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, mapSpotifyError(err, core.ErrPlaylistNotFound)
		}

		for i := range items.Items {
			// Episodes and removed items come back with a nil track.
			full := items.Items[i].Track.Track
			if full == nil {
				continue
			}
			track, err := mapSpotifyTrack(full)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)
			if limit > 0 && len(tracks) >= limit {
				return tracks, nil
			}
		}

		if len(items.Items) < spotifyPageSize {
			return tracks, nil
		}
		offset += spotifyPageSize
	}
}

func (d *SpotifyDriver) CreatePlaylist(ctx context.Context, name string) (core.Playlist, error) {
	playlist, err := d.client.CreatePlaylistForUser(ctx, d.userID, name, "", false, false)
	if err != nil {
		return core.Playlist{}, mapSpotifyError(err, core.ErrProvider)
	}
	return mapSpotifyPlaylist(&playlist.SimplePlaylist)
}

func (d *SpotifyDriver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	for start := 0; start < len(trackIDs); start += spotifyAddChunk {
		end := min(start+spotifyAddChunk, len(trackIDs))

		ids := make([]spotify.ID, 0, end-start)
		for _, id := range trackIDs[start:end] {
			ids = append(ids, spotify.ID(id))
		}
		if _, err := d.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
			return mapSpotifyError(err, core.ErrPlaylistNotFound)
		}
	}
	return nil
}

func (d *SpotifyDriver) GetTrack(ctx context.Context, trackID string) (core.Track, error) {
	track, err := d.client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return core.Track{}, mapSpotifyError(err, core.ErrTrackNotFound)
	}
	return mapSpotifyTrack(track)
}

func (d *SpotifyDriver) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	if limit <= 0 || limit > spotifySearchLimit {
		limit = spotifySearchLimit
	}

	results, err := d.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, mapSpotifyError(err, core.ErrProvider)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	tracks := make([]core.Track, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		track, err := mapSpotifyTrack(&results.Tracks.Tracks[i])
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (d *SpotifyDriver) GetTrackByISRC(ctx context.Context, isrc string) (core.Track, error) {
	results, err := d.client.Search(ctx, "isrc:"+isrc, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return core.Track{}, mapSpotifyError(err, core.ErrTrackNotFound)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return core.Track{}, fmt.Errorf("%w: no spotify track for isrc %s", core.ErrTrackNotFound, isrc)
	}
	return mapSpotifyTrack(&results.Tracks.Tracks[0])
}

func (d *SpotifyDriver) GetSavedTracks(ctx context.Context, limit int) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0

	for {
		page, err := d.client.CurrentUsersTracks(ctx,
			spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, mapSpotifyError(err, core.ErrProvider)
		}

		for i := range page.Tracks {
			track, err := mapSpotifyTrack(&page.Tracks[i].FullTrack)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)
			if limit > 0 && len(tracks) >= limit {
				return tracks, nil
			}
		}

		if len(page.Tracks) < spotifyPageSize {
			return tracks, nil
		}
		offset += spotifyPageSize
	}
}

func (d *SpotifyDriver) GetRandomTrack(ctx context.Context) (*core.Track, error) {
	return nil, fmt.Errorf("%w: spotify exposes no random-track endpoint", core.ErrUnsupportedFeature)
}

func mapSpotifyTrack(track *spotify.FullTrack) (core.Track, error) {
	if track == nil {
		return core.Track{}, fmt.Errorf("%w: nil spotify track payload", core.ErrInvalidArgument)
	}

	var primary string
	var additional []string
	for i, artist := range track.Artists {
		if i == 0 {
			primary = artist.Name
			continue
		}
		additional = append(additional, artist.Name)
	}

	var year int
	if len(track.Album.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(track.Album.ReleaseDate[:4])
	}

	raw, err := json.Marshal(track)
	if err != nil {
		return core.Track{}, fmt.Errorf("encode spotify payload: %w", err)
	}

	return core.Track{
		Title:             track.Name,
		AlbumName:         track.Album.Name,
		PrimaryArtist:     primary,
		AdditionalArtists: additional,
		DurationSeconds:   int(track.TimeDuration() / time.Second),
		TrackNumber:       int(track.TrackNumber),
		ReleaseYear:       year,
		ISRC:              track.ExternalIDs["isrc"],
		ServiceID:         string(track.ID),
		ServiceName:       core.ServiceSpotify,
		ServiceData:       raw,
	}, nil
}

func mapSpotifyPlaylist(playlist *spotify.SimplePlaylist) (core.Playlist, error) {
	if playlist == nil {
		return core.Playlist{}, fmt.Errorf("%w: nil spotify playlist payload", core.ErrInvalidArgument)
	}

	raw, err := json.Marshal(playlist)
	if err != nil {
		return core.Playlist{}, fmt.Errorf("encode spotify payload: %w", err)
	}

	return core.Playlist{
		Name:        playlist.Name,
		Description: playlist.Description,
		IsPublic:    playlist.IsPublic,
		AuthorName:  playlist.Owner.DisplayName,
		ServiceID:   string(playlist.ID),
		ServiceName: core.ServiceSpotify,
		ServiceData: raw,
	}, nil
}

func mapSpotifyError(err error, notFound error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", notFound, apiErr.Message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", core.ErrAuth, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: spotify: %v", core.ErrProvider, err)
}
