package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

// Deezer API error codes, plus request sizing.
const (
	deezerErrOAuth    = 200
	deezerErrToken    = 300
	deezerErrNoData   = 800
	deezerSearchLimit = 25
	deezerInsertChunk = 50
)

// DeezerDriver wraps the Deezer public API. Authentication is an access_token
// query parameter on every call; Deezer resolves ISRCs natively via the
// track/isrc:{isrc} path.
type DeezerDriver struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *zap.Logger
}

var _ core.ProviderPort = (*DeezerDriver)(nil)

func NewDeezerDriver(cfg core.DeezerConfig, creds *core.Credentials, logger *zap.Logger) (*DeezerDriver, error) {
	if creds == nil || creds.Values["access_token"] == "" {
		return nil, fmt.Errorf("%w: no deezer token on file", core.ErrAuth)
	}

	return &DeezerDriver{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: creds.Values["access_token"],
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}, nil
}

type deezerArtist struct {
	Name string `json:"name"`
}

type deezerAlbum struct {
	Title   string `json:"title"`
	Cover   string `json:"cover,omitempty"`
	CoverXL string `json:"cover_xl,omitempty"`
}

type deezerTrack struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	ISRC          string         `json:"isrc,omitempty"`
	Duration      int            `json:"duration,omitempty"`
	TrackPosition int            `json:"track_position,omitempty"`
	ReleaseDate   string         `json:"release_date,omitempty"`
	Artist        *deezerArtist  `json:"artist,omitempty"`
	Album         *deezerAlbum   `json:"album,omitempty"`
	Contributors  []deezerArtist `json:"contributors,omitempty"`
}

type deezerPlaylist struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public,omitempty"`
	Creator     *struct {
		Name string `json:"name"`
	} `json:"creator,omitempty"`
}

type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerList[T any] struct {
	Data []T `json:"data"`
}

func (d *DeezerDriver) get(ctx context.Context, path string, params url.Values, dst any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", d.accessToken)

	reqURL := fmt.Sprintf("%s/%s?%s", d.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: deezer: %v", core.ErrProvider, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: deezer: %v", core.ErrProvider, err)
	}
	defer resp.Body.Close()

	// Deezer answers errors inside a 200 body; sniff for the error envelope
	// before decoding the target shape.
	var envelope struct {
		Error *deezerError `json:"error"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: deezer: %v", core.ErrProvider, err)
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return mapDeezerError(envelope.Error)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: deezer: %v", core.ErrProvider, err)
	}
	return nil
}

func (d *DeezerDriver) post(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	params.Set("access_token", d.accessToken)

	reqURL := fmt.Sprintf("%s/%s?%s", d.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: deezer: %v", core.ErrProvider, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: deezer: %v", core.ErrProvider, err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: deezer: %v", core.ErrProvider, err)
	}
	var envelope struct {
		Error *deezerError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return nil, mapDeezerError(envelope.Error)
	}
	return raw, nil
}

func mapDeezerError(apiErr *deezerError) error {
	switch apiErr.Code {
	case deezerErrOAuth, deezerErrToken:
		return fmt.Errorf("%w: deezer: %s", core.ErrAuth, apiErr.Message)
	case deezerErrNoData:
		return fmt.Errorf("%w: deezer: %s", core.ErrTrackNotFound, apiErr.Message)
	}
	return fmt.Errorf("%w: deezer %s (%d): %s", core.ErrProvider, apiErr.Type, apiErr.Code, apiErr.Message)
}

func (d *DeezerDriver) ServiceName() core.ServiceName { return core.ServiceDeezer }

func (d *DeezerDriver) SupportsDirectISRCQuerying() bool { return true }

func (d *DeezerDriver) SupportsMusicBrainzIDQuerying() bool { return false }

func (d *DeezerDriver) GetUserPlaylists(ctx context.Context, limit int) ([]core.Playlist, error) {
	var list deezerList[deezerPlaylist]
	if err := d.get(ctx, "user/me/playlists", nil, &list); err != nil {
		return nil, err
	}

	var playlists []core.Playlist
	for i := range list.Data {
		playlist, err := mapDeezerPlaylist(&list.Data[i])
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
		if limit > 0 && len(playlists) >= limit {
			break
		}
	}
	return playlists, nil
}

func (d *DeezerDriver) GetPlaylist(ctx context.Context, playlistID string) (core.Playlist, error) {
	var playlist deezerPlaylist
	if err := d.get(ctx, "playlist/"+url.PathEscape(playlistID), nil, &playlist); err != nil {
		return core.Playlist{}, remapNotFound(err, core.ErrPlaylistNotFound)
	}
	if playlist.ID == 0 {
		return core.Playlist{}, fmt.Errorf("%w: deezer playlist %s", core.ErrPlaylistNotFound, playlistID)
	}
	return mapDeezerPlaylist(&playlist)
}

func (d *DeezerDriver) GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]core.Track, error) {
	var tracks []core.Track
	index := 0

	for {
		params := url.Values{"index": {strconv.Itoa(index)}}
		var page struct {
			Data []deezerTrack `json:"data"`
			Next string        `json:"next,omitempty"`
		}
		if err := d.get(ctx, fmt.Sprintf("playlist/%s/tracks", url.PathEscape(playlistID)), params, &page); err != nil {
			return nil, remapNotFound(err, core.ErrPlaylistNotFound)
		}

		for i := range page.Data {
			track, err := mapDeezerTrack(&page.Data[i])
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)
			if limit > 0 && len(tracks) >= limit {
				return tracks, nil
			}
		}

		if page.Next == "" || len(page.Data) == 0 {
			return tracks, nil
		}
		index += len(page.Data)
	}
}

func (d *DeezerDriver) CreatePlaylist(ctx context.Context, name string) (core.Playlist, error) {
	raw, err := d.post(ctx, "user/me/playlists", url.Values{"title": {name}})
	if err != nil {
		return core.Playlist{}, err
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == 0 {
		return core.Playlist{}, fmt.Errorf("%w: deezer did not report created playlist id", core.ErrProvider)
	}
	return d.GetPlaylist(ctx, strconv.FormatInt(created.ID, 10))
}

func (d *DeezerDriver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	for start := 0; start < len(trackIDs); start += deezerInsertChunk {
		end := min(start+deezerInsertChunk, len(trackIDs))

		params := url.Values{"songs": {strings.Join(trackIDs[start:end], ",")}}
		if _, err := d.post(ctx, fmt.Sprintf("playlist/%s/tracks", url.PathEscape(playlistID)), params); err != nil {
			return remapNotFound(err, core.ErrPlaylistNotFound)
		}
	}
	return nil
}

func (d *DeezerDriver) GetTrack(ctx context.Context, trackID string) (core.Track, error) {
	var track deezerTrack
	if err := d.get(ctx, "track/"+url.PathEscape(trackID), nil, &track); err != nil {
		return core.Track{}, err
	}
	if track.ID == 0 {
		return core.Track{}, fmt.Errorf("%w: deezer track %s", core.ErrTrackNotFound, trackID)
	}
	return mapDeezerTrack(&track)
}

func (d *DeezerDriver) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	if limit <= 0 {
		limit = deezerSearchLimit
	}

	var list deezerList[deezerTrack]
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}
	if err := d.get(ctx, "search/track", params, &list); err != nil {
		return nil, err
	}

	tracks := make([]core.Track, 0, len(list.Data))
	for i := range list.Data {
		track, err := mapDeezerTrack(&list.Data[i])
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (d *DeezerDriver) GetTrackByISRC(ctx context.Context, isrc string) (core.Track, error) {
	var track deezerTrack
	if err := d.get(ctx, "track/isrc:"+url.PathEscape(isrc), nil, &track); err != nil {
		return core.Track{}, err
	}
	if track.ID == 0 {
		return core.Track{}, fmt.Errorf("%w: no deezer track for isrc %s", core.ErrTrackNotFound, isrc)
	}
	return mapDeezerTrack(&track)
}

func (d *DeezerDriver) GetSavedTracks(ctx context.Context, limit int) ([]core.Track, error) {
	var list deezerList[deezerTrack]
	if err := d.get(ctx, "user/me/tracks", nil, &list); err != nil {
		return nil, err
	}

	var tracks []core.Track
	for i := range list.Data {
		track, err := mapDeezerTrack(&list.Data[i])
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
		if limit > 0 && len(tracks) >= limit {
			break
		}
	}
	return tracks, nil
}

func (d *DeezerDriver) GetRandomTrack(ctx context.Context) (*core.Track, error) {
	return nil, fmt.Errorf("%w: deezer exposes no random-track endpoint", core.ErrUnsupportedFeature)
}

func mapDeezerTrack(track *deezerTrack) (core.Track, error) {
	if track == nil {
		return core.Track{}, fmt.Errorf("%w: nil deezer track payload", core.ErrInvalidArgument)
	}

	var year int
	if len(track.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(track.ReleaseDate[:4])
	}

	var primary string
	if track.Artist != nil {
		primary = track.Artist.Name
	}
	var additional []string
	for _, contributor := range track.Contributors {
		if contributor.Name != primary {
			additional = append(additional, contributor.Name)
		}
	}

	var album string
	if track.Album != nil {
		album = track.Album.Title
	}

	raw, err := json.Marshal(track)
	if err != nil {
		return core.Track{}, fmt.Errorf("encode deezer payload: %w", err)
	}

	return core.Track{
		Title:             track.Title,
		AlbumName:         album,
		PrimaryArtist:     primary,
		AdditionalArtists: additional,
		DurationSeconds:   track.Duration,
		TrackNumber:       track.TrackPosition,
		ReleaseYear:       year,
		ISRC:              track.ISRC,
		ServiceID:         strconv.FormatInt(track.ID, 10),
		ServiceName:       core.ServiceDeezer,
		ServiceData:       raw,
	}, nil
}

func mapDeezerPlaylist(playlist *deezerPlaylist) (core.Playlist, error) {
	if playlist == nil {
		return core.Playlist{}, fmt.Errorf("%w: nil deezer playlist payload", core.ErrInvalidArgument)
	}

	var author string
	if playlist.Creator != nil {
		author = playlist.Creator.Name
	}

	raw, err := json.Marshal(playlist)
	if err != nil {
		return core.Playlist{}, fmt.Errorf("encode deezer payload: %w", err)
	}

	return core.Playlist{
		Name:        playlist.Title,
		Description: playlist.Description,
		IsPublic:    playlist.Public,
		AuthorName:  author,
		ServiceID:   strconv.FormatInt(playlist.ID, 10),
		ServiceName: core.ServiceDeezer,
		ServiceData: raw,
	}, nil
}
