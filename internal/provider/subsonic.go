package provider

import (
	"context"
	"crypto/md5" //nolint:gosec // The Subsonic token scheme mandates md5.
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

const (
	subsonicAPIVersion = "1.8.0"
	subsonicSaltLength = 16

	// Subsonic error codes, per the API specification.
	subsonicErrAuth     = 40
	subsonicErrNotFound = 70
)

// SubsonicDriver talks to any Subsonic-compatible REST server (Navidrome,
// Airsonic, gonic). Every call is authenticated with the salted-md5 token
// scheme: s is a fresh random salt, t = md5(password + salt).
type SubsonicDriver struct {
	baseURL    string
	clientName string
	username   string
	password   string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ core.ProviderPort = (*SubsonicDriver)(nil)

func NewSubsonicDriver(cfg core.SubsonicConfig, creds *core.Credentials, logger *zap.Logger) (*SubsonicDriver, error) {
	if creds == nil || creds.Values["username"] == "" || creds.Values["password"] == "" {
		return nil, fmt.Errorf("%w: no subsonic credentials on file", core.ErrAuth)
	}

	base := cfg.BaseURL
	if cfg.Port != 0 {
		base = fmt.Sprintf("%s:%d", base, cfg.Port)
	}

	return &SubsonicDriver{
		baseURL:    base,
		clientName: cfg.ClientName,
		username:   creds.Values["username"],
		password:   creds.Values["password"],
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Subsonic wire types. Only the fields the mapper consumes are declared.
type subsonicSong struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Album    string `json:"album,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Track    int    `json:"track,omitempty"`
	Year     int    `json:"year,omitempty"`
	CoverArt string `json:"coverArt,omitempty"`
}

type subsonicPlaylist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Comment   string         `json:"comment,omitempty"`
	Owner     string         `json:"owner,omitempty"`
	Public    bool           `json:"public,omitempty"`
	SongCount int            `json:"songCount,omitempty"`
	Entry     []subsonicSong `json:"entry,omitempty"`
}

type subsonicResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Playlist  *subsonicPlaylist `json:"playlist,omitempty"`
	Playlists *struct {
		Playlist []subsonicPlaylist `json:"playlist"`
	} `json:"playlists,omitempty"`
	Song          *subsonicSong `json:"song,omitempty"`
	SearchResult3 *struct {
		Song []subsonicSong `json:"song"`
	} `json:"searchResult3,omitempty"`
	RandomSongs *struct {
		Song []subsonicSong `json:"song"`
	} `json:"randomSongs,omitempty"`
	Starred2 *struct {
		Song []subsonicSong `json:"song"`
	} `json:"starred2,omitempty"`
}

type subsonicEnvelope struct {
	Response subsonicResponse `json:"subsonic-response"`
}

func (d *SubsonicDriver) ServiceName() core.ServiceName { return core.ServiceSubsonic }

func (d *SubsonicDriver) SupportsDirectISRCQuerying() bool { return false }

// Subsonic servers index MusicBrainz ids, so a bare mbid works as a search
// query against the local library.
func (d *SubsonicDriver) SupportsMusicBrainzIDQuerying() bool { return true }

// authParams builds the per-request token auth query values.
func (d *SubsonicDriver) authParams() url.Values {
	salt := randomSalt()
	sum := md5.Sum([]byte(d.password + salt)) //nolint:gosec // Mandated by the protocol.

	values := url.Values{}
	values.Set("u", d.username)
	values.Set("t", hex.EncodeToString(sum[:]))
	values.Set("s", salt)
	values.Set("v", subsonicAPIVersion)
	values.Set("c", d.clientName)
	values.Set("f", "json")
	return values
}

func randomSalt() string {
	buf := make([]byte, subsonicSaltLength/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic(fmt.Sprintf("subsonic salt: %v", err))
	}
	return hex.EncodeToString(buf)
}

func (d *SubsonicDriver) call(ctx context.Context, endpoint string, params url.Values) (*subsonicResponse, error) {
	values := d.authParams()
	for key, vals := range params {
		for _, v := range vals {
			values.Add(key, v)
		}
	}

	reqURL := fmt.Sprintf("%s/rest/%s?%s", d.baseURL, endpoint, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic: %v", core.ErrProvider, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic: %v", core.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: subsonic returned status %d", core.ErrProvider, resp.StatusCode)
	}

	var envelope subsonicEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: subsonic: %v", core.ErrProvider, err)
	}

	sub := envelope.Response
	if sub.Status != "ok" {
		if sub.Error != nil {
			switch sub.Error.Code {
			case subsonicErrAuth:
				return nil, fmt.Errorf("%w: subsonic: %s", core.ErrAuth, sub.Error.Message)
			case subsonicErrNotFound:
				return nil, fmt.Errorf("%w: subsonic: %s", core.ErrTrackNotFound, sub.Error.Message)
			}
			return nil, fmt.Errorf("%w: subsonic error %d: %s", core.ErrProvider, sub.Error.Code, sub.Error.Message)
		}
		return nil, fmt.Errorf("%w: subsonic request failed", core.ErrProvider)
	}
	return &sub, nil
}

func (d *SubsonicDriver) GetUserPlaylists(ctx context.Context, limit int) ([]core.Playlist, error) {
	sub, err := d.call(ctx, "getPlaylists", nil)
	if err != nil {
		return nil, err
	}
	if sub.Playlists == nil {
		return nil, nil
	}

	var playlists []core.Playlist
	for i := range sub.Playlists.Playlist {
		playlist, err := mapSubsonicPlaylist(&sub.Playlists.Playlist[i])
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

func (d *SubsonicDriver) GetPlaylist(ctx context.Context, playlistID string) (core.Playlist, error) {
	sub, err := d.call(ctx, "getPlaylist", url.Values{"id": {playlistID}})
	if err != nil {
		return core.Playlist{}, remapNotFound(err, core.ErrPlaylistNotFound)
	}
	return mapSubsonicPlaylist(sub.Playlist)
}

func (d *SubsonicDriver) GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]core.Track, error) {
	sub, err := d.call(ctx, "getPlaylist", url.Values{"id": {playlistID}})
	if err != nil {
		return nil, remapNotFound(err, core.ErrPlaylistNotFound)
	}
	if sub.Playlist == nil {
		return nil, fmt.Errorf("%w: subsonic playlist %s", core.ErrPlaylistNotFound, playlistID)
	}

	var tracks []core.Track
	for i := range sub.Playlist.Entry {
		track, err := mapSubsonicSong(&sub.Playlist.Entry[i])
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

func (d *SubsonicDriver) CreatePlaylist(ctx context.Context, name string) (core.Playlist, error) {
	sub, err := d.call(ctx, "createPlaylist", url.Values{"name": {name}})
	if err != nil {
		return core.Playlist{}, err
	}
	if sub.Playlist != nil {
		return mapSubsonicPlaylist(sub.Playlist)
	}

	// API 1.8 servers return an empty envelope from createPlaylist; resolve
	// the new playlist by name from the full listing.
	playlists, err := d.GetUserPlaylists(ctx, 0)
	if err != nil {
		return core.Playlist{}, err
	}
	for i := len(playlists) - 1; i >= 0; i-- {
		if playlists[i].Name == name {
			return playlists[i], nil
		}
	}
	return core.Playlist{}, fmt.Errorf("%w: subsonic did not report created playlist %q", core.ErrProvider, name)
}

func (d *SubsonicDriver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	params := url.Values{"playlistId": {playlistID}}
	for _, id := range trackIDs {
		params.Add("songIdToAdd", id)
	}

	_, err := d.call(ctx, "updatePlaylist", params)
	return remapNotFound(err, core.ErrPlaylistNotFound)
}

func (d *SubsonicDriver) GetTrack(ctx context.Context, trackID string) (core.Track, error) {
	sub, err := d.call(ctx, "getSong", url.Values{"id": {trackID}})
	if err != nil {
		return core.Track{}, err
	}
	return mapSubsonicSong(sub.Song)
}

func (d *SubsonicDriver) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	if limit <= 0 {
		limit = 20
	}

	sub, err := d.call(ctx, "search3", url.Values{
		"query":       {query},
		"songCount":   {strconv.Itoa(limit)},
		"albumCount":  {"0"},
		"artistCount": {"0"},
	})
	if err != nil {
		return nil, err
	}
	if sub.SearchResult3 == nil {
		return nil, nil
	}

	tracks := make([]core.Track, 0, len(sub.SearchResult3.Song))
	for i := range sub.SearchResult3.Song {
		track, err := mapSubsonicSong(&sub.SearchResult3.Song[i])
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (d *SubsonicDriver) GetTrackByISRC(ctx context.Context, isrc string) (core.Track, error) {
	return core.Track{}, fmt.Errorf("%w: subsonic has no isrc index", core.ErrUnsupportedFeature)
}

func (d *SubsonicDriver) GetSavedTracks(ctx context.Context, limit int) ([]core.Track, error) {
	sub, err := d.call(ctx, "getStarred2", nil)
	if err != nil {
		return nil, err
	}
	if sub.Starred2 == nil {
		return nil, nil
	}

	var tracks []core.Track
	for i := range sub.Starred2.Song {
		track, err := mapSubsonicSong(&sub.Starred2.Song[i])
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

func (d *SubsonicDriver) GetRandomTrack(ctx context.Context) (*core.Track, error) {
	sub, err := d.call(ctx, "getRandomSongs", url.Values{"size": {"1"}})
	if err != nil {
		return nil, err
	}
	if sub.RandomSongs == nil || len(sub.RandomSongs.Song) == 0 {
		return nil, nil
	}

	track, err := mapSubsonicSong(&sub.RandomSongs.Song[0])
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// CoverArtURL computes a signed getCoverArt URL for the track. The token auth
// parameters are embedded because the image is fetched by the user's browser,
// not by this process.
func (d *SubsonicDriver) CoverArtURL(track core.Track) (string, error) {
	if track.ServiceName != core.ServiceSubsonic {
		return "", fmt.Errorf("%w: not a subsonic track", core.ErrInvalidArgument)
	}

	var song subsonicSong
	if len(track.ServiceData) > 0 {
		if err := json.Unmarshal(track.ServiceData, &song); err != nil {
			return "", fmt.Errorf("%w: undecodable subsonic payload", core.ErrInvalidArgument)
		}
	}
	if song.CoverArt == "" {
		return "", nil
	}

	values := d.authParams()
	values.Set("id", song.CoverArt)
	return fmt.Sprintf("%s/rest/getCoverArt?%s", d.baseURL, values.Encode()), nil
}

func mapSubsonicSong(song *subsonicSong) (core.Track, error) {
	if song == nil {
		return core.Track{}, fmt.Errorf("%w: nil subsonic song payload", core.ErrInvalidArgument)
	}

	raw, err := json.Marshal(song)
	if err != nil {
		return core.Track{}, fmt.Errorf("encode subsonic payload: %w", err)
	}

	return core.Track{
		Title:           song.Title,
		AlbumName:       song.Album,
		PrimaryArtist:   song.Artist,
		DurationSeconds: song.Duration,
		TrackNumber:     song.Track,
		ReleaseYear:     song.Year,
		ServiceID:       song.ID,
		ServiceName:     core.ServiceSubsonic,
		ServiceData:     raw,
	}, nil
}

func mapSubsonicPlaylist(playlist *subsonicPlaylist) (core.Playlist, error) {
	if playlist == nil {
		return core.Playlist{}, fmt.Errorf("%w: nil subsonic playlist payload", core.ErrInvalidArgument)
	}

	// The entry list is membership, not metadata; it never rides along.
	slim := *playlist
	slim.Entry = nil
	raw, err := json.Marshal(&slim)
	if err != nil {
		return core.Playlist{}, fmt.Errorf("encode subsonic payload: %w", err)
	}

	return core.Playlist{
		Name:        playlist.Name,
		Description: playlist.Comment,
		IsPublic:    playlist.Public,
		AuthorName:  playlist.Owner,
		ServiceID:   playlist.ID,
		ServiceName: core.ServiceSubsonic,
		ServiceData: raw,
	}, nil
}

// remapNotFound rewrites a TrackNotFound kind to the given sentinel; subsonic
// reports every missing entity with the same error code.
func remapNotFound(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrTrackNotFound) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
