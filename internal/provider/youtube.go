package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"tunesync/internal/core"
)

const (
	youtubeAPIBase       = "https://www.googleapis.com/youtube/v3"
	youtubeTokenURL      = "https://oauth2.googleapis.com/token"
	youtubePageSize      = 50
	youtubeMusicCategory = "10"
)

var isoDurationRegex = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// YouTubeDriver wraps the YouTube Data API v3. Music videos carry no ISRC and
// no MusicBrainz index, so both capability flags are off and matching falls
// back to text search.
type YouTubeDriver struct {
	httpClient *http.Client
	logger     *zap.Logger
}

var _ core.ProviderPort = (*YouTubeDriver)(nil)

// NewYouTubeDriver refreshes the stored OAuth token lazily, mirroring the
// spotify construction path: refresh failure deletes the credentials and
// surfaces ErrAuth.
func NewYouTubeDriver(ctx context.Context, cfg core.YouTubeConfig, creds *core.Credentials, store core.CredentialStore, logger *zap.Logger) (*YouTubeDriver, error) {
	token, err := tokenFromCredentials(creds)
	if err != nil {
		return nil, fmt.Errorf("%w: no youtube token on file", core.ErrAuth)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: youtubeTokenURL},
	}

	fresh, err := oauthCfg.TokenSource(ctx, token).Token()
	if err != nil {
		logger.Warn("YouTube token refresh failed, deleting credentials",
			zap.Int64("user_id", creds.UserID),
			zap.Error(err))
		if delErr := store.Delete(ctx, creds.UserID, core.ServiceYouTube); delErr != nil {
			logger.Error("Failed to delete stale credentials", zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: youtube token refresh: %v", core.ErrAuth, err)
	}
	if fresh.AccessToken != token.AccessToken {
		creds.Values["access_token"] = fresh.AccessToken
		creds.Values["refresh_token"] = fresh.RefreshToken
		creds.Values["expires_at"] = strconv.FormatInt(fresh.Expiry.Unix(), 10)
		if err := store.Set(ctx, creds); err != nil {
			logger.Warn("Failed to persist refreshed youtube token", zap.Error(err))
		}
	}

	return &YouTubeDriver{
		httpClient: oauth2.NewClient(ctx, oauth2.StaticTokenSource(fresh)),
		logger:     logger,
	}, nil
}

type youtubeVideo struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
		PublishedAt  string `json:"publishedAt"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type youtubePlaylist struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

func (d *YouTubeDriver) ServiceName() core.ServiceName { return core.ServiceYouTube }

func (d *YouTubeDriver) SupportsDirectISRCQuerying() bool { return false }

func (d *YouTubeDriver) SupportsMusicBrainzIDQuerying() bool { return false }

func (d *YouTubeDriver) get(ctx context.Context, resource string, params url.Values, dst any) error {
	reqURL := fmt.Sprintf("%s/%s?%s", youtubeAPIBase, resource, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: youtube: %v", core.ErrProvider, err)
	}
	return d.do(req, dst)
}

func (d *YouTubeDriver) post(ctx context.Context, resource string, params url.Values, body, dst any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: youtube: %v", core.ErrProvider, err)
	}

	reqURL := fmt.Sprintf("%s/%s?%s", youtubeAPIBase, resource, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: youtube: %v", core.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return d.do(req, dst)
}

func (d *YouTubeDriver) do(req *http.Request, dst any) error {
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: youtube: %v", core.ErrProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: youtube rejected the token", core.ErrAuth)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: youtube resource missing", core.ErrTrackNotFound)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: youtube returned status %d", core.ErrProvider, resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: youtube: %v", core.ErrProvider, err)
	}
	return nil
}

func (d *YouTubeDriver) GetUserPlaylists(ctx context.Context, limit int) ([]core.Playlist, error) {
	var playlists []core.Playlist
	pageToken := ""

	for {
		params := url.Values{
			"part":       {"snippet,status"},
			"mine":       {"true"},
			"maxResults": {strconv.Itoa(youtubePageSize)},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page struct {
			Items         []youtubePlaylist `json:"items"`
			NextPageToken string            `json:"nextPageToken"`
		}
		if err := d.get(ctx, "playlists", params, &page); err != nil {
			return nil, err
		}

		for i := range page.Items {
			playlist, err := mapYouTubePlaylist(&page.Items[i])
			if err != nil {
				return nil, err
			}
			playlists = append(playlists, playlist)
			if limit > 0 && len(playlists) >= limit {
				return playlists, nil
			}
		}

		if page.NextPageToken == "" {
			return playlists, nil
		}
		pageToken = page.NextPageToken
	}
}

func (d *YouTubeDriver) GetPlaylist(ctx context.Context, playlistID string) (core.Playlist, error) {
	params := url.Values{
		"part": {"snippet,status"},
		"id":   {playlistID},
	}

	var page struct {
		Items []youtubePlaylist `json:"items"`
	}
	if err := d.get(ctx, "playlists", params, &page); err != nil {
		return core.Playlist{}, remapNotFound(err, core.ErrPlaylistNotFound)
	}
	if len(page.Items) == 0 {
		return core.Playlist{}, fmt.Errorf("%w: youtube playlist %s", core.ErrPlaylistNotFound, playlistID)
	}
	return mapYouTubePlaylist(&page.Items[0])
}

func (d *YouTubeDriver) GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]core.Track, error) {
	var videoIDs []string
	pageToken := ""

	for {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {playlistID},
			"maxResults": {strconv.Itoa(youtubePageSize)},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page struct {
			Items []struct {
				ContentDetails struct {
					VideoID string `json:"videoId"`
				} `json:"contentDetails"`
			} `json:"items"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := d.get(ctx, "playlistItems", params, &page); err != nil {
			return nil, remapNotFound(err, core.ErrPlaylistNotFound)
		}

		for _, item := range page.Items {
			if item.ContentDetails.VideoID != "" {
				videoIDs = append(videoIDs, item.ContentDetails.VideoID)
			}
		}
		if page.NextPageToken == "" || (limit > 0 && len(videoIDs) >= limit) {
			break
		}
		pageToken = page.NextPageToken
	}

	if limit > 0 && len(videoIDs) > limit {
		videoIDs = videoIDs[:limit]
	}
	return d.lookupVideos(ctx, videoIDs)
}

// lookupVideos hydrates video ids into tracks, batched at the API page size.
func (d *YouTubeDriver) lookupVideos(ctx context.Context, videoIDs []string) ([]core.Track, error) {
	var tracks []core.Track

	for start := 0; start < len(videoIDs); start += youtubePageSize {
		end := min(start+youtubePageSize, len(videoIDs))

		params := url.Values{
			"part": {"snippet,contentDetails"},
			"id":   {strings.Join(videoIDs[start:end], ",")},
		}
		var page struct {
			Items []youtubeVideo `json:"items"`
		}
		if err := d.get(ctx, "videos", params, &page); err != nil {
			return nil, err
		}

		for i := range page.Items {
			track, err := mapYouTubeVideo(&page.Items[i])
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

func (d *YouTubeDriver) CreatePlaylist(ctx context.Context, name string) (core.Playlist, error) {
	body := map[string]any{
		"snippet": map[string]any{"title": name},
		"status":  map[string]any{"privacyStatus": "private"},
	}

	var created youtubePlaylist
	if err := d.post(ctx, "playlists", url.Values{"part": {"snippet,status"}}, body, &created); err != nil {
		return core.Playlist{}, err
	}
	return mapYouTubePlaylist(&created)
}

func (d *YouTubeDriver) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	// The playlistItems resource only accepts one insertion per call.
	for _, videoID := range trackIDs {
		body := map[string]any{
			"snippet": map[string]any{
				"playlistId": playlistID,
				"resourceId": map[string]any{
					"kind":    "youtube#video",
					"videoId": videoID,
				},
			},
		}
		if err := d.post(ctx, "playlistItems", url.Values{"part": {"snippet"}}, body, nil); err != nil {
			return remapNotFound(err, core.ErrPlaylistNotFound)
		}
	}
	return nil
}

func (d *YouTubeDriver) GetTrack(ctx context.Context, trackID string) (core.Track, error) {
	tracks, err := d.lookupVideos(ctx, []string{trackID})
	if err != nil {
		return core.Track{}, err
	}
	if len(tracks) == 0 {
		return core.Track{}, fmt.Errorf("%w: youtube video %s", core.ErrTrackNotFound, trackID)
	}
	return tracks[0], nil
}

func (d *YouTubeDriver) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	if limit <= 0 || limit > youtubePageSize {
		limit = youtubePageSize
	}

	params := url.Values{
		"part":            {"snippet"},
		"type":            {"video"},
		"videoCategoryId": {youtubeMusicCategory},
		"q":               {query},
		"maxResults":      {strconv.Itoa(limit)},
	}
	var page struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if err := d.get(ctx, "search", params, &page); err != nil {
		return nil, err
	}

	videoIDs := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		if item.ID.VideoID != "" {
			videoIDs = append(videoIDs, item.ID.VideoID)
		}
	}
	// Search results carry no duration; hydrate through the videos resource
	// so similarity scoring has something to work with.
	return d.lookupVideos(ctx, videoIDs)
}

func (d *YouTubeDriver) GetTrackByISRC(ctx context.Context, isrc string) (core.Track, error) {
	return core.Track{}, fmt.Errorf("%w: youtube has no isrc index", core.ErrUnsupportedFeature)
}

func (d *YouTubeDriver) GetSavedTracks(ctx context.Context, limit int) ([]core.Track, error) {
	if limit <= 0 || limit > youtubePageSize {
		limit = youtubePageSize
	}

	params := url.Values{
		"part":       {"snippet,contentDetails"},
		"myRating":   {"like"},
		"maxResults": {strconv.Itoa(limit)},
	}
	var page struct {
		Items []youtubeVideo `json:"items"`
	}
	if err := d.get(ctx, "videos", params, &page); err != nil {
		return nil, err
	}

	tracks := make([]core.Track, 0, len(page.Items))
	for i := range page.Items {
		track, err := mapYouTubeVideo(&page.Items[i])
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (d *YouTubeDriver) GetRandomTrack(ctx context.Context) (*core.Track, error) {
	return nil, fmt.Errorf("%w: youtube exposes no random-video endpoint", core.ErrUnsupportedFeature)
}

func mapYouTubeVideo(video *youtubeVideo) (core.Track, error) {
	if video == nil {
		return core.Track{}, fmt.Errorf("%w: nil youtube video payload", core.ErrInvalidArgument)
	}

	var year int
	if len(video.Snippet.PublishedAt) >= 4 {
		year, _ = strconv.Atoi(video.Snippet.PublishedAt[:4])
	}

	// Auto-generated music channels are named "<artist> - Topic".
	artist := strings.TrimSuffix(video.Snippet.ChannelTitle, " - Topic")

	raw, err := json.Marshal(video)
	if err != nil {
		return core.Track{}, fmt.Errorf("encode youtube payload: %w", err)
	}

	return core.Track{
		Title:           video.Snippet.Title,
		PrimaryArtist:   artist,
		DurationSeconds: parseISODuration(video.ContentDetails.Duration),
		ReleaseYear:     year,
		ServiceID:       video.ID,
		ServiceName:     core.ServiceYouTube,
		ServiceData:     raw,
	}, nil
}

func mapYouTubePlaylist(playlist *youtubePlaylist) (core.Playlist, error) {
	if playlist == nil {
		return core.Playlist{}, fmt.Errorf("%w: nil youtube playlist payload", core.ErrInvalidArgument)
	}

	raw, err := json.Marshal(playlist)
	if err != nil {
		return core.Playlist{}, fmt.Errorf("encode youtube payload: %w", err)
	}

	return core.Playlist{
		Name:        playlist.Snippet.Title,
		Description: playlist.Snippet.Description,
		IsPublic:    playlist.Status.PrivacyStatus == "public",
		AuthorName:  playlist.Snippet.ChannelTitle,
		ServiceID:   playlist.ID,
		ServiceName: core.ServiceYouTube,
		ServiceData: raw,
	}, nil
}

// parseISODuration converts an ISO-8601 duration like PT3M25S to seconds.
// Unparseable input yields 0, which similarity scoring treats as unknown.
func parseISODuration(iso string) int {
	matches := isoDurationRegex.FindStringSubmatch(iso)
	if matches == nil {
		return 0
	}

	seconds := 0
	for i, scale := range []int{3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(matches[i+1])
		if err != nil {
			return 0
		}
		seconds += n * scale
	}
	return seconds
}
