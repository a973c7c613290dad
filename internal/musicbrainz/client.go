// Package musicbrainz is the external id-resolution collaborator the matcher
// consults. Lookup failures of any kind are swallowed to an empty id; the
// matcher treats that as "no MusicBrainz opinion" and moves on.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tunesync/internal/core"
)

const cacheSize = 2048

type recording struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Score int    `json:"score,omitempty"`
}

type recordingList struct {
	Recordings []recording `json:"recordings"`
}

// Client resolves MusicBrainz recording ids over the ws/2 API. MusicBrainz
// allows 1 request per second; the limiter enforces it across callers. An LRU
// caches resolved ids so repeated transfers of similar playlists do not spend
// the rate budget twice.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *lru.Cache[string, string]
	logger     *zap.Logger
}

var _ core.MusicBrainzResolver = (*Client)(nil)

func NewClient(cfg core.MusicBrainzConfig, logger *zap.Logger) *Client {
	cache, _ := lru.New[string, string](cacheSize)

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cache:   cache,
		logger:  logger,
	}
}

// IDFromISRC resolves an ISRC to a recording id, or "" when the lookup fails
// or yields nothing.
func (c *Client) IDFromISRC(ctx context.Context, isrc string) string {
	if isrc == "" {
		return ""
	}

	cacheKey := "isrc:" + isrc
	if id, ok := c.cache.Get(cacheKey); ok {
		return id
	}

	endpoint := fmt.Sprintf("%s/isrc/%s?fmt=json", c.baseURL, url.PathEscape(isrc))
	list, err := c.fetchRecordings(ctx, endpoint)
	if err != nil {
		c.logger.Debug("MusicBrainz isrc lookup failed",
			zap.String("isrc", isrc),
			zap.Error(err))
		return ""
	}
	if len(list.Recordings) == 0 {
		return ""
	}

	id := list.Recordings[0].ID
	c.cache.Add(cacheKey, id)
	return id
}

// IDFromQuery resolves loose metadata to a recording id via the search
// endpoint, or "" when nothing usable comes back. Year and isrc tighten the
// query when present.
func (c *Client) IDFromQuery(ctx context.Context, artist, title string, year int, isrc string) string {
	if artist == "" && title == "" && isrc == "" {
		return ""
	}

	var parts []string
	if title != "" {
		parts = append(parts, fmt.Sprintf(`recording:%q`, title))
	}
	if artist != "" {
		parts = append(parts, fmt.Sprintf(`artist:%q`, artist))
	}
	if year != 0 {
		parts = append(parts, fmt.Sprintf(`date:%d`, year))
	}
	if isrc != "" {
		parts = append(parts, fmt.Sprintf(`isrc:%q`, isrc))
	}
	query := strings.Join(parts, " AND ")

	cacheKey := "query:" + query
	if id, ok := c.cache.Get(cacheKey); ok {
		return id
	}

	endpoint := fmt.Sprintf("%s/recording?query=%s&limit=1&fmt=json", c.baseURL, url.QueryEscape(query))
	list, err := c.fetchRecordings(ctx, endpoint)
	if err != nil {
		c.logger.Debug("MusicBrainz search failed",
			zap.String("query", query),
			zap.Error(err))
		return ""
	}
	if len(list.Recordings) == 0 {
		return ""
	}

	id := list.Recordings[0].ID
	c.cache.Add(cacheKey, id)
	return id
}

func (c *Client) fetchRecordings(ctx context.Context, endpoint string) (*recordingList, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("musicbrainz returned status %d", resp.StatusCode)
	}

	var list recordingList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}
