package cache

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"tunesync/internal/core"
)

// Hot-tier key layout is bit-exact and shared with external consumers.
const hotKeyPrefix = "provider_cache"

// Hot-tier TTLs. ISRC entries live until evicted.
const (
	TTLPlaylist = 5 * time.Minute
	TTLSearch   = time.Hour
)

var (
	querySpaces  = regexp.MustCompile(`\s+`)
	queryNonWord = regexp.MustCompile(`[^\w]`)
)

// NormalizeQuery canonicalizes a search query for hot-tier keying: lowercase,
// whitespace runs collapsed to "_", everything non-word stripped.
func NormalizeQuery(query string) string {
	q := strings.ToLower(query)
	q = querySpaces.ReplaceAllString(q, "_")
	return queryNonWord.ReplaceAllString(q, "")
}

func playlistKey(provider core.ServiceName, playlistID string) string {
	return fmt.Sprintf("%s:%s:playlists:playlist_id#%s", hotKeyPrefix, provider, playlistID)
}

func searchKey(provider core.ServiceName, query string, limit int) string {
	return fmt.Sprintf("%s:%s:search_results:query#%s:limit#%d", hotKeyPrefix, provider, NormalizeQuery(query), limit)
}

func isrcKey(provider core.ServiceName, isrc string) string {
	return fmt.Sprintf("%s:%s:tracks:isrc#%s", hotKeyPrefix, provider, isrc)
}
