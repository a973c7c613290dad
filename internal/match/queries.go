package match

import (
	"fmt"

	"tunesync/internal/core"
	"tunesync/pkg/fuzzy"
)

// BuildQueries produces the deterministic search-query list for the text
// strategy: title and artist, normalized then raw, the four artist/title
// combinations (normalized before raw), and the album name as a last-ditch
// fallback. Empty and duplicate queries are dropped; order is stable so
// matching stays reproducible.
func BuildQueries(track core.Track) []string {
	title := track.Title
	artist := track.PrimaryArtist

	var candidates []string
	candidates = append(candidates, fuzzy.Normalize(title), title)
	candidates = append(candidates, fuzzy.Normalize(artist), artist)

	if artist != "" && title != "" {
		// The normalized dash variants join the cleaned parts; normalizing the
		// joined string would strip the dash and collapse them into the
		// space-joined forms.
		normArtist, normTitle := fuzzy.Normalize(artist), fuzzy.Normalize(title)
		candidates = append(candidates,
			fmt.Sprintf("%s %s", normArtist, normTitle),
			fmt.Sprintf("%s %s", normTitle, normArtist),
			fmt.Sprintf("%s - %s", normArtist, normTitle),
			fmt.Sprintf("%s - %s", normTitle, normArtist),
			fmt.Sprintf("%s %s", artist, title),
			fmt.Sprintf("%s %s", title, artist),
			fmt.Sprintf("%s - %s", artist, title),
			fmt.Sprintf("%s - %s", title, artist),
		)
	}

	candidates = append(candidates, track.AlbumName)

	seen := make(map[string]struct{}, len(candidates))
	queries := make([]string, 0, len(candidates))
	for _, query := range candidates {
		if query == "" {
			continue
		}
		if _, dup := seen[query]; dup {
			continue
		}
		seen[query] = struct{}{}
		queries = append(queries, query)
	}
	return queries
}
