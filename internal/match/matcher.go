// Package match resolves a reference track to its best-effort equivalent on a
// target provider. Four strategies run in order; the first accepted match
// wins. A match is accepted only when the weighted similarity against the
// reference reaches the threshold.
package match

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tunesync/internal/core"
)

const (
	// searchChunkSize is how many queries of the text strategy run
	// concurrently; chunks proceed sequentially and cancellation is observed
	// between them.
	searchChunkSize = 5
	// searchResultLimit bounds each individual target search.
	searchResultLimit = 5
)

// Matcher resolves reference tracks against one target provider. It is safe
// to use concurrently as long as the underlying driver is.
type Matcher struct {
	target core.ProviderPort
	mb     core.MusicBrainzResolver
	logger *zap.Logger
}

// NewMatcher builds a matcher for target. mb may be nil, disabling the
// MusicBrainz strategy for references without an id of their own.
func NewMatcher(target core.ProviderPort, mb core.MusicBrainzResolver, logger *zap.Logger) *Matcher {
	return &Matcher{
		target: target,
		mb:     mb,
		logger: logger,
	}
}

// FindMatch returns the best accepted equivalent of reference on the target
// provider, or nil when no strategy produced one. TrackNotFound and Timeout
// inside a single strategy are swallowed so the next strategy can run; any
// other error aborts the match.
func (m *Matcher) FindMatch(ctx context.Context, reference core.Track) (*core.Track, error) {
	strategies := []struct {
		name string
		run  func(context.Context, core.Track) (*core.Track, error)
	}{
		{"origin_service", m.matchByOriginService},
		{"direct_isrc", m.matchByISRC},
		{"text_search", m.matchByTextSearch},
		{"musicbrainz_id", m.matchByMusicBrainzID},
	}

	for _, strategy := range strategies {
		found, err := strategy.run(ctx, reference)
		if err != nil {
			if errors.Is(err, core.ErrTrackNotFound) || errors.Is(err, core.ErrTimeout) {
				m.logger.Debug("Match strategy came up empty",
					zap.String("strategy", strategy.name),
					zap.String("title", reference.Title))
				continue
			}
			return nil, fmt.Errorf("match strategy %s: %w", strategy.name, err)
		}
		if found != nil {
			m.logger.Debug("Match accepted",
				zap.String("strategy", strategy.name),
				zap.String("title", reference.Title),
				zap.String("matched_id", found.ServiceID))
			return found, nil
		}
	}
	return nil, nil
}

// matchByOriginService short-circuits when the reference already lives on the
// target provider. The reserved sentinel service never triggers it.
func (m *Matcher) matchByOriginService(ctx context.Context, reference core.Track) (*core.Track, error) {
	if reference.ServiceName != m.target.ServiceName() || reference.ServiceID == "" {
		return nil, nil
	}

	candidate, err := m.target.GetTrack(ctx, reference.ServiceID)
	if err != nil {
		return nil, err
	}
	return accept(reference, candidate), nil
}

func (m *Matcher) matchByISRC(ctx context.Context, reference core.Track) (*core.Track, error) {
	if reference.ISRC == "" || !m.target.SupportsDirectISRCQuerying() {
		return nil, nil
	}

	candidate, err := m.target.GetTrackByISRC(ctx, reference.ISRC)
	if err != nil {
		return nil, err
	}
	return accept(reference, candidate), nil
}

// matchByTextSearch runs the deterministic query list in chunks. Within a
// chunk the searches are concurrent; across all queries the single best
// candidate by similarity is kept and tested against the threshold once.
func (m *Matcher) matchByTextSearch(ctx context.Context, reference core.Track) (*core.Track, error) {
	queries := BuildQueries(reference)

	var (
		mu        sync.Mutex
		best      *core.Track
		bestScore float64
	)

	for start := 0; start < len(queries); start += searchChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrTimeout, err)
		}
		end := min(start+searchChunkSize, len(queries))

		group, groupCtx := errgroup.WithContext(ctx)
		for _, query := range queries[start:end] {
			group.Go(func() error {
				candidates, err := m.target.SearchTracks(groupCtx, query, searchResultLimit)
				if err != nil {
					// A single failed query must not sink the whole strategy.
					if errors.Is(err, core.ErrTrackNotFound) || errors.Is(err, core.ErrTimeout) {
						return nil
					}
					return err
				}

				for i := range candidates {
					score := core.TrackSimilarity(reference, candidates[i])
					mu.Lock()
					if score > bestScore {
						best, bestScore = &candidates[i], score
					}
					mu.Unlock()
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}

	if best == nil || bestScore < core.MatchThreshold {
		return nil, nil
	}
	return best, nil
}

func (m *Matcher) matchByMusicBrainzID(ctx context.Context, reference core.Track) (*core.Track, error) {
	if !m.target.SupportsMusicBrainzIDQuerying() {
		return nil, nil
	}

	mbid := reference.MusicBrainzID
	if mbid == "" && m.mb != nil {
		if reference.ISRC != "" {
			mbid = m.mb.IDFromISRC(ctx, reference.ISRC)
		}
		if mbid == "" {
			mbid = m.mb.IDFromQuery(ctx, reference.PrimaryArtist, reference.Title, reference.ReleaseYear, reference.ISRC)
		}
	}
	if mbid == "" {
		return nil, nil
	}

	candidates, err := m.target.SearchTracks(ctx, mbid, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return accept(reference, candidates[0]), nil
}

// accept returns the candidate when it clears the similarity threshold.
func accept(reference, candidate core.Track) *core.Track {
	if core.TrackSimilarity(reference, candidate) >= core.MatchThreshold {
		return &candidate
	}
	return nil
}
