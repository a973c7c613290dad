package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/core"
	"tunesync/internal/match"
	"tunesync/internal/task"
)

const (
	// pacingEvery is how many handled tracks trigger a cooperative pause.
	pacingEvery = 10
	pacingPause = 5 * time.Second

	// insertChunkSize bounds one add-tracks call on the target.
	insertChunkSize = 25
	insertPause     = 3 * time.Second

	// Wall-clock budgets per phase.
	tracksFetchBudget = 30 * time.Second
	matchBudget       = 300 * time.Second
	assetsBudget      = 15 * time.Second
)

// DriverFactory builds an authenticated provider driver for a user.
type DriverFactory interface {
	Driver(ctx context.Context, userID int64, service core.ServiceName) (core.ProviderPort, error)
}

// PlaylistTransferHandler replicates one playlist from a source provider onto
// a target provider, matching every source track individually.
type PlaylistTransferHandler struct {
	factory DriverFactory
	store   TaskStore
	mb      core.MusicBrainzResolver
	sleep   sleepFunc
	logger  *zap.Logger
}

func NewPlaylistTransferHandler(factory DriverFactory, store TaskStore, mb core.MusicBrainzResolver, logger *zap.Logger) *PlaylistTransferHandler {
	return &PlaylistTransferHandler{
		factory: factory,
		store:   store,
		mb:      mb,
		sleep:   sleepContext,
		logger:  logger,
	}
}

// Handle runs the transfer and finalizes the record. A non-nil error means
// the record could not be finalized, not that the transfer failed: transfer
// failures end as FAILED or CANCELED records with a nil return.
func (h *PlaylistTransferHandler) Handle(ctx context.Context, key string, rec *task.Record, userID int64) error {
	logger := h.logger.With(
		zap.String("key", key),
		zap.String("from", string(rec.Arguments.FromProvider)),
		zap.String("to", string(rec.Arguments.ToProvider)))

	source, err := h.factory.Driver(ctx, userID, rec.Arguments.FromProvider)
	if err != nil {
		return h.fail(ctx, key, rec, fmt.Sprintf("source provider unavailable: %v", err))
	}
	target := source
	if rec.Arguments.ToProvider != rec.Arguments.FromProvider {
		target, err = h.factory.Driver(ctx, userID, rec.Arguments.ToProvider)
		if err != nil {
			return h.fail(ctx, key, rec, fmt.Sprintf("target provider unavailable: %v", err))
		}
	}

	playlist, err := source.GetPlaylist(ctx, rec.Arguments.FromPlaylist)
	if err != nil {
		if errors.Is(err, core.ErrPlaylistNotFound) {
			return h.cancel(ctx, key, rec, "playlist does not exist")
		}
		return h.fail(ctx, key, rec, fmt.Sprintf("fetch playlist: %v", err))
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, tracksFetchBudget)
	tracks, err := source.GetPlaylistTracks(fetchCtx, playlist.ServiceID, 0)
	cancelFetch()
	if err != nil {
		return h.fail(ctx, key, rec, fmt.Sprintf("fetch playlist tracks: %v", err))
	}
	if len(tracks) == 0 {
		return h.cancel(ctx, key, rec, "playlist is empty")
	}

	matcher := match.NewMatcher(target, h.mb, logger.Named("match"))
	rec.Progress.InQueue = len(tracks)

	var matchedIDs []string
	for i := range tracks {
		cancelled, err := h.isCancelled(ctx, key)
		if err != nil {
			return err
		}
		if cancelled {
			logger.Info("Transfer cancelled by user")
			return nil
		}

		if rec.Progress.Handled > 0 && rec.Progress.Handled%pacingEvery == 0 {
			if err := h.pause(ctx, key, rec, pacingPause); err != nil {
				return err
			}
		}

		if err := rec.Transition(task.StatusRunning, ""); err != nil {
			return err
		}
		rec.Progress.Handled++
		rec.Progress.InQueue = len(tracks) - rec.Progress.Handled

		found := h.matchTrack(ctx, matcher, tracks[i], logger)
		assets := h.trackAssets(ctx, source, tracks[i])

		rec.Progress.Track = &tracks[i]
		rec.Progress.CoverImage = assets.CoverImageURL
		rec.LastHeartbeat = time.Now().Unix()
		if err := h.store.Save(ctx, key, rec, task.TTLRunning); err != nil {
			return err
		}

		if found != nil {
			matchedIDs = append(matchedIDs, found.ServiceID)
		}
	}

	if len(matchedIDs) == 0 {
		return h.cancel(ctx, key, rec, "couldn't find any matches")
	}

	created, err := target.CreatePlaylist(ctx, playlist.Name)
	if err != nil {
		return h.fail(ctx, key, rec, fmt.Sprintf("create target playlist: %v", err))
	}

	for start := 0; start < len(matchedIDs); start += insertChunkSize {
		end := min(start+insertChunkSize, len(matchedIDs))
		if err := target.AddTracksToPlaylist(ctx, created.ServiceID, matchedIDs[start:end]); err != nil {
			return h.fail(ctx, key, rec, fmt.Sprintf("insert tracks: %v", err))
		}

		// Every full chunk is followed by a backpressure pause; a trailing
		// partial chunk is not.
		if end-start == insertChunkSize {
			if err := h.pause(ctx, key, rec, insertPause); err != nil {
				return err
			}
			cancelled, err := h.isCancelled(ctx, key)
			if err != nil {
				return err
			}
			if cancelled {
				logger.Info("Transfer cancelled by user")
				return nil
			}
			if err := rec.Transition(task.StatusRunning, ""); err != nil {
				return err
			}
		}
	}

	logger.Info("Transfer finished",
		zap.Int("source_tracks", len(tracks)),
		zap.Int("matched", len(matchedIDs)))

	if err := rec.Transition(task.StatusFinished, ""); err != nil {
		return err
	}
	return h.store.Save(ctx, key, rec, task.TTLTerminal)
}

// matchTrack resolves one source track on the target within the match budget.
// Timeouts and misses both yield nil; the track is simply skipped.
func (h *PlaylistTransferHandler) matchTrack(ctx context.Context, matcher *match.Matcher, track core.Track, logger *zap.Logger) *core.Track {
	matchCtx, cancel := context.WithTimeout(ctx, matchBudget)
	defer cancel()

	found, err := matcher.FindMatch(matchCtx, track)
	if err != nil {
		logger.Warn("Match failed; skipping track",
			zap.String("title", track.Title),
			zap.Error(err))
		return nil
	}
	return found
}

// trackAssets resolves cover art for the progress snapshot; failures and
// timeouts degrade to empty assets.
func (h *PlaylistTransferHandler) trackAssets(ctx context.Context, port core.ProviderPort, track core.Track) core.TrackAssets {
	resolver, ok := port.(core.AssetResolver)
	if !ok {
		return core.TrackAssets{}
	}

	assetCtx, cancel := context.WithTimeout(ctx, assetsBudget)
	defer cancel()

	assets, err := resolver.TrackAssets(assetCtx, track)
	if err != nil {
		return core.TrackAssets{}
	}
	return assets
}

// isCancelled re-loads the record and reports whether it disappeared or was
// cancelled out from under the worker.
func (h *PlaylistTransferHandler) isCancelled(ctx context.Context, key string) (bool, error) {
	latest, err := h.store.Load(ctx, key)
	if err != nil {
		return false, err
	}
	return latest == nil || latest.Status == task.StatusCanceled, nil
}

// pause parks the record ON_HOLD for the given duration as cooperative
// backpressure against provider rate limits.
func (h *PlaylistTransferHandler) pause(ctx context.Context, key string, rec *task.Record, d time.Duration) error {
	if err := rec.Transition(task.StatusOnHold, "pausing to avoid a rate limit"); err != nil {
		return err
	}
	if err := h.store.Save(ctx, key, rec, task.TTLRunning); err != nil {
		return err
	}
	h.sleep(ctx, d)
	return nil
}

func (h *PlaylistTransferHandler) cancel(ctx context.Context, key string, rec *task.Record, reason string) error {
	if err := rec.Transition(task.StatusCanceled, reason); err != nil {
		return err
	}
	return h.store.Save(ctx, key, rec, task.TTLTerminal)
}

func (h *PlaylistTransferHandler) fail(ctx context.Context, key string, rec *task.Record, reason string) error {
	if err := rec.Transition(task.StatusFailed, reason); err != nil {
		return err
	}
	return h.store.Save(ctx, key, rec, task.TTLTerminal)
}
