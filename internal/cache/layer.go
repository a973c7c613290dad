package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

// Layer wraps a provider port with read-through caching. Playlists and search
// results go through the Redis hot tier; track identity goes through the
// persistent tier. Misses delegate and store on success only; negative
// results are never cached, and a broken cache backend degrades to a plain
// delegate call.
type Layer struct {
	port     core.ProviderPort
	rdb      *redis.Client
	identity *IdentityCache
	logger   *zap.Logger
}

var _ core.ProviderPort = (*Layer)(nil)

// NewLayer wraps port. rdb and identity may each be nil, disabling that tier.
func NewLayer(port core.ProviderPort, rdb *redis.Client, identity *IdentityCache, logger *zap.Logger) *Layer {
	return &Layer{
		port:     port,
		rdb:      rdb,
		identity: identity,
		logger:   logger,
	}
}

func (l *Layer) ServiceName() core.ServiceName { return l.port.ServiceName() }

func (l *Layer) SupportsDirectISRCQuerying() bool { return l.port.SupportsDirectISRCQuerying() }

func (l *Layer) SupportsMusicBrainzIDQuerying() bool { return l.port.SupportsMusicBrainzIDQuerying() }

func (l *Layer) GetUserPlaylists(ctx context.Context, limit int) ([]core.Playlist, error) {
	return l.port.GetUserPlaylists(ctx, limit)
}

func (l *Layer) GetPlaylist(ctx context.Context, playlistID string) (core.Playlist, error) {
	key := playlistKey(l.port.ServiceName(), playlistID)

	var cached core.Playlist
	if l.hotGet(ctx, key, &cached) {
		return cached, nil
	}

	playlist, err := l.port.GetPlaylist(ctx, playlistID)
	if err != nil {
		return core.Playlist{}, err
	}
	l.hotSet(ctx, key, playlist, TTLPlaylist)
	return playlist, nil
}

func (l *Layer) GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]core.Track, error) {
	return l.port.GetPlaylistTracks(ctx, playlistID, limit)
}

func (l *Layer) CreatePlaylist(ctx context.Context, name string) (core.Playlist, error) {
	return l.port.CreatePlaylist(ctx, name)
}

func (l *Layer) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	return l.port.AddTracksToPlaylist(ctx, playlistID, trackIDs)
}

func (l *Layer) GetTrack(ctx context.Context, trackID string) (core.Track, error) {
	if l.identity != nil {
		cached, err := l.identity.GetByProviderID(ctx, l.port.ServiceName(), trackID)
		if err != nil {
			l.logger.Warn("Identity cache lookup failed", zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	track, err := l.port.GetTrack(ctx, trackID)
	if err != nil {
		return core.Track{}, err
	}
	l.identityPut(ctx, track)
	return track, nil
}

func (l *Layer) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	key := searchKey(l.port.ServiceName(), query, limit)

	var cached []core.Track
	if l.hotGet(ctx, key, &cached) {
		return cached, nil
	}

	tracks, err := l.port.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(tracks) > 0 {
		l.hotSet(ctx, key, tracks, TTLSearch)
	}
	return tracks, nil
}

func (l *Layer) GetTrackByISRC(ctx context.Context, isrc string) (core.Track, error) {
	provider := l.port.ServiceName()
	key := isrcKey(provider, isrc)

	var cached core.Track
	if l.hotGet(ctx, key, &cached) {
		return cached, nil
	}
	if l.identity != nil {
		hit, err := l.identity.GetByISRC(ctx, provider, isrc)
		if err != nil {
			l.logger.Warn("Identity cache lookup failed", zap.Error(err))
		} else if hit != nil {
			return *hit, nil
		}
	}

	track, err := l.port.GetTrackByISRC(ctx, isrc)
	if err != nil {
		return core.Track{}, err
	}
	// ISRC identity is stable; the hot entry carries no TTL.
	l.hotSet(ctx, key, track, 0)
	l.identityPut(ctx, track)
	return track, nil
}

func (l *Layer) GetSavedTracks(ctx context.Context, limit int) ([]core.Track, error) {
	return l.port.GetSavedTracks(ctx, limit)
}

func (l *Layer) GetRandomTrack(ctx context.Context) (*core.Track, error) {
	return l.port.GetRandomTrack(ctx)
}

// TrackAssets passes asset resolution through to the wrapped port when it
// supports it; asset links are derived from the payload and need no caching.
func (l *Layer) TrackAssets(ctx context.Context, track core.Track) (core.TrackAssets, error) {
	if resolver, ok := l.port.(core.AssetResolver); ok {
		return resolver.TrackAssets(ctx, track)
	}
	return core.TrackAssets{}, nil
}

// hotGet reports whether key was present and decoded into dst.
func (l *Layer) hotGet(ctx context.Context, key string, dst any) bool {
	if l.rdb == nil {
		return false
	}

	raw, err := l.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		l.logger.Warn("Hot cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		l.logger.Warn("Hot cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (l *Layer) hotSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if l.rdb == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		l.logger.Warn("Hot cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := l.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		l.logger.Warn("Hot cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (l *Layer) identityPut(ctx context.Context, track core.Track) {
	if l.identity == nil {
		return
	}
	if err := l.identity.Put(ctx, track); err != nil {
		l.logger.Warn("Identity cache write failed", zap.Error(err))
	}
}
