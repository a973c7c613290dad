package provider

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tunesync/internal/cache"
	"tunesync/internal/core"
)

// Factory assembles an authenticated, cache-wrapped driver for one
// (user, provider) pair. Source and target of a transfer go through the same
// construction path, so identical providers yield identical wiring.
type Factory struct {
	cfg      *core.Config
	creds    core.CredentialStore
	rdb      *redis.Client
	identity *cache.IdentityCache
	logger   *zap.Logger
}

func NewFactory(cfg *core.Config, creds core.CredentialStore, rdb *redis.Client, identity *cache.IdentityCache, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:      cfg,
		creds:    creds,
		rdb:      rdb,
		identity: identity,
		logger:   logger,
	}
}

// Driver builds the provider port for service on behalf of userID. Unknown
// or reserved service names fail with ErrInvalidArgument; missing or
// unrefreshable credentials fail with ErrAuth.
func (f *Factory) Driver(ctx context.Context, userID int64, service core.ServiceName) (core.ProviderPort, error) {
	if !core.IsKnownProvider(service) {
		return nil, fmt.Errorf("%w: unknown provider %q", core.ErrInvalidArgument, service)
	}

	creds, err := f.creds.Get(ctx, userID, service)
	if err != nil {
		return nil, err
	}

	var port core.ProviderPort
	switch service {
	case core.ServiceSpotify:
		port, err = NewSpotifyDriver(ctx, f.cfg.Spotify, creds, f.creds, f.logger.Named("spotify"))
	case core.ServiceYouTube:
		port, err = NewYouTubeDriver(ctx, f.cfg.YouTube, creds, f.creds, f.logger.Named("youtube"))
	case core.ServiceSubsonic:
		port, err = NewSubsonicDriver(f.cfg.Subsonic, creds, f.logger.Named("subsonic"))
	case core.ServiceDeezer:
		port, err = NewDeezerDriver(f.cfg.Deezer, creds, f.logger.Named("deezer"))
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", core.ErrInvalidArgument, service)
	}
	if err != nil {
		return nil, err
	}

	return cache.NewLayer(port, f.rdb, f.identity, f.logger.Named("cache")), nil
}
