// Package cache implements the two-tier read-through cache in front of a
// provider port: a Redis hot tier for playlists and search results, and a
// persistent sqlite identity tier mapping (provider, provider_track_id) and
// (provider, isrc) to a logical recording.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

const identitySchema = `
CREATE TABLE IF NOT EXISTS cached_tracks (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	title              TEXT NOT NULL,
	album_name         TEXT NOT NULL DEFAULT '',
	primary_artist     TEXT NOT NULL DEFAULT '',
	additional_artists TEXT NOT NULL DEFAULT '[]',
	duration_seconds   INTEGER NOT NULL DEFAULT 0,
	track_number       INTEGER NOT NULL DEFAULT 0,
	release_year       INTEGER NOT NULL DEFAULT 0,
	isrc               TEXT NOT NULL DEFAULT '',
	musicbrainz_id     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS provider_mappings (
	track_id          INTEGER NOT NULL REFERENCES cached_tracks(id),
	provider          TEXT NOT NULL,
	provider_track_id TEXT NOT NULL,
	PRIMARY KEY (track_id, provider, provider_track_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_provider_track
	ON provider_mappings(provider, provider_track_id);
CREATE INDEX IF NOT EXISTS idx_cached_tracks_isrc
	ON cached_tracks(isrc) WHERE isrc != '';
`

// IdentityCache is the persistent tier. A given (provider, provider_track_id)
// maps to at most one cached track; concurrent inserts for the same pair are
// idempotent. A Bloom filter seeded from the mapping table short-circuits
// definite misses so cold lookups skip the SELECT; it never produces a
// negative-cache entry.
type IdentityCache struct {
	db     *sql.DB
	logger *zap.Logger

	mu    sync.RWMutex
	bloom *bloom.BloomFilter
}

const (
	bloomCapacity          = 100_000
	bloomFalsePositiveRate = 0.01
)

// NewIdentityCache creates the schema if needed and seeds the Bloom filter
// from existing mappings.
func NewIdentityCache(db *sql.DB, logger *zap.Logger) (*IdentityCache, error) {
	if _, err := db.Exec(identitySchema); err != nil {
		return nil, fmt.Errorf("create identity cache schema: %w", err)
	}

	c := &IdentityCache{
		db:     db,
		logger: logger,
		bloom:  bloom.NewWithEstimates(bloomCapacity, bloomFalsePositiveRate),
	}
	if err := c.seedBloom(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *IdentityCache) seedBloom() error {
	rows, err := c.db.Query(`
		SELECT m.provider, m.provider_track_id, t.isrc
		FROM provider_mappings m
		JOIN cached_tracks t ON t.id = m.track_id`)
	if err != nil {
		return fmt.Errorf("seed identity bloom: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var provider, trackID, isrc string
		if err := rows.Scan(&provider, &trackID, &isrc); err != nil {
			return fmt.Errorf("seed identity bloom: %w", err)
		}
		c.bloom.AddString(mappingBloomKey(provider, trackID))
		if isrc != "" {
			c.bloom.AddString(isrcBloomKey(provider, isrc))
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("seed identity bloom: %w", err)
	}

	c.logger.Info("Identity cache loaded", zap.Int("mappings", n))
	return nil
}

func mappingBloomKey(provider, providerTrackID string) string {
	return "id|" + provider + "|" + providerTrackID
}

func isrcBloomKey(provider, isrc string) string {
	return "isrc|" + provider + "|" + isrc
}

func (c *IdentityCache) bloomHas(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bloom.TestString(key)
}

func (c *IdentityCache) bloomAdd(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.bloom.AddString(key)
	}
}

// GetByProviderID returns the cached track realized on provider under
// providerTrackID, or nil on a miss.
func (c *IdentityCache) GetByProviderID(ctx context.Context, provider core.ServiceName, providerTrackID string) (*core.Track, error) {
	if !c.bloomHas(mappingBloomKey(string(provider), providerTrackID)) {
		return nil, nil
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT t.title, t.album_name, t.primary_artist, t.additional_artists,
		       t.duration_seconds, t.track_number, t.release_year, t.isrc, t.musicbrainz_id
		FROM provider_mappings m
		JOIN cached_tracks t ON t.id = m.track_id
		WHERE m.provider = ? AND m.provider_track_id = ?`,
		string(provider), providerTrackID)

	return c.scanTrack(row, provider, providerTrackID)
}

// GetByISRC returns a track cached for provider carrying the given ISRC, or
// nil on a miss.
func (c *IdentityCache) GetByISRC(ctx context.Context, provider core.ServiceName, isrc string) (*core.Track, error) {
	if isrc == "" {
		return nil, nil
	}
	if !c.bloomHas(isrcBloomKey(string(provider), isrc)) {
		return nil, nil
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT t.title, t.album_name, t.primary_artist, t.additional_artists,
		       t.duration_seconds, t.track_number, t.release_year, t.isrc, t.musicbrainz_id,
		       m.provider_track_id
		FROM cached_tracks t
		JOIN provider_mappings m ON m.track_id = t.id
		WHERE t.isrc = ? AND m.provider = ?
		LIMIT 1`,
		isrc, string(provider))

	var track core.Track
	var artists string
	err := row.Scan(&track.Title, &track.AlbumName, &track.PrimaryArtist, &artists,
		&track.DurationSeconds, &track.TrackNumber, &track.ReleaseYear,
		&track.ISRC, &track.MusicBrainzID, &track.ServiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity cache lookup by isrc: %w", err)
	}
	if err := json.Unmarshal([]byte(artists), &track.AdditionalArtists); err != nil {
		return nil, fmt.Errorf("identity cache lookup by isrc: %w", err)
	}
	track.ServiceName = provider
	return &track, nil
}

func (c *IdentityCache) scanTrack(row *sql.Row, provider core.ServiceName, providerTrackID string) (*core.Track, error) {
	var track core.Track
	var artists string
	err := row.Scan(&track.Title, &track.AlbumName, &track.PrimaryArtist, &artists,
		&track.DurationSeconds, &track.TrackNumber, &track.ReleaseYear,
		&track.ISRC, &track.MusicBrainzID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity cache lookup: %w", err)
	}
	if err := json.Unmarshal([]byte(artists), &track.AdditionalArtists); err != nil {
		return nil, fmt.Errorf("identity cache lookup: %w", err)
	}
	track.ServiceID = providerTrackID
	track.ServiceName = provider
	return &track, nil
}

// Put stores the track's metadata and its provider mapping. Re-inserting an
// existing (provider, provider_track_id) pair is a no-op so concurrent writers
// never conflict.
func (c *IdentityCache) Put(ctx context.Context, track core.Track) error {
	if track.ServiceID == "" || track.ServiceName == "" {
		return fmt.Errorf("%w: track without provider identity", core.ErrInvalidArgument)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("identity cache put: %w", err)
	}
	defer tx.Rollback()

	var trackID int64
	err = tx.QueryRowContext(ctx, `
		SELECT track_id FROM provider_mappings
		WHERE provider = ? AND provider_track_id = ?`,
		string(track.ServiceName), track.ServiceID).Scan(&trackID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		artists, err := json.Marshal(track.AdditionalArtists)
		if err != nil {
			return fmt.Errorf("identity cache put: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO cached_tracks
				(title, album_name, primary_artist, additional_artists,
				 duration_seconds, track_number, release_year, isrc, musicbrainz_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			track.Title, track.AlbumName, track.PrimaryArtist, string(artists),
			track.DurationSeconds, track.TrackNumber, track.ReleaseYear,
			track.ISRC, track.MusicBrainzID)
		if err != nil {
			return fmt.Errorf("identity cache put: %w", err)
		}
		trackID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("identity cache put: %w", err)
		}
	case err != nil:
		return fmt.Errorf("identity cache put: %w", err)
	}

	// INSERT OR IGNORE keeps the unique (provider, provider_track_id) index
	// authoritative under concurrent inserts.
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO provider_mappings (track_id, provider, provider_track_id)
		VALUES (?, ?, ?)`,
		trackID, string(track.ServiceName), track.ServiceID); err != nil {
		return fmt.Errorf("identity cache put: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("identity cache put: %w", err)
	}

	keys := []string{mappingBloomKey(string(track.ServiceName), track.ServiceID)}
	if track.ISRC != "" {
		keys = append(keys, isrcBloomKey(string(track.ServiceName), track.ISRC))
	}
	c.bloomAdd(keys...)
	return nil
}
