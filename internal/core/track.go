package core

import (
	"encoding/base64"
	"encoding/json"
)

// ServiceName identifies a streaming provider. The set is closed; Reference
// is a reserved sentinel assigned to tracks synthesized from loose user
// metadata so the matcher's origin-service shortcut can never fire for them.
type ServiceName string

const (
	ServiceSpotify  ServiceName = "spotify"
	ServiceYouTube  ServiceName = "youtube"
	ServiceSubsonic ServiceName = "subsonic"
	ServiceDeezer   ServiceName = "deezer"
	// ServiceReference marks synthetic reference tracks built by the matcher.
	ServiceReference ServiceName = "reference"
)

// KnownProviders lists every provider a driver can be constructed for.
// ServiceReference is deliberately absent.
var KnownProviders = []ServiceName{ServiceSpotify, ServiceYouTube, ServiceSubsonic, ServiceDeezer}

// IsKnownProvider reports whether name is a supported provider.
func IsKnownProvider(name ServiceName) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

// Track describes a single recording as seen by one provider. Values are
// ephemeral: built per request and passed by value through the pipeline.
// Two tracks are equal iff (ServiceID, ServiceName) match; similarity is a
// separate relation computed by TrackSimilarity.
type Track struct {
	Title             string          `json:"title"`
	AlbumName         string          `json:"album_name,omitempty"`
	PrimaryArtist     string          `json:"primary_artist,omitempty"`
	AdditionalArtists []string        `json:"additional_artists,omitempty"`
	DurationSeconds   int             `json:"duration_seconds,omitempty"`
	TrackNumber       int             `json:"track_number,omitempty"`
	ReleaseYear       int             `json:"release_year,omitempty"`
	ISRC              string          `json:"isrc,omitempty"`
	MusicBrainzID     string          `json:"musicbrainz_id,omitempty"`
	ServiceID         string          `json:"service_id,omitempty"`
	ServiceName       ServiceName     `json:"service_name"`
	ServiceData       json.RawMessage `json:"-"`
}

// Equal reports provider-level identity.
func (t Track) Equal(other Track) bool {
	return t.ServiceID == other.ServiceID && t.ServiceName == other.ServiceName
}

type trackWire struct {
	Title             string      `json:"title"`
	AlbumName         string      `json:"album_name,omitempty"`
	PrimaryArtist     string      `json:"primary_artist,omitempty"`
	AdditionalArtists []string    `json:"additional_artists,omitempty"`
	DurationSeconds   int         `json:"duration_seconds,omitempty"`
	TrackNumber       int         `json:"track_number,omitempty"`
	ReleaseYear       int         `json:"release_year,omitempty"`
	ISRC              string      `json:"isrc,omitempty"`
	MusicBrainzID     string      `json:"musicbrainz_id,omitempty"`
	ServiceID         string      `json:"service_id,omitempty"`
	ServiceName       ServiceName `json:"service_name"`
	ServiceData       string      `json:"service_data,omitempty"`
}

// MarshalJSON frames the opaque vendor payload as base64 so cached entries
// survive double JSON encoding unchanged.
func (t Track) MarshalJSON() ([]byte, error) {
	w := trackWire{
		Title:             t.Title,
		AlbumName:         t.AlbumName,
		PrimaryArtist:     t.PrimaryArtist,
		AdditionalArtists: t.AdditionalArtists,
		DurationSeconds:   t.DurationSeconds,
		TrackNumber:       t.TrackNumber,
		ReleaseYear:       t.ReleaseYear,
		ISRC:              t.ISRC,
		MusicBrainzID:     t.MusicBrainzID,
		ServiceID:         t.ServiceID,
		ServiceName:       t.ServiceName,
	}
	if len(t.ServiceData) > 0 {
		w.ServiceData = base64.StdEncoding.EncodeToString(t.ServiceData)
	}
	return json.Marshal(w)
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var w trackWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*t = Track{
		Title:             w.Title,
		AlbumName:         w.AlbumName,
		PrimaryArtist:     w.PrimaryArtist,
		AdditionalArtists: w.AdditionalArtists,
		DurationSeconds:   w.DurationSeconds,
		TrackNumber:       w.TrackNumber,
		ReleaseYear:       w.ReleaseYear,
		ISRC:              w.ISRC,
		MusicBrainzID:     w.MusicBrainzID,
		ServiceID:         w.ServiceID,
		ServiceName:       w.ServiceName,
	}
	if w.ServiceData != "" {
		raw, err := base64.StdEncoding.DecodeString(w.ServiceData)
		if err != nil {
			return err
		}
		t.ServiceData = raw
	}
	return nil
}
