package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"tunesync/internal/core"
)

// Per-driver asset resolution. Spotify, Deezer and YouTube carry cover links
// inside the vendor payload; Subsonic must compute a signed URL per request.

func (d *SpotifyDriver) TrackAssets(ctx context.Context, track core.Track) (core.TrackAssets, error) {
	if track.ServiceName != core.ServiceSpotify {
		return core.TrackAssets{}, fmt.Errorf("%w: not a spotify track", core.ErrInvalidArgument)
	}
	if len(track.ServiceData) == 0 {
		return core.TrackAssets{}, nil
	}

	var payload struct {
		Album struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	}
	if err := json.Unmarshal(track.ServiceData, &payload); err != nil {
		return core.TrackAssets{}, fmt.Errorf("%w: undecodable spotify payload", core.ErrInvalidArgument)
	}
	if len(payload.Album.Images) == 0 {
		return core.TrackAssets{}, nil
	}
	return core.TrackAssets{CoverImageURL: payload.Album.Images[0].URL}, nil
}

func (d *DeezerDriver) TrackAssets(ctx context.Context, track core.Track) (core.TrackAssets, error) {
	if track.ServiceName != core.ServiceDeezer {
		return core.TrackAssets{}, fmt.Errorf("%w: not a deezer track", core.ErrInvalidArgument)
	}
	if len(track.ServiceData) == 0 {
		return core.TrackAssets{}, nil
	}

	var payload deezerTrack
	if err := json.Unmarshal(track.ServiceData, &payload); err != nil {
		return core.TrackAssets{}, fmt.Errorf("%w: undecodable deezer payload", core.ErrInvalidArgument)
	}
	if payload.Album == nil {
		return core.TrackAssets{}, nil
	}
	cover := payload.Album.CoverXL
	if cover == "" {
		cover = payload.Album.Cover
	}
	return core.TrackAssets{CoverImageURL: cover}, nil
}

func (d *YouTubeDriver) TrackAssets(ctx context.Context, track core.Track) (core.TrackAssets, error) {
	if track.ServiceName != core.ServiceYouTube {
		return core.TrackAssets{}, fmt.Errorf("%w: not a youtube track", core.ErrInvalidArgument)
	}
	if track.ServiceID == "" {
		return core.TrackAssets{}, nil
	}
	return core.TrackAssets{
		CoverImageURL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", track.ServiceID),
	}, nil
}

func (d *SubsonicDriver) TrackAssets(ctx context.Context, track core.Track) (core.TrackAssets, error) {
	coverURL, err := d.CoverArtURL(track)
	if err != nil {
		return core.TrackAssets{}, err
	}
	return core.TrackAssets{CoverImageURL: coverURL}, nil
}
