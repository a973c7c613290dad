package cache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

// countingPort records how often each operation reached the wrapped provider.
type countingPort struct {
	core.ProviderPort

	name        core.ServiceName
	tracks      map[string]core.Track
	byISRC      map[string]core.Track
	trackCalls  int
	isrcCalls   int
	searchCalls int
}

func (p *countingPort) ServiceName() core.ServiceName { return p.name }

func (p *countingPort) GetTrack(ctx context.Context, trackID string) (core.Track, error) {
	p.trackCalls++
	track, ok := p.tracks[trackID]
	if !ok {
		return core.Track{}, core.ErrTrackNotFound
	}
	return track, nil
}

func (p *countingPort) GetTrackByISRC(ctx context.Context, isrc string) (core.Track, error) {
	p.isrcCalls++
	track, ok := p.byISRC[isrc]
	if !ok {
		return core.Track{}, core.ErrTrackNotFound
	}
	return track, nil
}

func (p *countingPort) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	p.searchCalls++
	return nil, nil
}

func newCountingPort() *countingPort {
	track := testTrack()
	return &countingPort{
		name:   core.ServiceSpotify,
		tracks: map[string]core.Track{track.ServiceID: track},
		byISRC: map[string]core.Track{track.ISRC: track},
	}
}

func TestLayer_GetTrackReadsThroughIdentityTier(t *testing.T) {
	port := newCountingPort()
	layer := NewLayer(port, nil, newTestIdentityCache(t), zap.NewNop())
	ctx := context.Background()

	first, err := layer.GetTrack(ctx, "sp-1")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := layer.GetTrack(ctx, "sp-1")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}

	if port.trackCalls != 1 {
		t.Errorf("provider calls = %d, want 1 (second call served from cache)", port.trackCalls)
	}
	if first.ServiceID != second.ServiceID || first.Title != second.Title {
		t.Errorf("cached reconstruction diverged: %+v vs %+v", first, second)
	}
}

func TestLayer_GetTrackByISRCReadsThroughIdentityTier(t *testing.T) {
	port := newCountingPort()
	layer := NewLayer(port, nil, newTestIdentityCache(t), zap.NewNop())
	ctx := context.Background()

	if _, err := layer.GetTrackByISRC(ctx, "GBAYE9700164"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	got, err := layer.GetTrackByISRC(ctx, "GBAYE9700164")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}

	if port.isrcCalls != 1 {
		t.Errorf("provider calls = %d, want 1", port.isrcCalls)
	}
	if got.ServiceID != "sp-1" {
		t.Errorf("cached identity mismatch: %+v", got)
	}
}

func TestLayer_NegativeResultsAreNotCached(t *testing.T) {
	port := newCountingPort()
	layer := NewLayer(port, nil, newTestIdentityCache(t), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := layer.GetTrack(ctx, "missing"); err == nil {
			t.Fatal("expected TrackNotFound")
		}
	}
	if port.trackCalls != 2 {
		t.Errorf("provider calls = %d, want 2 (misses must not be cached)", port.trackCalls)
	}
}

func TestLayer_DisabledTiersDelegate(t *testing.T) {
	port := newCountingPort()
	layer := NewLayer(port, nil, nil, zap.NewNop())

	got, err := layer.GetTrack(context.Background(), "sp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Karma Police" {
		t.Errorf("unexpected track: %+v", got)
	}
}
