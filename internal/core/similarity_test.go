package core

import "testing"

func fullTrack(service ServiceName, id string) Track {
	return Track{
		Title:           "Paranoid Android",
		AlbumName:       "OK Computer",
		PrimaryArtist:   "Radiohead",
		DurationSeconds: 383,
		TrackNumber:     2,
		ReleaseYear:     1997,
		ServiceID:       id,
		ServiceName:     service,
	}
}

func TestTrackSimilarity_SelfIsOne(t *testing.T) {
	track := fullTrack(ServiceSpotify, "abc123")

	if got := TrackSimilarity(track, track); got != 1.0 {
		t.Errorf("TrackSimilarity(t, t) = %v, want 1.0", got)
	}
}

func TestTrackSimilarity_SparseTrackMatchesItself(t *testing.T) {
	// A track carrying only a title must still clear the threshold against
	// itself: the absent fields agree on both sides and score full marks,
	// except duration closeness which treats zero as unknown.
	track := Track{Title: "Yesterday", ServiceID: "x", ServiceName: ServiceSpotify}

	if got := TrackSimilarity(track, track); got != 0.91 {
		t.Errorf("TrackSimilarity(sparse, sparse) = %v, want 0.91", got)
	}
	if !TracksMatch(track, track) {
		t.Error("a sparse track should match itself")
	}
}

func TestTrackSimilarity_Symmetric(t *testing.T) {
	a := fullTrack(ServiceSpotify, "abc123")
	b := fullTrack(ServiceDeezer, "999")
	b.Title = "Paranoid Android (Remastered)"
	b.DurationSeconds = 380

	if ab, ba := TrackSimilarity(a, b), TrackSimilarity(b, a); ab != ba {
		t.Errorf("TrackSimilarity not symmetric: %v vs %v", ab, ba)
	}
}

func TestTrackSimilarity_ISRCForcesOne(t *testing.T) {
	a := Track{Title: "Foo", ISRC: "USRC17607839", ServiceName: ServiceReference}
	b := Track{Title: "Foo (2015 Remaster)", ISRC: "USRC17607839", ServiceName: ServiceSpotify, ServiceID: "x"}

	if got := TrackSimilarity(a, b); got != 1.0 {
		t.Errorf("identical ISRC should force similarity 1.0, got %v", got)
	}
}

func TestTrackSimilarity_MusicBrainzIDForcesOne(t *testing.T) {
	a := Track{Title: "Foo", MusicBrainzID: "4fd8f3e9-3f4f-4a06-9e4d-68cd6e0d24a3"}
	b := Track{Title: "Completely Different", MusicBrainzID: "4fd8f3e9-3f4f-4a06-9e4d-68cd6e0d24a3"}

	if got := TrackSimilarity(a, b); got != 1.0 {
		t.Errorf("identical MusicBrainz id should force similarity 1.0, got %v", got)
	}
}

func TestTrackSimilarity_EmptyISRCDoesNotShortcut(t *testing.T) {
	a := Track{Title: "One Thing"}
	b := Track{Title: "Another Entirely"}

	if got := TrackSimilarity(a, b); got == 1.0 {
		t.Error("empty identifiers must not force similarity 1.0")
	}
}

func TestTrackSimilarity_TrackNumberGatesYearWeight(t *testing.T) {
	// The release-year weight only participates when both sides carry track
	// numbers; year disagreement alone must not move the score.
	a := fullTrack(ServiceSpotify, "a")
	b := fullTrack(ServiceSpotify, "b")
	a.TrackNumber, b.TrackNumber = 0, 0

	a.ReleaseYear, b.ReleaseYear = 1997, 1997
	same := TrackSimilarity(a, b)
	b.ReleaseYear = 1967
	different := TrackSimilarity(a, b)

	if same != different {
		t.Errorf("year weight should be gated off without track numbers: %v vs %v", same, different)
	}
}

func TestTracksMatch_Threshold(t *testing.T) {
	a := fullTrack(ServiceSpotify, "a")
	b := fullTrack(ServiceDeezer, "b")

	if !TracksMatch(a, b) {
		t.Error("identical metadata across providers should match")
	}

	c := Track{Title: "Some Unrelated Song", PrimaryArtist: "Nobody", ServiceName: ServiceDeezer, ServiceID: "c"}
	if TracksMatch(a, c) {
		t.Error("unrelated tracks should not match")
	}
}
