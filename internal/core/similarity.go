package core

import (
	"tunesync/pkg/fuzzy"
)

// MatchThreshold is the minimum weighted similarity for a candidate to count
// as a match. Chosen with the two-decimal rounding of TrackSimilarity in mind.
const MatchThreshold = 0.75

// TrackSimilarity approximates how likely a and b are the same recording,
// returning a score in [0,1] rounded to two decimals. Identical non-empty
// ISRCs or MusicBrainz ids short-circuit to 1.0.
//
// The track-number and release-year weights are both gated on the presence of
// track numbers on both sides, not on each field individually. This mirrors
// the behavior the scoring was tuned against; do not "fix" it.
func TrackSimilarity(a, b Track) float64 {
	if a.ISRC != "" && a.ISRC == b.ISRC {
		return 1.0
	}
	if a.MusicBrainzID != "" && a.MusicBrainzID == b.MusicBrainzID {
		return 1.0
	}

	titleSim := fuzzy.StringSimilarity(fuzzy.Normalize(a.Title), fuzzy.Normalize(b.Title))
	artistSim := fuzzy.StringSimilarity(fuzzy.Normalize(a.PrimaryArtist), fuzzy.Normalize(b.PrimaryArtist))
	albumSim := fuzzy.StringSimilarity(fuzzy.Normalize(a.AlbumName), fuzzy.Normalize(b.AlbumName))

	albumWeight := 0.75
	if a.AlbumName != "" && b.AlbumName != "" {
		albumWeight = 1.25
	}
	numberedWeight := 0.0
	if a.TrackNumber != 0 && b.TrackNumber != 0 {
		numberedWeight = 0.5
	}

	weights := []float64{4.0, 3.0, albumWeight, 0.75, numberedWeight, numberedWeight}
	scores := []float64{
		titleSim,
		artistSim,
		albumSim,
		fuzzy.IntCloseness(a.DurationSeconds, b.DurationSeconds),
		fuzzy.IntCloseness(a.TrackNumber, b.TrackNumber),
		fuzzy.IntCloseness(a.ReleaseYear, b.ReleaseYear),
	}

	var weighted, total float64
	for i, w := range weights {
		weighted += scores[i] * w
		total += w
	}

	return fuzzy.RoundTo(weighted/total, 2)
}

// TracksMatch reports whether b is an acceptable stand-in for a.
func TracksMatch(a, b Track) bool {
	return TrackSimilarity(a, b) >= MatchThreshold
}
