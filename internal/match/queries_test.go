package match

import (
	"reflect"
	"testing"

	"tunesync/internal/core"
)

func TestBuildQueries_Deterministic(t *testing.T) {
	track := core.Track{
		Title:         "Karma Police (Remastered)",
		PrimaryArtist: "Radiohead",
		AlbumName:     "OK Computer",
	}

	want := []string{
		"karma police",
		"Karma Police (Remastered)",
		"radiohead",
		"Radiohead",
		"radiohead karma police",
		"karma police radiohead",
		"radiohead - karma police",
		"karma police - radiohead",
		"Radiohead Karma Police (Remastered)",
		"Karma Police (Remastered) Radiohead",
		"Radiohead - Karma Police (Remastered)",
		"Karma Police (Remastered) - Radiohead",
		"OK Computer",
	}

	got := BuildQueries(track)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildQueries mismatch:\n got %q\nwant %q", got, want)
	}

	// Same input, same list.
	if again := BuildQueries(track); !reflect.DeepEqual(again, got) {
		t.Error("BuildQueries is not deterministic")
	}
}

func TestBuildQueries_KeepsNormalizedDashVariants(t *testing.T) {
	// The cleaned dash combinations are distinct queries; they must not
	// collapse into the space-joined forms.
	got := BuildQueries(core.Track{Title: "Hello", PrimaryArtist: "Adele"})

	want := []string{
		"hello",
		"Hello",
		"adele",
		"Adele",
		"adele hello",
		"hello adele",
		"adele - hello",
		"hello - adele",
		"Adele Hello",
		"Hello Adele",
		"Adele - Hello",
		"Hello - Adele",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildQueries mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildQueries_TitleOnly(t *testing.T) {
	got := BuildQueries(core.Track{Title: "Yesterday"})

	want := []string{"yesterday", "Yesterday"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildQueries = %q, want %q", got, want)
	}
}

func TestBuildQueries_DropsDuplicatesAndEmpties(t *testing.T) {
	got := BuildQueries(core.Track{Title: "loner", PrimaryArtist: ""})

	// The normalized and raw title collapse into one entry.
	want := []string{"loner"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildQueries = %q, want %q", got, want)
	}
}

func TestBuildQueries_EmptyTrack(t *testing.T) {
	if got := BuildQueries(core.Track{}); len(got) != 0 {
		t.Errorf("BuildQueries on empty track = %q, want none", got)
	}
}
