package metadata

import (
	"context"
	"errors"
	"testing"

	"tubetag/internal/logger"
)

func TestResolveDetailsPriorityMerge(t *testing.T) {
	a := &fakeCatalog{
		name:       "a",
		structHits: []CatalogHit{{ID: "a1", Title: "Song", Artist: "Artist"}},
		details:    map[string]TrackInfo{"a1": {Album: "X", TrackNumber: 4}},
	}
	b := &fakeCatalog{
		name:       "b",
		structHits: []CatalogHit{{ID: "b1", Title: "Song (Remastered)", Artist: "Artist"}},
		details: map[string]TrackInfo{"b1": {
			Album:       "Y",
			TrackNumber: 9,
			TotalTracks: 12,
			Genre:       "Pop",
			ReleaseDate: "2011-05-02",
		}},
	}
	r := NewDetailResolver([]Catalog{a, b}, logger.New(false))

	got := r.ResolveDetails(context.Background(), "Song", "Artist", false)

	if got.Album != "X" {
		t.Errorf("Album = %q, want X from the higher-priority catalog", got.Album)
	}
	if got.TrackNumber != 4 {
		t.Errorf("TrackNumber = %d, want 4", got.TrackNumber)
	}
	if got.TotalTracks != 12 || got.Genre != "Pop" || got.ReleaseDate != "2011-05-02" {
		t.Errorf("missing fields not filled from lower priority: %+v", got)
	}
	if got.Title != "Song" || got.Source != "a" {
		t.Errorf("title/source = %q/%q, want Song/a", got.Title, got.Source)
	}
}

func TestResolveDetailsAtomicFetch(t *testing.T) {
	a := &fakeCatalog{
		name:       "a",
		structHits: []CatalogHit{{ID: "a1", Title: "Song", Artist: "Artist"}},
		details:    map[string]TrackInfo{"a1": {Album: "Half Done", TrackNumber: 1}},
		detailErr:  map[string]error{"a1": errors.New("album lookup failed")},
	}
	b := &fakeCatalog{
		name:       "b",
		structHits: []CatalogHit{{ID: "b1", Title: "SONG", Artist: "ARTIST"}},
		details:    map[string]TrackInfo{"b1": {Album: "Y"}},
	}
	r := NewDetailResolver([]Catalog{a, b}, logger.New(false))

	got := r.ResolveDetails(context.Background(), "Song", "Artist", false)

	if got.Album != "Y" || got.TrackNumber != 0 {
		t.Errorf("failed catalog leaked fields: %+v", got)
	}
	if got.Title != "SONG" || got.Artist != "ARTIST" || got.Source != "b" {
		t.Errorf("identity should come from b: %+v", got)
	}
}

func TestResolveDetailsNoConfirmation(t *testing.T) {
	a := &fakeCatalog{
		name:       "a",
		structHits: []CatalogHit{{ID: "a1", Title: "Different", Artist: "Artist"}},
		details:    map[string]TrackInfo{"a1": {Album: "Nope"}},
	}
	b := &fakeCatalog{name: "b", structErr: errors.New("503")}
	r := NewDetailResolver([]Catalog{a, b}, logger.New(false))

	got := r.ResolveDetails(context.Background(), "Song", "Artist", false)

	want := TrackInfo{Title: "Song", Artist: "Artist"}
	if got != want {
		t.Errorf("ResolveDetails = %+v, want %+v", got, want)
	}
}

func TestResolveDetailsStripsRadioEdit(t *testing.T) {
	r := NewDetailResolver(nil, logger.New(false))

	got := r.ResolveDetails(context.Background(), "Titanium (Radio Edit)", "David Guetta", false)
	if got.Title != "Titanium" {
		t.Errorf("Title = %q, want Titanium", got.Title)
	}

	got = r.ResolveDetails(context.Background(), "Titanium (Radio Edit)", "David Guetta", true)
	if got.Title != "Titanium (Radio Edit)" {
		t.Errorf("exact Title = %q, want it untouched", got.Title)
	}
}

func TestResolveDetailsLyricsWordsInTitle(t *testing.T) {
	cat := &fakeCatalog{
		name:       "deezer",
		structHits: []CatalogHit{{ID: "1", Title: "Paroles, paroles", Artist: "Dalida"}},
		details:    map[string]TrackInfo{"1": {Album: "Julien"}},
	}
	r := NewDetailResolver([]Catalog{cat}, logger.New(false))

	got := r.ResolveDetails(context.Background(), "Paroles, paroles", "Dalida", false)
	if got.Album != "Julien" || got.Source != "deezer" {
		t.Errorf("ResolveDetails = %+v, want the deezer hit confirmed", got)
	}
}

func TestResolveDetailsExact(t *testing.T) {
	cat := &fakeCatalog{
		name: "deezer",
		structHits: []CatalogHit{
			{ID: "1", Title: "Song (Acoustic)", Artist: "Artist"},
			{ID: "2", Title: "Song (Live)", Artist: "Artist"},
		},
		details: map[string]TrackInfo{
			"1": {Album: "Unplugged"},
			"2": {Album: "Live at Home"},
		},
	}
	r := NewDetailResolver([]Catalog{cat}, logger.New(false))

	got := r.ResolveDetails(context.Background(), "Song (Live)", "Artist", true)
	if got.Album != "Live at Home" || got.Title != "Song (Live)" || got.Source != "deezer" {
		t.Errorf("ResolveDetails exact = %+v, want the live version", got)
	}
}

func TestFindConfirmed(t *testing.T) {
	hits := []CatalogHit{
		{ID: "1", Title: "Song", Artist: "Other"},
		{ID: "2", Title: "Clean Song", AltTitle: "Song", Artist: "The Artist"},
		{ID: "3", Title: "Song", Artist: "The Artist"},
	}

	hit, title, ok := findConfirmed(hits, "song", "artist", false)
	if !ok || hit.ID != "2" || title != "Clean Song" {
		t.Errorf("findConfirmed = %+v %q %v, want hit 2 with its primary title", hit, title, ok)
	}

	if _, _, ok := findConfirmed(hits, "missing", "artist", false); ok {
		t.Error("expected no confirmation for an unknown title")
	}

	live := []CatalogHit{{ID: "4", Title: "Song (Live)", Artist: "The Artist"}}
	if _, _, ok := findConfirmed(live, "songlive", "theartist", true); !ok {
		t.Error("exact keys should confirm a hit with the same brackets")
	}
	if _, _, ok := findConfirmed(live, "songlive", "theartist", false); ok {
		t.Error("a bracketed key cannot match a hit normalized without brackets")
	}
}

func TestMergeMissing(t *testing.T) {
	dst := TrackInfo{Album: "Kept", DiscNumber: 2}
	mergeMissing(&dst, TrackInfo{
		Album:       "Ignored",
		DiscNumber:  1,
		TrackNumber: 3,
		CoverURL:    "http://cover",
		Title:       "not merged",
	})

	want := TrackInfo{Album: "Kept", DiscNumber: 2, TrackNumber: 3, CoverURL: "http://cover"}
	if dst != want {
		t.Errorf("mergeMissing = %+v, want %+v", dst, want)
	}
}
