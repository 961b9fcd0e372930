package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCatalogUnavailable marks a transport or parse failure of one catalog.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrNoFingerprintMatch is returned when fingerprinting yields no candidate.
	ErrNoFingerprintMatch = errors.New("no fingerprint match")
	// ErrAllSourcesExhausted is returned when neither the title nor the audio
	// produced a usable candidate.
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
)

// CatalogError describes a failed call to a single catalog.
type CatalogError struct {
	Catalog string
	Op      string
	Err     error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Catalog, e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

func (e *CatalogError) Is(target error) bool { return target == ErrCatalogUnavailable }

// Unavailable wraps err as a CatalogError for the given catalog operation.
func Unavailable(catalog, op string, err error) error {
	return &CatalogError{Catalog: catalog, Op: op, Err: err}
}

// TrackGuess is a (title, artist) pair guessed from text or audio.
// An empty guess means nothing was resolved.
type TrackGuess struct {
	Title  string
	Artist string
}

// OK reports whether both title and artist are present.
func (g TrackGuess) OK() bool {
	return g.Title != "" && g.Artist != ""
}

// CatalogHit is one candidate row returned by a catalog search. Shared
// resolution logic only reads Title, AltTitle and Artist; everything else
// belongs to the catalog that produced the hit.
type CatalogHit struct {
	Catalog  string
	ID       string
	Title    string
	AltTitle string // e.g. a censored or short variant of Title
	Artist   string
	AlbumID  string
	Raw      any
}

// Titles returns the non-empty title variants of the hit, Title first.
func (h CatalogHit) Titles() []string {
	titles := make([]string, 0, 2)
	if h.Title != "" {
		titles = append(titles, h.Title)
	}
	if h.AltTitle != "" && h.AltTitle != h.Title {
		titles = append(titles, h.AltTitle)
	}
	return titles
}

// TrackInfo is the enriched metadata record for one track. Zero values mean
// the field is unresolved.
type TrackInfo struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	TotalTracks int
	DiscNumber  int
	ReleaseDate string
	Genre       string
	CoverURL    string
	Duration    time.Duration
	Source      string // catalog that supplied title and artist
}

// VideoInfo is the descriptive metadata of the remote video an audio file was
// extracted from.
type VideoInfo struct {
	URL       string
	Title     string
	Author    string
	Thumbnail string
}

// Catalog is a searchable music metadata source.
type Catalog interface {
	Name() string
	// SearchByText returns an empty slice, not an error, when nothing is found.
	SearchByText(ctx context.Context, query string) ([]CatalogHit, error)
	SearchByArtistTitle(ctx context.Context, artist, title string) ([]CatalogHit, error)
	// FetchDetail resolves album, position, genre and cover for a confirmed
	// hit. It either returns every field it could resolve or an error.
	FetchDetail(ctx context.Context, hit CatalogHit) (TrackInfo, error)
}

// FingerprintResolver identifies a track from its audio.
type FingerprintResolver interface {
	ResolveFromAudio(ctx context.Context, path string) (TrackGuess, error)
}
