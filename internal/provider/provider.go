// Package provider contains the catalog implementations (Deezer, iTunes,
// MusicBrainz, Spotify).
//
// The Catalog interface is defined in internal/metadata (metadata.Catalog),
// following the Go convention of defining interfaces where they are consumed.
// Each sub-package here implements that interface for a specific service;
// Build assembles them in priority order from the configuration.
package provider

import (
	"fmt"
	"strings"
	"time"

	"tubetag/internal/metadata"
	"tubetag/internal/provider/deezer"
	"tubetag/internal/provider/itunes"
	"tubetag/internal/provider/musicbrainz"
	"tubetag/internal/provider/spotify"
)

// Names lists the catalogs Build knows about.
var Names = []string{"deezer", "itunes", "musicbrainz", "spotify"}

// Options carries what the catalogs need at construction.
type Options struct {
	Timeout             time.Duration
	SpotifyClientID     string
	SpotifyClientSecret string
}

// Build returns the named catalogs in the given order, which is their
// priority. Spotify is skipped when no credentials are configured.
func Build(names []string, opts Options) ([]metadata.Catalog, error) {
	var catalogs []metadata.Catalog
	seen := make(map[string]bool)

	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if seen[n] {
			continue
		}
		seen[n] = true

		switch n {
		case "deezer":
			catalogs = append(catalogs, deezer.New(opts.Timeout))
		case "itunes":
			catalogs = append(catalogs, itunes.New(opts.Timeout))
		case "musicbrainz":
			catalogs = append(catalogs, musicbrainz.New(opts.Timeout))
		case "spotify":
			if opts.SpotifyClientID == "" || opts.SpotifyClientSecret == "" {
				continue
			}
			catalogs = append(catalogs, spotify.New(opts.SpotifyClientID, opts.SpotifyClientSecret, opts.Timeout))
		default:
			return nil, fmt.Errorf("unknown catalog %q (available: %s)", n, strings.Join(Names, ", "))
		}
	}

	if len(catalogs) == 0 {
		return nil, fmt.Errorf("no catalog configured")
	}
	return catalogs, nil
}
