package metadata

import (
	"context"
	"strings"

	"tubetag/internal/logger"
)

// DetailResolver enriches a known (title, artist) pair with album, position,
// release date, genre and cover from every catalog.
type DetailResolver struct {
	catalogs []Catalog
	logger   *logger.Logger
}

// NewDetailResolver creates a DetailResolver. Catalogs are given in priority
// order; the first one is authoritative.
func NewDetailResolver(catalogs []Catalog, log *logger.Logger) *DetailResolver {
	return &DetailResolver{catalogs: catalogs, logger: log}
}

// confirmedTrack is a catalog's contribution: the hit that matched and the
// detail fetched for it.
type confirmedTrack struct {
	title  string
	artist string
	detail TrackInfo
}

// ResolveDetails queries every catalog concurrently and merges their answers.
// Fields from a higher-priority catalog are never overwritten; title and
// artist come from the highest-priority catalog that confirmed a hit.
// Unresolved fields are left empty.
func (r *DetailResolver) ResolveDetails(ctx context.Context, title, artist string, exact bool) TrackInfo {
	if !exact {
		title = strings.TrimSpace(StripRadioEdit(title))
	}
	r.logger.Debug("Resolving details for %q - %q", artist, title)

	titleKey := Normalize(title, exact)
	artistKey := Normalize(artist, exact)

	results := fanOut(ctx, r.catalogs, func(ctx context.Context, c Catalog) (*confirmedTrack, error) {
		hits, err := c.SearchByArtistTitle(ctx, artist, title)
		if err != nil {
			return nil, err
		}

		hit, matchedTitle, ok := findConfirmed(hits, titleKey, artistKey, exact)
		if !ok {
			return nil, nil
		}

		detail, err := c.FetchDetail(ctx, hit)
		if err != nil {
			return nil, err
		}
		return &confirmedTrack{title: matchedTitle, artist: hit.Artist, detail: detail}, nil
	})

	info := TrackInfo{Title: title, Artist: artist}
	identified := false
	for _, res := range results {
		if res.err != nil {
			r.logger.Debug("  %s: %v", res.catalog, res.err)
			continue
		}
		if res.value == nil {
			r.logger.Debug("  %s: no confirmed match", res.catalog)
			continue
		}
		r.logger.Debug("  %s infos: %+v", res.catalog, res.value.detail)

		if !identified {
			info.Title = res.value.title
			info.Artist = res.value.artist
			info.Source = res.catalog
			identified = true
		}
		mergeMissing(&info, res.value.detail)
	}

	return info
}

// findConfirmed returns the first hit whose title and artist both contain
// the normalized query title and artist, along with the title variant that
// matched. Hits are normalized with the same exact flag as the keys.
func findConfirmed(hits []CatalogHit, titleKey, artistKey string, exact bool) (CatalogHit, string, bool) {
	for _, hit := range hits {
		if !Matches(artistKey, Normalize(hit.Artist, exact)) {
			continue
		}
		for _, t := range hit.Titles() {
			if Matches(titleKey, Normalize(t, exact)) {
				return hit, t, true
			}
		}
	}
	return CatalogHit{}, "", false
}

// mergeMissing copies into dst every detail field dst does not have yet.
func mergeMissing(dst *TrackInfo, src TrackInfo) {
	if dst.Album == "" {
		dst.Album = src.Album
	}
	if dst.TrackNumber == 0 {
		dst.TrackNumber = src.TrackNumber
	}
	if dst.TotalTracks == 0 {
		dst.TotalTracks = src.TotalTracks
	}
	if dst.DiscNumber == 0 {
		dst.DiscNumber = src.DiscNumber
	}
	if dst.ReleaseDate == "" {
		dst.ReleaseDate = src.ReleaseDate
	}
	if dst.Genre == "" {
		dst.Genre = src.Genre
	}
	if dst.CoverURL == "" {
		dst.CoverURL = src.CoverURL
	}
	if dst.Duration == 0 {
		dst.Duration = src.Duration
	}
}
