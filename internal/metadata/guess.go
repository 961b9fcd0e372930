package metadata

import (
	"context"

	"tubetag/internal/logger"
)

// Guesser turns a noisy free-text title into a (title, artist) guess by
// asking every catalog's free-text search.
type Guesser struct {
	catalogs []Catalog
	logger   *logger.Logger
}

// NewGuesser creates a Guesser. Catalogs are given in priority order.
func NewGuesser(catalogs []Catalog, log *logger.Logger) *Guesser {
	return &Guesser{catalogs: catalogs, logger: log}
}

// GuessFromText returns the first confident guess in catalog priority order,
// or an empty guess. If the first pass finds nothing, the query is retried
// once with its "feat." clauses removed.
func (g *Guesser) GuessFromText(ctx context.Context, query string, exact bool) TrackGuess {
	return g.guess(ctx, query, exact, false)
}

func (g *Guesser) guess(ctx context.Context, query string, exact, lastAttempt bool) TrackGuess {
	search := query
	if !exact {
		search = StripNoise(query)
	}
	g.logger.Debug("Guessing track from %q (search: %q)", query, search)

	results := fanOut(ctx, g.catalogs, func(ctx context.Context, c Catalog) (TrackGuess, error) {
		hits, err := c.SearchByText(ctx, search)
		if err != nil {
			return TrackGuess{}, err
		}
		guess, tentative := pickConfident(hits, search, exact)
		if !guess.OK() && tentative.OK() {
			g.logger.Debug("  %s: only a tentative match %q - %q", c.Name(), tentative.Artist, tentative.Title)
		}
		return guess, nil
	})

	var best TrackGuess
	for _, r := range results {
		if r.err != nil {
			g.logger.Debug("  %s: %v", r.catalog, r.err)
			continue
		}
		g.logger.Debug("  %s answer: %q - %q", r.catalog, r.value.Artist, r.value.Title)
		if !best.OK() && r.value.OK() {
			best = r.value
		}
	}

	if !best.OK() && !lastAttempt {
		return g.guess(ctx, StripFeaturing(query), exact, true)
	}
	return best
}

// pickConfident scans hits in order for the first one whose artist occurs in
// the search text and whose title occurs in what remains once that artist is
// removed. The first hit passing only the artist test is returned as
// tentative.
func pickConfident(hits []CatalogHit, search string, exact bool) (confident, tentative TrackGuess) {
	normalizedSearch := Normalize(search, exact)

	for _, hit := range hits {
		if !Matches(Normalize(hit.Artist, exact), normalizedSearch) {
			continue
		}

		remainder := StripArtist(hit.Artist, search, exact)
		for _, title := range hit.Titles() {
			if Matches(Normalize(title, exact), remainder) {
				return TrackGuess{Title: title, Artist: hit.Artist}, tentative
			}
		}

		if !tentative.OK() {
			tentative = TrackGuess{Title: hit.Title, Artist: hit.Artist}
		}
	}

	return TrackGuess{}, tentative
}
