package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"tubetag/internal/logger"
	"tubetag/internal/metadata"
)

var errDisabled = errors.New("fingerprinting disabled: no AcoustID key")

type generator interface {
	Generate(ctx context.Context, path string) (Fingerprint, error)
}

type lookuper interface {
	Lookup(ctx context.Context, fp Fingerprint) ([]Match, error)
}

// Resolver implements metadata.FingerprintResolver.
type Resolver struct {
	chromaprint generator
	acoustid    lookuper
	logger      *logger.Logger
}

// NewResolver creates a Resolver. Without an API key it is disabled and
// never matches.
func NewResolver(chromaprint *Chromaprint, acoustid *AcoustIDClient, log *logger.Logger) *Resolver {
	r := &Resolver{logger: log}
	if chromaprint != nil && acoustid != nil && acoustid.apiKey != "" {
		r.chromaprint = chromaprint
		r.acoustid = acoustid
	}
	return r
}

// Enabled reports whether lookups will be attempted.
func (r *Resolver) Enabled() bool {
	return r.chromaprint != nil && r.acoustid != nil
}

// ResolveFromAudio fingerprints the file and returns the title and primary
// artist of the best-scored recording. Any failure, including an empty
// answer, is reported as metadata.ErrNoFingerprintMatch.
func (r *Resolver) ResolveFromAudio(ctx context.Context, path string) (metadata.TrackGuess, error) {
	if !r.Enabled() {
		return metadata.TrackGuess{}, fmt.Errorf("%w: %w", metadata.ErrNoFingerprintMatch, errDisabled)
	}

	fp, err := r.chromaprint.Generate(ctx, path)
	if err != nil {
		return metadata.TrackGuess{}, fmt.Errorf("%w: %w", metadata.ErrNoFingerprintMatch, err)
	}
	r.logger.Debug("Fingerprinted %s (%ds)", path, fp.Duration)

	matches, err := r.acoustid.Lookup(ctx, fp)
	if err != nil {
		return metadata.TrackGuess{}, fmt.Errorf("%w: %w", metadata.ErrNoFingerprintMatch, err)
	}

	guess, ok := topRecording(matches)
	if !ok {
		return metadata.TrackGuess{}, fmt.Errorf("%w: %d results without a usable recording", metadata.ErrNoFingerprintMatch, len(matches))
	}
	return guess, nil
}

// topRecording walks matches in score order and returns the first recording
// with a title and at least one artist.
func topRecording(matches []Match) (metadata.TrackGuess, bool) {
	for _, m := range matches {
		for _, rec := range m.Recordings {
			if rec.Title == "" || len(rec.Artists) == 0 || rec.Artists[0].Name == "" {
				continue
			}
			return metadata.TrackGuess{Title: rec.Title, Artist: rec.Artists[0].Name}, true
		}
	}
	return metadata.TrackGuess{}, false
}
