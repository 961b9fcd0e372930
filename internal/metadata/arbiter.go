package metadata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"tubetag/internal/logger"
)

const defaultToleranceDivisor = 10.0

// Source names where the chosen metadata came from.
type Source string

const (
	SourceFingerprint Source = "fingerprint"
	SourceText        Source = "text"
	SourceRaw         Source = "raw"
)

// Decision records how the arbiter picked its answer. Scores are only set
// when both candidates were compared.
type Decision struct {
	Source           Source
	FingerprintScore int
	TextScore        int
	Tolerance        int
	Compared         bool
}

// AudioSource blocks until the downloaded audio file is ready and returns its
// path.
type AudioSource func(ctx context.Context) (string, error)

// ReadyAudio returns an AudioSource for a file that already exists.
func ReadyAudio(path string) AudioSource {
	return func(context.Context) (string, error) { return path, nil }
}

// ArbiterOption configures an Arbiter.
type ArbiterOption func(*Arbiter)

// WithToleranceDivisor sets the divisor of the length-scaled tolerance:
// tolerance = ceil(len(title) / divisor). Non-positive values are ignored.
func WithToleranceDivisor(d float64) ArbiterOption {
	return func(a *Arbiter) {
		if d > 0 {
			a.toleranceDivisor = d
		}
	}
}

// WithFingerprintBias toggles the tolerance granted to the fingerprint
// candidate. Without it the lower score simply wins, ties going to the
// fingerprint. A zero tolerance with the bias on still sends ties to the text
// candidate.
func WithFingerprintBias(enabled bool) ArbiterOption {
	return func(a *Arbiter) { a.fingerprintBias = enabled }
}

// Arbiter reconciles the text-derived and the fingerprint-derived identities
// of a downloaded video.
type Arbiter struct {
	guesser          *Guesser
	details          *DetailResolver
	fingerprint      FingerprintResolver
	logger           *logger.Logger
	toleranceDivisor float64
	fingerprintBias  bool
}

// NewArbiter creates an Arbiter. fingerprint may be nil, in which case only
// the video title is used.
func NewArbiter(guesser *Guesser, details *DetailResolver, fingerprint FingerprintResolver, log *logger.Logger, opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{
		guesser:          guesser,
		details:          details,
		fingerprint:      fingerprint,
		logger:           log,
		toleranceDivisor: defaultToleranceDivisor,
		fingerprintBias:  true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve identifies the track behind a video. The text branch starts from
// the video title right away; the audio branch waits for audio, fingerprints
// it and resolves details from the result. When both succeed, the candidate
// closest to the video title wins, with a length-scaled tolerance in favour
// of the fingerprint.
//
// If neither branch succeeds, Resolve returns a TrackInfo seeded from the raw
// video metadata together with ErrAllSourcesExhausted.
func (a *Arbiter) Resolve(ctx context.Context, video VideoInfo, audio AudioSource, exact bool) (TrackInfo, Decision, error) {
	var (
		fromText, fromAudio TrackInfo
		textOK, audioOK     bool
		g                   errgroup.Group
	)

	g.Go(func() error {
		fromText, textOK = a.resolveText(ctx, video.Title, exact)
		return nil
	})
	g.Go(func() error {
		fromAudio, audioOK = a.resolveAudio(ctx, audio, exact)
		return nil
	})
	_ = g.Wait()

	switch {
	case textOK && audioOK:
		return a.choose(fromAudio, fromText, video.Title)
	case audioOK:
		a.logger.Debug("Only the audio fingerprint was resolved")
		return fromAudio, Decision{Source: SourceFingerprint}, nil
	case textOK:
		a.logger.Debug("Only the video title was resolved")
		return fromText, Decision{Source: SourceText}, nil
	}

	raw := TrackInfo{Title: video.Title, Artist: video.Author, CoverURL: video.Thumbnail}
	return raw, Decision{Source: SourceRaw}, fmt.Errorf("%q: %w", video.Title, ErrAllSourcesExhausted)
}

func (a *Arbiter) resolveText(ctx context.Context, title string, exact bool) (TrackInfo, bool) {
	guess := a.guesser.GuessFromText(ctx, title, exact)
	if !guess.OK() {
		a.logger.Debug("Cannot guess the track from the video title")
		return TrackInfo{}, false
	}
	return a.details.ResolveDetails(ctx, guess.Title, guess.Artist, exact), true
}

func (a *Arbiter) resolveAudio(ctx context.Context, audio AudioSource, exact bool) (TrackInfo, bool) {
	if a.fingerprint == nil || audio == nil {
		return TrackInfo{}, false
	}

	path, err := audio(ctx)
	if err != nil {
		a.logger.Debug("Audio unavailable for fingerprinting: %v", err)
		return TrackInfo{}, false
	}

	guess, err := a.fingerprint.ResolveFromAudio(ctx, path)
	if err != nil {
		if !errors.Is(err, ErrNoFingerprintMatch) {
			a.logger.Debug("Fingerprinting failed: %v", err)
		} else {
			a.logger.Debug("%v", err)
		}
		return TrackInfo{}, false
	}
	if !guess.OK() {
		return TrackInfo{}, false
	}
	a.logger.Debug("Fingerprint answer: %q - %q", guess.Artist, guess.Title)

	return a.details.ResolveDetails(ctx, guess.Title, guess.Artist, exact), true
}

func (a *Arbiter) choose(fromAudio, fromText TrackInfo, videoTitle string) (TrackInfo, Decision, error) {
	d := Decision{
		FingerprintScore: Score(fromAudio, videoTitle),
		TextScore:        Score(fromText, videoTitle),
		Tolerance:        a.Tolerance(videoTitle),
		Compared:         true,
	}
	a.logger.Debug("Fingerprint score: %d, title score: %d, tolerance: %d", d.FingerprintScore, d.TextScore, d.Tolerance)

	preferred := PreferFingerprint(d.FingerprintScore, d.TextScore, d.Tolerance)
	if !a.fingerprintBias {
		preferred = d.FingerprintScore <= d.TextScore
	}
	if preferred {
		d.Source = SourceFingerprint
		return fromAudio, d, nil
	}
	d.Source = SourceText
	return fromText, d, nil
}

// Tolerance is the score handicap the fingerprint candidate may carry and
// still win: ceil(len(Simplify(videoTitle)) / divisor), or 0 when the bias is
// disabled.
func (a *Arbiter) Tolerance(videoTitle string) int {
	if !a.fingerprintBias {
		return 0
	}
	n := utf8.RuneCountInString(Simplify(videoTitle))
	return int(math.Ceil(float64(n) / a.toleranceDivisor))
}

// Score is the edit distance between a candidate and the video title,
// trying both "title artist" and "artist title" orders.
func Score(c TrackInfo, videoTitle string) int {
	target := Simplify(videoTitle)
	return min(
		Distance(Simplify(c.Title+" "+c.Artist), target),
		Distance(Simplify(c.Artist+" "+c.Title), target),
	)
}

// PreferFingerprint reports whether the fingerprint candidate wins:
// its score must be below the text score plus the tolerance.
func PreferFingerprint(fingerprintScore, textScore, tolerance int) bool {
	return fingerprintScore < textScore+tolerance
}
