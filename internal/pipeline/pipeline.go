package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"tubetag/internal/config"
	"tubetag/internal/downloader"
	"tubetag/internal/fingerprint"
	"tubetag/internal/logger"
	"tubetag/internal/metadata"
	"tubetag/internal/metrics"
	"tubetag/internal/provider"
	"tubetag/pkg/utils"
)

type Hooks struct {
	OnURLsExtracted func(total int)
	OnProgress      func()
	OnWarning       func(msg string)
	OnResult        func(Result)
}

// Result is the outcome of processing one video.
type Result struct {
	URL      string
	Video    metadata.VideoInfo
	Track    metadata.TrackInfo
	Decision metadata.Decision
	Path     string // final location, empty on dry run or failure
	Err      error
}

// videoSource is what the processor needs from the downloader.
type videoSource interface {
	ExtractURLs(ctx context.Context, url string) ([]string, error)
	FetchInfo(ctx context.Context, url string) (metadata.VideoInfo, error)
	DownloadAudio(ctx context.Context, url string) (string, error)
}

type tagger interface {
	Tag(ctx context.Context, path string, info metadata.TrackInfo) error
}

// Processor identifies, tags and files downloaded videos.
type Processor struct {
	source        videoSource
	arbiter       *metadata.Arbiter
	tagger        tagger
	metrics       *metrics.Metrics
	logger        *logger.Logger
	outputDir     string
	dryRun        bool
	exact         bool
	tagUnresolved bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics records catalog requests and resolutions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor wires the downloader, the configured catalogs, the
// fingerprint resolver and the tagger together.
func NewProcessor(cfg config.Config, log *logger.Logger, tmpDir string, opts ...Option) (*Processor, error) {
	p := &Processor{
		source:        downloader.New(cfg, log, tmpDir),
		tagger:        metadata.NewTagger(nil, log),
		logger:        log,
		outputDir:     cfg.OutputDir,
		dryRun:        cfg.DryRun,
		exact:         cfg.Exact,
		tagUnresolved: cfg.TagUnresolved,
	}
	for _, opt := range opts {
		opt(p)
	}

	catalogs, err := provider.Build(cfg.Catalogs, cfg.ProviderOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to set up catalogs: %w", err)
	}
	catalogs = p.metrics.InstrumentCatalogs(catalogs)

	var fp metadata.FingerprintResolver
	chromaprint := fingerprint.NewChromaprint(cfg.FpcalcPath)
	resolver := fingerprint.NewResolver(
		chromaprint,
		fingerprint.NewAcoustIDClient(cfg.AcoustIDKey, cfg.HTTPTimeout),
		log,
	)
	switch {
	case !resolver.Enabled():
		log.Debug("No AcoustID key configured, identifying from video titles only")
	case !chromaprint.Available():
		log.Warn("fpcalc not found, identifying from video titles only")
	default:
		fp = resolver
	}

	p.arbiter = metadata.NewArbiter(
		metadata.NewGuesser(catalogs, log),
		metadata.NewDetailResolver(catalogs, log),
		fp,
		log,
		metadata.WithToleranceDivisor(cfg.ToleranceDivisor),
		metadata.WithFingerprintBias(cfg.PreferFingerprint),
	)
	return p, nil
}

// download is an audio download running in the background.
type download struct {
	done chan struct{}
	path string
	err  error
}

func (p *Processor) startDownload(ctx context.Context, url string) *download {
	dl := &download{done: make(chan struct{})}
	go func() {
		defer close(dl.done)
		dl.path, dl.err = p.source.DownloadAudio(ctx, url)
	}()
	return dl
}

// wait blocks until the download finished or ctx is done.
func (dl *download) wait(ctx context.Context) (string, error) {
	select {
	case <-dl.done:
		return dl.path, dl.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Process downloads the audio of one video while its identity is resolved,
// then tags the file and moves it to the output directory. In dry-run mode
// only the video title is resolved.
func (p *Processor) Process(ctx context.Context, url string) Result {
	res := Result{URL: url}

	dlCtx, cancelDownload := context.WithCancel(ctx)
	defer cancelDownload()

	var dl *download
	var audio metadata.AudioSource
	if !p.dryRun {
		dl = p.startDownload(dlCtx, url)
		audio = dl.wait
	}

	video, err := p.source.FetchInfo(ctx, url)
	if err != nil {
		res.Err = fmt.Errorf("failed to fetch video info: %w", err)
		return res
	}
	res.Video = video
	p.logger.Debug("Video: %q by %q", video.Title, video.Author)

	start := time.Now()
	track, decision, err := p.arbiter.Resolve(ctx, video, audio, p.exact)
	res.Track, res.Decision = track, decision
	if ctx.Err() != nil {
		res.Err = ctx.Err()
		return res
	}
	p.metrics.ObserveResolution(decision.Source, time.Since(start))

	exhausted := errors.Is(err, metadata.ErrAllSourcesExhausted)
	if exhausted {
		p.logger.Warn("Could not identify %q, using the video metadata", video.Title)
	} else {
		p.logger.Info("%s - %s (%s)", track.Artist, track.Title, decision.Source)
	}

	if p.dryRun {
		return res
	}

	path, err := dl.wait(ctx)
	if err != nil {
		res.Err = fmt.Errorf("download failed: %w", err)
		return res
	}

	if !exhausted || p.tagUnresolved {
		if err := p.tagger.Tag(ctx, path, track); err != nil {
			p.logger.Warn("Failed to tag %s: %v", path, err)
		}
	}

	dst := utils.UniquePath(filepath.Join(p.outputDir, utils.TrackFileName(track.Artist, track.Title)))
	if err := utils.MoveFile(path, dst); err != nil {
		res.Err = fmt.Errorf("failed to move file to output: %w", err)
		return res
	}
	res.Path = dst
	p.logger.Debug("Saved %s", dst)

	return res
}

// Run processes every video behind url (a playlist or a single video) with
// at most parallel videos in flight. It fails only if every video fails.
func (p *Processor) Run(ctx context.Context, url string, parallel int, hooks Hooks) ([]Result, error) {
	urls, err := p.source.ExtractURLs(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to extract URLs: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no videos found - the playlist may be empty or private")
	}

	if hooks.OnURLsExtracted != nil {
		hooks.OnURLsExtracted(len(urls))
	}

	if parallel < 1 {
		parallel = 1
	}
	p.logger.Info("=== Identifying %d videos (%d parallel) ===", len(urls), parallel)

	results := make([]Result, len(urls))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, parallel)

	for i, u := range urls {
		// Check if context is cancelled
		select {
		case <-ctx.Done():
			p.logger.Warn("Cancelled, waiting for active videos to finish...")
			wg.Wait()
			return results[:i], fmt.Errorf("cancelled")
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			p.logger.Debug("Processing [%d/%d]: %s", idx+1, len(urls), u)
			res := p.Process(ctx, u)
			results[idx] = res

			if res.Err != nil && ctx.Err() == nil {
				msg := fmt.Sprintf("%s: %v", u, res.Err)
				p.logger.Warn("%s", msg)
				if hooks.OnWarning != nil {
					hooks.OnWarning(msg)
				}
			}
			if hooks.OnResult != nil {
				hooks.OnResult(res)
			}
			if hooks.OnProgress != nil {
				hooks.OnProgress()
			}
		}(i, u)
	}

	wg.Wait()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	if failed == len(urls) {
		return results, fmt.Errorf("all %d videos failed (private, unavailable, or geo-restricted)", len(urls))
	}
	if failed > 0 {
		p.logger.Warn("%d of %d videos failed", failed, len(urls))
	}
	p.logger.Info("Completed: %d successful, %d failed", len(urls)-failed, failed)

	return results, nil
}

// Run executes the full pipeline for cfg.URL: extract URLs, then download,
// identify, tag and move every video.
func Run(ctx context.Context, cfg config.Config, log *logger.Logger, tmpDir string, hooks Hooks, opts ...Option) ([]Result, error) {
	p, err := NewProcessor(cfg, log, tmpDir, opts...)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, cfg.URL, cfg.ParallelJobs, hooks)
}
