package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.senan.xyz/taglib"

	"tubetag/internal/logger"
)

// Tagger writes resolved metadata and cover art into audio files.
type Tagger struct {
	httpClient *http.Client
	logger     *logger.Logger
}

// NewTagger creates a Tagger. A nil client gets a default one.
func NewTagger(client *http.Client, log *logger.Logger) *Tagger {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Tagger{httpClient: client, logger: log}
}

// Tag writes info to the file at path. A cover that cannot be downloaded is
// logged and skipped; only tag writing failures are returned.
func (t *Tagger) Tag(ctx context.Context, path string, info TrackInfo) error {
	if err := WriteTags(path, info); err != nil {
		return err
	}

	if info.CoverURL == "" {
		return nil
	}
	data, err := t.fetchCover(ctx, info.CoverURL)
	if err != nil {
		t.logger.Warn("  Failed to download cover: %v", err)
		return nil
	}
	if err := WriteArtwork(path, data); err != nil {
		t.logger.Warn("  Failed to embed cover: %v", err)
	}
	return nil
}

func (t *Tagger) fetchCover(ctx context.Context, coverURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cover request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover data: %w", err)
	}
	return data, nil
}

// TagsFor maps a TrackInfo to taglib tag keys. Empty fields are omitted.
// Track numbers are written as "n/N" when the total is known, the date as
// the release year, and only the first of several "/"-separated genres.
func TagsFor(info TrackInfo) map[string][]string {
	tags := make(map[string][]string)

	if info.Title != "" {
		tags[taglib.Title] = []string{info.Title}
	}
	if info.Artist != "" {
		tags[taglib.Artist] = []string{info.Artist}
	}
	if info.Album != "" {
		tags[taglib.Album] = []string{info.Album}
	}
	if info.TrackNumber > 0 {
		n := strconv.Itoa(info.TrackNumber)
		if info.TotalTracks > 0 {
			n += "/" + strconv.Itoa(info.TotalTracks)
		}
		tags[taglib.TrackNumber] = []string{n}
	}
	if info.DiscNumber > 0 {
		tags[taglib.DiscNumber] = []string{strconv.Itoa(info.DiscNumber)}
	}
	if year := releaseYear(info.ReleaseDate); year != "" {
		tags[taglib.Date] = []string{year}
	}
	if genre := primaryGenre(info.Genre); genre != "" {
		tags[taglib.Genre] = []string{genre}
	}

	return tags
}

// WriteTags writes the given TrackInfo metadata to an audio file.
func WriteTags(path string, info TrackInfo) error {
	if err := taglib.WriteTags(path, TagsFor(info), 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}

// WriteArtwork embeds artwork image data into an audio file.
func WriteArtwork(path string, imageData []byte) error {
	if len(imageData) == 0 {
		return nil
	}
	if err := taglib.WriteImage(path, imageData); err != nil {
		return fmt.Errorf("failed to write artwork to %s: %w", path, err)
	}
	return nil
}

func releaseYear(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	if _, err := strconv.Atoi(date[:4]); err != nil {
		return ""
	}
	return date[:4]
}

func primaryGenre(genre string) string {
	if i := strings.Index(genre, "/"); i >= 0 {
		genre = genre[:i]
	}
	return strings.TrimSpace(genre)
}
