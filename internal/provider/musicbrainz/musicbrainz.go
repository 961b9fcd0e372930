package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tubetag/internal/metadata"
)

const (
	name      = "musicbrainz"
	userAgent = "tubetag/1.0 (https://github.com/tubetag/tubetag)"
)

// Client is a MusicBrainz Web API client that implements metadata.Catalog.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	coverArtURL string
	limiter     *rate.Limiter
}

// New creates a new MusicBrainz client. A zero timeout means 10 seconds.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiURL:      "https://musicbrainz.org/ws/2",
		coverArtURL: "https://coverartarchive.org",
		// 1 req/s per MusicBrainz guidelines
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *Client) Name() string { return name }

// SearchByText runs a recording search with the text as an escaped Lucene
// query.
func (c *Client) SearchByText(ctx context.Context, query string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, luceneEscape(strings.TrimSpace(query)))
}

// SearchByArtistTitle runs a fielded recording search.
func (c *Client) SearchByArtistTitle(ctx context.Context, artist, title string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, buildQuery(artist, title))
}

func (c *Client) search(ctx context.Context, q string) ([]metadata.CatalogHit, error) {
	if q == "" {
		return nil, nil
	}

	var searchResp searchResponse
	path := fmt.Sprintf("/recording?query=%s&fmt=json&limit=10", url.QueryEscape(q))
	if err := c.getJSON(ctx, path, &searchResp); err != nil {
		return nil, metadata.Unavailable(name, "search", err)
	}
	return parseRecordings(searchResp.Recordings), nil
}

// FetchDetail picks the best release of the recording, reads the recording's
// position and the release genres, and resolves the front cover.
func (c *Client) FetchDetail(ctx context.Context, hit metadata.CatalogHit) (metadata.TrackInfo, error) {
	rec, ok := hit.Raw.(*recording)
	if !ok {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "detail", fmt.Errorf("hit %q has no musicbrainz recording", hit.ID))
	}

	info := metadata.TrackInfo{Duration: time.Duration(rec.Length) * time.Millisecond}
	if len(rec.Releases) == 0 {
		return info, nil
	}
	best := pickBestRelease(rec.Releases)

	var rel releaseDetail
	path := fmt.Sprintf("/release/%s?inc=recordings+genres&fmt=json", url.PathEscape(best.ID))
	if err := c.getJSON(ctx, path, &rel); err != nil {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "release", err)
	}

	info.Album = rel.Title
	info.ReleaseDate = rel.Date
	info.Genre = topGenre(rel.Genres)
	if m, t, ok := rel.locate(rec.ID); ok {
		info.DiscNumber = m.Position
		info.TrackNumber = t.Position
		info.TotalTracks = m.TrackCount
	}

	cover, err := c.resolveCover(ctx, best.ID)
	if err != nil {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "cover", err)
	}
	info.CoverURL = cover

	return info, nil
}

// resolveCover returns the location the cover art archive redirects the
// release's front-500 image to. A release without artwork yields "".
func (c *Client) resolveCover(ctx context.Context, releaseID string) (string, error) {
	coverURL := fmt.Sprintf("%s/release/%s/front-500", c.coverArtURL, url.PathEscape(releaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, coverURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create cover request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	noFollow := *c.httpClient
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := noFollow.Do(req)
	if err != nil {
		return "", fmt.Errorf("cover request failed: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc, err := resp.Location()
		if err != nil {
			return "", fmt.Errorf("cover redirect without location: %w", err)
		}
		return loc.String(), nil
	case resp.StatusCode == http.StatusOK:
		return coverURL, nil
	}
	return "", fmt.Errorf("cover request returned %d", resp.StatusCode)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return fmt.Errorf("musicbrainz request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("musicbrainz returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode musicbrainz response: %w", err)
	}
	return nil
}

// doWithRetry executes the request under the rate limit, retrying once on
// 429/503 after the advertised Retry-After delay.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		retryAfter := 2
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(retryAfter) * time.Second):
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.httpClient.Do(req.Clone(ctx))
	}

	return resp, nil
}

func buildQuery(artist, title string) string {
	var parts []string
	if title != "" {
		parts = append(parts, fmt.Sprintf("recording:\"%s\"", quoteEscape(title)))
	}
	if artist != "" {
		parts = append(parts, fmt.Sprintf("artist:\"%s\"", quoteEscape(artist)))
	}
	return strings.Join(parts, " AND ")
}

var luceneReplacer = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
)

// luceneEscape escapes Lucene query syntax so free text is searched
// literally.
func luceneEscape(s string) string {
	return luceneReplacer.Replace(s)
}

func quoteEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func parseRecordings(recordings []recording) []metadata.CatalogHit {
	hits := make([]metadata.CatalogHit, 0, len(recordings))
	for i := range recordings {
		rec := &recordings[i]
		hit := metadata.CatalogHit{
			Catalog: name,
			ID:      rec.ID,
			Title:   rec.Title,
			Artist:  primaryArtist(rec.ArtistCredit),
			Raw:     rec,
		}
		if len(rec.Releases) > 0 {
			hit.AlbumID = pickBestRelease(rec.Releases).ID
		}
		hits = append(hits, hit)
	}
	return hits
}

func primaryArtist(credits []artistCredit) string {
	if len(credits) == 0 {
		return ""
	}
	if credits[0].Name != "" {
		return credits[0].Name
	}
	return credits[0].Artist.Name
}

// pickBestRelease selects the most appropriate release for tagging.
// Prefers: Official status, Album type, no secondary types (not Compilation), earliest date.
func pickBestRelease(releases []release) release {
	best := releases[0]
	bestScore := releaseScore(best)

	for _, rel := range releases[1:] {
		s := releaseScore(rel)
		if s > bestScore || (s == bestScore && rel.Date != "" && (best.Date == "" || rel.Date < best.Date)) {
			best = rel
			bestScore = s
		}
	}
	return best
}

func releaseScore(rel release) int {
	score := 0

	if rel.Status == "Official" {
		score += 4
	}

	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}

	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score += 1
	}

	return score
}

// topGenre returns the most voted genre name.
func topGenre(genres []genre) string {
	var best genre
	for _, g := range genres {
		if g.Count > best.Count || best.Name == "" {
			best = g
		}
	}
	return best.Name
}

// locate finds the medium and track holding the recording.
func (r releaseDetail) locate(recordingID string) (medium, releaseTrack, bool) {
	for _, m := range r.Media {
		for _, t := range m.Tracks {
			if t.Recording.ID == recordingID {
				return m, t, true
			}
		}
	}
	return medium{}, releaseTrack{}, false
}

// MusicBrainz API response types

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Name   string     `json:"name"`
	Artist artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Date         string       `json:"date"`
	ReleaseGroup releaseGroup `json:"release-group"`
}

type releaseGroup struct {
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}

type releaseDetail struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Date   string   `json:"date"`
	Media  []medium `json:"media"`
	Genres []genre  `json:"genres"`
}

type medium struct {
	Position   int            `json:"position"`
	TrackCount int            `json:"track-count"`
	Tracks     []releaseTrack `json:"tracks"`
}

type releaseTrack struct {
	Position  int `json:"position"`
	Recording struct {
		ID string `json:"id"`
	} `json:"recording"`
}

type genre struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
