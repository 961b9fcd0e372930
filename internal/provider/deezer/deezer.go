package deezer

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

	lru "github.com/hashicorp/golang-lru/v2"

	"tubetag/internal/metadata"
)

const (
	name           = "deezer"
	userAgent      = "tubetag/1.0"
	searchLimit    = 10
	genreCacheSize = 128
)

// Client is a Deezer API client that implements metadata.Catalog.
type Client struct {
	httpClient *http.Client
	apiURL     string
	genres     *lru.Cache[int, string]
}

// New creates a new Deezer client. A zero timeout means 10 seconds.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	genres, _ := lru.New[int, string](genreCacheSize)
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     "https://api.deezer.com",
		genres:     genres,
	}
}

func (c *Client) Name() string { return name }

// SearchByText runs a free-text track search.
func (c *Client) SearchByText(ctx context.Context, query string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, query)
}

// SearchByArtistTitle runs a structured track search.
func (c *Client) SearchByArtistTitle(ctx context.Context, artist, title string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, buildQuery(artist, title))
}

func (c *Client) search(ctx context.Context, q string) ([]metadata.CatalogHit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}

	var resp searchResponse
	path := fmt.Sprintf("/search?q=%s&limit=%d", url.QueryEscape(q), searchLimit)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, metadata.Unavailable(name, "search", err)
	}
	return parseResults(resp.Data), nil
}

// FetchDetail follows track → album → cover → genre. Any failing step
// discards the whole detail.
func (c *Client) FetchDetail(ctx context.Context, hit metadata.CatalogHit) (metadata.TrackInfo, error) {
	var track trackDetail
	if err := c.getJSON(ctx, "/track/"+url.PathEscape(hit.ID), &track); err != nil {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "track", err)
	}

	var album albumDetail
	if err := c.getJSON(ctx, "/album/"+strconv.Itoa(track.Album.ID), &album); err != nil {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "album", err)
	}

	info := metadata.TrackInfo{
		Album:       album.Title,
		TrackNumber: track.TrackPosition,
		TotalTracks: album.NbTracks,
		DiscNumber:  track.DiskNumber,
		ReleaseDate: album.ReleaseDate,
		Duration:    time.Duration(track.Duration) * time.Second,
	}
	if info.TotalTracks == 0 {
		info.TotalTracks = len(album.Tracks.Data)
	}

	if album.Cover != "" {
		cover, err := c.resolveCover(ctx, album.Cover)
		if err != nil {
			return metadata.TrackInfo{}, metadata.Unavailable(name, "cover", err)
		}
		info.CoverURL = cover
	}

	if album.GenreID > 0 {
		genre, err := c.genre(ctx, album.GenreID)
		if err != nil {
			return metadata.TrackInfo{}, metadata.Unavailable(name, "genre", err)
		}
		info.Genre = genre
	}

	return info, nil
}

// resolveCover asks for the big cover and follows the redirect to the
// canonical image URL, upgraded to 600x600.
func (c *Client) resolveCover(ctx context.Context, cover string) (string, error) {
	sep := "?"
	if strings.Contains(cover, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cover+sep+"size=big", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create cover request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cover request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cover request returned %d", resp.StatusCode)
	}
	return strings.Replace(resp.Request.URL.String(), "400x400", "600x600", 1), nil
}

func (c *Client) genre(ctx context.Context, id int) (string, error) {
	if g, ok := c.genres.Get(id); ok {
		return g, nil
	}

	var g genreDetail
	if err := c.getJSON(ctx, "/genre/"+strconv.Itoa(id), &g); err != nil {
		return "", err
	}
	c.genres.Add(id, g.Name)
	return g.Name, nil
}

// getJSON fetches path and decodes it into out. Deezer reports most errors
// as a 200 with an "error" object, which is turned into an error here.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create deezer request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deezer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read deezer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deezer returned %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Error *apiError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode deezer response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("deezer API error: %s", envelope.Error.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode deezer response: %w", err)
	}
	return nil
}

func buildQuery(artist, title string) string {
	escape := func(s string) string {
		return strings.ReplaceAll(s, "\"", "")
	}
	var parts []string
	if title != "" {
		parts = append(parts, "track:\""+escape(title)+"\"")
	}
	if artist != "" {
		parts = append(parts, "artist:\""+escape(artist)+"\"")
	}
	return strings.Join(parts, " ")
}

func parseResults(items []trackItem) []metadata.CatalogHit {
	hits := make([]metadata.CatalogHit, 0, len(items))
	for _, item := range items {
		hits = append(hits, metadata.CatalogHit{
			Catalog:  name,
			ID:       strconv.Itoa(item.ID),
			Title:    item.Title,
			AltTitle: item.TitleShort,
			Artist:   item.Artist.Name,
			AlbumID:  strconv.Itoa(item.Album.ID),
		})
	}
	return hits
}

// Deezer API response types

type searchResponse struct {
	Data []trackItem `json:"data"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type trackItem struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	TitleShort string    `json:"title_short"`
	Artist     artist    `json:"artist"`
	Album      albumInfo `json:"album"`
}

type artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type albumInfo struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type trackDetail struct {
	ID            int       `json:"id"`
	TrackPosition int       `json:"track_position"`
	DiskNumber    int       `json:"disk_number"`
	Duration      int       `json:"duration"`
	Album         albumInfo `json:"album"`
}

type albumDetail struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	NbTracks    int    `json:"nb_tracks"`
	GenreID     int    `json:"genre_id"`
	Cover       string `json:"cover"`
	Tracks      struct {
		Data []struct {
			ID int `json:"id"`
		} `json:"data"`
	} `json:"tracks"`
}

type genreDetail struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
