package itunes

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

	"tubetag/internal/metadata"
)

const name = "itunes"

// Client is an iTunes Search API client that implements metadata.Catalog.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new iTunes client. A zero timeout means 10 seconds.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     "https://itunes.apple.com/search",
	}
}

func (c *Client) Name() string { return name }

// SearchByText searches songs matching a free-text term.
func (c *Client) SearchByText(ctx context.Context, query string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, query)
}

// SearchByArtistTitle searches songs with "artist title" as the term; the
// storefront has no structured search.
func (c *Client) SearchByArtistTitle(ctx context.Context, artist, title string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, strings.TrimSpace(artist+" "+title))
}

func (c *Client) search(ctx context.Context, term string) ([]metadata.CatalogHit, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", "10")

	reqURL := fmt.Sprintf("%s?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, metadata.Unavailable(name, "search", fmt.Errorf("failed to create itunes request: %w", err))
	}
	req.Header.Set("User-Agent", "tubetag/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, metadata.Unavailable(name, "search", fmt.Errorf("itunes search request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, metadata.Unavailable(name, "search", fmt.Errorf("itunes search returned %d: %s", resp.StatusCode, body))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, metadata.Unavailable(name, "search", fmt.Errorf("failed to decode itunes response: %w", err))
	}

	return parseResults(searchResp.Results), nil
}

// FetchDetail reads the detail carried by the search row itself; no further
// request is made.
func (c *Client) FetchDetail(_ context.Context, hit metadata.CatalogHit) (metadata.TrackInfo, error) {
	item, ok := hit.Raw.(resultItem)
	if !ok {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "detail", fmt.Errorf("hit %q has no itunes row", hit.ID))
	}

	info := metadata.TrackInfo{
		Album:       item.CollectionName,
		TrackNumber: item.TrackNumber,
		TotalTracks: item.TrackCount,
		DiscNumber:  item.DiscNumber,
		Genre:       item.PrimaryGenreName,
		Duration:    time.Duration(item.TrackTimeMillis) * time.Millisecond,
	}
	if date, _, _ := strings.Cut(item.ReleaseDate, "T"); date != "" {
		info.ReleaseDate = date
	}
	// Upgrade to 600x600 artwork
	if item.ArtworkURL100 != "" {
		info.CoverURL = strings.Replace(item.ArtworkURL100, "100x100", "600x600", 1)
	}
	return info, nil
}

func parseResults(items []resultItem) []metadata.CatalogHit {
	hits := make([]metadata.CatalogHit, 0, len(items))
	for _, item := range items {
		hits = append(hits, metadata.CatalogHit{
			Catalog:  name,
			ID:       strconv.Itoa(item.TrackID),
			Title:    item.TrackName,
			AltTitle: item.TrackCensoredName,
			Artist:   item.ArtistName,
			AlbumID:  strconv.Itoa(item.CollectionID),
			Raw:      item,
		})
	}
	return hits
}

// iTunes Search API response types

type searchResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []resultItem `json:"results"`
}

type resultItem struct {
	TrackID           int    `json:"trackId"`
	CollectionID      int    `json:"collectionId"`
	TrackName         string `json:"trackName"`
	TrackCensoredName string `json:"trackCensoredName"`
	ArtistName        string `json:"artistName"`
	CollectionName    string `json:"collectionName"`
	PrimaryGenreName  string `json:"primaryGenreName"`
	TrackNumber       int    `json:"trackNumber"`
	TrackCount        int    `json:"trackCount"`
	DiscNumber        int    `json:"discNumber"`
	TrackTimeMillis   int    `json:"trackTimeMillis"`
	ArtworkURL100     string `json:"artworkUrl100"`
	ReleaseDate       string `json:"releaseDate"`
}
