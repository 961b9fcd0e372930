package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"tubetag/internal/metadata"
)

const (
	name            = "spotify"
	searchLimit     = 10
	genreCacheSize  = 256
	defaultAPIBase  = "https://api.spotify.com/v1/"
	defaultTimeout  = 10 * time.Second
	unknownArtistID = spotify.ID("")
)

// Client is a Spotify Web API catalog authenticated with the client
// credentials flow.
type Client struct {
	api    *spotify.Client
	genres *lru.Cache[spotify.ID, []string] // artist ID → genres
}

// New creates a new Spotify client. A zero timeout means 10 seconds.
func New(clientID, clientSecret string, timeout time.Duration) *Client {
	return newClient(clientID, clientSecret, spotifyauth.TokenURL, defaultAPIBase, timeout)
}

func newClient(clientID, clientSecret, tokenURL, apiURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := creds.Client(ctx)
	httpClient.Timeout = timeout

	genres, _ := lru.New[spotify.ID, []string](genreCacheSize)
	return &Client{
		api:    spotify.New(httpClient, spotify.WithBaseURL(apiURL)),
		genres: genres,
	}
}

func (c *Client) Name() string { return name }

// SearchByText runs a free-text track search.
func (c *Client) SearchByText(ctx context.Context, query string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, strings.TrimSpace(query))
}

// SearchByArtistTitle runs a fielded track search.
func (c *Client) SearchByArtistTitle(ctx context.Context, artist, title string) ([]metadata.CatalogHit, error) {
	return c.search(ctx, buildSearchQuery(artist, title))
}

func (c *Client) search(ctx context.Context, q string) ([]metadata.CatalogHit, error) {
	if q == "" {
		return nil, nil
	}

	res, err := c.api.Search(ctx, q, spotify.SearchTypeTrack, spotify.Limit(searchLimit))
	if err != nil {
		return nil, metadata.Unavailable(name, "search", err)
	}
	if res.Tracks == nil {
		return []metadata.CatalogHit{}, nil
	}
	return parseTracks(res.Tracks.Tracks), nil
}

// FetchDetail reads the album of the track and the genres of its album or,
// failing that, of its primary artist.
func (c *Client) FetchDetail(ctx context.Context, hit metadata.CatalogHit) (metadata.TrackInfo, error) {
	track, ok := hit.Raw.(*spotify.FullTrack)
	if !ok {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "detail", fmt.Errorf("hit %q has no spotify track", hit.ID))
	}

	album, err := c.api.GetAlbum(ctx, track.Album.ID)
	if err != nil {
		return metadata.TrackInfo{}, metadata.Unavailable(name, "album", err)
	}

	info := metadata.TrackInfo{
		Album:       album.Name,
		TrackNumber: int(track.TrackNumber),
		TotalTracks: int(album.Tracks.Total),
		DiscNumber:  int(track.DiscNumber),
		ReleaseDate: album.ReleaseDate,
		CoverURL:    largestImage(album.Images),
		Duration:    time.Duration(track.Duration) * time.Millisecond,
	}

	genres := album.Genres
	if len(genres) == 0 && len(track.Artists) > 0 {
		genres, err = c.artistGenres(ctx, track.Artists[0].ID)
		if err != nil {
			return metadata.TrackInfo{}, metadata.Unavailable(name, "artist", err)
		}
	}
	if len(genres) > 0 {
		info.Genre = titleCase(genres[0])
	}

	return info, nil
}

// artistGenres returns genres for an artist, using cache when available.
func (c *Client) artistGenres(ctx context.Context, artistID spotify.ID) ([]string, error) {
	if artistID == unknownArtistID {
		return nil, nil
	}
	if genres, ok := c.genres.Get(artistID); ok {
		return genres, nil
	}

	artist, err := c.api.GetArtist(ctx, artistID)
	if err != nil {
		return nil, err
	}
	c.genres.Add(artistID, artist.Genres)
	return artist.Genres, nil
}

func buildSearchQuery(artist, title string) string {
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

func parseTracks(tracks []spotify.FullTrack) []metadata.CatalogHit {
	hits := make([]metadata.CatalogHit, 0, len(tracks))
	for i := range tracks {
		t := &tracks[i]
		hit := metadata.CatalogHit{
			Catalog: name,
			ID:      string(t.ID),
			Title:   t.Name,
			AlbumID: string(t.Album.ID),
			Raw:     t,
		}
		if len(t.Artists) > 0 {
			hit.Artist = t.Artists[0].Name
		}
		hits = append(hits, hit)
	}
	return hits
}

func largestImage(images []spotify.Image) string {
	var best spotify.Image
	for _, img := range images {
		if img.Width*img.Height > best.Width*best.Height || best.URL == "" {
			best = img
		}
	}
	return best.URL
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
