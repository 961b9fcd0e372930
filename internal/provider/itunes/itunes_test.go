package itunes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tubetag/internal/metadata"
)

const searchBody = `{"resultCount":1,"results":[{
	"trackId":11,"collectionId":22,
	"trackName":"F**k You","trackCensoredName":"F**k You (Clean)",
	"artistName":"CeeLo Green","collectionName":"The Lady Killer",
	"primaryGenreName":"R&B/Soul","trackNumber":2,"trackCount":14,"discNumber":1,
	"trackTimeMillis":222000,
	"artworkUrl100":"https://is1.mzstatic.com/image/thumb/abc/100x100bb.jpg",
	"releaseDate":"2010-08-19T07:00:00Z"}]}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(0)
	c.apiURL = srv.URL
	return c
}

func TestSearchByText(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("term") != "ceelo green fuck you" || q.Get("media") != "music" || q.Get("entity") != "song" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, searchBody)
	})

	hits, err := c.SearchByText(context.Background(), "ceelo green fuck you")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}

	h := hits[0]
	if h.ID != "11" || h.AlbumID != "22" || h.Catalog != "itunes" {
		t.Errorf("ids = %+v", h)
	}
	if h.Title != "F**k You" || h.AltTitle != "F**k You (Clean)" || h.Artist != "CeeLo Green" {
		t.Errorf("hit = %+v", h)
	}
}

func TestSearchByArtistTitleTerm(t *testing.T) {
	var term string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		term = r.URL.Query().Get("term")
		fmt.Fprint(w, `{"resultCount":0,"results":[]}`)
	})

	if _, err := c.SearchByArtistTitle(context.Background(), "CeeLo Green", "Forget You"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term != "CeeLo Green Forget You" {
		t.Errorf("term = %q", term)
	}
}

func TestSearchFailure(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	})

	_, err := c.SearchByText(context.Background(), "anything")
	if !errors.Is(err, metadata.ErrCatalogUnavailable) {
		t.Fatalf("err = %v, want ErrCatalogUnavailable", err)
	}
}

func TestFetchDetailFromRow(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchBody)
	})

	hits, err := c.SearchByText(context.Background(), "ceelo")
	if err != nil || len(hits) != 1 {
		t.Fatalf("search: %v, %d hits", err, len(hits))
	}

	info, err := c.FetchDetail(context.Background(), hits[0])
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}

	want := metadata.TrackInfo{
		Album:       "The Lady Killer",
		TrackNumber: 2,
		TotalTracks: 14,
		DiscNumber:  1,
		ReleaseDate: "2010-08-19",
		Genre:       "R&B/Soul",
		CoverURL:    "https://is1.mzstatic.com/image/thumb/abc/600x600bb.jpg",
		Duration:    222 * time.Second,
	}
	if info != want {
		t.Errorf("info = %+v\nwant %+v", info, want)
	}
}

func TestFetchDetailForeignHit(t *testing.T) {
	c := New(0)
	_, err := c.FetchDetail(context.Background(), metadata.CatalogHit{ID: "1", Raw: "deezer row"})
	if !errors.Is(err, metadata.ErrCatalogUnavailable) {
		t.Fatalf("err = %v, want ErrCatalogUnavailable", err)
	}
}
