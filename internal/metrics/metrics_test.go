package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"tubetag/internal/metadata"
)

type stubCatalog struct {
	hits []metadata.CatalogHit
	err  error
}

func (s stubCatalog) Name() string { return "stub" }

func (s stubCatalog) SearchByText(context.Context, string) ([]metadata.CatalogHit, error) {
	return s.hits, s.err
}

func (s stubCatalog) SearchByArtistTitle(context.Context, string, string) ([]metadata.CatalogHit, error) {
	return s.hits, s.err
}

func (s stubCatalog) FetchDetail(context.Context, metadata.CatalogHit) (metadata.TrackInfo, error) {
	return metadata.TrackInfo{}, s.err
}

// counterValue returns the value of the counter with the given labels, or -1.
func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if hasLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestInstrumentCatalog(t *testing.T) {
	m := New()
	ok := m.InstrumentCatalog(stubCatalog{hits: []metadata.CatalogHit{{Title: "Song"}}})
	empty := m.InstrumentCatalog(stubCatalog{})
	failing := m.InstrumentCatalog(stubCatalog{err: errors.New("boom")})

	if ok.Name() != "stub" {
		t.Errorf("Name() = %q, want wrapped name", ok.Name())
	}

	ok.SearchByText(context.Background(), "q")
	ok.SearchByText(context.Background(), "q")
	empty.SearchByArtistTitle(context.Background(), "a", "t")
	failing.FetchDetail(context.Background(), metadata.CatalogHit{})

	tests := []struct {
		op, status string
		want       float64
	}{
		{"search_text", "ok", 2},
		{"search_structured", "empty", 1},
		{"detail", "error", 1},
	}
	for _, tt := range tests {
		got := counterValue(t, m, "tubetag_catalog_requests_total",
			map[string]string{"catalog": "stub", "op": tt.op, "status": tt.status})
		if got != tt.want {
			t.Errorf("%s/%s = %v, want %v", tt.op, tt.status, got, tt.want)
		}
	}
}

func TestObserveResolution(t *testing.T) {
	m := New()
	m.ObserveResolution(metadata.SourceFingerprint, 2*time.Second)
	m.ObserveResolution(metadata.SourceText, time.Second)
	m.ObserveResolution(metadata.SourceText, time.Second)

	if got := counterValue(t, m, "tubetag_resolutions_total", map[string]string{"source": "text"}); got != 2 {
		t.Errorf("text resolutions = %v, want 2", got)
	}
	if got := counterValue(t, m, "tubetag_resolutions_total", map[string]string{"source": "fingerprint"}); got != 1 {
		t.Errorf("fingerprint resolutions = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveResolution(metadata.SourceRaw, time.Second)

	c := stubCatalog{}
	if got := m.InstrumentCatalogs([]metadata.Catalog{c}); got[0] != metadata.Catalog(c) {
		t.Error("nil metrics should leave catalogs unwrapped")
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveResolution(metadata.SourceRaw, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `tubetag_resolutions_total{source="raw"} 1`) {
		t.Errorf("exposition missing resolution counter:\n%s", body)
	}
}
