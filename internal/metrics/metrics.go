// Package metrics collects prometheus metrics about catalog traffic and
// identity resolution on a private registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tubetag/internal/metadata"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	CatalogRequests *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CatalogRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubetag_catalog_requests_total",
				Help: "Total number of catalog requests",
			},
			[]string{"catalog", "op", "status"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubetag_resolutions_total",
				Help: "Total number of identified videos by winning source",
			},
			[]string{"source"},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tubetag_resolve_duration_seconds",
				Help:    "Time spent resolving the identity of one video",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.registry.MustRegister(
		m.CatalogRequests,
		m.Resolutions,
		m.ResolveDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolution records one arbiter decision and how long it took.
func (m *Metrics) ObserveResolution(source metadata.Source, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(string(source)).Inc()
	m.ResolveDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeRequest(catalog, op string, n int, err error) {
	status := "ok"
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		status = "cancelled"
	case err != nil:
		status = "error"
	case n == 0:
		status = "empty"
	}
	m.CatalogRequests.WithLabelValues(catalog, op, status).Inc()
}

// InstrumentCatalogs wraps every catalog with InstrumentCatalog.
func (m *Metrics) InstrumentCatalogs(catalogs []metadata.Catalog) []metadata.Catalog {
	if m == nil {
		return catalogs
	}
	out := make([]metadata.Catalog, len(catalogs))
	for i, c := range catalogs {
		out[i] = m.InstrumentCatalog(c)
	}
	return out
}

// InstrumentCatalog returns a catalog that counts every request made
// through c. The wrapped catalog keeps c's name.
func (m *Metrics) InstrumentCatalog(c metadata.Catalog) metadata.Catalog {
	if m == nil {
		return c
	}
	return &instrumentedCatalog{next: c, metrics: m}
}

type instrumentedCatalog struct {
	next    metadata.Catalog
	metrics *Metrics
}

func (c *instrumentedCatalog) Name() string { return c.next.Name() }

func (c *instrumentedCatalog) SearchByText(ctx context.Context, query string) ([]metadata.CatalogHit, error) {
	hits, err := c.next.SearchByText(ctx, query)
	c.metrics.observeRequest(c.next.Name(), "search_text", len(hits), err)
	return hits, err
}

func (c *instrumentedCatalog) SearchByArtistTitle(ctx context.Context, artist, title string) ([]metadata.CatalogHit, error) {
	hits, err := c.next.SearchByArtistTitle(ctx, artist, title)
	c.metrics.observeRequest(c.next.Name(), "search_structured", len(hits), err)
	return hits, err
}

func (c *instrumentedCatalog) FetchDetail(ctx context.Context, hit metadata.CatalogHit) (metadata.TrackInfo, error) {
	info, err := c.next.FetchDetail(ctx, hit)
	c.metrics.observeRequest(c.next.Name(), "detail", 1, err)
	return info, err
}
