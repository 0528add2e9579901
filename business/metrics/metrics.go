// Package metrics provides Prometheus metrics for the departure service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	FeedFetchesTotal      *prometheus.CounterVec
	StaleServesTotal      *prometheus.CounterVec
	DeparturesServedTotal *prometheus.CounterVec
	FallbackBoardsTotal   prometheus.Counter
	BoardsPublishedTotal  *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	feedFetchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextdeparture_feed_fetches_total",
			Help: "Feed fetch attempts by feed and outcome",
		},
		[]string{"feed", "outcome"},
	)

	staleServesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextdeparture_stale_serves_total",
			Help: "Times an expired feed was served after a failed refresh",
		},
		[]string{"feed"},
	)

	departuresServedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextdeparture_departures_served_total",
			Help: "Departures returned to callers by provenance",
		},
		[]string{"provenance"},
	)

	fallbackBoardsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nextdeparture_fallback_boards_total",
		Help: "Departure requests answered by the fallback generator",
	})

	boardsPublishedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextdeparture_boards_published_total",
			Help: "Departure boards published by destination and outcome",
		},
		[]string{"destination", "outcome"},
	)

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextdeparture_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nextdeparture_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(
		feedFetchesTotal,
		staleServesTotal,
		departuresServedTotal,
		fallbackBoardsTotal,
		boardsPublishedTotal,
		httpRequestsTotal,
		httpRequestDuration,
	)

	return &Metrics{
		Registry:              registry,
		FeedFetchesTotal:      feedFetchesTotal,
		StaleServesTotal:      staleServesTotal,
		DeparturesServedTotal: departuresServedTotal,
		FallbackBoardsTotal:   fallbackBoardsTotal,
		BoardsPublishedTotal:  boardsPublishedTotal,
		HTTPRequestsTotal:     httpRequestsTotal,
		HTTPRequestDuration:   httpRequestDuration,
	}
}

// FetchAttempted counts a feed fetch attempt
func (m *Metrics) FetchAttempted(feed string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.FeedFetchesTotal.WithLabelValues(feed, outcome).Inc()
}

// StaleServed counts a stale serve of feed
func (m *Metrics) StaleServed(feed string) {
	if m == nil {
		return
	}
	m.StaleServesTotal.WithLabelValues(feed).Inc()
}

// DeparturesServed counts departures by provenance, and the board when it came from the fallback generator
func (m *Metrics) DeparturesServed(departures []gtfs.Departure) {
	if m == nil {
		return
	}
	fallback := false
	for _, departure := range departures {
		m.DeparturesServedTotal.WithLabelValues(departure.Provenance.String()).Inc()
		fallback = fallback || departure.Provenance == gtfs.FallbackProvenance
	}
	if fallback {
		m.FallbackBoardsTotal.Inc()
	}
}

// BoardPublished counts a departure board sent to destination ("nats" or "database")
func (m *Metrics) BoardPublished(destination string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.BoardsPublishedTotal.WithLabelValues(destination, outcome).Inc()
}
