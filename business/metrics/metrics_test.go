package metrics

import (
	"errors"
	"testing"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	is := is.New(t)
	m := New()

	m.FetchAttempted("static", nil)
	m.FetchAttempted("static", errors.New("timeout"))
	m.FetchAttempted("static", errors.New("timeout"))
	m.StaleServed("trip-updates")
	m.DeparturesServed([]gtfs.Departure{
		{Provenance: gtfs.RealtimeProvenance},
		{Provenance: gtfs.StaticProvenance},
		{Provenance: gtfs.StaticProvenance},
	})
	m.DeparturesServed([]gtfs.Departure{{Provenance: gtfs.FallbackProvenance}})
	m.BoardPublished("nats", nil)

	is.Equal(testutil.ToFloat64(m.FeedFetchesTotal.WithLabelValues("static", "success")), 1.0)
	is.Equal(testutil.ToFloat64(m.FeedFetchesTotal.WithLabelValues("static", "failure")), 2.0)
	is.Equal(testutil.ToFloat64(m.StaleServesTotal.WithLabelValues("trip-updates")), 1.0)
	is.Equal(testutil.ToFloat64(m.DeparturesServedTotal.WithLabelValues("STATIC")), 2.0)
	is.Equal(testutil.ToFloat64(m.FallbackBoardsTotal), 1.0)
	is.Equal(testutil.ToFloat64(m.BoardsPublishedTotal.WithLabelValues("nats", "success")), 1.0)
}

func TestMetrics_nil(t *testing.T) {
	var m *Metrics
	m.FetchAttempted("static", nil)
	m.StaleServed("static")
	m.DeparturesServed([]gtfs.Departure{{}})
	m.BoardPublished("database", nil)
}
