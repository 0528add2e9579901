package departures

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/gtfsmanager"
	"github.com/OpenTransitTools/nextdeparture/business/metrics"
	"github.com/OpenTransitTools/nextdeparture/foundation/feedcache"
)

func newTestEngine(t *testing.T, cfg Config, static StaticFeed, live LiveFeed, m *metrics.Metrics) *Engine {
	t.Helper()
	engine, err := NewEngine(testLogger(), cfg, static, live, m)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return engine
}

func TestEngineInitialize(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		stopId   string
		want     string
	}{
		{name: "stop discovered by name", fragment: "island", stopId: "1", want: "24"},
		{name: "configured stop when nothing matches", fragment: "airport", stopId: "1", want: "1"},
		{name: "configured stop without fragment", stopId: "30", want: "30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			cfg := ferryConfig()
			cfg.StopId = tt.stopId
			cfg.StopNameFragment = tt.fragment
			static := &fakeStaticFeed{schedule: ferryBuilder().build()}
			engine := newTestEngine(t, cfg, static, &fakeLiveFeed{}, nil)

			is.NoErr(engine.Initialize(context.Background()))
			is.NoErr(engine.Initialize(context.Background()))
			is.Equal(engine.StopId(), tt.want)
			is.Equal(static.loads, 1) // second call does nothing
		})
	}
}

// slowStaticFeed holds Load until released
type slowStaticFeed struct {
	fakeStaticFeed
	loading chan struct{}
	release chan struct{}
}

func (f *slowStaticFeed) Load(context.Context) error {
	close(f.loading)
	<-f.release
	return nil
}

func TestEngineInitializeDoesNotBlockReaders(t *testing.T) {
	is := is.New(t)
	static := &slowStaticFeed{
		fakeStaticFeed: fakeStaticFeed{schedule: ferryBuilder().build()},
		loading:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	engine := newTestEngine(t, ferryConfig(), static, &fakeLiveFeed{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- engine.Initialize(context.Background())
	}()
	<-static.loading
	is.Equal(engine.StopId(), "24")
	is.True(engine.IsWithinServiceHours(at(11, 25)))
	_, _ = engine.RouteInfo("SB")

	close(static.release)
	is.NoErr(<-done)
}

func TestEngineInitializeFailures(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		wantErr bool
	}{
		{name: "malformed feed aborts", loadErr: fmt.Errorf("static: %w", gtfs.ErrFeedMalformed), wantErr: true},
		{name: "unavailable feed is retried later", loadErr: fmt.Errorf("static: %w", gtfs.ErrFeedUnavailable)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			static := &fakeStaticFeed{loadErr: tt.loadErr}
			engine := newTestEngine(t, ferryConfig(), static, &fakeLiveFeed{}, nil)

			err := engine.Initialize(context.Background())
			is.Equal(err != nil, tt.wantErr)
			if tt.wantErr {
				is.True(errors.Is(err, gtfs.ErrFeedMalformed))
			}

			static.schedule = ferryBuilder().build()
			static.loadErr = nil
			is.NoErr(engine.Initialize(context.Background()))
			is.Equal(static.loads, 2)
		})
	}
}

func TestEngineStaleStaticFeedDoesNotAbort(t *testing.T) {
	is := is.New(t)
	static := &fakeStaticFeed{
		schedule: ferryBuilder().build(),
		loadErr:  fmt.Errorf("static: %w: %w", feedcache.ErrStaleDataServed, gtfs.ErrFeedMalformed),
	}
	engine := newTestEngine(t, ferryConfig(), static, &fakeLiveFeed{}, nil)
	is.NoErr(engine.Initialize(context.Background()))
}

func TestEngineGetDepartures(t *testing.T) {
	is := is.New(t)
	live := &fakeLiveFeed{snapshot: &gtfs.FeedSnapshot{Updates: []gtfs.StopTimeUpdate{
		departingUpdate("A", "24", at(11, 25), intPtr(300)),
	}}}
	m := metrics.New()
	store := gtfsmanager.NewStoreFromSchedule(testLogger(), ferryBuilder().build())
	engine := newTestEngine(t, ferryConfig(), store, live, m)

	departures := engine.GetDepartures(context.Background(), "", at(11, 0), nil)
	is.Equal(summarize(departures), []string{"A@05-06 11:25 REALTIME", "B@05-06 11:31 STATIC"})
	is.Equal(departures[0].DelaySeconds, 300)
	is.Equal(live.fetches.Load(), int32(1))

	again := engine.GetDepartures(context.Background(), "", at(11, 0), nil)
	is.Equal(departures, again)

	is.Equal(testutil.ToFloat64(m.DeparturesServedTotal.WithLabelValues("REALTIME")), float64(2))
	is.Equal(testutil.ToFloat64(m.DeparturesServedTotal.WithLabelValues("STATIC")), float64(2))
	is.Equal(testutil.ToFloat64(m.FallbackBoardsTotal), float64(0))
}

func TestEngineRealtimeOutage(t *testing.T) {
	is := is.New(t)
	live := &fakeLiveFeed{err: fmt.Errorf("trip-updates: %w: %w", feedcache.ErrAbsent, gtfs.ErrFeedUnavailable)}
	store := gtfsmanager.NewStoreFromSchedule(testLogger(), ferryBuilder().build())
	engine := newTestEngine(t, ferryConfig(), store, live, nil)

	departures := engine.GetDepartures(context.Background(), "24", at(11, 0), intPtr(0))
	is.Equal(summarize(departures), []string{"A@05-06 11:20 STATIC"})
}

func TestEngineFallbackWithoutAnyFeed(t *testing.T) {
	is := is.New(t)
	static := &fakeStaticFeed{loadErr: fmt.Errorf("static: %w", gtfs.ErrFeedUnavailable)}
	live := &fakeLiveFeed{err: fmt.Errorf("trip-updates: %w", gtfs.ErrFeedUnavailable)}
	m := metrics.New()
	engine := newTestEngine(t, ferryConfig(), static, live, m)

	departures := engine.GetDepartures(context.Background(), "", at(10, 5), nil)
	is.Equal(len(departures), ferryConfig().FallbackCount)
	for _, departure := range departures {
		is.Equal(departure.Provenance, gtfs.FallbackProvenance)
	}
	is.Equal(testutil.ToFloat64(m.FallbackBoardsTotal), float64(1))

	is.Equal(len(engine.GetDepartures(context.Background(), "", at(2, 0), nil)), 0)
}

func TestEngineAlerts(t *testing.T) {
	alerts := []gtfs.Alert{
		{AlertId: "route", InformedEntities: []gtfs.InformedEntity{{RouteId: "SB"}}},
		{AlertId: "unscoped"},
	}
	tests := []struct {
		name   string
		policy gtfs.UnscopedAlertPolicy
		want   []string
	}{
		{name: "unscoped ignored", policy: gtfs.UnscopedAlertsIgnored, want: []string{"route"}},
		{name: "unscoped system wide", policy: gtfs.UnscopedAlertsSystemWide, want: []string{"route", "unscoped"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			cfg := ferryConfig()
			cfg.UnscopedAlerts = tt.policy
			store := gtfsmanager.NewStoreFromSchedule(testLogger(), ferryBuilder().build())
			engine := newTestEngine(t, cfg, store, &fakeLiveFeed{alerts: alerts}, nil)

			got := make([]string, 0)
			for _, alert := range engine.GetServiceAlerts(context.Background()) {
				if engine.AlertRelevantTo(alert, "") {
					got = append(got, alert.AlertId)
				}
			}
			is.Equal(got, tt.want)
			is.True(!engine.AlertRelevantTo(alerts[0], "X"))
		})
	}
}

func TestEngineAlertsUnavailable(t *testing.T) {
	is := is.New(t)
	store := gtfsmanager.NewStoreFromSchedule(testLogger(), ferryBuilder().build())
	engine := newTestEngine(t, ferryConfig(), store, &fakeLiveFeed{err: gtfs.ErrFeedUnavailable}, nil)

	alerts := engine.GetServiceAlerts(context.Background())
	is.True(alerts != nil)
	is.Equal(len(alerts), 0)
}

func TestEngineServiceHoursAndRouteInfo(t *testing.T) {
	is := is.New(t)
	store := gtfsmanager.NewStoreFromSchedule(testLogger(), ferryBuilder().build())
	engine := newTestEngine(t, ferryConfig(), store, &fakeLiveFeed{}, nil)
	is.NoErr(engine.Initialize(context.Background()))

	is.True(engine.IsWithinServiceHours(at(11, 25)))
	is.True(!engine.IsWithinServiceHours(at(12, 0)))
	start, end := engine.ServiceHours(at(12, 0))
	is.Equal(start, at(11, 20))
	is.Equal(end, at(11, 31))

	info, found := engine.RouteInfo("")
	is.True(found)
	is.Equal(info.Name, "SB")
	is.Equal(len(info.Directions), 2)
	is.Equal(info.Directions[0].Destinations, []string{"South Pier"})
	is.Equal(info.Directions[1].Destinations, []string{"North Terminal"})

	_, found = engine.RouteInfo("nope")
	is.True(!found)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	is := is.New(t)
	cfg := ferryConfig()
	cfg.MaxDepartures = 0
	_, err := NewEngine(testLogger(), cfg, &fakeStaticFeed{}, &fakeLiveFeed{}, nil)
	is.True(err != nil)
}
