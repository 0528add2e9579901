// Package departures answers which departures leave a stop next, merging the static schedule with
// realtime trip updates and falling back to synthesized departures when no feed is usable
package departures

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/gtfsmanager"
	"github.com/OpenTransitTools/nextdeparture/business/metrics"
	"github.com/OpenTransitTools/nextdeparture/business/realtime"
)

// StaticFeed is the static schedule store used by the Engine
type StaticFeed interface {
	ScheduleSource
	Load(ctx context.Context) error
	FindStopByNameFragment(fragment string) (gtfs.Stop, bool)
	RouteInfo(routeId string, stopId string) (gtfsmanager.RouteInfo, bool)
}

// LiveFeed provides realtime trip updates and alerts. Stale data may be returned together with an error.
type LiveFeed interface {
	FetchTripUpdates(ctx context.Context) (*gtfs.FeedSnapshot, error)
	FetchAlerts(ctx context.Context) ([]gtfs.Alert, error)
}

// Engine is the entry point for callers asking for departures, alerts and service hours of the target stop
type Engine struct {
	log        *log.Logger
	cfg        Config
	static     StaticFeed
	live       LiveFeed
	metrics    *metrics.Metrics
	fallback   *FallbackGenerator
	reconciler *Reconciler

	// initMu serializes Initialize, mu guards initialized and stopId and is never held during a load
	initMu      sync.Mutex
	mu          sync.Mutex
	initialized bool
	stopId      string
}

// NewEngine validates cfg and builds an Engine. m may be nil.
func NewEngine(log *log.Logger, cfg Config, static StaticFeed, live LiveFeed, m *metrics.Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fallback := NewFallbackGenerator(cfg, static)
	return &Engine{
		log:        log,
		cfg:        cfg,
		static:     static,
		live:       live,
		metrics:    m,
		fallback:   fallback,
		reconciler: NewReconciler(log, cfg, static, fallback),
		stopId:     cfg.StopId,
	}, nil
}

// Initialize loads the static feed and resolves the target stop, later calls do nothing.
// Only a malformed static feed with no schedule loaded is returned as an error, other failures are logged
// and retried on the next call. When StopNameFragment matches no stop the configured StopId is used.
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.isInitialized() {
		return nil
	}
	if err := e.static.Load(ctx); err != nil {
		if e.static.Schedule() == nil && errors.Is(err, gtfs.ErrFeedMalformed) {
			return fmt.Errorf("loading static feed: %w", err)
		}
		e.log.Printf("static feed load failed during initialization: %v", err)
	}
	if e.static.Schedule() == nil {
		return nil
	}

	stopId := e.cfg.StopId
	if len(e.cfg.StopNameFragment) > 0 {
		if stop, found := e.static.FindStopByNameFragment(e.cfg.StopNameFragment); found {
			e.log.Printf("using stop %s %q matching %q", stop.StopId, stop.StopName, e.cfg.StopNameFragment)
			stopId = stop.StopId
		} else {
			e.log.Printf("no stop name contains %q, using configured stop %q", e.cfg.StopNameFragment, e.cfg.StopId)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopId = stopId
	e.initialized = true
	return nil
}

func (e *Engine) isInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// StopId returns the target stop
func (e *Engine) StopId() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopId
}

// GetDepartures returns the next departures from stopId after from, an empty stopId uses the target stop.
// direction restricts results to one direction when not nil. Feed failures never surface as errors,
// the result degrades to static only, stale or fallback departures instead.
func (e *Engine) GetDepartures(ctx context.Context, stopId string, from time.Time, direction *int) []gtfs.Departure {
	if err := e.Initialize(ctx); err != nil {
		e.log.Printf("departures requested before initialization succeeded: %v", err)
	}
	if len(stopId) == 0 {
		stopId = e.StopId()
	}

	var snapshot *gtfs.FeedSnapshot
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := e.static.Load(ctx); err != nil {
			e.log.Printf("static feed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		snapshot, err = e.live.FetchTripUpdates(ctx)
		if err != nil {
			e.log.Printf("trip updates: %v", err)
		}
	}()
	wg.Wait()

	departures := e.reconciler.Departures(stopId, from, direction, snapshot)
	e.metrics.DeparturesServed(departures)
	return departures
}

// GetServiceAlerts returns every current alert, filtering is left to the caller through AlertRelevantTo
func (e *Engine) GetServiceAlerts(ctx context.Context) []gtfs.Alert {
	alerts, err := e.live.FetchAlerts(ctx)
	if err != nil {
		e.log.Printf("alerts: %v", err)
	}
	if alerts == nil {
		return []gtfs.Alert{}
	}
	return alerts
}

// AlertRelevantTo applies the configured policy for alerts without informed entities.
// An empty routeId uses the subject route.
func (e *Engine) AlertRelevantTo(alert gtfs.Alert, routeId string) bool {
	if len(routeId) == 0 {
		routeId = e.cfg.RouteId
	}
	return realtime.AlertRelevantTo(alert, routeId, e.cfg.UnscopedAlerts)
}

// IsWithinServiceHours returns true when the target stop is served at t
func (e *Engine) IsWithinServiceHours(t time.Time) bool {
	return e.fallback.IsWithinServiceHours(e.StopId(), t)
}

// ServiceHours returns the first and last departure from the target stop on t's service date
func (e *Engine) ServiceHours(t time.Time) (time.Time, time.Time) {
	return e.fallback.ServiceHours(e.StopId(), t)
}

// RouteInfo returns the name of routeId and the destinations after the target stop in each direction.
// An empty routeId uses the subject route.
func (e *Engine) RouteInfo(routeId string) (gtfsmanager.RouteInfo, bool) {
	if len(routeId) == 0 {
		routeId = e.cfg.RouteId
	}
	return e.static.RouteInfo(routeId, e.StopId())
}
