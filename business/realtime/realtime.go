// Package realtime retrieves and decodes gtfs-realtime trip updates and service alerts
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/foundation/clock"
	"github.com/OpenTransitTools/nextdeparture/foundation/feedcache"
	"github.com/OpenTransitTools/nextdeparture/foundation/httpclient"
)

// Config controls where realtime feeds are retrieved and how long they are kept
type Config struct {
	// TripUpdatesURL and AlertsURL are http(s) urls or local paths, empty disables the feed
	TripUpdatesURL string
	AlertsURL      string
	Expiry         time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	FetchTimeout   time.Duration
}

// Decoder serves decoded trip updates and alerts, each from its own FeedCache
type Decoder struct {
	log         *log.Logger
	client      *httpclient.Client
	cfg         Config
	tripUpdates *feedcache.Cache[*gtfs.FeedSnapshot]
	alerts      *feedcache.Cache[[]gtfs.Alert]
}

// NewDecoder creates a Decoder. observer may be nil, a nil c uses the system clock.
func NewDecoder(log *log.Logger, client *httpclient.Client, cfg Config, observer feedcache.Observer,
	c clock.Clock) *Decoder {
	if c == nil {
		c = clock.RealClock{}
	}
	d := &Decoder{
		log:    log,
		client: client,
		cfg:    cfg,
	}
	cacheConfig := func(name string) feedcache.Config {
		return feedcache.Config{
			Name:           name,
			Expiry:         cfg.Expiry,
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			FetchTimeout:   cfg.FetchTimeout,
		}
	}
	tripUpdateOptions := []feedcache.Option[*gtfs.FeedSnapshot]{feedcache.WithClock[*gtfs.FeedSnapshot](c)}
	alertOptions := []feedcache.Option[[]gtfs.Alert]{feedcache.WithClock[[]gtfs.Alert](c)}
	if observer != nil {
		tripUpdateOptions = append(tripUpdateOptions, feedcache.WithObserver[*gtfs.FeedSnapshot](observer))
		alertOptions = append(alertOptions, feedcache.WithObserver[[]gtfs.Alert](observer))
	}
	d.tripUpdates = feedcache.New[*gtfs.FeedSnapshot](log, cacheConfig("trip-updates"), d.fetchTripUpdates, tripUpdateOptions...)
	d.alerts = feedcache.New[[]gtfs.Alert](log, cacheConfig("alerts"), d.fetchAlerts, alertOptions...)
	return d
}

// FetchTripUpdates returns the current trip updates. An empty snapshot is returned when no trip updates feed
// is configured. A stale snapshot is returned together with an error wrapping feedcache.ErrStaleDataServed,
// nil is returned when nothing could ever be retrieved.
func (d *Decoder) FetchTripUpdates(ctx context.Context) (*gtfs.FeedSnapshot, error) {
	if len(d.cfg.TripUpdatesURL) == 0 {
		return &gtfs.FeedSnapshot{CanceledTripIds: map[string]bool{}}, nil
	}
	snapshot, _, err := d.tripUpdates.Get(ctx)
	return snapshot, err
}

// FetchAlerts returns the current service alerts, following the same rules as FetchTripUpdates
func (d *Decoder) FetchAlerts(ctx context.Context) ([]gtfs.Alert, error) {
	if len(d.cfg.AlertsURL) == 0 {
		return []gtfs.Alert{}, nil
	}
	alerts, _, err := d.alerts.Get(ctx)
	return alerts, err
}

func (d *Decoder) fetchTripUpdates(ctx context.Context) (*gtfs.FeedSnapshot, error) {
	b, err := d.fetch(ctx, d.cfg.TripUpdatesURL)
	if err != nil {
		return nil, err
	}
	snapshot, err := DecodeTripUpdates(b)
	if err != nil {
		return nil, err
	}
	if snapshot.SkippedEntities > 0 {
		d.log.Printf("skipped %d trip update entities without a trip_id", snapshot.SkippedEntities)
	}
	return snapshot, nil
}

func (d *Decoder) fetchAlerts(ctx context.Context) ([]gtfs.Alert, error) {
	b, err := d.fetch(ctx, d.cfg.AlertsURL)
	if err != nil {
		return nil, err
	}
	return DecodeAlerts(b)
}

func (d *Decoder) fetch(ctx context.Context, location string) ([]byte, error) {
	document, err := d.client.Get(ctx, location)
	if err != nil {
		if errors.Is(err, httpclient.ErrBodyTooLarge) {
			return nil, fmt.Errorf("%w: %v", gtfs.ErrFeedMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", gtfs.ErrFeedUnavailable, err)
	}
	return document.Body, nil
}
