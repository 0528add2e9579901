// Package gtfsmanager provides support for retrieving, reading and indexing a gtfs static schedule in memory
package gtfsmanager

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/foundation/feedcache"
	"github.com/OpenTransitTools/nextdeparture/foundation/httpclient"
)

// Config controls where the static feed is loaded from and how long it is kept
type Config struct {
	// FeedURL is an http(s) url or a local path to a gtfs zip file
	FeedURL string
	// Timezone overrides the agency_timezone found in agency.txt
	Timezone       string
	Expiry         time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	FetchTimeout   time.Duration
}

// Feed is a loaded gtfs schedule together with the route patterns derived from it
type Feed struct {
	Schedule       *gtfs.Schedule
	Patterns       map[string][]gtfs.RoutePattern // keyed by route_id
	RemoteFileInfo httpclient.RemoteFileInfo
}

// DirectionInfo describes one direction of a route
type DirectionInfo struct {
	DirectionId  int      `json:"direction_id"`
	Headsign     string   `json:"headsign"`
	Destinations []string `json:"destinations"`
}

// RouteInfo is the display name of a route and where it goes in each direction
type RouteInfo struct {
	RouteId    string          `json:"route_id"`
	Name       string          `json:"name"`
	Directions []DirectionInfo `json:"directions"`
}

// Store holds the current gtfs schedule. A reload builds a complete new Feed before replacing the old one,
// readers keep using the previous Feed until then.
type Store struct {
	log      *log.Logger
	client   *httpclient.Client
	cfg      Config
	location *time.Location
	cache    *feedcache.Cache[*Feed]
}

// NewStore creates a Store loading from cfg.FeedURL. Nothing is fetched until Load is called.
func NewStore(log *log.Logger, client *httpclient.Client, cfg Config, options ...feedcache.Option[*Feed]) (*Store, error) {
	s := &Store{
		log:    log,
		client: client,
		cfg:    cfg,
	}
	if len(cfg.Timezone) > 0 {
		location, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unable to load timezone %q: %w", cfg.Timezone, err)
		}
		s.location = location
	}
	s.cache = feedcache.New[*Feed](log, feedcache.Config{
		Name:           "static",
		Expiry:         cfg.Expiry,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		FetchTimeout:   cfg.FetchTimeout,
	}, s.fetchFeed, options...)
	return s, nil
}

// NewStoreFromSchedule creates a Store that always serves schedule and never fetches
func NewStoreFromSchedule(log *log.Logger, schedule *gtfs.Schedule) *Store {
	s := &Store{log: log, location: schedule.Location}
	s.cache = feedcache.New[*Feed](log, feedcache.Config{
		Name:   "static",
		Expiry: time.Duration(math.MaxInt64),
	}, func(context.Context) (*Feed, error) {
		return nil, fmt.Errorf("%w: store has no feed url", gtfs.ErrFeedUnavailable)
	})
	s.cache.Set(newFeed(schedule))
	return s
}

// Load retrieves the static feed if it has expired or was never loaded, otherwise it does nothing.
// When loading fails and a previous feed exists the previous feed stays in use and the returned error
// wraps feedcache.ErrStaleDataServed. Errors also wrap gtfs.ErrFeedUnavailable or gtfs.ErrFeedMalformed.
func (s *Store) Load(ctx context.Context) error {
	feed, status, err := s.cache.Get(ctx)
	if status == feedcache.Refreshed {
		s.log.Printf("static feed ready with %d stops, %d routes, %d trips",
			len(feed.Schedule.Stops), len(feed.Schedule.Routes), len(feed.Schedule.Trips))
	}
	return err
}

// Feed returns the current Feed, nil if none has been loaded
func (s *Store) Feed() *Feed {
	entry := s.cache.Peek()
	if entry == nil {
		return nil
	}
	return entry.Value
}

// Schedule returns the current schedule, nil if none has been loaded
func (s *Store) Schedule() *gtfs.Schedule {
	feed := s.Feed()
	if feed == nil {
		return nil
	}
	return feed.Schedule
}

// LoadedAt returns when the current feed was retrieved, zero if none has been loaded
func (s *Store) LoadedAt() time.Time {
	entry := s.cache.Peek()
	if entry == nil {
		return time.Time{}
	}
	return entry.FetchedAt
}

// FindStopByNameFragment returns the first stop, by stop_id, whose name contains fragment ignoring case
func (s *Store) FindStopByNameFragment(fragment string) (gtfs.Stop, bool) {
	schedule := s.Schedule()
	if schedule == nil {
		return gtfs.Stop{}, false
	}
	stop, found := schedule.FindStopByNameFragment(fragment)
	if !found {
		return gtfs.Stop{}, false
	}
	return *stop, true
}

// Patterns returns the stopping patterns of routeId
func (s *Store) Patterns(routeId string) []gtfs.RoutePattern {
	feed := s.Feed()
	if feed == nil {
		return nil
	}
	return feed.Patterns[routeId]
}

// RouteInfo returns the name of routeId and the destinations in each direction.
// Destinations are the stops after stopId, or after the first stop of the busiest pattern when stopId is empty.
func (s *Store) RouteInfo(routeId string, stopId string) (RouteInfo, bool) {
	feed := s.Feed()
	if feed == nil {
		return RouteInfo{}, false
	}
	patterns := feed.Patterns[routeId]
	if _, present := feed.Schedule.Routes[routeId]; !present && len(patterns) == 0 {
		return RouteInfo{}, false
	}
	info := RouteInfo{
		RouteId: routeId,
		Name:    feed.Schedule.RouteName(routeId),
	}
	seen := make(map[int]bool)
	for _, pattern := range patterns {
		if seen[pattern.DirectionId] {
			continue
		}
		seen[pattern.DirectionId] = true
		direction := pattern.DirectionId
		from := stopId
		if len(from) == 0 {
			from = pattern.StopIds[0]
		}
		info.Directions = append(info.Directions, DirectionInfo{
			DirectionId:  direction,
			Headsign:     pattern.Headsign,
			Destinations: gtfs.DestinationsAfterStop(patterns, from, &direction),
		})
	}
	sort.Slice(info.Directions, func(i, j int) bool {
		return info.Directions[i].DirectionId < info.Directions[j].DirectionId
	})
	return info, true
}

// fetchFeed retrieves and parses the feed. An unchanged remote file reuses the current Feed.
func (s *Store) fetchFeed(ctx context.Context) (*Feed, error) {
	if previous := s.cache.Peek(); previous != nil && previous.Value.RemoteFileInfo.Known() {
		info, err := s.client.GetRemoteFileInfo(ctx, s.cfg.FeedURL)
		if err != nil {
			s.log.Printf("Unable to retrieve remote file information from '%s' error: %v", s.cfg.FeedURL, err)
		} else if !previous.Value.RemoteFileInfo.IsDifferent(info.ETag, info.LastModifiedTimestamp) {
			s.log.Printf("static feed at %s is unchanged, keeping loaded schedule", s.cfg.FeedURL)
			return previous.Value, nil
		}
	}

	start := time.Now()
	document, err := s.client.Get(ctx, s.cfg.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gtfs.ErrFeedUnavailable, err)
	}
	s.log.Printf("Downloaded %d bytes from %s in %v", len(document.Body), s.cfg.FeedURL, time.Since(start))

	feed, err := s.parseFeed(document.Body)
	if err != nil {
		return nil, err
	}
	feed.RemoteFileInfo = document.RemoteFileInfo
	return feed, nil
}

// parseFeed builds a Feed from the content of a gtfs zip file
func (s *Store) parseFeed(content []byte) (*Feed, error) {
	tables, err := loadGtfsZip(s.log, content)
	if err != nil {
		return nil, err
	}
	location := s.location
	if location == nil {
		location = time.UTC
		if len(tables.agencyTimezone) > 0 {
			agencyLocation, err := time.LoadLocation(tables.agencyTimezone)
			if err != nil {
				s.log.Printf("unable to load agency_timezone %q, using UTC: %v", tables.agencyTimezone, err)
			} else {
				location = agencyLocation
			}
		}
	}
	schedule := gtfs.NewSchedule(location, tables.stops, tables.routes, tables.trips, tables.stopTimes,
		tables.calendars, tables.calendarDates)
	if schedule.DroppedStopTimes > 0 {
		s.log.Printf("dropped %d stop times referencing trips missing from trips.txt", schedule.DroppedStopTimes)
	}
	if schedule.UntimedStopTimes > 0 {
		s.log.Printf("dropped %d untimed stop times outside the timepoints of their trip", schedule.UntimedStopTimes)
	}
	return newFeed(schedule), nil
}

// newFeed derives the route patterns of every route in schedule
func newFeed(schedule *gtfs.Schedule) *Feed {
	feed := &Feed{
		Schedule: schedule,
		Patterns: make(map[string][]gtfs.RoutePattern),
	}
	routeIds := make(map[string]bool)
	for routeId := range schedule.Routes {
		routeIds[routeId] = true
	}
	for _, trip := range schedule.Trips {
		routeIds[trip.RouteId] = true
	}
	for routeId := range routeIds {
		feed.Patterns[routeId] = gtfs.ComputePatterns(schedule, routeId)
	}
	return feed
}
