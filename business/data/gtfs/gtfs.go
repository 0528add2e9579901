// Package gtfs provides the schedule, realtime and departure types shared by the departure engine
package gtfs

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrFeedUnavailable is returned when a feed could not be retrieved (network failure or timeout)
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrFeedMalformed is returned when a mandatory static table is missing or a feed payload can't be decoded
	ErrFeedMalformed = errors.New("feed malformed")

	// ErrNoActiveService indicates no trip is active for a requested date. It is informational,
	// departures are still returned as an empty (or fallback) list
	ErrNoActiveService = errors.New("no active service")
)

// Schedule holds every table loaded from a static gtfs feed.
// A Schedule is never modified after NewSchedule returns, a reload builds a new one.
type Schedule struct {
	Location  *time.Location
	Stops     map[string]*Stop
	Routes    map[string]*Route
	Trips     map[string]*Trip
	StopTimes map[string][]*StopTime // keyed by trip_id, ordered by stop_sequence
	Calendar  *ServiceCalendar

	// DroppedStopTimes counts stop times discarded because their trip was not present in trips.txt
	DroppedStopTimes int
	// UntimedStopTimes counts stop times without times outside the first and last timepoint of their trip
	UntimedStopTimes int

	tripsByRoute map[string][]*Trip
	sortedStops  []*Stop
}

// NewSchedule builds a Schedule from parsed gtfs records.
// Stop times referencing unknown trips are dropped, remaining stop times are ordered by stop_sequence
// and untimed stop times are estimated from the timepoints around them.
func NewSchedule(location *time.Location,
	stops []*Stop,
	routes []*Route,
	trips []*Trip,
	stopTimes []*StopTime,
	calendars []*Calendar,
	calendarDates []*CalendarDate) *Schedule {
	if location == nil {
		location = time.UTC
	}
	s := &Schedule{
		Location:     location,
		Stops:        make(map[string]*Stop, len(stops)),
		Routes:       make(map[string]*Route, len(routes)),
		Trips:        make(map[string]*Trip, len(trips)),
		StopTimes:    make(map[string][]*StopTime, len(trips)),
		Calendar:     NewServiceCalendar(location, calendars, calendarDates),
		tripsByRoute: make(map[string][]*Trip),
	}
	for _, stop := range stops {
		s.Stops[stop.StopId] = stop
		s.sortedStops = append(s.sortedStops, stop)
	}
	sort.Slice(s.sortedStops, func(i, j int) bool {
		return s.sortedStops[i].StopId < s.sortedStops[j].StopId
	})
	for _, route := range routes {
		s.Routes[route.RouteId] = route
	}
	for _, trip := range trips {
		s.Trips[trip.TripId] = trip
	}
	for _, stopTime := range stopTimes {
		if _, present := s.Trips[stopTime.TripId]; !present {
			s.DroppedStopTimes++
			continue
		}
		s.StopTimes[stopTime.TripId] = append(s.StopTimes[stopTime.TripId], stopTime)
	}
	for tripId, tripStopTimes := range s.StopTimes {
		sort.SliceStable(tripStopTimes, func(i, j int) bool {
			return tripStopTimes[i].StopSequence < tripStopTimes[j].StopSequence
		})
		var removed int
		s.StopTimes[tripId], removed = interpolateStopTimes(tripStopTimes)
		s.UntimedStopTimes += removed
	}

	sortedTrips := make([]*Trip, 0, len(s.Trips))
	for _, trip := range s.Trips {
		sortedTrips = append(sortedTrips, trip)
	}
	sort.Slice(sortedTrips, func(i, j int) bool {
		return sortedTrips[i].TripId < sortedTrips[j].TripId
	})
	for _, trip := range sortedTrips {
		s.tripsByRoute[trip.RouteId] = append(s.tripsByRoute[trip.RouteId], trip)
	}
	return s
}

// TripsForRoute returns the trips on routeId ordered by trip_id. An empty routeId returns every trip.
func (s *Schedule) TripsForRoute(routeId string) []*Trip {
	if routeId != "" {
		return s.tripsByRoute[routeId]
	}
	results := make([]*Trip, 0, len(s.Trips))
	for _, trips := range s.tripsByRoute {
		results = append(results, trips...)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].TripId < results[j].TripId
	})
	return results
}

// StopName returns the name of stopId, or stopId itself if the stop is unknown
func (s *Schedule) StopName(stopId string) string {
	if stop, present := s.Stops[stopId]; present && stop.StopName != "" {
		return stop.StopName
	}
	return stopId
}

// StopTimeAt returns the first StopTime of tripId at stopId.
// lastStop is true when that StopTime ends the trip, where nothing departs.
func (s *Schedule) StopTimeAt(tripId string, stopId string) (stopTime *StopTime, lastStop bool) {
	stopTimes := s.StopTimes[tripId]
	for i, st := range stopTimes {
		if st.StopId == stopId {
			return st, i == len(stopTimes)-1 && len(stopTimes) > 1
		}
	}
	return nil, false
}

// FindStopByNameFragment returns the first stop (ordered by stop_id) whose name contains fragment, ignoring case
func (s *Schedule) FindStopByNameFragment(fragment string) (*Stop, bool) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if len(fragment) == 0 {
		return nil, false
	}
	for _, stop := range s.sortedStops {
		if strings.Contains(strings.ToLower(stop.StopName), fragment) {
			return stop, true
		}
	}
	return nil, false
}

// RouteName returns the display name for routeId, or routeId if the route is unknown
func (s *Schedule) RouteName(routeId string) string {
	if route, present := s.Routes[routeId]; present {
		return route.DisplayName()
	}
	return routeId
}
