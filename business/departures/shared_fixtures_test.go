package departures

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/gtfsmanager"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func hm(hours int, minutes int) int {
	return hours*3600 + minutes*60
}

// at returns a UTC instant on 2024-05-06, a Monday, unless another day is given
func at(hours int, minutes int, days ...int) time.Time {
	day := 6
	if len(days) > 0 {
		day = days[0]
	}
	return time.Date(2024, 5, day, hours, minutes, 0, 0, time.UTC)
}

type stopAt struct {
	stopId  string
	seconds int
}

// scheduleBuilder assembles small schedules for tests, every trip runs on service "ALL" unless changed
type scheduleBuilder struct {
	location  *time.Location
	trips     []*gtfs.Trip
	stopTimes []*gtfs.StopTime
	calendars []*gtfs.Calendar
	dates     []*gtfs.CalendarDate
}

func newScheduleBuilder() *scheduleBuilder {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	return &scheduleBuilder{
		location: time.UTC,
		calendars: []*gtfs.Calendar{{
			ServiceId: "ALL",
			Monday:    1,
			Tuesday:   1,
			Wednesday: 1,
			Thursday:  1,
			Friday:    1,
			Saturday:  1,
			Sunday:    1,
			StartDate: &start,
			EndDate:   &end,
		}},
	}
}

func (b *scheduleBuilder) trip(tripId string, routeId string, directionId int, headsign string,
	stops ...stopAt) *scheduleBuilder {
	trip := &gtfs.Trip{TripId: tripId, RouteId: routeId, ServiceId: "ALL", DirectionId: directionId}
	if len(headsign) > 0 {
		trip.TripHeadsign = strPtr(headsign)
	}
	b.trips = append(b.trips, trip)
	for i, stop := range stops {
		b.stopTimes = append(b.stopTimes, &gtfs.StopTime{
			TripId:        tripId,
			StopSequence:  uint32(i + 1),
			StopId:        stop.stopId,
			ArrivalTime:   stop.seconds,
			DepartureTime: stop.seconds,
		})
	}
	return b
}

func (b *scheduleBuilder) build() *gtfs.Schedule {
	stops := []*gtfs.Stop{
		{StopId: "1", StopName: "North Terminal"},
		{StopId: "24", StopName: "Island Dock"},
		{StopId: "30", StopName: "South Pier"},
	}
	routes := []*gtfs.Route{
		{RouteId: "SB", RouteShortName: "SB", RouteLongName: "Sound Boat"},
		{RouteId: "X", RouteLongName: "Express"},
	}
	return gtfs.NewSchedule(b.location, stops, routes, b.trips, b.stopTimes, b.calendars, b.dates)
}

// ferryBuilder has trip A leaving stop "24" southbound at 11:20 and trip B northbound at 11:31,
// plus an express trip on another route
func ferryBuilder() *scheduleBuilder {
	return newScheduleBuilder().
		trip("A", "SB", 0, "South Pier",
			stopAt{"1", hm(11, 0)}, stopAt{"24", hm(11, 20)}, stopAt{"30", hm(11, 40)}).
		trip("B", "SB", 1, "",
			stopAt{"30", hm(11, 10)}, stopAt{"24", hm(11, 31)}, stopAt{"1", hm(11, 50)}).
		trip("X1", "X", 0, "",
			stopAt{"24", hm(11, 25)}, stopAt{"30", hm(11, 35)})
}

func ferryConfig() Config {
	cfg := DefaultConfig("24")
	cfg.RouteId = "SB"
	return cfg
}

func newTestReconciler(cfg Config, schedule *gtfs.Schedule) *Reconciler {
	store := gtfsmanager.NewStoreFromSchedule(testLogger(), schedule)
	return NewReconciler(testLogger(), cfg, store, NewFallbackGenerator(cfg, store))
}

func summarize(departures []gtfs.Departure) []string {
	results := make([]string, 0, len(departures))
	for _, d := range departures {
		results = append(results, fmt.Sprintf("%s@%s %s", d.TripId, d.Time.Format("01-02 15:04"), d.Provenance))
	}
	return results
}

func departingUpdate(tripId string, stopId string, departure time.Time, delay *int) gtfs.StopTimeUpdate {
	return gtfs.StopTimeUpdate{
		TripId:        tripId,
		StopId:        stopId,
		DepartureTime: &departure,
		DelaySeconds:  delay,
	}
}

// fakeLiveFeed serves fixed realtime data
type fakeLiveFeed struct {
	snapshot *gtfs.FeedSnapshot
	alerts   []gtfs.Alert
	err      error
	fetches  atomic.Int32
}

func (f *fakeLiveFeed) FetchTripUpdates(context.Context) (*gtfs.FeedSnapshot, error) {
	f.fetches.Add(1)
	return f.snapshot, f.err
}

func (f *fakeLiveFeed) FetchAlerts(context.Context) ([]gtfs.Alert, error) {
	return f.alerts, f.err
}

// fakeStaticFeed fails to load with loadErr until schedule is set
type fakeStaticFeed struct {
	schedule *gtfs.Schedule
	loadErr  error
	loads    int
}

func (f *fakeStaticFeed) Schedule() *gtfs.Schedule {
	return f.schedule
}

func (f *fakeStaticFeed) Patterns(routeId string) []gtfs.RoutePattern {
	if f.schedule == nil {
		return nil
	}
	return gtfs.ComputePatterns(f.schedule, routeId)
}

func (f *fakeStaticFeed) Load(context.Context) error {
	f.loads++
	return f.loadErr
}

func (f *fakeStaticFeed) FindStopByNameFragment(fragment string) (gtfs.Stop, bool) {
	if f.schedule == nil {
		return gtfs.Stop{}, false
	}
	stop, found := f.schedule.FindStopByNameFragment(fragment)
	if !found {
		return gtfs.Stop{}, false
	}
	return *stop, true
}

func (f *fakeStaticFeed) RouteInfo(string, string) (gtfsmanager.RouteInfo, bool) {
	return gtfsmanager.RouteInfo{}, false
}
