package departures

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// FallbackGenerator synthesizes evenly spaced departures when neither feed produced any,
// limited to the hours the stop is served
type FallbackGenerator struct {
	cfg      Config
	source   ScheduleSource
	location *time.Location
	holidays *cal.BusinessCalendar
	labeler  labeler
}

// NewFallbackGenerator builds a FallbackGenerator. Observed US federal holidays use the weekend service window.
func NewFallbackGenerator(cfg Config, source ScheduleSource) *FallbackGenerator {
	holidays := cal.NewBusinessCalendar()
	holidays.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	return &FallbackGenerator{
		cfg:      cfg,
		source:   source,
		location: cfg.location(),
		holidays: holidays,
		labeler:  labeler{cfg: cfg, source: source},
	}
}

// serviceWindow is the first and last departure of a service date
type serviceWindow struct {
	start time.Time
	end   time.Time
}

func (w serviceWindow) contains(at time.Time) bool {
	return !at.Before(w.start) && !at.After(w.end)
}

// ServiceHours returns the service window of stopId on the service date of at.
// The window runs from the first to the last scheduled departure at the stop on that date. Dates without
// scheduled departures use the configured weekday or weekend window.
func (f *FallbackGenerator) ServiceHours(stopId string, at time.Time) (start time.Time, end time.Time) {
	schedule := f.source.Schedule()
	window := f.serviceWindow(schedule, stopId, gtfs.ServiceDate(at, f.locationOf(schedule)))
	return window.start, window.end
}

// IsWithinServiceHours returns true when at falls inside the service window of its own service date
// or inside the window of the previous date that runs past midnight
func (f *FallbackGenerator) IsWithinServiceHours(stopId string, at time.Time) bool {
	_, within := f.activeWindow(f.source.Schedule(), stopId, at)
	return within
}

// activeWindow returns the service window containing at
func (f *FallbackGenerator) activeWindow(schedule *gtfs.Schedule, stopId string, at time.Time) (serviceWindow, bool) {
	serviceDate := gtfs.ServiceDate(at, f.locationOf(schedule))
	if window := f.serviceWindow(schedule, stopId, serviceDate); window.contains(at) {
		return window, true
	}
	if window := f.serviceWindow(schedule, stopId, serviceDate.AddDate(0, 0, -1)); window.contains(at) {
		return window, true
	}
	return serviceWindow{}, false
}

// Generate returns up to FallbackCount departures FallbackInterval apart, the first on the interval boundary
// after from and none past the end of the service window.
// An empty list is returned when from is outside service hours.
func (f *FallbackGenerator) Generate(stopId string, from time.Time, direction *int) []gtfs.Departure {
	results := make([]gtfs.Departure, 0, f.cfg.FallbackCount)
	schedule := f.source.Schedule()
	window, within := f.activeWindow(schedule, stopId, from)
	if !within {
		return results
	}
	from = from.In(f.locationOf(schedule))
	midnight := gtfs.Get12AmTime(from)
	intervals := from.Sub(midnight)/f.cfg.FallbackInterval + 1
	next := midnight.Add(intervals * f.cfg.FallbackInterval)

	route := departureRoute{routeId: f.cfg.RouteId}
	if direction != nil {
		route.directionId = *direction
	}
	for i := 0; i < f.cfg.FallbackCount; i++ {
		at := next.Add(time.Duration(i) * f.cfg.FallbackInterval)
		if at.After(window.end) {
			break
		}
		results = append(results, f.labeler.makeDeparture(schedule, stopId, route, at, 0, gtfs.FallbackProvenance))
	}
	return results
}

func (f *FallbackGenerator) locationOf(schedule *gtfs.Schedule) *time.Location {
	if schedule != nil {
		return schedule.Location
	}
	return f.location
}

func (f *FallbackGenerator) serviceWindow(schedule *gtfs.Schedule, stopId string, serviceDate time.Time) serviceWindow {
	if schedule != nil {
		if window, ok := f.scheduledWindow(schedule, stopId, serviceDate); ok {
			return window
		}
	}
	start, end := f.cfg.WeekdayServiceStart, f.cfg.WeekdayServiceEnd
	if f.usesWeekendService(serviceDate) {
		start, end = f.cfg.WeekendServiceStart, f.cfg.WeekendServiceEnd
	}
	return serviceWindow{
		start: gtfs.MakeScheduleTime(serviceDate, int(start/time.Second)),
		end:   gtfs.MakeScheduleTime(serviceDate, int(end/time.Second)),
	}
}

// scheduledWindow finds the first and last departures from stopId on serviceDate
func (f *FallbackGenerator) scheduledWindow(schedule *gtfs.Schedule,
	stopId string,
	serviceDate time.Time) (serviceWindow, bool) {
	first, last := -1, -1
	for _, trip := range schedule.TripsForRoute(f.cfg.RouteId) {
		if !schedule.Calendar.IsActive(trip.ServiceId, serviceDate) {
			continue
		}
		stopTime, lastStop := schedule.StopTimeAt(trip.TripId, stopId)
		if stopTime == nil || lastStop {
			continue
		}
		if first < 0 || stopTime.DepartureTime < first {
			first = stopTime.DepartureTime
		}
		if stopTime.DepartureTime > last {
			last = stopTime.DepartureTime
		}
	}
	if first < 0 {
		return serviceWindow{}, false
	}
	return serviceWindow{
		start: gtfs.MakeScheduleTime(serviceDate, first),
		end:   gtfs.MakeScheduleTime(serviceDate, last),
	}, true
}

// usesWeekendService is true on saturdays, sundays and observed holidays
func (f *FallbackGenerator) usesWeekendService(serviceDate time.Time) bool {
	switch serviceDate.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	_, observed, _ := f.holidays.IsHoliday(serviceDate)
	return observed
}
