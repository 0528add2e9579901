package departures

import (
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// Reconciler merges scheduled departures with realtime trip updates into a single departure board
type Reconciler struct {
	log      *log.Logger
	cfg      Config
	source   ScheduleSource
	fallback *FallbackGenerator
	labeler  labeler

	// noServiceDate is the last service date reported without active service
	mu            sync.Mutex
	noServiceDate time.Time
}

// NewReconciler builds a Reconciler. fallback supplies the board when nothing else is available.
func NewReconciler(log *log.Logger, cfg Config, source ScheduleSource, fallback *FallbackGenerator) *Reconciler {
	return &Reconciler{
		log:      log,
		cfg:      cfg,
		source:   source,
		fallback: fallback,
		labeler:  labeler{cfg: cfg, source: source},
	}
}

// scheduledDeparture is a trip departing the target stop according to the static schedule
type scheduledDeparture struct {
	trip *gtfs.Trip
	// scheduled is the departure on the service date the trip runs on
	scheduled time.Time
	// at is when the departure is expected, scheduled moved forward a day when it was already past
	at time.Time
}

// liveIndex holds the realtime updates at the target stop, at most one per trip
type liveIndex struct {
	byTrip  map[string]*gtfs.StopTimeUpdate
	order   []string
	skipped map[string]bool
}

// Departures returns the departures from stopId after from, ordered by departure time.
// direction restricts results to one direction when not nil. snapshot may be nil when no realtime data is available.
// When neither source yields a departure the fallback generator supplies the result.
func (r *Reconciler) Departures(stopId string,
	from time.Time,
	direction *int,
	snapshot *gtfs.FeedSnapshot) []gtfs.Departure {
	schedule := r.source.Schedule()
	if schedule != nil {
		from = from.In(schedule.Location)
	}
	live := indexLiveUpdates(snapshot, stopId, from)

	var scheduled []scheduledDeparture
	if schedule != nil {
		scheduled = r.scheduledDepartures(schedule, stopId, from, direction)
	}
	departures := r.merge(schedule, stopId, from, direction, scheduled, live, snapshot)
	departures = dedupDepartures(departures, r.cfg.DedupTimeByDirection)

	if len(departures) == 0 {
		return r.fallback.Generate(stopId, from, direction)
	}
	if len(departures) > r.cfg.MaxDepartures {
		departures = departures[:r.cfg.MaxDepartures]
	}
	return departures
}

// indexLiveUpdates collects the updates at stopId departing after from, first update per trip wins.
// Updates that only carry a delay are kept and resolved against the schedule later.
func indexLiveUpdates(snapshot *gtfs.FeedSnapshot, stopId string, from time.Time) *liveIndex {
	index := &liveIndex{
		byTrip:  make(map[string]*gtfs.StopTimeUpdate),
		skipped: make(map[string]bool),
	}
	if snapshot == nil {
		return index
	}
	for i := range snapshot.Updates {
		update := &snapshot.Updates[i]
		if update.StopId != stopId {
			continue
		}
		if update.Skipped {
			index.skipped[update.TripId] = true
			continue
		}
		if _, present := index.byTrip[update.TripId]; present {
			continue
		}
		delayOnly := update.DepartureTime == nil && update.DelaySeconds != nil
		if !delayOnly && !gtfs.IsTargetDeparture(update, stopId, from) {
			continue
		}
		index.byTrip[update.TripId] = update
		index.order = append(index.order, update.TripId)
	}
	return index
}

// scheduledDepartures derives the static departures from stopId on from's service date.
// The following service date is added when from's date has nothing left or from is outside service hours,
// and trips of the previous service date still running after midnight are always included.
func (r *Reconciler) scheduledDepartures(schedule *gtfs.Schedule,
	stopId string,
	from time.Time,
	direction *int) []scheduledDeparture {
	serviceDate := gtfs.ServiceDate(from, schedule.Location)
	if len(schedule.Calendar.ActiveServiceIds(serviceDate)) == 0 {
		r.reportNoService(serviceDate)
	}

	results, sameDay := r.departuresOnDate(schedule, stopId, serviceDate, from, direction, true)
	if sameDay == 0 || !r.fallback.IsWithinServiceHours(stopId, from) {
		next, _ := r.departuresOnDate(schedule, stopId, gtfs.NextServiceDate(serviceDate), from, direction, false)
		results = append(results, next...)
	}
	previous, _ := r.departuresOnDate(schedule, stopId, serviceDate.AddDate(0, 0, -1), from, direction, false)
	return append(results, previous...)
}

// reportNoService logs a service date without active service the first time it is asked for
func (r *Reconciler) reportNoService(serviceDate time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.noServiceDate.Equal(serviceDate) {
		return
	}
	r.noServiceDate = serviceDate
	r.log.Printf("%v on %s", gtfs.ErrNoActiveService, serviceDate.Format("2006-01-02"))
}

// departuresOnDate returns the departures from stopId of trips running on serviceDate within the horizon.
// With roll set, departures already past are moved to the following day, otherwise they are dropped.
// sameDay counts the departures that were not moved.
func (r *Reconciler) departuresOnDate(schedule *gtfs.Schedule,
	stopId string,
	serviceDate time.Time,
	from time.Time,
	direction *int,
	roll bool) (results []scheduledDeparture, sameDay int) {
	nextDate := gtfs.NextServiceDate(serviceDate)
	for _, trip := range schedule.TripsForRoute(r.cfg.RouteId) {
		if direction != nil && trip.DirectionId != *direction {
			continue
		}
		if !schedule.Calendar.IsActive(trip.ServiceId, serviceDate) {
			continue
		}
		stopTime, lastStop := schedule.StopTimeAt(trip.TripId, stopId)
		if stopTime == nil || lastStop {
			continue
		}
		scheduled := gtfs.MakeScheduleTime(serviceDate, stopTime.DepartureTime)
		at := scheduled
		rolled := false
		if at.Before(from) {
			if !roll || !schedule.Calendar.IsActive(trip.ServiceId, nextDate) {
				continue
			}
			at = gtfs.MakeScheduleTime(nextDate, stopTime.DepartureTime)
			rolled = true
		}
		if at.Sub(from) > r.cfg.Horizon {
			continue
		}
		if !rolled {
			sameDay++
		}
		results = append(results, scheduledDeparture{trip: trip, scheduled: scheduled, at: at})
	}
	return results, sameDay
}

// merge replaces scheduled departures by their realtime updates and appends the updates of trips
// that are not scheduled. Canceled trips and skipped stops are removed.
func (r *Reconciler) merge(schedule *gtfs.Schedule,
	stopId string,
	from time.Time,
	direction *int,
	scheduled []scheduledDeparture,
	live *liveIndex,
	snapshot *gtfs.FeedSnapshot) []gtfs.Departure {
	departures := make([]gtfs.Departure, 0, len(scheduled)+len(live.order))
	for _, candidate := range scheduled {
		tripId := candidate.trip.TripId
		if snapshot.IsCanceled(tripId) || live.skipped[tripId] {
			continue
		}
		route := departureRoute{
			routeId:     candidate.trip.RouteId,
			directionId: candidate.trip.DirectionId,
			headsign:    candidate.trip.Headsign(),
			tripId:      tripId,
		}
		if update, present := live.byTrip[tripId]; present {
			if at, ok := update.ResolveDeparture(&candidate.scheduled); ok && at.After(from) {
				delete(live.byTrip, tripId)
				departures = append(departures, r.labeler.makeDeparture(schedule, stopId, route, at,
					delaySeconds(update, at, &candidate.scheduled), gtfs.RealtimeProvenance))
				continue
			}
		}
		departures = append(departures, r.labeler.makeDeparture(schedule, stopId, route, candidate.at,
			0, gtfs.StaticProvenance))
	}

	for _, tripId := range live.order {
		update, present := live.byTrip[tripId]
		if !present {
			continue
		}
		if departure, ok := r.liveOnlyDeparture(schedule, stopId, from, direction, update); ok {
			departures = append(departures, departure)
		}
	}
	return departures
}

// liveOnlyDeparture builds a departure from an update whose trip had no scheduled departure.
// Updates of a known trip at the stop ending it are arrivals and never depart.
func (r *Reconciler) liveOnlyDeparture(schedule *gtfs.Schedule,
	stopId string,
	from time.Time,
	direction *int,
	update *gtfs.StopTimeUpdate) (gtfs.Departure, bool) {
	route := departureRoute{
		routeId: update.RouteId,
		tripId:  update.TripId,
	}
	directionKnown := update.DirectionId != nil
	if directionKnown {
		route.directionId = *update.DirectionId
	}
	var scheduled *time.Time
	if schedule != nil {
		if trip, present := schedule.Trips[update.TripId]; present {
			route.routeId = trip.RouteId
			route.directionId = trip.DirectionId
			route.headsign = trip.Headsign()
			directionKnown = true
			stopTime, lastStop := schedule.StopTimeAt(trip.TripId, stopId)
			if lastStop {
				return gtfs.Departure{}, false
			}
			if stopTime != nil {
				at := gtfs.MakeScheduleTime(gtfs.ServiceDate(from, schedule.Location), stopTime.DepartureTime)
				scheduled = &at
			}
		}
	}
	if len(r.cfg.RouteId) > 0 && len(route.routeId) > 0 && route.routeId != r.cfg.RouteId {
		return gtfs.Departure{}, false
	}
	if direction != nil && (!directionKnown || route.directionId != *direction) {
		return gtfs.Departure{}, false
	}
	at, ok := update.ResolveDeparture(scheduled)
	if !ok || !at.After(from) || at.Sub(from) > r.cfg.Horizon {
		return gtfs.Departure{}, false
	}
	if len(route.routeId) == 0 {
		route.routeId = r.cfg.RouteId
	}
	return r.labeler.makeDeparture(schedule, stopId, route, at, delaySeconds(update, at, scheduled),
		gtfs.RealtimeProvenance), true
}

// delaySeconds is the delay reported by update, or the difference to scheduled when the feed gave none
func delaySeconds(update *gtfs.StopTimeUpdate, at time.Time, scheduled *time.Time) int {
	if update.DelaySeconds != nil {
		return *update.DelaySeconds
	}
	if scheduled == nil {
		return 0
	}
	return int(at.Sub(*scheduled) / time.Second)
}

// dedupDepartures orders departures by time and keeps one departure per trip and per minute.
// A departure with higher provenance precedence takes the place of the one it collides with.
func dedupDepartures(departures []gtfs.Departure, byDirection bool) []gtfs.Departure {
	sort.SliceStable(departures, func(i, j int) bool {
		return departures[i].Time.Before(departures[j].Time)
	})
	timeKey := func(d *gtfs.Departure) string {
		if byDirection {
			return d.MinuteKey() + "|" + strconv.Itoa(d.DirectionId)
		}
		return d.MinuteKey()
	}

	kept := make([]gtfs.Departure, 0, len(departures))
	byTrip := make(map[string]int)
	byTime := make(map[string]int)
	register := func(position int) {
		d := &kept[position]
		if len(d.TripId) > 0 {
			byTrip[d.TripId] = position
		}
		byTime[timeKey(d)] = position
	}
	for _, departure := range departures {
		position := -1
		if len(departure.TripId) > 0 {
			if p, present := byTrip[departure.TripId]; present {
				position = p
			}
		}
		if position < 0 {
			if p, present := byTime[timeKey(&departure)]; present {
				position = p
			}
		}
		if position < 0 {
			kept = append(kept, departure)
			register(len(kept) - 1)
			continue
		}
		if !departure.Provenance.Outranks(kept[position].Provenance) {
			continue
		}
		replaced := &kept[position]
		if p, present := byTrip[replaced.TripId]; present && p == position {
			delete(byTrip, replaced.TripId)
		}
		if p, present := byTime[timeKey(replaced)]; present && p == position {
			delete(byTime, timeKey(replaced))
		}
		kept[position] = departure
		register(position)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Time.Before(kept[j].Time)
	})
	return kept
}
