package departures

import (
	"fmt"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// ScheduleSource provides the current static schedule and the stopping patterns derived from it.
// Schedule returns nil until a feed has been loaded.
type ScheduleSource interface {
	Schedule() *gtfs.Schedule
	Patterns(routeId string) []gtfs.RoutePattern
}

// labeler fills in the display fields of a departure from the schedule and configuration
type labeler struct {
	cfg    Config
	source ScheduleSource
}

// departureRoute identifies what a departure serves
type departureRoute struct {
	routeId     string
	directionId int
	headsign    string
	tripId      string
}

func (l labeler) makeDeparture(schedule *gtfs.Schedule,
	stopId string,
	route departureRoute,
	at time.Time,
	delaySeconds int,
	provenance gtfs.Provenance) gtfs.Departure {
	if schedule != nil {
		at = at.In(schedule.Location)
	}
	return gtfs.Departure{
		Time:           at,
		DisplayTime:    at.Format(gtfs.DisplayTimeLayout),
		RouteId:        route.routeId,
		RouteName:      l.routeName(schedule, route.routeId),
		DirectionId:    route.directionId,
		DirectionLabel: l.directionLabel(route.routeId, route.directionId, route.headsign),
		Destinations:   l.destinations(route.routeId, stopId, route.directionId),
		TripId:         route.tripId,
		DelaySeconds:   delaySeconds,
		Provenance:     provenance,
	}
}

func (l labeler) routeName(schedule *gtfs.Schedule, routeId string) string {
	if schedule == nil {
		return routeId
	}
	return schedule.RouteName(routeId)
}

// directionLabel prefers the trip headsign, then the headsign of the busiest pattern in that direction,
// then the configured label
func (l labeler) directionLabel(routeId string, directionId int, headsign string) string {
	if len(headsign) > 0 {
		return headsign
	}
	for _, pattern := range l.source.Patterns(routeId) {
		if pattern.DirectionId == directionId && len(pattern.Headsign) > 0 {
			return pattern.Headsign
		}
	}
	if directionId >= 0 && directionId < len(l.cfg.DirectionLabels) && len(l.cfg.DirectionLabels[directionId]) > 0 {
		return l.cfg.DirectionLabels[directionId]
	}
	return fmt.Sprintf("Direction %d", directionId)
}

// destinations lists the stop names served after stopId in directionId, at most MaxDestinations
func (l labeler) destinations(routeId string, stopId string, directionId int) []string {
	names := gtfs.DestinationsAfterStop(l.source.Patterns(routeId), stopId, &directionId)
	if len(names) > l.cfg.MaxDestinations {
		names = names[:l.cfg.MaxDestinations]
	}
	return append(make([]string, 0, len(names)), names...)
}
