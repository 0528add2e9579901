package gtfs

import "time"

// StopTimeUpdate is a single per-stop record decoded from a gtfs-realtime trip update
type StopTimeUpdate struct {
	TripId       string `json:"trip_id"`
	RouteId      string `json:"route_id"`
	DirectionId  *int   `json:"direction_id"`
	StopId       string `json:"stop_id"`
	StopSequence uint32 `json:"stop_sequence"`
	// DepartureTime is nil when the feed only reported a delay
	DepartureTime *time.Time `json:"departure_time"`
	DelaySeconds  *int       `json:"delay_seconds"`
	Skipped       bool       `json:"skipped"`
}

// FeedSnapshot is the decoded content of one gtfs-realtime trip updates fetch
type FeedSnapshot struct {
	Timestamp       time.Time        `json:"timestamp"`
	Updates         []StopTimeUpdate `json:"updates"`
	CanceledTripIds map[string]bool  `json:"canceled_trip_ids"`
	// SkippedEntities counts entities that could not be converted
	SkippedEntities int `json:"skipped_entities"`
}

// IsCanceled returns true if the snapshot reports tripId as canceled
func (f *FeedSnapshot) IsCanceled(tripId string) bool {
	return f != nil && f.CanceledTripIds[tripId]
}

// ResolveDeparture returns the departure instant of u, using scheduled plus the delay when the feed gave no time.
func (u *StopTimeUpdate) ResolveDeparture(scheduled *time.Time) (time.Time, bool) {
	if u.DepartureTime != nil {
		return *u.DepartureTime, true
	}
	if u.DelaySeconds != nil && scheduled != nil {
		return scheduled.Add(time.Duration(*u.DelaySeconds) * time.Second), true
	}
	return time.Time{}, false
}

// IsTargetDeparture returns true when the update is for stopId and departs strictly after notBefore.
// Updates without an absolute departure time are never target departures.
func IsTargetDeparture(update *StopTimeUpdate, stopId string, notBefore time.Time) bool {
	if update.StopId != stopId || update.DepartureTime == nil {
		return false
	}
	return update.DepartureTime.After(notBefore)
}
