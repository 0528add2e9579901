package gtfs

import (
	"sort"
	"strings"
)

// RoutePattern groups the trips of a route that visit an identical ordered sequence of stops
type RoutePattern struct {
	RouteId      string   `json:"route_id"`
	DirectionId  int      `json:"direction_id"`
	Headsign     string   `json:"headsign"`
	StopIds      []string `json:"stop_ids"`
	StopNames    []string `json:"stop_names"`
	TripCount    int      `json:"trip_count"`
	SampleTripId string   `json:"sample_trip_id"`
}

// ComputePatterns derives the distinct stopping patterns of routeId. Trips without stop times are ignored.
// Patterns are ordered by trip count descending, then direction, then sample trip id.
func ComputePatterns(schedule *Schedule, routeId string) []RoutePattern {
	byKey := make(map[string]*RoutePattern)
	var keys []string
	for _, trip := range schedule.TripsForRoute(routeId) {
		stopTimes := schedule.StopTimes[trip.TripId]
		if len(stopTimes) == 0 {
			continue
		}
		stopIds := make([]string, len(stopTimes))
		for i, st := range stopTimes {
			stopIds[i] = st.StopId
		}
		key := patternKey(trip.DirectionId, stopIds)
		if pattern, present := byKey[key]; present {
			pattern.TripCount++
			continue
		}
		stopNames := make([]string, len(stopIds))
		for i, stopId := range stopIds {
			stopNames[i] = schedule.StopName(stopId)
		}
		byKey[key] = &RoutePattern{
			RouteId:      trip.RouteId,
			DirectionId:  trip.DirectionId,
			Headsign:     trip.Headsign(),
			StopIds:      stopIds,
			StopNames:    stopNames,
			TripCount:    1,
			SampleTripId: trip.TripId,
		}
		keys = append(keys, key)
	}

	results := make([]RoutePattern, 0, len(keys))
	for _, key := range keys {
		results = append(results, *byKey[key])
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].TripCount != results[j].TripCount {
			return results[i].TripCount > results[j].TripCount
		}
		if results[i].DirectionId != results[j].DirectionId {
			return results[i].DirectionId < results[j].DirectionId
		}
		return results[i].SampleTripId < results[j].SampleTripId
	})
	return results
}

func patternKey(directionId int, stopIds []string) string {
	prefix := "0|"
	if directionId != 0 {
		prefix = "1|"
	}
	return prefix + strings.Join(stopIds, "\x1f")
}

// DestinationsAfterStop collects the stop names visited after stopId on each pattern that contains it,
// optionally restricted to a direction. Names are de-duplicated in first seen order and never include
// the name of stopId itself.
func DestinationsAfterStop(patterns []RoutePattern, stopId string, direction *int) []string {
	var results []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if direction != nil && pattern.DirectionId != *direction {
			continue
		}
		position := -1
		targetName := ""
		for i, id := range pattern.StopIds {
			if id == stopId {
				position = i
				targetName = pattern.StopNames[i]
				break
			}
		}
		if position < 0 {
			continue
		}
		seen[targetName] = true
		for _, name := range pattern.StopNames[position+1:] {
			if seen[name] {
				continue
			}
			seen[name] = true
			results = append(results, name)
		}
	}
	return results
}
