package gtfs

// Trip contains data from a gtfs trip definition in a trips.txt file
type Trip struct {
	TripId       string  `json:"trip_id"`
	RouteId      string  `json:"route_id"`
	ServiceId    string  `json:"service_id"`
	DirectionId  int     `json:"direction_id"`
	TripHeadsign *string `json:"trip_headsign"`
	ShapeId      *string `json:"shape_id"`
}

// Headsign returns trip_headsign or an empty string when not present
func (t *Trip) Headsign() string {
	if t == nil || t.TripHeadsign == nil {
		return ""
	}
	return *t.TripHeadsign
}
