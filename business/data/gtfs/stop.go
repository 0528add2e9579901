package gtfs

// Stop contains a record from a gtfs stops.txt file
type Stop struct {
	StopId   string  `json:"stop_id"`
	StopName string  `json:"stop_name"`
	StopLat  float64 `json:"stop_lat"`
	StopLon  float64 `json:"stop_lon"`
}

// Route contains a record from a gtfs routes.txt file
type Route struct {
	RouteId        string `json:"route_id"`
	RouteShortName string `json:"route_short_name"`
	RouteLongName  string `json:"route_long_name"`
}

// DisplayName prefers the short name, then the long name, then the route id
func (r *Route) DisplayName() string {
	if r.RouteShortName != "" {
		return r.RouteShortName
	}
	if r.RouteLongName != "" {
		return r.RouteLongName
	}
	return r.RouteId
}
