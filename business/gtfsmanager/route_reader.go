package gtfsmanager

import (
	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// routeRowReader implements gtfsRowReader interface for gtfs.Route
type routeRowReader struct{}

func (r routeRowReader) addRow(parser *gtfsFileParser, tables *feedTables) error {
	route, err := buildRoute(parser)
	if err != nil {
		return err
	}
	tables.routes = append(tables.routes, route)
	return nil
}

func buildRoute(parser *gtfsFileParser) (*gtfs.Route, error) {
	route := gtfs.Route{
		RouteId:        parser.getString("route_id", false),
		RouteShortName: parser.getString("route_short_name", true),
		RouteLongName:  parser.getString("route_long_name", true),
	}
	return &route, parser.getError()
}
