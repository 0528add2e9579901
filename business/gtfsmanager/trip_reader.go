package gtfsmanager

import (
	"fmt"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// tripRowReader implements gtfsRowReader interface for gtfs.Trip
type tripRowReader struct{}

func (r tripRowReader) addRow(parser *gtfsFileParser, tables *feedTables) error {
	trip, err := buildTrip(parser)
	if err != nil {
		return err
	}
	tables.trips = append(tables.trips, trip)
	return nil
}

func buildTrip(parser *gtfsFileParser) (*gtfs.Trip, error) {
	trip := gtfs.Trip{
		TripId:       parser.getString("trip_id", false),
		RouteId:      parser.getString("route_id", false),
		ServiceId:    parser.getString("service_id", false),
		DirectionId:  parser.getInt("direction_id", true),
		TripHeadsign: parser.getStringPointer("trip_headsign", true),
		ShapeId:      parser.getStringPointer("shape_id", true),
	}
	if trip.DirectionId != 0 && trip.DirectionId != 1 {
		parser.addParseError(fmt.Errorf("direction_id must be 0 or 1, found %d", trip.DirectionId))
	}
	return &trip, parser.getError()
}
