package gtfsmanager

import (
	"fmt"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// stopTimeRowReader implements gtfsRowReader interface for gtfs.StopTime
type stopTimeRowReader struct{}

func (s stopTimeRowReader) addRow(parser *gtfsFileParser, tables *feedTables) error {
	stopTime, err := buildStopTime(parser)
	if err != nil {
		return err
	}
	tables.stopTimes = append(tables.stopTimes, stopTime)
	return nil
}

// buildStopTime reads a stop_times.txt row. A missing departure_time takes the arrival_time and the reverse,
// a row missing both is a stop that is not a timepoint and is estimated once the schedule is built.
func buildStopTime(parser *gtfsFileParser) (*gtfs.StopTime, error) {
	stopTime := gtfs.StopTime{}
	stopTime.TripId = parser.getString("trip_id", false)
	stopTime.StopId = parser.getString("stop_id", false)
	stopSequence := parser.getInt("stop_sequence", false)
	if stopSequence < 0 {
		parser.addParseError(fmt.Errorf("stop_sequence must not be negative, found %d", stopSequence))
	}
	stopTime.StopSequence = uint32(stopSequence)

	arrival := parser.getGTFSTimePointer("arrival_time", true)
	departure := parser.getGTFSTimePointer("departure_time", true)
	switch {
	case arrival != nil && departure != nil:
		stopTime.ArrivalTime = *arrival
		stopTime.DepartureTime = *departure
	case departure != nil:
		stopTime.ArrivalTime = *departure
		stopTime.DepartureTime = *departure
	case arrival != nil:
		stopTime.ArrivalTime = *arrival
		stopTime.DepartureTime = *arrival
	default:
		stopTime.ArrivalTime = gtfs.UntimedSeconds
		stopTime.DepartureTime = gtfs.UntimedSeconds
	}
	return &stopTime, parser.getError()
}
