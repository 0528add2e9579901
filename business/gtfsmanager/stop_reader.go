package gtfsmanager

import (
	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// stopRowReader implements gtfsRowReader interface for gtfs.Stop
type stopRowReader struct{}

func (r stopRowReader) addRow(parser *gtfsFileParser, tables *feedTables) error {
	stop, err := buildStop(parser)
	if err != nil {
		return err
	}
	tables.stops = append(tables.stops, stop)
	return nil
}

func buildStop(parser *gtfsFileParser) (*gtfs.Stop, error) {
	stop := gtfs.Stop{
		StopId:   parser.getString("stop_id", false),
		StopName: parser.getString("stop_name", true),
		StopLat:  parser.getFloat64("stop_lat", true),
		StopLon:  parser.getFloat64("stop_lon", true),
	}
	return &stop, parser.getError()
}
