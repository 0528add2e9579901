package gtfsmanager

import (
	"fmt"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// calendarDateRowReader implements gtfsRowReader interface for gtfs.CalendarDate
type calendarDateRowReader struct{}

func (c calendarDateRowReader) addRow(parser *gtfsFileParser, tables *feedTables) error {
	calendarDate, err := buildCalendarDate(parser)
	if err != nil {
		return err
	}
	tables.calendarDates = append(tables.calendarDates, calendarDate)
	return nil
}

func buildCalendarDate(parser *gtfsFileParser) (*gtfs.CalendarDate, error) {
	calendarDate := gtfs.CalendarDate{
		ServiceId:     parser.getString("service_id", false),
		Date:          parser.getGTFSDate("date", false),
		ExceptionType: parser.getInt("exception_type", false),
	}
	if calendarDate.ExceptionType != gtfs.ExceptionAdded && calendarDate.ExceptionType != gtfs.ExceptionRemoved {
		parser.addParseError(fmt.Errorf("unknown exception_type %d", calendarDate.ExceptionType))
	}

	return &calendarDate, parser.getError()
}
