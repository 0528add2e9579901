package gtfsmanager

// agencyRowReader implements gtfsRowReader interface for agency.txt, only the first agency's timezone is kept
type agencyRowReader struct{}

func (r agencyRowReader) addRow(parser *gtfsFileParser, tables *feedTables) error {
	timezone := parser.getString("agency_timezone", true)
	if err := parser.getError(); err != nil {
		return err
	}
	if len(tables.agencyTimezone) == 0 {
		tables.agencyTimezone = timezone
	}
	return nil
}
