package gtfsmanager

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// gtfsRowReader converts the current row of a gtfsFileParser into a record in feedTables
type gtfsRowReader interface {
	addRow(parser *gtfsFileParser, tables *feedTables) error
}

// feedTables collects the records read from every file in a gtfs zip
type feedTables struct {
	agencyTimezone string
	stops          []*gtfs.Stop
	routes         []*gtfs.Route
	trips          []*gtfs.Trip
	stopTimes      []*gtfs.StopTime
	calendars      []*gtfs.Calendar
	calendarDates  []*gtfs.CalendarDate
	// skippedRows counts rows left out because they could not be read, by filename
	skippedRows map[string]int
}

// gtfsTable names a file in the gtfs zip and the reader for its rows
type gtfsTable struct {
	filename string
	required bool
	reader   gtfsRowReader
}

// gtfsTables lists the files loaded from a gtfs zip, in load order
var gtfsTables = []gtfsTable{
	{filename: "agency.txt", reader: agencyRowReader{}},
	{filename: "stops.txt", required: true, reader: stopRowReader{}},
	{filename: "routes.txt", required: true, reader: routeRowReader{}},
	{filename: "trips.txt", required: true, reader: tripRowReader{}},
	{filename: "stop_times.txt", required: true, reader: stopTimeRowReader{}},
	{filename: "calendar.txt", reader: calendarRowReader{}},
	{filename: "calendar_dates.txt", reader: calendarDateRowReader{}},
}

// gtfsFileParser walks the rows of one gtfs csv file. Column lookups that fail are collected
// and reported together with the line number by getError.
type gtfsFileParser struct {
	filename string
	line     int
	reader   *csv.Reader
	headers  []string
	columns  map[string]int
	row      []string
	errors   []error
}

// makeGTFSFileParser reads the header line of r
func makeGTFSFileParser(r io.Reader, filename string) (*gtfsFileParser, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header of %s: %v", filename, err)
	}
	headers = append([]string(nil), headers...)
	columns := make(map[string]int, len(headers))
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
		columns[headers[i]] = i
	}
	return &gtfsFileParser{
		filename: filename,
		line:     1,
		reader:   reader,
		headers:  headers,
		columns:  columns,
	}, nil
}

// nextLine advances to the next row and clears errors of the previous row
func (p *gtfsFileParser) nextLine() error {
	row, err := p.reader.Read()
	p.line++
	p.row = row
	p.errors = p.errors[:0]
	return err
}

// value returns the trimmed value of column name in the current row.
// found is false when the column is absent or blank, which is an error unless optional.
func (p *gtfsFileParser) value(name string, optional bool) (value string, found bool) {
	index, present := p.columns[name]
	if present && index < len(p.row) {
		value = strings.TrimSpace(p.row[index])
	}
	if len(value) > 0 {
		return value, true
	}
	if !optional {
		switch {
		case !present:
			p.addParseError(fmt.Errorf("unable to find header: %s", name))
		default:
			p.addParseError(fmt.Errorf("missing required value in column %s", name))
		}
	}
	return "", false
}

// parseColumn converts column name with parse, nil when the value is missing or invalid
func parseColumn[T any](p *gtfsFileParser, name string, optional bool, parse func(string) (T, error)) *T {
	value, found := p.value(name, optional)
	if !found {
		return nil
	}
	result, err := parse(value)
	if err != nil {
		p.addParseError(fmt.Errorf("unable to parse column %s, error: %v", name, err))
		return nil
	}
	return &result
}

func (p *gtfsFileParser) getString(name string, optional bool) string {
	value, _ := p.value(name, optional)
	return value
}

// getStringPointer returns nil for a missing or blank value
func (p *gtfsFileParser) getStringPointer(name string, optional bool) *string {
	value, found := p.value(name, optional)
	if !found {
		return nil
	}
	return &value
}

func (p *gtfsFileParser) getInt(name string, optional bool) int {
	if result := parseColumn(p, name, optional, strconv.Atoi); result != nil {
		return *result
	}
	return 0
}

func (p *gtfsFileParser) getFloat64(name string, optional bool) float64 {
	result := parseColumn(p, name, optional, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
	if result != nil {
		return *result
	}
	return 0
}

// getGTFSDatePointer reads a YYYYMMDD service date
func (p *gtfsFileParser) getGTFSDatePointer(name string, optional bool) *time.Time {
	return parseColumn(p, name, optional, parseGTFSDate)
}

func (p *gtfsFileParser) getGTFSDate(name string, optional bool) time.Time {
	if result := p.getGTFSDatePointer(name, optional); result != nil {
		return *result
	}
	return time.Time{}
}

// getGTFSTimePointer reads an HH:MM:SS time as seconds from the start of the service day
func (p *gtfsFileParser) getGTFSTimePointer(name string, optional bool) *int {
	return parseColumn(p, name, optional, secondsFromGTFSTime)
}

func (p *gtfsFileParser) addParseError(err error) {
	p.errors = append(p.errors, err)
}

// getError reports every error collected on the current row, nil if there were none
func (p *gtfsFileParser) getError() error {
	if len(p.errors) == 0 {
		return nil
	}
	return fmt.Errorf("in file %s, line %d: %w", p.filename, p.line, errors.Join(p.errors...))
}

// secondsFromGTFSTime parses HH:MM:SS (or H:MM:SS). Hours run past 23 for trips continuing after midnight.
func secondsFromGTFSTime(gtfsTime string) (int, error) {
	parts := strings.Split(gtfsTime, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS, got %s", gtfsTime)
	}
	var fields [3]int
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, err
		}
		fields[i] = value
	}
	hours, minutes, seconds := fields[0], fields[1], fields[2]
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("time out of range: %s", gtfsTime)
	}
	result := hours*3600 + minutes*60 + seconds
	if result > gtfs.MaximumScheduleSeconds {
		return 0, fmt.Errorf("time beyond the end of the service day: %s", gtfsTime)
	}
	return result, nil
}

func parseGTFSDate(value string) (time.Time, error) {
	return time.Parse("20060102", value)
}

// loadGTFSRows feeds every non-blank row of parser to rowReader. Rows rowReader rejects are skipped,
// an error is only returned when the csv itself can't be read.
func loadGTFSRows(tables *feedTables, parser *gtfsFileParser, rowReader gtfsRowReader) (loaded int, skipped []error, err error) {
	for {
		err = parser.nextLine()
		if err == io.EOF {
			return loaded, skipped, nil
		}
		if err != nil {
			parser.addParseError(err)
			return loaded, skipped, parser.getError()
		}
		if isBlankLine(parser.row) {
			continue
		}
		if rowErr := rowReader.addRow(parser, tables); rowErr != nil {
			skipped = append(skipped, rowErr)
			continue
		}
		loaded++
	}
}

func isBlankLine(row []string) bool {
	for _, field := range row {
		if len(strings.TrimSpace(field)) > 0 {
			return false
		}
	}
	return true
}

// loadGtfsZip reads every table in gtfsTables from the zip archive in content.
// An unreadable zip or csv, or a required table that is missing or has no usable row, wraps gtfs.ErrFeedMalformed.
func loadGtfsZip(log *log.Logger, content []byte) (*feedTables, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open gtfs zip: %v", gtfs.ErrFeedMalformed, err)
	}

	// some publishers nest the tables inside a folder
	files := make(map[string]*zip.File)
	for _, f := range zipReader.File {
		if !f.FileInfo().IsDir() {
			files[path.Base(f.Name)] = f
		}
	}
	var missing []string
	for _, table := range gtfsTables {
		if table.required && files[table.filename] == nil {
			missing = append(missing, table.filename)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: gtfs zip file is missing the following file(s) %s",
			gtfs.ErrFeedMalformed, strings.Join(missing, ","))
	}

	tables := &feedTables{skippedRows: make(map[string]int)}
	for _, table := range gtfsTables {
		f := files[table.filename]
		if f == nil {
			continue
		}
		if err = loadGtfsFile(log, tables, table, f); err != nil {
			return nil, fmt.Errorf("%w: %v", gtfs.ErrFeedMalformed, err)
		}
	}
	return tables, nil
}

func loadGtfsFile(log *log.Logger, tables *feedTables, table gtfsTable, f *zip.File) error {
	start := time.Now()
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()
	parser, err := makeGTFSFileParser(rc, f.Name)
	if err != nil {
		return err
	}
	loaded, skipped, err := loadGTFSRows(tables, parser, table.reader)
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		tables.skippedRows[table.filename] = len(skipped)
		log.Printf("Skipped %d unreadable rows in file %s, first: %v", len(skipped), parser.filename, skipped[0])
		if table.required && loaded == 0 {
			return fmt.Errorf("no usable rows in %s: %w", parser.filename, skipped[0])
		}
	}
	log.Printf("Loaded %d rows in file %s in %v", loaded, parser.filename, time.Since(start))
	return nil
}
