package gtfsmanager

import (
	"archive/zip"
	"bytes"
	"io"
	"log"
	"testing"
)

// ferryFeedFiles is a small gtfs feed, route "SB" calls at stop "24" in both directions
var ferryFeedFiles = map[string]string{
	"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
		"SF,Sound Ferries,https://example.com,America/Los_Angeles\n",
	"stops.txt": "\ufeffstop_id,stop_name,stop_lat,stop_lon\n" +
		"1,North Terminal,47.60,-122.34\n" +
		"24,Island Dock,47.55,-122.40\n" +
		"30,South Pier,47.50,-122.45\n",
	"routes.txt": "\ufeffroute_id,agency_id,route_short_name,route_long_name,route_type\n" +
		"SB,SF,SB,Sound Boat,4\n",
	"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id\n" +
		"SB,WK,A,South Pier,0\n" +
		"SB,WK,B,North Terminal,1\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"A,11:00:00,11:00:00,1,1\n" +
		"A,11:20:00,11:20:00,24,2\n" +
		"A,11:40:00,11:40:00,30,3\n" +
		"B,11:10:00,11:10:00,30,1\n" +
		"B,,11:31:00,24,2\n" +
		"B,11:50:00,11:50:00,1,3\n" +
		"ghost,12:00:00,12:00:00,24,1\n",
	"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"WK,1,1,1,1,1,0,0,20240101,20241231\n",
	"calendar_dates.txt": "service_id,date,exception_type\n" +
		"WK,20240704,2\n",
}

// makeZip builds a zip archive holding files, leaving out any file named in skip
func makeZip(t *testing.T, files map[string]string, skip ...string) []byte {
	t.Helper()
	skipped := make(map[string]bool)
	for _, name := range skip {
		skipped[name] = true
	}
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, content := range files {
		if skipped[name] {
			continue
		}
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating %s in zip: %v", name, err)
		}
		if _, err = f.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s in zip: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
