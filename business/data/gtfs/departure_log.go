package gtfs

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// DepartureLogRecord is a row of the departure_log table, one per departure on a published board
// primary key consists of PublishedAt, StopId, Position
type DepartureLogRecord struct {
	PublishedAt time.Time `db:"published_at"`
	StopId      string    `db:"stop_id"`
	//Position is the departure's index on the board
	Position      int       `db:"position"`
	DepartureTime time.Time `db:"departure_time"`
	RouteId       string    `db:"route_id"`
	DirectionId   int       `db:"direction_id"`
	TripId        *string   `db:"trip_id"`
	DelaySeconds  int       `db:"delay_seconds"`
	Provenance    string    `db:"provenance"`
	CreatedAt     time.Time `db:"created_at"`
}

// MakeDepartureLogRecords converts a departure board for stopId into DepartureLogRecords
func MakeDepartureLogRecords(stopId string, publishedAt time.Time, departures []Departure) []DepartureLogRecord {
	records := make([]DepartureLogRecord, 0, len(departures))
	for i, departure := range departures {
		var tripId *string
		if departure.TripId != "" {
			id := departure.TripId
			tripId = &id
		}
		records = append(records, DepartureLogRecord{
			PublishedAt:   publishedAt,
			StopId:        stopId,
			Position:      i,
			DepartureTime: departure.Time,
			RouteId:       departure.RouteId,
			DirectionId:   departure.DirectionId,
			TripId:        tripId,
			DelaySeconds:  departure.DelaySeconds,
			Provenance:    departure.Provenance.String(),
		})
	}
	return records
}

// RecordDepartureLog saves slice of DepartureLogRecord into database in batch
func RecordDepartureLog(db *sqlx.DB, records []DepartureLogRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now()
	for i := range records {
		records[i].CreatedAt = now
	}
	statementString := "insert into departure_log " +
		"(published_at, " +
		"stop_id, " +
		"position, " +
		"departure_time, " +
		"route_id, " +
		"direction_id, " +
		"trip_id, " +
		"delay_seconds, " +
		"provenance, " +
		"created_at) " +
		"values " +
		"(:published_at, " +
		":stop_id, " +
		":position, " +
		":departure_time, " +
		":route_id, " +
		":direction_id, " +
		":trip_id, " +
		":delay_seconds, " +
		":provenance, " +
		":created_at)"
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, records)
	return err
}
