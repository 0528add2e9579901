package realtime

import (
	"io"
	"log"
	"testing"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func makeFeedMessage(entities ...*gtfsrt.FeedEntity) *gtfsrt.FeedMessage {
	return &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC).Unix())),
		},
		Entity: entities,
	}
}

func marshalFeed(t *testing.T, feedMessage *gtfsrt.FeedMessage) []byte {
	t.Helper()
	b, err := proto.Marshal(feedMessage)
	if err != nil {
		t.Fatalf("marshalling feed message: %v", err)
	}
	return b
}

func tripUpdateEntity(id string, trip *gtfsrt.TripDescriptor,
	updates ...*gtfsrt.TripUpdate_StopTimeUpdate) *gtfsrt.FeedEntity {
	return &gtfsrt.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &gtfsrt.TripUpdate{
			Trip:           trip,
			StopTimeUpdate: updates,
		},
	}
}

func departureUpdate(stopId string, at *time.Time, delay *int32) *gtfsrt.TripUpdate_StopTimeUpdate {
	event := &gtfsrt.TripUpdate_StopTimeEvent{Delay: delay}
	if at != nil {
		event.Time = proto.Int64(at.Unix())
	}
	return &gtfsrt.TripUpdate_StopTimeUpdate{
		StopId:    proto.String(stopId),
		Departure: event,
	}
}

func translated(texts ...string) *gtfsrt.TranslatedString {
	result := &gtfsrt.TranslatedString{}
	for i := 0; i+1 < len(texts); i += 2 {
		translation := &gtfsrt.TranslatedString_Translation{Text: proto.String(texts[i])}
		if len(texts[i+1]) > 0 {
			translation.Language = proto.String(texts[i+1])
		}
		result.Translation = append(result.Translation, translation)
	}
	return result
}
