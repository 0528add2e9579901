package realtime

import (
	"fmt"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// DecodeFeedMessage unmarshals a gtfs-realtime protobuf payload. Missing required fields are tolerated.
func DecodeFeedMessage(b []byte) (*gtfsrt.FeedMessage, error) {
	feedMessage := &gtfsrt.FeedMessage{}
	if err := (proto.UnmarshalOptions{AllowPartial: true}).Unmarshal(b, feedMessage); err != nil {
		return nil, fmt.Errorf("%w: unable to unmarshal gtfs-rt feed message: %v", gtfs.ErrFeedMalformed, err)
	}
	return feedMessage, nil
}

// DecodeTripUpdates converts the trip update entities of a gtfs-realtime payload into a FeedSnapshot.
// Entities that can't be converted are skipped and counted in FeedSnapshot.SkippedEntities.
func DecodeTripUpdates(b []byte) (*gtfs.FeedSnapshot, error) {
	feedMessage, err := DecodeFeedMessage(b)
	if err != nil {
		return nil, err
	}
	return tripUpdatesFromFeedMessage(feedMessage), nil
}

func tripUpdatesFromFeedMessage(feedMessage *gtfsrt.FeedMessage) *gtfs.FeedSnapshot {
	snapshot := &gtfs.FeedSnapshot{
		CanceledTripIds: make(map[string]bool),
	}
	if timestamp := feedMessage.GetHeader().GetTimestamp(); timestamp > 0 {
		snapshot.Timestamp = time.Unix(int64(timestamp), 0).UTC()
	}
	for _, entity := range feedMessage.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil || entity.GetIsDeleted() {
			continue
		}
		trip := tripUpdate.GetTrip()
		tripId := trip.GetTripId()
		if len(tripId) == 0 {
			snapshot.SkippedEntities++
			continue
		}
		if trip.GetScheduleRelationship() == gtfsrt.TripDescriptor_CANCELED {
			snapshot.CanceledTripIds[tripId] = true
			continue
		}
		var directionId *int
		if trip.DirectionId != nil {
			direction := int(trip.GetDirectionId())
			directionId = &direction
		}
		for _, stopTimeUpdate := range tripUpdate.GetStopTimeUpdate() {
			update, ok := makeStopTimeUpdate(tripUpdate, stopTimeUpdate)
			if !ok {
				continue
			}
			update.TripId = tripId
			update.RouteId = trip.GetRouteId()
			update.DirectionId = directionId
			snapshot.Updates = append(snapshot.Updates, update)
		}
	}
	return snapshot
}

// makeStopTimeUpdate converts a single stop time update, preferring the departure event over the arrival event.
// Returns false for updates that carry no usable information.
func makeStopTimeUpdate(tripUpdate *gtfsrt.TripUpdate,
	stopTimeUpdate *gtfsrt.TripUpdate_StopTimeUpdate) (gtfs.StopTimeUpdate, bool) {
	update := gtfs.StopTimeUpdate{
		StopId:       stopTimeUpdate.GetStopId(),
		StopSequence: stopTimeUpdate.GetStopSequence(),
	}
	if len(update.StopId) == 0 {
		return update, false
	}
	switch stopTimeUpdate.GetScheduleRelationship() {
	case gtfsrt.TripUpdate_StopTimeUpdate_SKIPPED:
		update.Skipped = true
		return update, true
	case gtfsrt.TripUpdate_StopTimeUpdate_NO_DATA:
		return update, false
	}

	event := stopTimeUpdate.GetDeparture()
	if event == nil {
		event = stopTimeUpdate.GetArrival()
	}
	if event != nil {
		if event.Time != nil && event.GetTime() > 0 {
			departure := time.Unix(event.GetTime(), 0).UTC()
			update.DepartureTime = &departure
		}
		if event.Delay != nil {
			delay := int(event.GetDelay())
			update.DelaySeconds = &delay
		}
	}
	if update.DelaySeconds == nil && update.DepartureTime == nil && tripUpdate.Delay != nil {
		delay := int(tripUpdate.GetDelay())
		update.DelaySeconds = &delay
	}
	if update.DepartureTime == nil && update.DelaySeconds == nil {
		return update, false
	}
	return update, true
}
