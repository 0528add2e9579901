package gtfs

// UntimedSeconds marks a stop time without arrival_time and departure_time,
// allowed by gtfs for stops that are not timepoints
const UntimedSeconds = -1

// StopTime contains a record from a gtfs stop_times.txt file
// represents a scheduled arrival and departure at a stop.
// ArrivalTime and DepartureTime are seconds from the start of the service day and may exceed 24 hours.
type StopTime struct {
	TripId        string `json:"trip_id"`
	StopSequence  uint32 `json:"stop_sequence"`
	StopId        string `json:"stop_id"`
	ArrivalTime   int    `json:"arrival_time"`
	DepartureTime int    `json:"departure_time"`
}

// Untimed is true until the stop time is given an estimate between the timepoints around it
func (st *StopTime) Untimed() bool {
	return st.ArrivalTime == UntimedSeconds && st.DepartureTime == UntimedSeconds
}

// interpolateStopTimes estimates untimed stop times of one trip, ordered by stop_sequence,
// spacing them evenly between the departure before and the arrival after them.
// Untimed stop times before the first or after the last timepoint can't be estimated and are removed,
// the count of removed stop times is returned.
func interpolateStopTimes(stopTimes []*StopTime) ([]*StopTime, int) {
	previous := -1
	for i, st := range stopTimes {
		if st.Untimed() {
			continue
		}
		if previous >= 0 && i-previous > 1 {
			from := stopTimes[previous].DepartureTime
			span := st.ArrivalTime - from
			steps := i - previous
			for j := previous + 1; j < i; j++ {
				estimate := from + span*(j-previous)/steps
				stopTimes[j].ArrivalTime = estimate
				stopTimes[j].DepartureTime = estimate
			}
		}
		previous = i
	}

	kept := stopTimes[:0]
	for _, st := range stopTimes {
		if !st.Untimed() {
			kept = append(kept, st)
		}
	}
	return kept, len(stopTimes) - len(kept)
}
