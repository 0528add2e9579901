package gtfs

import "time"

func strPtr(s string) *string {
	return &s
}

func datePtr(str string) *time.Time {
	d := getTestDate(str)
	return &d
}

// everyDayCalendar makes a calendar running all week for the whole of 2024
func everyDayCalendar(serviceId string) *Calendar {
	return &Calendar{
		ServiceId: serviceId,
		Monday:    1,
		Tuesday:   1,
		Wednesday: 1,
		Thursday:  1,
		Friday:    1,
		Saturday:  1,
		Sunday:    1,
		StartDate: datePtr("20240101"),
		EndDate:   datePtr("20241231"),
	}
}

// makeFerrySchedule builds a small two direction route "SB" between stops "1", "24" and "30"
func makeFerrySchedule() *Schedule {
	stops := []*Stop{
		{StopId: "1", StopName: "North Terminal"},
		{StopId: "24", StopName: "Island Dock"},
		{StopId: "30", StopName: "South Pier"},
		{StopId: "31", StopName: "South Pier Annex"},
	}
	routes := []*Route{
		{RouteId: "SB", RouteShortName: "SB", RouteLongName: "Sound Boat"},
		{RouteId: "X", RouteLongName: "Express"},
	}
	trips := []*Trip{
		{TripId: "A", RouteId: "SB", ServiceId: "ALL", DirectionId: 0, TripHeadsign: strPtr("South Pier")},
		{TripId: "A2", RouteId: "SB", ServiceId: "ALL", DirectionId: 0, TripHeadsign: strPtr("South Pier")},
		{TripId: "A3", RouteId: "SB", ServiceId: "ALL", DirectionId: 0},
		{TripId: "B", RouteId: "SB", ServiceId: "ALL", DirectionId: 1, TripHeadsign: strPtr("North Terminal")},
		{TripId: "E", RouteId: "SB", ServiceId: "ALL", DirectionId: 1},
		{TripId: "X1", RouteId: "X", ServiceId: "ALL", DirectionId: 0},
	}
	stopTimes := []*StopTime{
		{TripId: "A", StopSequence: 2, StopId: "24", ArrivalTime: 40800, DepartureTime: 40800},
		{TripId: "A", StopSequence: 1, StopId: "1", ArrivalTime: 39600, DepartureTime: 39600},
		{TripId: "A", StopSequence: 3, StopId: "30", ArrivalTime: 42000, DepartureTime: 42000},
		{TripId: "A2", StopSequence: 1, StopId: "1", ArrivalTime: 50000, DepartureTime: 50000},
		{TripId: "A2", StopSequence: 2, StopId: "24", ArrivalTime: 51000, DepartureTime: 51000},
		{TripId: "A2", StopSequence: 3, StopId: "30", ArrivalTime: 52000, DepartureTime: 52000},
		{TripId: "A3", StopSequence: 1, StopId: "1", ArrivalTime: 60000, DepartureTime: 60000},
		{TripId: "A3", StopSequence: 2, StopId: "24", ArrivalTime: 61000, DepartureTime: 61000},
		{TripId: "A3", StopSequence: 3, StopId: "31", ArrivalTime: 62000, DepartureTime: 62000},
		{TripId: "B", StopSequence: 1, StopId: "30", ArrivalTime: 40000, DepartureTime: 40000},
		{TripId: "B", StopSequence: 2, StopId: "24", ArrivalTime: 41460, DepartureTime: 41460},
		{TripId: "B", StopSequence: 3, StopId: "1", ArrivalTime: 43000, DepartureTime: 43000},
		{TripId: "X1", StopSequence: 1, StopId: "24", ArrivalTime: 41000, DepartureTime: 41000},
		{TripId: "missing", StopSequence: 1, StopId: "24", ArrivalTime: 41000, DepartureTime: 41000},
	}
	return NewSchedule(time.UTC, stops, routes, trips, stopTimes,
		[]*Calendar{everyDayCalendar("ALL")}, nil)
}
