package gtfs

import (
	"testing"

	"github.com/matryer/is"
)

func TestComputePatterns(t *testing.T) {
	is := is.New(t)
	patterns := ComputePatterns(makeFerrySchedule(), "SB")

	is.Equal(len(patterns), 3)

	is.Equal(patterns[0].SampleTripId, "A")
	is.Equal(patterns[0].TripCount, 2)
	is.Equal(patterns[0].Headsign, "South Pier")
	is.Equal(patterns[0].StopIds, []string{"1", "24", "30"})
	is.Equal(patterns[0].StopNames, []string{"North Terminal", "Island Dock", "South Pier"})

	is.Equal(patterns[1].SampleTripId, "A3")
	is.Equal(patterns[1].DirectionId, 0)
	is.Equal(patterns[2].SampleTripId, "B")
	is.Equal(patterns[2].DirectionId, 1)

	for _, pattern := range patterns {
		is.True(len(pattern.StopIds) > 0)
	}
}

func TestDestinationsAfterStop(t *testing.T) {
	patterns := ComputePatterns(makeFerrySchedule(), "SB")
	zero := 0
	one := 1
	tests := []struct {
		name      string
		stopId    string
		direction *int
		want      []string
	}{
		{
			name:   "both directions",
			stopId: "24",
			want:   []string{"South Pier", "South Pier Annex", "North Terminal"},
		},
		{
			name:      "direction 0",
			stopId:    "24",
			direction: &zero,
			want:      []string{"South Pier", "South Pier Annex"},
		},
		{
			name:      "direction 1",
			stopId:    "24",
			direction: &one,
			want:      []string{"North Terminal"},
		},
		{
			name:   "terminal stop only has destinations on outbound patterns",
			stopId: "30",
			want:   []string{"Island Dock", "North Terminal"},
		},
		{
			name:   "stop not served",
			stopId: "99",
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(DestinationsAfterStop(patterns, tt.stopId, tt.direction), tt.want)
		})
	}
}
