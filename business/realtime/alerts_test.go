package realtime

import (
	"testing"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/matryer/is"
	"google.golang.org/protobuf/proto"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

func alertEntity(id string, alert *gtfsrt.Alert) *gtfsrt.FeedEntity {
	return &gtfsrt.FeedEntity{Id: proto.String(id), Alert: alert}
}

func TestDecodeAlerts(t *testing.T) {
	is := is.New(t)
	feedMessage := makeFeedMessage(
		alertEntity("dock-closure", &gtfsrt.Alert{
			HeaderText:      translated("Fermeture du quai", "fr", "Dock closed", "en-US"),
			DescriptionText: translated("Use the north dock", ""),
			SeverityLevel:   gtfsrt.Alert_SEVERE.Enum(),
			InformedEntity: []*gtfsrt.EntitySelector{
				{RouteId: proto.String("SB")},
				{Trip: &gtfsrt.TripDescriptor{TripId: proto.String("A"), RouteId: proto.String("X")}},
				{AgencyId: proto.String("ferries")},
			},
		}),
		alertEntity("weather", &gtfsrt.Alert{
			HeaderText: translated("Tormenta", "es", "Orage", "fr"),
		}),
		&gtfsrt.FeedEntity{
			Id:        proto.String("expired"),
			IsDeleted: proto.Bool(true),
			Alert:     &gtfsrt.Alert{HeaderText: translated("gone", "")},
		},
		tripUpdateEntity("trip", &gtfsrt.TripDescriptor{TripId: proto.String("A")}),
	)

	alerts, err := DecodeAlerts(marshalFeed(t, feedMessage))
	is.NoErr(err)
	is.Equal(len(alerts), 2)

	closure := alerts[0]
	is.Equal(closure.AlertId, "dock-closure")
	is.Equal(closure.HeaderText, "Dock closed")
	is.Equal(closure.DescriptionText, "Use the north dock")
	is.Equal(closure.Severity, gtfs.SevereSeverity)
	is.Equal(closure.InformedEntities, []gtfs.InformedEntity{
		{RouteId: "SB"},
		{RouteId: "X", TripId: "A"},
	})

	weather := alerts[1]
	is.Equal(weather.HeaderText, "Tormenta")
	is.Equal(weather.Severity, gtfs.UnknownSeverity)
	is.Equal(len(weather.InformedEntities), 0)
}

func TestFilterAlerts(t *testing.T) {
	alerts := []gtfs.Alert{
		{AlertId: "route", InformedEntities: []gtfs.InformedEntity{{RouteId: "SB"}}},
		{AlertId: "other", InformedEntities: []gtfs.InformedEntity{{RouteId: "X"}}},
		{AlertId: "stop-only", InformedEntities: []gtfs.InformedEntity{{StopId: "24"}}},
		{AlertId: "unscoped"},
	}
	tests := []struct {
		name    string
		routeId string
		policy  gtfs.UnscopedAlertPolicy
		want    []string
	}{
		{name: "ignore unscoped", routeId: "SB", policy: gtfs.UnscopedAlertsIgnored, want: []string{"route"}},
		{name: "system wide unscoped", routeId: "SB", policy: gtfs.UnscopedAlertsSystemWide,
			want: []string{"route", "unscoped"}},
		{name: "other route", routeId: "X", policy: gtfs.UnscopedAlertsIgnored, want: []string{"other"}},
		{name: "unknown route", routeId: "Z", policy: gtfs.UnscopedAlertsIgnored, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got := make([]string, 0)
			for _, alert := range FilterAlerts(alerts, tt.routeId, tt.policy) {
				got = append(got, alert.AlertId)
			}
			is.Equal(got, tt.want)
		})
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level gtfsrt.Alert_SeverityLevel
		want  gtfs.Severity
	}{
		{level: gtfsrt.Alert_UNKNOWN_SEVERITY, want: gtfs.UnknownSeverity},
		{level: gtfsrt.Alert_INFO, want: gtfs.InfoSeverity},
		{level: gtfsrt.Alert_WARNING, want: gtfs.WarningSeverity},
		{level: gtfsrt.Alert_SEVERE, want: gtfs.SevereSeverity},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			is := is.New(t)
			is.Equal(severity(tt.level), tt.want)
		})
	}
}
