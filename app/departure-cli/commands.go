package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/protobuf/encoding/prototext"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/gtfsmanager"
	"github.com/OpenTransitTools/nextdeparture/business/realtime"
	"github.com/OpenTransitTools/nextdeparture/foundation/httpclient"
)

func printDepartures(w io.Writer, stopId string, departures []gtfs.Departure) {
	fmt.Fprintf(w, "Departures from stop %s\n", stopId)
	if len(departures) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, departure := range departures {
		delay := ""
		if departure.DelaySeconds != 0 {
			delay = fmt.Sprintf(" (%+ds)", departure.DelaySeconds)
		}
		fmt.Fprintf(w, "  %s %-8s %-24s %s%s [%s]\n", departure.DisplayTime, departure.RouteName,
			departure.DirectionLabel, strings.Join(departure.Destinations, ", "), delay, departure.Provenance)
	}
}

func printRouteInfo(w io.Writer, info gtfsmanager.RouteInfo) {
	fmt.Fprintf(w, "Route %s (%s)\n", info.Name, info.RouteId)
	for _, direction := range info.Directions {
		fmt.Fprintf(w, "  direction %d %q: %s\n", direction.DirectionId, direction.Headsign,
			strings.Join(direction.Destinations, ", "))
	}
}

func printPatterns(w io.Writer, patterns []gtfs.RoutePattern) {
	if len(patterns) == 0 {
		fmt.Fprintln(w, "no patterns found")
		return
	}
	for _, pattern := range patterns {
		fmt.Fprintf(w, "direction %d %q, %d trips (sample %s)\n", pattern.DirectionId, pattern.Headsign,
			pattern.TripCount, pattern.SampleTripId)
		for i, stopId := range pattern.StopIds {
			fmt.Fprintf(w, "  %2d %s %s\n", i+1, stopId, pattern.StopNames[i])
		}
	}
}

func printAlerts(w io.Writer, alerts []gtfs.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "no alerts")
		return
	}
	for _, alert := range alerts {
		fmt.Fprintf(w, "[%s] %s: %s\n", alert.Severity, alert.AlertId, alert.HeaderText)
		if len(alert.DescriptionText) > 0 {
			fmt.Fprintf(w, "  %s\n", alert.DescriptionText)
		}
	}
}

// dumpRealtime prints the gtfs-realtime feed at location in protobuf text format
func dumpRealtime(ctx context.Context, w io.Writer, client *httpclient.Client, location string) error {
	document, err := client.Get(ctx, location)
	if err != nil {
		return fmt.Errorf("retrieving %s: %w", location, err)
	}
	feedMessage, err := realtime.DecodeFeedMessage(document.Body)
	if err != nil {
		return err
	}
	text, err := prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(feedMessage)
	if err != nil {
		return fmt.Errorf("formatting feed message: %w", err)
	}
	_, err = w.Write(text)
	return err
}
