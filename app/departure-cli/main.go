package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"time"

	"github.com/ardanlabs/conf"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/departures"
	"github.com/OpenTransitTools/nextdeparture/business/gtfsmanager"
	"github.com/OpenTransitTools/nextdeparture/business/realtime"
	"github.com/OpenTransitTools/nextdeparture/foundation/clock"
	"github.com/OpenTransitTools/nextdeparture/foundation/httpclient"
)

var build = "develop"

func main() {
	log := logger.New(os.Stderr, "DEPARTURE_CLI : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		HTTP struct {
			Timeout      time.Duration `conf:"default:30s"`
			MaxBodyBytes int64         `conf:"default:104857600"`
		}
		Static struct {
			URL      string `conf:"default:https://developer.trimet.org/schedule/gtfs.zip"`
			Timezone string `conf:"default:America/Los_Angeles"`
		}
		Realtime struct {
			TripUpdatesURL string `conf:"default:https://developer.trimet.org/ws/V1/TripUpdate"`
			AlertsURL      string `conf:"default:https://developer.trimet.org/ws/V1/FeedSpecAlerts"`
		}
		Stop struct {
			Id              string
			NameFragment    string
			RouteId         string
			MaxDepartures   int    `conf:"default:5"`
			UnscopedAlerts  string `conf:"default:ignore"`
			DirectionLabels []string
		}
		At string `conf:"help:RFC3339 time to list departures from instead of now"`
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Inspect transit feeds and departures from the command line"
	const prefix = "DEPARTURES"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			return printUsage(prefix, &cfg)
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	ctx := context.Background()
	client := httpclient.NewClient(cfg.HTTP.Timeout, cfg.HTTP.MaxBodyBytes)

	// dump-realtime only needs the raw feed, everything else loads the static feed first
	if cfg.Args.Num(0) == "dump-realtime" {
		location := cfg.Args.Num(1)
		if len(location) == 0 {
			location = cfg.Realtime.TripUpdatesURL
		}
		return dumpRealtime(ctx, os.Stdout, client, location)
	}

	alertPolicy, ok := gtfs.ParseUnscopedAlertPolicy(cfg.Stop.UnscopedAlerts)
	if !ok {
		return fmt.Errorf("unknown unscoped alert policy %q", cfg.Stop.UnscopedAlerts)
	}
	departureConfig := departures.DefaultConfig(cfg.Stop.Id)
	departureConfig.StopNameFragment = cfg.Stop.NameFragment
	departureConfig.RouteId = cfg.Stop.RouteId
	departureConfig.Timezone = cfg.Static.Timezone
	departureConfig.MaxDepartures = cfg.Stop.MaxDepartures
	departureConfig.DirectionLabels = cfg.Stop.DirectionLabels
	departureConfig.UnscopedAlerts = alertPolicy

	store, err := gtfsmanager.NewStore(log, client, gtfsmanager.Config{
		FeedURL:      cfg.Static.URL,
		Timezone:     cfg.Static.Timezone,
		Expiry:       24 * time.Hour,
		MaxAttempts:  1,
		FetchTimeout: cfg.HTTP.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating static feed store: %w", err)
	}
	decoder := realtime.NewDecoder(log, client, realtime.Config{
		TripUpdatesURL: cfg.Realtime.TripUpdatesURL,
		AlertsURL:      cfg.Realtime.AlertsURL,
		Expiry:         time.Minute,
		MaxAttempts:    1,
		FetchTimeout:   cfg.HTTP.Timeout,
	}, nil, clock.RealClock{})

	switch cfg.Args.Num(0) {
	case "departures":
		engine, err := makeEngine(ctx, log, departureConfig, store, decoder)
		if err != nil {
			return err
		}
		from := time.Now()
		if len(cfg.At) > 0 {
			if from, err = time.Parse(time.RFC3339, cfg.At); err != nil {
				return fmt.Errorf("unable to parse at %q: %w", cfg.At, err)
			}
		}
		stopId := cfg.Args.Num(1)
		if len(stopId) == 0 {
			stopId = engine.StopId()
		}
		printDepartures(os.Stdout, stopId, engine.GetDepartures(ctx, stopId, from, nil))
		return nil

	case "route":
		engine, err := makeEngine(ctx, log, departureConfig, store, decoder)
		if err != nil {
			return err
		}
		info, found := engine.RouteInfo(cfg.Args.Num(1))
		if !found {
			return fmt.Errorf("route %q not found", cfg.Args.Num(1))
		}
		printRouteInfo(os.Stdout, info)
		return nil

	case "patterns":
		routeId := cfg.Args.Num(1)
		if len(routeId) == 0 {
			routeId = cfg.Stop.RouteId
		}
		if err = store.Load(ctx); err != nil {
			return fmt.Errorf("loading static feed: %w", err)
		}
		printPatterns(os.Stdout, store.Patterns(routeId))
		return nil

	case "alerts":
		engine, err := makeEngine(ctx, log, departureConfig, store, decoder)
		if err != nil {
			return err
		}
		routeId := cfg.Args.Num(1)
		var relevant []gtfs.Alert
		for _, alert := range engine.GetServiceAlerts(ctx) {
			if engine.AlertRelevantTo(alert, routeId) {
				relevant = append(relevant, alert)
			}
		}
		printAlerts(os.Stdout, relevant)
		return nil

	default:
		fmt.Println("departures [stop_id]: list the next departures from the configured or given stop")
		fmt.Println("route [route_id]: show the name and destinations of a route in each direction")
		fmt.Println("patterns [route_id]: list the stopping patterns of a route")
		fmt.Println("alerts [route_id]: list service alerts relevant to a route")
		fmt.Println("dump-realtime [url]: print a gtfs-realtime feed as protobuf text")
		return printUsage(prefix, &cfg)
	}
}

func makeEngine(ctx context.Context,
	log *logger.Logger,
	cfg departures.Config,
	store *gtfsmanager.Store,
	decoder *realtime.Decoder) (*departures.Engine, error) {
	engine, err := departures.NewEngine(log, cfg, store, decoder, nil)
	if err != nil {
		return nil, fmt.Errorf("creating departure engine: %w", err)
	}
	if err = engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing departure engine: %w", err)
	}
	return engine, nil
}

func printUsage(prefix string, cfg interface{}) error {
	usage, err := conf.Usage(prefix, cfg)
	if err != nil {
		return fmt.Errorf("generating config usage: %w", err)
	}
	fmt.Println(usage)
	return nil
}
