package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"github.com/OpenTransitTools/nextdeparture/app/departure-svc/departuresvc"
	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/departures"
	"github.com/OpenTransitTools/nextdeparture/business/gtfsmanager"
	"github.com/OpenTransitTools/nextdeparture/business/metrics"
	"github.com/OpenTransitTools/nextdeparture/business/realtime"
	"github.com/OpenTransitTools/nextdeparture/foundation/clock"
	"github.com/OpenTransitTools/nextdeparture/foundation/database"
	"github.com/OpenTransitTools/nextdeparture/foundation/feedcache"
	"github.com/OpenTransitTools/nextdeparture/foundation/httpclient"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "DEPARTURE_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		Web  struct {
			Port int `conf:"default:8080"`
		}
		HTTP struct {
			Timeout      time.Duration `conf:"default:30s"`
			MaxBodyBytes int64         `conf:"default:104857600"`
		}
		Static struct {
			URL            string        `conf:"default:https://developer.trimet.org/schedule/gtfs.zip"`
			Timezone       string        `conf:"default:America/Los_Angeles"`
			Expiry         time.Duration `conf:"default:24h"`
			MaxAttempts    int           `conf:"default:3"`
			InitialBackoff time.Duration `conf:"default:2s"`
		}
		Realtime struct {
			TripUpdatesURL string        `conf:"default:https://developer.trimet.org/ws/V1/TripUpdate"`
			AlertsURL      string        `conf:"default:https://developer.trimet.org/ws/V1/FeedSpecAlerts"`
			Expiry         time.Duration `conf:"default:4h"`
			MaxAttempts    int           `conf:"default:3"`
			InitialBackoff time.Duration `conf:"default:1s"`
			FetchTimeout   time.Duration `conf:"default:10s"`
		}
		Stop struct {
			Id               string
			NameFragment     string
			RouteId          string
			MaxDepartures    int           `conf:"default:5"`
			Horizon          time.Duration `conf:"default:24h"`
			MaxDestinations  int           `conf:"default:3"`
			DirectionLabels  []string
			UnscopedAlerts   string        `conf:"default:ignore"`
			DedupByDirection bool          `conf:"default:true"`
		}
		Fallback struct {
			Interval     time.Duration `conf:"default:30m"`
			Count        int           `conf:"default:4"`
			WeekdayStart time.Duration `conf:"default:5h"`
			WeekdayEnd   time.Duration `conf:"default:23h"`
			WeekendStart time.Duration `conf:"default:7h"`
			WeekendEnd   time.Duration `conf:"default:22h"`
		}
		Publish struct {
			Interval time.Duration `conf:"default:1m"`
			Database bool          `conf:"default:false"`
		}
		NATS struct {
			Enabled bool   `conf:"default:false"`
			URL     string `conf:"default:nats://localhost:4222"`
			Subject string `conf:"default:departure-board"`
		}
		DB struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Serve the next departures from a transit stop"
	const prefix = "DEPARTURES"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
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

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	alertPolicy, ok := gtfs.ParseUnscopedAlertPolicy(cfg.Stop.UnscopedAlerts)
	if !ok {
		return fmt.Errorf("unknown unscoped alert policy %q", cfg.Stop.UnscopedAlerts)
	}

	departureConfig := departures.DefaultConfig(cfg.Stop.Id)
	departureConfig.StopNameFragment = cfg.Stop.NameFragment
	departureConfig.RouteId = cfg.Stop.RouteId
	departureConfig.Timezone = cfg.Static.Timezone
	departureConfig.MaxDepartures = cfg.Stop.MaxDepartures
	departureConfig.Horizon = cfg.Stop.Horizon
	departureConfig.MaxDestinations = cfg.Stop.MaxDestinations
	departureConfig.DedupTimeByDirection = cfg.Stop.DedupByDirection
	departureConfig.DirectionLabels = cfg.Stop.DirectionLabels
	departureConfig.UnscopedAlerts = alertPolicy
	departureConfig.FallbackInterval = cfg.Fallback.Interval
	departureConfig.FallbackCount = cfg.Fallback.Count
	departureConfig.WeekdayServiceStart = cfg.Fallback.WeekdayStart
	departureConfig.WeekdayServiceEnd = cfg.Fallback.WeekdayEnd
	departureConfig.WeekendServiceStart = cfg.Fallback.WeekendStart
	departureConfig.WeekendServiceEnd = cfg.Fallback.WeekendEnd

	// =========================================================================
	// Feeds

	m := metrics.New()
	client := httpclient.NewClient(cfg.HTTP.Timeout, cfg.HTTP.MaxBodyBytes)

	store, err := gtfsmanager.NewStore(log, client, gtfsmanager.Config{
		FeedURL:        cfg.Static.URL,
		Timezone:       cfg.Static.Timezone,
		Expiry:         cfg.Static.Expiry,
		MaxAttempts:    cfg.Static.MaxAttempts,
		InitialBackoff: cfg.Static.InitialBackoff,
		FetchTimeout:   cfg.HTTP.Timeout,
	}, feedcacheObserver(m)...)
	if err != nil {
		return fmt.Errorf("creating static feed store: %w", err)
	}

	decoder := realtime.NewDecoder(log, client, realtime.Config{
		TripUpdatesURL: cfg.Realtime.TripUpdatesURL,
		AlertsURL:      cfg.Realtime.AlertsURL,
		Expiry:         cfg.Realtime.Expiry,
		MaxAttempts:    cfg.Realtime.MaxAttempts,
		InitialBackoff: cfg.Realtime.InitialBackoff,
		FetchTimeout:   cfg.Realtime.FetchTimeout,
	}, m, clock.RealClock{})

	engine, err := departures.NewEngine(log, departureConfig, store, decoder, m)
	if err != nil {
		return fmt.Errorf("creating departure engine: %w", err)
	}

	log.Printf("main: Loading static feed from %s", cfg.Static.URL)
	if err = engine.Initialize(context.Background()); err != nil {
		return fmt.Errorf("initializing departure engine: %w", err)
	}
	log.Printf("main: Serving departures for stop %q", engine.StopId())

	// =========================================================================
	// Board Destinations

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		log.Printf("main: Connecting to NATS at %s", cfg.NATS.URL)
		natsConn, err = nats.Connect(cfg.NATS.URL, nats.Name("departure-svc"))
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer natsConn.Close()
	}

	var db *sqlx.DB
	if cfg.Publish.Database {
		log.Println("main: Initializing database support")
		db, err = database.Open(database.Config{
			User:       cfg.DB.User,
			Password:   cfg.DB.Password,
			Host:       cfg.DB.Host,
			Name:       cfg.DB.Name,
			DisableTLS: cfg.DB.DisableTLS,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			if err := db.Close(); err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
	}

	var publisher *departures.BoardPublisher
	if natsConn != nil || db != nil {
		publisher = departures.NewBoardPublisher(log, engine, natsConn, cfg.NATS.Subject, db, m, clock.RealClock{})
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	departuresvc.StartServices(log, engine, publisher, m, cfg.Web.Port, cfg.Publish.Interval, shutdown)
	return nil
}

// feedcacheObserver reports static feed fetches to m
func feedcacheObserver(m *metrics.Metrics) []feedcache.Option[*gtfsmanager.Feed] {
	if m == nil {
		return nil
	}
	return []feedcache.Option[*gtfsmanager.Feed]{feedcache.WithObserver[*gtfsmanager.Feed](m)}
}
