package departures

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// Config controls how departures are derived for the target stop
type Config struct {
	// StopId is used when StopNameFragment is empty or matches no stop
	StopId           string `validate:"required_without=StopNameFragment"`
	StopNameFragment string
	// RouteId is the subject route, empty considers every route serving the stop
	RouteId string
	// Timezone is used by the fallback generator until a static feed is loaded
	Timezone string `validate:"omitempty,timezone"`

	MaxDepartures   int           `validate:"gte=1"`
	Horizon         time.Duration `validate:"gte=1h,lte=48h"`
	MaxDestinations int           `validate:"gte=0"`
	// DedupTimeByDirection keeps simultaneous departures in opposite directions
	DedupTimeByDirection bool

	FallbackInterval    time.Duration `validate:"gte=1m"`
	FallbackCount       int           `validate:"gte=1"`
	WeekdayServiceStart time.Duration `validate:"gte=0,lte=30h"`
	WeekdayServiceEnd   time.Duration `validate:"gtefield=WeekdayServiceStart,lte=30h"`
	WeekendServiceStart time.Duration `validate:"gte=0,lte=30h"`
	WeekendServiceEnd   time.Duration `validate:"gtefield=WeekendServiceStart,lte=30h"`

	// DirectionLabels names direction 0 and 1 when trips carry no headsign
	DirectionLabels []string `validate:"max=2"`
	UnscopedAlerts  gtfs.UnscopedAlertPolicy
}

// DefaultConfig returns a Config for stopId with every other setting at its default
func DefaultConfig(stopId string) Config {
	return Config{
		StopId:               stopId,
		MaxDepartures:        5,
		Horizon:              24 * time.Hour,
		MaxDestinations:      3,
		DedupTimeByDirection: true,
		FallbackInterval:     30 * time.Minute,
		FallbackCount:        4,
		WeekdayServiceStart:  5 * time.Hour,
		WeekdayServiceEnd:    23 * time.Hour,
		WeekendServiceStart:  7 * time.Hour,
		WeekendServiceEnd:    22 * time.Hour,
		UnscopedAlerts:       gtfs.UnscopedAlertsIgnored,
	}
}

// Validate checks cfg against its validation tags
func (cfg Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid departures config: %w", err)
	}
	return nil
}

// location returns the configured timezone, UTC when not set or unknown
func (cfg Config) location() *time.Location {
	if len(cfg.Timezone) == 0 {
		return time.UTC
	}
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.UTC
	}
	return location
}
