package departures

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(cfg *Config) {}},
		{name: "fragment without stop id", modify: func(cfg *Config) {
			cfg.StopId = ""
			cfg.StopNameFragment = "island"
		}},
		{name: "no stop", modify: func(cfg *Config) {
			cfg.StopId = ""
		}, wantErr: true},
		{name: "horizon too long", modify: func(cfg *Config) {
			cfg.Horizon = 72 * time.Hour
		}, wantErr: true},
		{name: "horizon too short", modify: func(cfg *Config) {
			cfg.Horizon = 10 * time.Minute
		}, wantErr: true},
		{name: "no departures", modify: func(cfg *Config) {
			cfg.MaxDepartures = 0
		}, wantErr: true},
		{name: "weekday window ends before it starts", modify: func(cfg *Config) {
			cfg.WeekdayServiceEnd = cfg.WeekdayServiceStart - time.Hour
		}, wantErr: true},
		{name: "weekend window past the service day", modify: func(cfg *Config) {
			cfg.WeekendServiceEnd = 31 * time.Hour
		}, wantErr: true},
		{name: "three direction labels", modify: func(cfg *Config) {
			cfg.DirectionLabels = []string{"a", "b", "c"}
		}, wantErr: true},
		{name: "timezone", modify: func(cfg *Config) {
			cfg.Timezone = "America/Los_Angeles"
		}},
		{name: "unknown timezone", modify: func(cfg *Config) {
			cfg.Timezone = "Mars/Olympus_Mons"
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			cfg := DefaultConfig("24")
			tt.modify(&cfg)
			err := cfg.Validate()
			is.Equal(err != nil, tt.wantErr)
		})
	}
}
