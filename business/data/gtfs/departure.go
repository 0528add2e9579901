package gtfs

import (
	"fmt"
	"time"
)

// Provenance identifies the source a Departure was built from. Values are ordered by merge precedence.
type Provenance int

const (
	FallbackProvenance Provenance = iota
	StaticProvenance
	RealtimeProvenance
)

// Precedence returns the merge rank of p, higher ranks replace lower ranks
func (p Provenance) Precedence() int {
	return int(p)
}

// Outranks returns true if p replaces other when both describe the same departure
func (p Provenance) Outranks(other Provenance) bool {
	return p.Precedence() > other.Precedence()
}

func (p Provenance) String() string {
	switch p {
	case FallbackProvenance:
		return "FALLBACK"
	case StaticProvenance:
		return "STATIC"
	case RealtimeProvenance:
		return "REALTIME"
	}
	return fmt.Sprintf("Provenance(%d)", int(p))
}

// MarshalText writes the provenance name into json documents
func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText reads a provenance name
func (p *Provenance) UnmarshalText(text []byte) error {
	switch string(text) {
	case "FALLBACK":
		*p = FallbackProvenance
	case "STATIC":
		*p = StaticProvenance
	case "REALTIME":
		*p = RealtimeProvenance
	default:
		return fmt.Errorf("unknown provenance %q", string(text))
	}
	return nil
}

// DisplayTimeLayout formats Departure.DisplayTime
const DisplayTimeLayout = "15:04"

// Departure is a single upcoming departure from the target stop
type Departure struct {
	Time           time.Time  `json:"time"`
	DisplayTime    string     `json:"display_time"`
	RouteId        string     `json:"route_id"`
	RouteName      string     `json:"route_name"`
	DirectionId    int        `json:"direction_id"`
	DirectionLabel string     `json:"direction_label"`
	Destinations   []string   `json:"destinations"`
	TripId         string     `json:"trip_id,omitempty"`
	DelaySeconds   int        `json:"delay_seconds"`
	Provenance     Provenance `json:"provenance"`
}

// MinuteKey identifies the departure's clock time to the minute in the time's own location
func (d *Departure) MinuteKey() string {
	return d.Time.Format("2006-01-02 15:04")
}
