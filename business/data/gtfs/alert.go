package gtfs

// Severity of an Alert, mirrors the gtfs-realtime severity levels
type Severity int

const (
	UnknownSeverity Severity = iota
	InfoSeverity
	WarningSeverity
	SevereSeverity
)

func (s Severity) String() string {
	switch s {
	case InfoSeverity:
		return "INFO"
	case WarningSeverity:
		return "WARNING"
	case SevereSeverity:
		return "SEVERE"
	}
	return "UNKNOWN"
}

// MarshalText writes the severity name into json documents
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText reads a severity name, unknown names read as UnknownSeverity
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "INFO":
		*s = InfoSeverity
	case "WARNING":
		*s = WarningSeverity
	case "SEVERE":
		*s = SevereSeverity
	default:
		*s = UnknownSeverity
	}
	return nil
}

// InformedEntity references the route, stop or trip an Alert applies to. Empty strings are unset.
type InformedEntity struct {
	RouteId string `json:"route_id,omitempty"`
	StopId  string `json:"stop_id,omitempty"`
	TripId  string `json:"trip_id,omitempty"`
}

// Alert is a service alert decoded from a gtfs-realtime feed
type Alert struct {
	AlertId          string           `json:"alert_id"`
	HeaderText       string           `json:"header_text"`
	DescriptionText  string           `json:"description_text"`
	Severity         Severity         `json:"severity"`
	InformedEntities []InformedEntity `json:"informed_entities"`
}

// UnscopedAlertPolicy decides what an alert without informed entities applies to
type UnscopedAlertPolicy int

const (
	// UnscopedAlertsIgnored treats an alert with no informed entities as relevant to nothing
	UnscopedAlertsIgnored UnscopedAlertPolicy = iota
	// UnscopedAlertsSystemWide treats an alert with no informed entities as relevant to every route
	UnscopedAlertsSystemWide
)

// ParseUnscopedAlertPolicy reads "ignore" or "system-wide"
func ParseUnscopedAlertPolicy(value string) (UnscopedAlertPolicy, bool) {
	switch value {
	case "ignore", "":
		return UnscopedAlertsIgnored, true
	case "system-wide":
		return UnscopedAlertsSystemWide, true
	}
	return UnscopedAlertsIgnored, false
}

// RelevantTo returns true if any informed entity references routeId.
// An alert without informed entities is decided by policy.
func (a *Alert) RelevantTo(routeId string, policy UnscopedAlertPolicy) bool {
	if len(a.InformedEntities) == 0 {
		return policy == UnscopedAlertsSystemWide
	}
	for _, entity := range a.InformedEntities {
		if entity.RouteId == routeId {
			return true
		}
	}
	return false
}
