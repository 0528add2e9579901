package realtime

import (
	"strings"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
)

// DecodeAlerts converts the alert entities of a gtfs-realtime payload
func DecodeAlerts(b []byte) ([]gtfs.Alert, error) {
	feedMessage, err := DecodeFeedMessage(b)
	if err != nil {
		return nil, err
	}
	return alertsFromFeedMessage(feedMessage), nil
}

func alertsFromFeedMessage(feedMessage *gtfsrt.FeedMessage) []gtfs.Alert {
	alerts := make([]gtfs.Alert, 0)
	for _, entity := range feedMessage.GetEntity() {
		alert := entity.GetAlert()
		if alert == nil || entity.GetIsDeleted() {
			continue
		}
		result := gtfs.Alert{
			AlertId:         entity.GetId(),
			HeaderText:      translatedText(alert.GetHeaderText()),
			DescriptionText: translatedText(alert.GetDescriptionText()),
			Severity:        severity(alert.GetSeverityLevel()),
		}
		for _, selector := range alert.GetInformedEntity() {
			informed := gtfs.InformedEntity{
				RouteId: selector.GetRouteId(),
				StopId:  selector.GetStopId(),
				TripId:  selector.GetTrip().GetTripId(),
			}
			if len(informed.RouteId) == 0 {
				informed.RouteId = selector.GetTrip().GetRouteId()
			}
			if informed == (gtfs.InformedEntity{}) {
				continue
			}
			result.InformedEntities = append(result.InformedEntities, informed)
		}
		alerts = append(alerts, result)
	}
	return alerts
}

// translatedText prefers a translation without a language tag, then english, then the first one
func translatedText(translated *gtfsrt.TranslatedString) string {
	translations := translated.GetTranslation()
	if len(translations) == 0 {
		return ""
	}
	for _, translation := range translations {
		if len(translation.GetLanguage()) == 0 {
			return translation.GetText()
		}
	}
	for _, translation := range translations {
		if strings.HasPrefix(strings.ToLower(translation.GetLanguage()), "en") {
			return translation.GetText()
		}
	}
	return translations[0].GetText()
}

func severity(level gtfsrt.Alert_SeverityLevel) gtfs.Severity {
	switch level {
	case gtfsrt.Alert_INFO:
		return gtfs.InfoSeverity
	case gtfsrt.Alert_WARNING:
		return gtfs.WarningSeverity
	case gtfsrt.Alert_SEVERE:
		return gtfs.SevereSeverity
	}
	return gtfs.UnknownSeverity
}

// AlertRelevantTo returns true if alert references routeId. Alerts without informed entities follow policy.
func AlertRelevantTo(alert gtfs.Alert, routeId string, policy gtfs.UnscopedAlertPolicy) bool {
	return alert.RelevantTo(routeId, policy)
}

// FilterAlerts returns the alerts relevant to routeId
func FilterAlerts(alerts []gtfs.Alert, routeId string, policy gtfs.UnscopedAlertPolicy) []gtfs.Alert {
	results := make([]gtfs.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if AlertRelevantTo(alert, routeId, policy) {
			results = append(results, alert)
		}
	}
	return results
}
