package gtfs

import (
	"fmt"
	"time"
)

// getDLSTransitionSeconds provides the number of seconds offset for a 12am date later in the day after day light saving time is done
func getDLSTransitionSeconds(timeAt12 time.Time) int {
	before := time.Date(timeAt12.Year(), timeAt12.Month(), timeAt12.Day(), 0, 0, 0, 0, timeAt12.Location())
	after := time.Date(timeAt12.Year(), timeAt12.Month(), timeAt12.Day(), 5, 0, 0, 0, timeAt12.Location())
	_, beforeOffset := before.Zone()
	_, afterOffset := after.Zone()
	return afterOffset - beforeOffset
}

// MakeScheduleTime produces a time from by adding seconds to a 12am date. Takes into account day light saving time
func MakeScheduleTime(timeAt12 time.Time, scheduleSeconds int) time.Time {
	offset := getDLSTransitionSeconds(timeAt12)
	scheduleSeconds = scheduleSeconds + (0 - offset)
	return timeAt12.Add(time.Duration(scheduleSeconds) * time.Second)
}

const (
	// MaximumScheduleSeconds is the latest stop time accepted on a service day, trips may run past midnight
	MaximumScheduleSeconds int = 60 * 60 * 30
	secondsPerDay          int = 60 * 60 * 24
)

// Get12AmTime returns midnight of date's calendar day in date's location
func Get12AmTime(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
}

// ServiceDate returns midnight of at's calendar day in location
func ServiceDate(at time.Time, location *time.Location) time.Time {
	return Get12AmTime(at.In(location))
}

// NextServiceDate returns midnight of the calendar day after serviceDate
func NextServiceDate(serviceDate time.Time) time.Time {
	return Get12AmTime(serviceDate).AddDate(0, 0, 1)
}

// PassesMidnight returns true if scheduleSeconds belongs to the service day but falls on the next calendar day
func PassesMidnight(scheduleSeconds int) bool {
	return scheduleSeconds >= secondsPerDay
}

// FormatScheduleSeconds formats seconds since the start of a service day as HH:MM:SS, hours may exceed 23
func FormatScheduleSeconds(scheduleSeconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", scheduleSeconds/3600, (scheduleSeconds%3600)/60, scheduleSeconds%60)
}
