package gtfs

import (
	"sort"
	"time"
)

// exception_type values from calendar_dates.txt
const (
	ExceptionAdded   = 1
	ExceptionRemoved = 2
)

// Calendar contains data from a record in a gtfs calendar.txt file
type Calendar struct {
	ServiceId string     `json:"service_id"`
	Monday    int        `json:"monday"`
	Tuesday   int        `json:"tuesday"`
	Wednesday int        `json:"wednesday"`
	Thursday  int        `json:"thursday"`
	Friday    int        `json:"friday"`
	Saturday  int        `json:"saturday"`
	Sunday    int        `json:"sunday"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// runsOn returns true if the weekday flag for weekday is set
func (c *Calendar) runsOn(weekday time.Weekday) bool {
	switch weekday {
	case time.Monday:
		return c.Monday == 1
	case time.Tuesday:
		return c.Tuesday == 1
	case time.Wednesday:
		return c.Wednesday == 1
	case time.Thursday:
		return c.Thursday == 1
	case time.Friday:
		return c.Friday == 1
	case time.Saturday:
		return c.Saturday == 1
	case time.Sunday:
		return c.Sunday == 1
	}
	return false
}

// covers returns true if dayKey is between StartDate and EndDate, inclusive
func (c *Calendar) covers(dayKey int) bool {
	if c.StartDate != nil && dayKey < dateKey(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && dayKey > dateKey(*c.EndDate) {
		return false
	}
	return true
}

// CalendarDate contains data from a record in a gtfs calendar_dates.txt file
type CalendarDate struct {
	ServiceId     string    `json:"service_id"`
	Date          time.Time `json:"date"`
	ExceptionType int       `json:"exception_type"`
}

// ServiceCalendar decides which services run on a calendar day.
// Exceptions from calendar_dates.txt always take precedence over calendar.txt for the same day.
type ServiceCalendar struct {
	location   *time.Location
	calendars  map[string]*Calendar
	exceptions map[string]map[int]int // service_id -> date key -> exception_type
}

// NewServiceCalendar indexes calendars and calendarDates. Days are evaluated in location.
func NewServiceCalendar(location *time.Location, calendars []*Calendar, calendarDates []*CalendarDate) *ServiceCalendar {
	if location == nil {
		location = time.UTC
	}
	c := &ServiceCalendar{
		location:   location,
		calendars:  make(map[string]*Calendar, len(calendars)),
		exceptions: make(map[string]map[int]int),
	}
	for _, calendar := range calendars {
		c.calendars[calendar.ServiceId] = calendar
	}
	for _, calendarDate := range calendarDates {
		byDate, present := c.exceptions[calendarDate.ServiceId]
		if !present {
			byDate = make(map[int]int)
			c.exceptions[calendarDate.ServiceId] = byDate
		}
		byDate[dateKey(calendarDate.Date)] = calendarDate.ExceptionType
	}
	return c
}

// IsActive returns true if serviceId runs on the local calendar day of date
func (c *ServiceCalendar) IsActive(serviceId string, date time.Time) bool {
	day := date.In(c.location)
	key := dateKey(day)
	if byDate, present := c.exceptions[serviceId]; present {
		if exceptionType, found := byDate[key]; found {
			return exceptionType == ExceptionAdded
		}
	}
	calendar, present := c.calendars[serviceId]
	if !present {
		return false
	}
	return calendar.covers(key) && calendar.runsOn(day.Weekday())
}

// ActiveServiceIds retrieves the service_ids running on the local calendar day of date, sorted.
func (c *ServiceCalendar) ActiveServiceIds(date time.Time) []string {
	candidates := make(map[string]bool)
	for serviceId := range c.calendars {
		candidates[serviceId] = true
	}
	for serviceId := range c.exceptions {
		candidates[serviceId] = true
	}
	results := make([]string, 0, len(candidates))
	for serviceId := range candidates {
		if c.IsActive(serviceId, date) {
			results = append(results, serviceId)
		}
	}
	sort.Strings(results)
	return results
}

// dateKey turns the calendar day of t (in its own location) into yyyymmdd
func dateKey(t time.Time) int {
	year, month, day := t.Date()
	return year*10000 + int(month)*100 + day
}
