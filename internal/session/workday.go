package session

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// WorkDay buckets t into a business day that starts at startHour local time.
// Anything before startHour belongs to the previous calendar day.
func WorkDay(t time.Time, loc *time.Location, startHour int) string {
	local := t.In(loc)
	if local.Hour() < startHour {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format(dateLayout)
}

// WorkDayWindow returns the half-open window [start, end) a work-day report for date covers:
// from startHour on the previous day to startHour on date.
func WorkDayWindow(date string, loc *time.Location, startHour int) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc)
	start := end.AddDate(0, 0, -1)
	return start, end, nil
}
