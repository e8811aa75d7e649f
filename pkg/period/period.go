// Package period computes the time windows used by the field queries.
// Rolling windows end at "now"; calendar windows follow month boundaries in
// the configured location.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/sguter90/soilmaestro/pkg/models"
)

// Window is an inclusive time range
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the window, bounds included
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var rollingDurations = map[string]time.Duration{
	"day":   Day,
	"week":  Week,
	"month": Month,
	"year":  Year,
}

// Rolling returns [now - duration, now] for day, week, month or year
func Rolling(now time.Time, name string) (Window, error) {
	d, ok := rollingDurations[name]
	if !ok {
		return Window{}, &models.ValidationError{Field: "period", Message: fmt.Sprintf("unknown period %q (valid: day, week, month, year)", name)}
	}
	return Window{Start: now.Add(-d), End: now}, nil
}

// endOfDay returns 23:59:59.999 of the given calendar day in loc
func endOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), loc)
}

// daysIn returns the number of days of month in year
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthWeek returns week weekNumber (1-5) of now's month in loc. Weeks are
// fixed 7-day slices starting on day 1; week 5 runs to the end of the month.
func MonthWeek(now time.Time, weekNumber int, loc *time.Location) (Window, error) {
	if weekNumber < 1 || weekNumber > 5 {
		return Window{}, &models.ValidationError{Field: "weekNumber", Message: "must be between 1 and 5"}
	}

	local := now.In(loc)
	year, month := local.Year(), local.Month()
	lastDay := daysIn(year, month)

	startDay := (weekNumber-1)*7 + 1
	if startDay > lastDay {
		return Window{}, &models.ValidationError{Field: "weekNumber", Message: fmt.Sprintf("week %d does not exist in %s %d", weekNumber, month, year)}
	}

	endDay := weekNumber * 7
	if weekNumber == 5 || endDay > lastDay {
		endDay = lastDay
	}

	return Window{
		Start: time.Date(year, month, startDay, 0, 0, 0, 0, loc),
		End:   endOfDay(year, month, endDay, loc),
	}, nil
}

// ParseMonth resolves a three-letter month name, case-insensitively
func ParseMonth(name string) (time.Month, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m := time.January; m <= time.December; m++ {
		if strings.ToLower(m.String()[:3]) == name {
			return m, nil
		}
	}
	return 0, &models.ValidationError{Field: "month", Message: fmt.Sprintf("unknown month %q (use jan, feb, ... dec)", name)}
}

// YearMonth returns the named month of now's year in loc
func YearMonth(now time.Time, monthName string, loc *time.Location) (Window, error) {
	month, err := ParseMonth(monthName)
	if err != nil {
		return Window{}, err
	}

	year := now.In(loc).Year()
	return Window{
		Start: time.Date(year, month, 1, 0, 0, 0, 0, loc),
		End:   endOfDay(year, month, daysIn(year, month), loc),
	}, nil
}
