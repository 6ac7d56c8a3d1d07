package schedule

import (
	"sort"
	"time"

	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/core/model"
)

// ScheduleDates returns the consecutive calendar days from the earliest to
// the latest route date, capped at the horizon. Days without routes stay on
// the grid; parked vehicles still charge across them. A non-positive horizon
// keeps the full range.
func ScheduleDates(routes []model.Route, horizonDays int) []time.Time {
	if len(routes) == 0 {
		return nil
	}
	first, last := routes[0].Date(), routes[0].Date()
	for _, r := range routes[1:] {
		d := r.Date()
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	var dates []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if horizonDays > 0 && len(dates) == horizonDays {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

// BuildTimes lays the period grid over the scheduling days. Each day starts
// DayStartHours after midnight so that overnight charging windows stay inside
// a single operating day.
func BuildTimes(dates []time.Time, planner config.Planner) []time.Time {
	perDay := planner.PeriodsPerDay()
	step := time.Duration(planner.PeriodMinutes) * time.Minute
	times := make([]time.Time, 0, len(dates)*perDay)
	for _, d := range dates {
		start := d.Add(time.Duration(planner.DayStartHours) * time.Hour)
		for p := 0; p < perDay; p++ {
			times = append(times, start.Add(time.Duration(p)*step))
		}
	}
	return times
}

// periodIndex maps a timestamp onto the grid, clamping to the horizon bounds.
// Timestamps between grid points round down to the period containing them.
func periodIndex(times []time.Time, ts time.Time) int {
	n := len(times)
	if n == 0 {
		return 0
	}
	i := sort.Search(n, func(i int) bool { return times[i].After(ts) })
	if i == 0 {
		return 0
	}
	return i - 1
}
