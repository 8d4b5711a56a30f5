// Package calendar maps calendar dates to trading-day offsets.
package calendar

import (
	"sort"
	"time"
)

// Calendar is an ordered, deduplicated sequence of trading days. Each day's
// position in the sequence is its trading-day index. A Calendar is never
// modified after Build and may be shared between goroutines.
type Calendar struct {
	days  []time.Time
	index map[time.Time]int
}

// Day truncates t to its calendar day in UTC, the key used for every lookup.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Build creates a calendar from the observed quote dates.
func Build(dates []time.Time) *Calendar {
	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := Day(d)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	index := make(map[time.Time]int, len(days))
	for i, d := range days {
		index[d] = i
	}
	return &Calendar{days: days, index: index}
}

// Len returns the number of trading days.
func (c *Calendar) Len() int {
	return len(c.days)
}

// Index returns the exact trading-day index of date.
func (c *Calendar) Index(date time.Time) (int, bool) {
	i, ok := c.index[Day(date)]
	return i, ok
}

// Resolve maps any calendar date to a trading-day index. Dates in the
// calendar map to their own index; other dates map to the first trading
// day after them. Dates after the last trading day are unresolvable.
func (c *Calendar) Resolve(date time.Time) (int, bool) {
	day := Day(date)
	if i, ok := c.index[day]; ok {
		return i, true
	}
	i := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(day) })
	if i >= len(c.days) {
		return 0, false
	}
	return i, true
}

// Date returns the trading day at index i.
func (c *Calendar) Date(i int) time.Time {
	return c.days[i]
}

// First returns the earliest trading day, or the zero time for an empty calendar.
func (c *Calendar) First() time.Time {
	if len(c.days) == 0 {
		return time.Time{}
	}
	return c.days[0]
}

// Last returns the latest trading day, or the zero time for an empty calendar.
func (c *Calendar) Last() time.Time {
	if len(c.days) == 0 {
		return time.Time{}
	}
	return c.days[len(c.days)-1]
}
