// Package chain filters raw option quotes and groups them by trading day and maturity.
package chain

import (
	"math"
	"sort"
	"time"

	"cnvix/internal/calendar"
	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
)

// Stats counts what preprocessing kept and dropped.
type Stats struct {
	Input        int `json:"input"`
	Skipped      int `json:"skipped"`      // malformed rows
	Unresolvable int `json:"unresolvable"` // expiry after the last trading day
	Expired      int `json:"expired"`      // zero or negative trading days to expiry
	Kept         int `json:"kept"`
	Days         int `json:"days"`
	Groups       int `json:"groups"`
}

// Result is the preprocessed dataset.
type Result struct {
	Calendar  *calendar.Calendar
	Snapshots []models.DailySnapshot
	Stats     Stats
}

type groupKey struct {
	date   time.Time
	expiry time.Time
}

// Validate converts a raw row into a Quote. It reports false for rows with a
// right other than call or put, a missing strike, price or vendor day count,
// or values no option quote can carry.
func Validate(raw models.RawQuote) (models.Quote, bool) {
	right, ok := models.ParseOptionRight(raw.Right)
	if !ok {
		return models.Quote{}, false
	}
	if raw.Date.IsZero() || raw.Expiry.IsZero() {
		return models.Quote{}, false
	}
	if raw.Strike == nil || raw.Price == nil || raw.RawDaysToExpiry == nil {
		return models.Quote{}, false
	}
	strike, price := *raw.Strike, *raw.Price
	if !finite(strike) || !finite(price) || !finite(*raw.RawDaysToExpiry) {
		return models.Quote{}, false
	}
	if strike <= 0 || price < 0 {
		return models.Quote{}, false
	}

	q := models.Quote{
		Date:            calendar.Day(raw.Date),
		Expiry:          calendar.Day(raw.Expiry),
		Right:           right,
		Strike:          strike,
		Price:           price,
		RawDaysToExpiry: *raw.RawDaysToExpiry,
	}
	if raw.RealizedVol != nil && finite(*raw.RealizedVol) {
		v := *raw.RealizedVol
		q.RealizedVol = &v
	}
	return q, true
}

// Preprocess validates raw quotes, builds the trading calendar from the
// surviving quote dates and groups quotes with positive trading days to
// expiry into daily snapshots. It fails only when nothing is left to compute.
func Preprocess(raw []models.RawQuote) (*Result, error) {
	stats := Stats{Input: len(raw)}

	quotes := make([]models.Quote, 0, len(raw))
	dates := make([]time.Time, 0, len(raw))
	for _, r := range raw {
		q, ok := Validate(r)
		if !ok {
			stats.Skipped++
			continue
		}
		quotes = append(quotes, q)
		dates = append(dates, q.Date)
	}

	cal := calendar.Build(dates)
	if cal.Len() == 0 {
		return nil, apperrors.Wrap(apperrors.ErrNoTradingDays, "preprocess")
	}

	groups := make(map[groupKey]*models.MaturityGroup)
	for _, q := range quotes {
		days, err := TradingDaysToExpiry(cal, q)
		if err != nil {
			stats.Unresolvable++
			continue
		}
		if days <= 0 {
			stats.Expired++
			continue
		}

		key := groupKey{date: q.Date, expiry: q.Expiry}
		g, ok := groups[key]
		if !ok {
			g = &models.MaturityGroup{
				Date:                q.Date,
				Expiry:              q.Expiry,
				TradingDaysToExpiry: days,
			}
			groups[key] = g
		}
		g.Quotes = append(g.Quotes, q)
		stats.Kept++
	}

	if len(groups) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrNoTradingDays, "preprocess: no quote with time to expiry")
	}

	snapshots := buildSnapshots(cal, groups)
	stats.Days = len(snapshots)
	stats.Groups = len(groups)

	return &Result{
		Calendar:  cal,
		Snapshots: snapshots,
		Stats:     stats,
	}, nil
}

// TradingDaysToExpiry counts calendar positions from the quote date to its
// expiry. An expiry that is not itself a trading day resolves to the next
// one; past the last trading day it fails with ErrUnresolvableExpiry.
func TradingDaysToExpiry(cal *calendar.Calendar, q models.Quote) (int, error) {
	dayIdx, ok := cal.Index(q.Date)
	if !ok {
		return 0, apperrors.Wrapf(apperrors.ErrInputFormat, "quote date %s not on calendar", q.Date.Format("2006-01-02"))
	}
	expIdx, ok := cal.Resolve(q.Expiry)
	if !ok {
		return 0, apperrors.Wrapf(apperrors.ErrUnresolvableExpiry, "expiry %s", q.Expiry.Format("2006-01-02"))
	}
	return expIdx - dayIdx, nil
}

// buildSnapshots walks the calendar in order and sorts each day's groups by
// time to expiry.
func buildSnapshots(cal *calendar.Calendar, groups map[groupKey]*models.MaturityGroup) []models.DailySnapshot {
	byDate := make(map[time.Time][]models.MaturityGroup)
	for _, g := range groups {
		byDate[g.Date] = append(byDate[g.Date], *g)
	}

	snapshots := make([]models.DailySnapshot, 0, len(byDate))
	for i := 0; i < cal.Len(); i++ {
		date := cal.Date(i)
		gs, ok := byDate[date]
		if !ok {
			continue
		}
		sort.Slice(gs, func(i, j int) bool {
			if gs[i].TradingDaysToExpiry != gs[j].TradingDaysToExpiry {
				return gs[i].TradingDaysToExpiry < gs[j].TradingDaysToExpiry
			}
			return gs[i].Expiry.Before(gs[j].Expiry)
		})
		snapshots = append(snapshots, models.DailySnapshot{
			Date:        date,
			Groups:      gs,
			RealizedVol: meanRealizedVol(gs),
		})
	}
	return snapshots
}

// meanRealizedVol averages the realized volatility carried by a day's quotes.
func meanRealizedVol(groups []models.MaturityGroup) *float64 {
	var sum float64
	var n int
	for _, g := range groups {
		for _, q := range g.Quotes {
			if q.RealizedVol != nil {
				sum += *q.RealizedVol
				n++
			}
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
