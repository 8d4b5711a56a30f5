// Package testutil builds synthetic option chains with known implied variance.
package testutil

import (
	"math"
	"time"

	"cnvix/internal/models"
)

// FlatStrikes are the strikes used by FlatGroup.
var FlatStrikes = []float64{90, 100, 110}

// FlatGroup returns a fully paired three-strike maturity (90/100/110) whose
// implied variance is exactly sigma2 under the given rate and year length.
// The forward and K0 are both 100.
func FlatGroup(date, expiry time.Time, tradingDays int, sigma2, rate, tradingDaysPerYear float64) models.MaturityGroup {
	t := float64(tradingDays) / tradingDaysPerYear
	growth := math.Exp(rate * t)

	// Sum of ΔK/K²·Q needed for sigma2, split evenly between the wings and K0.
	budget := sigma2 * t / (2 * growth) / 10
	atm := 0.5 * budget * 100 * 100
	wing := 0.5 * budget / (1/(90.0*90.0) + 1/(110.0*110.0))
	parity := 10 / growth

	prices := map[float64][2]float64{ // strike -> {call, put}
		90:  {wing + parity, wing},
		100: {atm, atm},
		110: {wing, wing + parity},
	}

	g := models.MaturityGroup{
		Date:                date,
		Expiry:              expiry,
		TradingDaysToExpiry: tradingDays,
	}
	for _, k := range FlatStrikes {
		p := prices[k]
		g.Quotes = append(g.Quotes,
			Quote(date, expiry, models.Call, k, p[0], float64(tradingDays)),
			Quote(date, expiry, models.Put, k, p[1], float64(tradingDays)),
		)
	}
	return g
}

// Quote builds a validated quote.
func Quote(date, expiry time.Time, right models.OptionRight, strike, price, rawDays float64) models.Quote {
	return models.Quote{
		Date:            date,
		Expiry:          expiry,
		Right:           right,
		Strike:          strike,
		Price:           price,
		RawDaysToExpiry: rawDays,
	}
}

// RawRows flattens a group into input rows, tagging each with realized vol when rv is non-nil.
func RawRows(g models.MaturityGroup, rv *float64) []models.RawQuote {
	rows := make([]models.RawQuote, 0, len(g.Quotes))
	for _, q := range g.Quotes {
		strike, price, days := q.Strike, q.Price, q.RawDaysToExpiry
		row := models.RawQuote{
			Date:            q.Date,
			Expiry:          q.Expiry,
			Right:           string(q.Right),
			Strike:          &strike,
			Price:           &price,
			RawDaysToExpiry: &days,
		}
		if rv != nil {
			v := *rv
			row.RealizedVol = &v
		}
		rows = append(rows, row)
	}
	return rows
}

// Date parses a 2006-01-02 date and panics on malformed input.
func Date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
