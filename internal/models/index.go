package models

import "time"

// IndexPoint is one day of the CNVIX series.
type IndexPoint struct {
	Date        time.Time
	CNVIX       float64
	RealizedVol *float64
}

// AlignedPoint pairs a CNVIX value with the realized volatility observed
// a target horizon later.
type AlignedPoint struct {
	Date               time.Time
	CNVIX              float64
	RealizedVolShifted float64
}

// SkipReason classifies why a day produced no IndexPoint.
type SkipReason string

const (
	SkipInsufficientMaturities SkipReason = "insufficient_maturities"
	SkipDegenerateTerm         SkipReason = "degenerate_term"
	SkipNegativeVariance       SkipReason = "negative_variance"
)

// SkippedDay records a trading day without an index value.
type SkippedDay struct {
	Date   time.Time
	Reason SkipReason
}
