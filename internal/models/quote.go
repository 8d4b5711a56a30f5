// Package models provides domain models for the volatility index engine.
package models

import (
	"strings"
	"time"
)

// OptionRight is the side of an option contract.
type OptionRight string

const (
	Call OptionRight = "call"
	Put  OptionRight = "put"
)

// ParseOptionRight normalizes a vendor right field. Only call and put are
// accepted, trimmed and in any case.
func ParseOptionRight(s string) (OptionRight, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return Call, true
	case "put":
		return Put, true
	default:
		return "", false
	}
}

// RawQuote is one input row before validation. Nil numeric fields and zero
// dates mark values the vendor did not supply.
type RawQuote struct {
	Date            time.Time
	Expiry          time.Time
	Right           string
	Strike          *float64
	Price           *float64
	RawDaysToExpiry *float64
	RealizedVol     *float64
}

// Quote is one validated option contract observation.
type Quote struct {
	Date            time.Time
	Expiry          time.Time
	Right           OptionRight
	Strike          float64
	Price           float64
	RawDaysToExpiry float64 // vendor day count, advisory only
	RealizedVol     *float64
}

// MaturityGroup holds all quotes for one (date, expiry) pair.
type MaturityGroup struct {
	Date                time.Time
	Expiry              time.Time
	TradingDaysToExpiry int
	Quotes              []Quote
}

// StrikePair joins the call and put prices quoted at one strike.
type StrikePair struct {
	Strike float64
	Call   float64
	Put    float64
	Q      float64 // out-of-the-money price used in the variance sum
}

// DailySnapshot is one trading day's maturity groups, ordered by expiry.
type DailySnapshot struct {
	Date        time.Time
	Groups      []MaturityGroup
	RealizedVol *float64
}
