// Package term interpolates implied variance across maturities to a fixed
// trading-day horizon and annualizes it into an index value.
package term

import (
	"math"
	"sort"

	apperrors "cnvix/internal/errors"
)

// Point is the implied variance of one usable maturity.
type Point struct {
	TradingDays int
	T           float64 // years
	Variance    float64 // annualized
}

// Result is the interpolated index for one day.
type Result struct {
	CNVIX         float64
	TotalVariance float64 // σ²·T at the target horizon
	Variance      float64 // annualized variance at the target horizon
	Near          Point
	Next          Point
	Extrapolated  bool // both maturities on the same side of the target
}

// Interpolate selects the two maturities closest to targetDays and
// interpolates total variance linearly in time between them. targetYears is
// the same horizon expressed in years.
//
// Points are ranked by distance to the target in trading days; ties keep the
// input order, which callers give in ascending maturity. The two closest may
// lie on the same side of the target, in which case the line is extrapolated.
func Interpolate(points []Point, targetDays int, targetYears float64) (Result, error) {
	if len(points) < 2 {
		return Result{}, apperrors.ErrInsufficientMaturities
	}

	ranked := make([]Point, len(points))
	copy(ranked, points)
	sort.SliceStable(ranked, func(i, j int) bool {
		return distance(ranked[i], targetDays) < distance(ranked[j], targetDays)
	})

	p1, p2 := ranked[0], ranked[1]
	if p2.T < p1.T {
		p1, p2 = p2, p1
	}
	if p1.T == p2.T {
		return Result{}, apperrors.ErrDegenerateTerm
	}

	total := (p1.T*p1.Variance*(p2.T-targetYears) + p2.T*p2.Variance*(targetYears-p1.T)) / (p2.T - p1.T)
	if total < 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return Result{}, apperrors.ErrNegativeVariance
	}

	annualized := total / targetYears
	return Result{
		CNVIX:         100 * math.Sqrt(annualized),
		TotalVariance: total,
		Variance:      annualized,
		Near:          p1,
		Next:          p2,
		Extrapolated:  !(p1.TradingDays <= targetDays && targetDays <= p2.TradingDays),
	}, nil
}

func distance(p Point, targetDays int) int {
	d := p.TradingDays - targetDays
	if d < 0 {
		return -d
	}
	return d
}
