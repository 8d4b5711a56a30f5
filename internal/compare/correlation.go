// Package compare measures how well the index tracks realized volatility.
package compare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
)

// Correlation is a Pearson correlation with its two-sided p-value.
type Correlation struct {
	N      int     `json:"n"`
	R      float64 `json:"r"`
	PValue float64 `json:"p_value"`
}

// Pearson computes the correlation between x and y. The p-value tests
// r != 0 against a Student t distribution with n-2 degrees of freedom.
func Pearson(x, y []float64) (Correlation, error) {
	if len(x) != len(y) {
		return Correlation{}, fmt.Errorf("length mismatch: %d vs %d", len(x), len(y))
	}
	n := len(x)
	if n < 3 {
		return Correlation{}, apperrors.Wrapf(apperrors.ErrInsufficientSamples, "pearson needs at least 3 pairs, got %d", n)
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return Correlation{}, apperrors.Wrap(apperrors.ErrInsufficientSamples, "constant series has no correlation")
	}
	// Rounding can push |r| just past one.
	r = math.Max(-1, math.Min(1, r))

	df := float64(n - 2)
	p := 0.0
	if math.Abs(r) < 1 {
		t := r * math.Sqrt(df/(1-r*r))
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		p = 2 * dist.CDF(-math.Abs(t))
	}

	return Correlation{N: n, R: r, PValue: p}, nil
}

// Series splits aligned points into the index and shifted realized columns.
func Series(points []models.AlignedPoint) (index, realized []float64) {
	index = make([]float64, 0, len(points))
	realized = make([]float64, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.CNVIX) || math.IsNaN(p.RealizedVolShifted) {
			continue
		}
		index = append(index, p.CNVIX)
		realized = append(realized, p.RealizedVolShifted)
	}
	return index, realized
}
