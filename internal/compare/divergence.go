package compare

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
)

// DefaultEdges is the number of histogram edges shared by both series.
const DefaultEdges = 100

// smoothing keeps empty bins from producing infinite divergence.
const smoothing = 1e-12

// Divergence holds the KL divergence in both directions, in nats.
type Divergence struct {
	Bins int     `json:"bins"`
	PQ   float64 `json:"kl_index_realized"`
	QP   float64 `json:"kl_realized_index"`
}

// KL estimates D(P||Q) and D(Q||P) where P is the distribution of x and Q
// of y, both binned over edges evenly spaced across their joint range.
func KL(x, y []float64, edges int) (Divergence, error) {
	if edges < 2 {
		edges = DefaultEdges
	}
	if len(x) == 0 || len(y) == 0 {
		return Divergence{}, apperrors.Wrap(apperrors.ErrInsufficientSamples, "kl divergence needs two non-empty series")
	}

	lo := math.Min(floats.Min(x), floats.Min(y))
	hi := math.Max(floats.Max(x), floats.Max(y))
	if hi <= lo {
		return Divergence{}, apperrors.Wrap(apperrors.ErrInsufficientSamples, "series have no spread")
	}

	bins := make([]float64, edges)
	floats.Span(bins, lo, hi)

	p := density(x, bins)
	q := density(y, bins)

	return Divergence{
		Bins: len(bins) - 1,
		PQ:   stat.KullbackLeibler(p, q),
		QP:   stat.KullbackLeibler(q, p),
	}, nil
}

// density bins values over the given edges, the last bin closed on the
// right, then smooths and normalizes the counts to a probability vector.
func density(values, edges []float64) []float64 {
	nbins := len(edges) - 1
	lo, hi := edges[0], edges[nbins]
	width := (hi - lo) / float64(nbins)

	counts := make([]float64, nbins)
	for _, v := range values {
		if v < lo || v > hi {
			continue
		}
		i := int((v - lo) / width)
		if i >= nbins {
			i = nbins - 1
		}
		counts[i]++
	}

	total := float64(len(values))
	for i := range counts {
		counts[i] = counts[i]/(total*width) + smoothing
	}
	floats.Scale(1/floats.Sum(counts), counts)
	return counts
}

// Report is the full comparison of an aligned series.
type Report struct {
	Correlation Correlation `json:"correlation"`
	Divergence  Divergence  `json:"divergence"`
}

// Analyze runs every comparison over an aligned series.
func Analyze(points []models.AlignedPoint, edges int) (*Report, error) {
	index, realized := Series(points)

	corr, err := Pearson(index, realized)
	if err != nil {
		return nil, err
	}
	div, err := KL(index, realized, edges)
	if err != nil {
		return nil, err
	}
	return &Report{Correlation: corr, Divergence: div}, nil
}
