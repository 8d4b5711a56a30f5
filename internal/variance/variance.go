// Package variance computes the model-free implied variance of a single
// option maturity by discretizing the variance-swap replication integral.
package variance

import (
	"math"
	"sort"

	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
)

// Result is the implied variance of one maturity and the intermediate
// quantities it was derived from.
type Result struct {
	TradingDays int
	T           float64 // years
	Variance    float64 // annualized
	Forward     float64
	K0          float64
	Pairs       []models.StrikePair // ascending strike, Q filled in
}

// legs accumulates the prices quoted for one side at one strike.
type legs struct {
	sum float64
	n   int
}

func (l legs) mean() float64 {
	return l.sum / float64(l.n)
}

// Compute returns the implied variance of group. rate is the annualized
// risk-free rate and tradingDaysPerYear converts trading days to years.
// An unusable maturity is reported as a *errors.MaturityError wrapping
// errors.ErrUnusableMaturity.
func Compute(group models.MaturityGroup, rate, tradingDaysPerYear float64) (*Result, error) {
	pairs, err := JoinStrikes(group)
	if err != nil {
		return nil, err
	}
	if len(pairs) < 2 {
		return nil, apperrors.NewMaturityError(group.Date, group.Expiry, "fewer than two paired strikes")
	}

	t := float64(group.TradingDaysToExpiry) / tradingDaysPerYear
	growth := math.Exp(rate * t)

	forward := Forward(pairs, growth)
	k0, ok := AtTheMoneyStrike(pairs, forward)
	if !ok {
		return nil, apperrors.NewMaturityError(group.Date, group.Expiry, "no strike at or below forward")
	}

	var sum float64
	for i := range pairs {
		p := &pairs[i]
		switch {
		case p.Strike < k0:
			p.Q = p.Put
		case p.Strike > k0:
			p.Q = p.Call
		default:
			p.Q = 0.5 * (p.Call + p.Put)
		}
		sum += strikeGap(pairs, i) / (p.Strike * p.Strike) * p.Q
	}

	correction := forward/k0 - 1
	sigma2 := 2*growth/t*sum - correction*correction/t

	return &Result{
		TradingDays: group.TradingDaysToExpiry,
		T:           t,
		Variance:    sigma2,
		Forward:     forward,
		K0:          k0,
		Pairs:       pairs,
	}, nil
}

// JoinStrikes pairs call and put prices quoted at the same strike and
// returns the pairs in ascending strike order. Several quotes for the same
// leg and strike are averaged.
func JoinStrikes(group models.MaturityGroup) ([]models.StrikePair, error) {
	calls := make(map[float64]legs)
	puts := make(map[float64]legs)
	for _, q := range group.Quotes {
		side := calls
		if q.Right == models.Put {
			side = puts
		}
		l := side[q.Strike]
		l.sum += q.Price
		l.n++
		side[q.Strike] = l
	}

	if len(calls) == 0 || len(puts) == 0 {
		return nil, apperrors.NewMaturityError(group.Date, group.Expiry, "missing call or put leg")
	}

	pairs := make([]models.StrikePair, 0, len(calls))
	for strike, c := range calls {
		p, ok := puts[strike]
		if !ok {
			continue
		}
		pairs = append(pairs, models.StrikePair{
			Strike: strike,
			Call:   c.mean(),
			Put:    p.mean(),
		})
	}
	if len(pairs) == 0 {
		return nil, apperrors.NewMaturityError(group.Date, group.Expiry, "no strike quoted on both legs")
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Strike < pairs[j].Strike })
	return pairs, nil
}

// Forward derives the forward price by put-call parity at the strike where
// call and put prices are closest. pairs must be sorted by strike; ties go
// to the lowest strike. growth is e^{rT}.
func Forward(pairs []models.StrikePair, growth float64) float64 {
	best := 0
	bestDiff := math.Abs(pairs[0].Call - pairs[0].Put)
	for i := 1; i < len(pairs); i++ {
		if diff := math.Abs(pairs[i].Call - pairs[i].Put); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	p := pairs[best]
	return p.Strike + growth*(p.Call-p.Put)
}

// AtTheMoneyStrike returns K0, the largest strike not above forward.
func AtTheMoneyStrike(pairs []models.StrikePair, forward float64) (float64, bool) {
	i := sort.Search(len(pairs), func(i int) bool { return pairs[i].Strike > forward })
	if i == 0 {
		return 0, false
	}
	return pairs[i-1].Strike, true
}

// strikeGap is the distance from the previous strike. The lowest strike has
// no predecessor and takes the second strike's gap.
func strikeGap(pairs []models.StrikePair, i int) float64 {
	if i == 0 {
		return pairs[1].Strike - pairs[0].Strike
	}
	return pairs[i].Strike - pairs[i-1].Strike
}
