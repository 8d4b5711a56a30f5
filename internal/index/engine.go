// Package index computes the daily CNVIX series from preprocessed option
// chains and aligns it against forward realized volatility.
package index

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"cnvix/internal/chain"
	apperrors "cnvix/internal/errors"
	"cnvix/internal/logging"
	"cnvix/internal/models"
	"cnvix/internal/performance"
	"cnvix/internal/term"
	"cnvix/internal/variance"
)

// DayResult is the outcome of one trading day.
type DayResult struct {
	Date         time.Time
	Point        *models.IndexPoint // nil when the day is undefined
	Term         term.Result
	Maturities   int
	Usable       int
	Extrapolated bool
	Skip         models.SkipReason
	Err          error // *errors.DayError when the day was skipped
}

// RunStats summarizes an engine run.
type RunStats struct {
	Days               int                       `json:"days"`
	Points             int                       `json:"points"`
	Skipped            map[models.SkipReason]int `json:"skipped"`
	UnusableMaturities int                       `json:"unusable_maturities"`
	Extrapolated       int                       `json:"extrapolated"`
	Preprocess         chain.Stats               `json:"preprocess"`
	Duration           time.Duration             `json:"duration"`
}

// SkippedDays returns the total number of days without an index value.
func (s RunStats) SkippedDays() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Series is the ordered output of a run.
type Series struct {
	Params  Params
	Points  []models.IndexPoint
	Skipped []models.SkippedDay
	Stats   RunStats
}

// Engine computes the index for every trading day in a dataset.
type Engine struct {
	params  Params
	workers int
	logger  zerolog.Logger
}

// NewEngine creates an engine. workers <= 0 uses one worker per CPU.
func NewEngine(params Params, workers int, logger zerolog.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  params,
		workers: workers,
		logger:  logging.WithOperation(logger, "index"),
	}, nil
}

// Params returns the engine's methodology constants.
func (e *Engine) Params() Params {
	return e.params
}

// RunQuotes preprocesses raw rows and runs the engine over every day.
func (e *Engine) RunQuotes(ctx context.Context, raw []models.RawQuote) (*Series, error) {
	pre, err := chain.Preprocess(raw)
	if err != nil {
		return nil, err
	}
	s := pre.Stats
	logging.LogPreprocess(e.logger, pre.Calendar.First(), pre.Calendar.Last(), s.Input, s.Skipped, s.Unresolvable, s.Expired, s.Kept, s.Days)

	series, err := e.Run(ctx, pre.Snapshots)
	if err != nil {
		return nil, err
	}
	series.Stats.Preprocess = s
	return series, nil
}

// Run computes every snapshot on the worker pool. Days are independent and
// results keep snapshot order, so the series is ordered by date.
func (e *Engine) Run(ctx context.Context, snapshots []models.DailySnapshot) (*Series, error) {
	if len(snapshots) == 0 {
		return nil, apperrors.ErrNoTradingDays
	}
	start := time.Now()

	results, pool, err := performance.Map(ctx, e.workers, snapshots, e.ComputeDay)
	if err != nil {
		return nil, apperrors.Wrap(err, "index run cancelled")
	}

	series := &Series{
		Params: e.params,
		Stats: RunStats{
			Days:    len(snapshots),
			Skipped: make(map[models.SkipReason]int),
		},
	}
	for _, r := range results {
		series.Stats.UnusableMaturities += r.Maturities - r.Usable
		if r.Point == nil {
			series.Skipped = append(series.Skipped, models.SkippedDay{Date: r.Date, Reason: r.Skip})
			series.Stats.Skipped[r.Skip]++
			continue
		}
		if r.Extrapolated {
			series.Stats.Extrapolated++
		}
		series.Points = append(series.Points, *r.Point)
	}
	series.Stats.Points = len(series.Points)
	series.Stats.Duration = time.Since(start)

	logging.LogRunSummary(e.logger, series.Stats.Days, series.Stats.Points,
		series.Stats.SkippedDays(), series.Stats.UnusableMaturities, pool.Workers, pool.TasksDone, series.Stats.Duration)
	return series, nil
}

// ComputeDay computes the index for one trading day. An undefined day is
// reported through DayResult.Skip, never as an error.
func (e *Engine) ComputeDay(snap models.DailySnapshot) DayResult {
	res := DayResult{Date: snap.Date, Maturities: len(snap.Groups)}
	logger := logging.WithDate(e.logger, snap.Date)

	points := make([]term.Point, 0, len(snap.Groups))
	for _, g := range snap.Groups {
		v, err := variance.Compute(g, e.params.RiskFreeRate, e.params.TradingDaysPerYear)
		if err != nil {
			logging.LogUnusableMaturity(logger, g.Expiry, err)
			continue
		}
		points = append(points, term.Point{
			TradingDays: v.TradingDays,
			T:           v.T,
			Variance:    v.Variance,
		})
	}
	res.Usable = len(points)

	tr, err := term.Interpolate(points, e.params.TargetTradingDays, e.params.TargetYears())
	if err != nil {
		res.Skip = skipReason(err)
		res.Err = apperrors.NewDayError(snap.Date, err)
		logging.LogSkippedDay(logger, snap.Date, string(res.Skip), res.Usable)
		return res
	}

	res.Term = tr
	res.Extrapolated = tr.Extrapolated
	res.Point = &models.IndexPoint{
		Date:        snap.Date,
		CNVIX:       tr.CNVIX,
		RealizedVol: snap.RealizedVol,
	}
	logging.LogIndexPoint(logger, snap.Date, tr.CNVIX, tr.Near.TradingDays, tr.Next.TradingDays)
	return res
}

func skipReason(err error) models.SkipReason {
	switch {
	case apperrors.Is(err, apperrors.ErrDegenerateTerm):
		return models.SkipDegenerateTerm
	case apperrors.Is(err, apperrors.ErrNegativeVariance):
		return models.SkipNegativeVariance
	default:
		return models.SkipInsufficientMaturities
	}
}

// Round rounds v to the four decimals used in every output.
func Round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
