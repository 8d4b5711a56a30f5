package cli

import (
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"cnvix/internal/csvio"
	"cnvix/internal/index"
	"cnvix/internal/logging"
	"cnvix/internal/models"
	"cnvix/internal/store"
	"cnvix/pkg/utils"
)

var (
	errNoInput    = errors.New("no input file: pass --input or set input.path")
	errNoDatabase = errors.New("no database: pass --db or set output.database_path")
)

// computeResult is the JSON summary of a compute run.
type computeResult struct {
	Input       string         `json:"input"`
	IndexPath   string         `json:"index_path"`
	AlignedPath string         `json:"aligned_path"`
	RunID       int64          `json:"run_id,omitempty"`
	Params      index.Params   `json:"params"`
	Stats       index.RunStats `json:"stats"`
	Aligned     int            `json:"aligned"`
	First       string         `json:"first,omitempty"`
	Last        string         `json:"last,omitempty"`
	LastValue   *float64       `json:"last_value,omitempty"`
	LastRV      *float64       `json:"last_realized_vol,omitempty"`
}

func newComputeCmd(app *App) *cobra.Command {
	var (
		input       string
		indexPath   string
		alignedPath string
		dbPath      string
		workers     int
		rate        float64
		target      int
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the daily index from option quotes",
		Long: `Compute the daily CNVIX series from an option quote CSV.

Writes the index series and the series aligned against realized volatility
observed target trading days later. With a database configured the run is
stored as well.`,
		Example: `  cnvix compute --input quotes.csv
  cnvix compute --input quotes.csv --target 22 --rate 0.025 --db cnvix.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			logger := logging.WithOperation(app.Logger, "compute")
			cfg := app.Config

			if input == "" {
				input = cfg.Input.Path
			}
			if input == "" {
				return errNoInput
			}
			if indexPath == "" {
				indexPath = cfg.Output.IndexPath
			}
			if alignedPath == "" {
				alignedPath = cfg.Output.AlignedPath
			}

			params := cfg.EngineParams()
			if cmd.Flags().Changed("rate") {
				params.RiskFreeRate = rate
			}
			if cmd.Flags().Changed("target") {
				params.TargetTradingDays = target
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Workers()
			}

			raw, err := csvio.ReadQuotesFile(input)
			if err != nil {
				return err
			}
			logger.Info().Str("input", input).Int("rows", len(raw)).Msg("Quotes loaded")

			engine, err := index.NewEngine(params, workers, logger)
			if err != nil {
				return err
			}
			series, err := engine.RunQuotes(cmd.Context(), raw)
			if err != nil {
				return err
			}
			aligned := index.Align(series.Points, params.TargetTradingDays)

			if err := csvio.WriteFile(indexPath, func(w io.Writer) error {
				return csvio.WriteIndex(w, series.Points)
			}); err != nil {
				return err
			}
			if err := csvio.WriteFile(alignedPath, func(w io.Writer) error {
				return csvio.WriteAligned(w, aligned)
			}); err != nil {
				return err
			}
			logger.Info().
				Str("index", indexPath).
				Str("aligned", alignedPath).
				Int("aligned_rows", len(aligned)).
				Msg("Series written")

			result := computeResult{
				Input:       input,
				IndexPath:   indexPath,
				AlignedPath: alignedPath,
				Params:      params,
				Stats:       series.Stats,
				Aligned:     len(aligned),
			}
			if n := len(series.Points); n > 0 {
				result.First = utils.FormatDate(series.Points[0].Date)
				last := series.Points[n-1]
				result.Last = utils.FormatDate(last.Date)
				v := index.Round(last.CNVIX)
				result.LastValue = &v
				result.LastRV = last.RealizedVol
			}

			if dbPath != "" || cfg.Output.DatabasePath != "" {
				id, err := app.saveRun(cmd, dbPath, input, series)
				if err != nil {
					return err
				}
				result.RunID = id
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			printComputeSummary(output, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "option quote CSV")
	cmd.Flags().StringVarP(&indexPath, "output", "o", "", "index series CSV (default from config)")
	cmd.Flags().StringVar(&alignedPath, "aligned", "", "aligned series CSV (default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "store the run in this SQLite database")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel day workers (default from config)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "risk-free rate override")
	cmd.Flags().IntVar(&target, "target", 0, "target horizon in trading days override")

	return cmd
}

func (a *App) saveRun(cmd *cobra.Command, dbPath, source string, series *index.Series) (int64, error) {
	s, err := a.openStore(dbPath)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	run := newRun(source, series)
	id, err := s.SaveRun(cmd.Context(), run, series.Points, series.Skipped)
	if err != nil {
		return 0, err
	}
	a.Logger.Info().Int64("run_id", id).Int("points", len(series.Points)).Msg("Run stored")
	return id, nil
}

func newRun(source string, series *index.Series) *store.Run {
	stats := series.Stats
	skipped := make(map[models.SkipReason]int, len(stats.Skipped))
	for reason, n := range stats.Skipped {
		skipped[reason] = n
	}
	return &store.Run{
		CreatedAt:          time.Now().UTC(),
		Source:             source,
		RiskFreeRate:       series.Params.RiskFreeRate,
		TradingDaysPerYear: series.Params.TradingDaysPerYear,
		TargetTradingDays:  series.Params.TargetTradingDays,
		Days:               stats.Days,
		Points:             stats.Points,
		UnusableMaturities: stats.UnusableMaturities,
		InputRows:          stats.Preprocess.Input,
		SkippedRows:        stats.Preprocess.Skipped + stats.Preprocess.Unresolvable + stats.Preprocess.Expired,
		Skipped:            skipped,
	}
}

func printComputeSummary(output *Output, r computeResult) {
	st := r.Stats
	output.Bold("CNVIX computed")
	output.Printf("  Input rows:       %d (kept %d, malformed %d, unresolvable %d, expired %d)\n",
		st.Preprocess.Input, st.Preprocess.Kept, st.Preprocess.Skipped, st.Preprocess.Unresolvable, st.Preprocess.Expired)
	output.Printf("  Trading days:     %d\n", st.Days)
	output.Printf("  Index points:     %d", st.Points)
	if r.First != "" {
		output.Printf(" (%s to %s)", r.First, r.Last)
	}
	output.Println()
	if r.LastValue != nil {
		output.Printf("  Latest:           %s (realized %s)\n", FormatOptional(r.LastValue), FormatOptional(r.LastRV))
	}
	output.Printf("  Skipped days:     %d [%s]\n", st.SkippedDays(), FormatReasons(st.Skipped))
	output.Printf("  Unusable maturities: %d\n", st.UnusableMaturities)
	if st.Extrapolated > 0 {
		output.Warning("  Extrapolated days: %d", st.Extrapolated)
	}
	output.Printf("  Aligned rows:     %d (shift %d)\n", r.Aligned, r.Params.TargetTradingDays)
	output.Printf("  Elapsed:          %s\n", FormatDuration(st.Duration))
	output.Println()
	output.Success("Index:   %s", r.IndexPath)
	output.Success("Aligned: %s", r.AlignedPath)
	if r.RunID > 0 {
		output.Info("Stored as run %d", r.RunID)
	}
}
