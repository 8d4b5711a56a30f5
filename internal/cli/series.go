package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"cnvix/internal/csvio"
	"cnvix/internal/index"
	"cnvix/internal/models"
	"cnvix/internal/store"
	"cnvix/pkg/utils"
)

func newAlignCmd(app *App) *cobra.Command {
	var (
		dbPath  string
		runID   int64
		out     string
		shift   int
		skipped bool
	)

	cmd := &cobra.Command{
		Use:   "align",
		Short: "Align a stored run against forward realized volatility",
		Example: `  cnvix align --db cnvix.db
  cnvix align --db cnvix.db --run 3 --output aligned.csv
  cnvix align --db cnvix.db --skipped`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			s, err := app.openStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := lookupRun(cmd, s, runID)
			if err != nil {
				return err
			}
			points, err := s.GetPoints(ctx, run.ID, store.DateRange{})
			if err != nil {
				return err
			}

			var skippedDays []models.SkippedDay
			if skipped {
				if skippedDays, err = s.GetSkippedDays(ctx, run.ID); err != nil {
					return err
				}
			}

			if !cmd.Flags().Changed("shift") {
				shift = run.TargetTradingDays
			}
			aligned := index.Align(points, shift)
			app.Logger.Info().
				Int64("run_id", run.ID).
				Int("points", len(points)).
				Int("aligned", len(aligned)).
				Int("shift", shift).
				Msg("Run aligned")

			if out != "" {
				if err := csvio.WriteFile(out, func(w io.Writer) error {
					return csvio.WriteAligned(w, aligned)
				}); err != nil {
					return err
				}
			}

			switch {
			case output.IsJSON() && skipped:
				return output.JSON(alignReport{Aligned: alignedJSON(aligned), Skipped: skippedJSON(skippedDays)})
			case output.IsJSON():
				return output.JSON(alignedJSON(aligned))
			case out != "":
				output.Success("Wrote %d aligned rows to %s", len(aligned), out)
			default:
				table := NewTable(output, "Date", "CNVIX", "Realized (shifted)").Numeric(1, 2)
				for _, p := range aligned {
					table.AddRow(utils.FormatDate(p.Date), utils.FormatDecimal(p.CNVIX), utils.FormatDecimal(p.RealizedVolShifted))
				}
				table.Render()
			}

			if skipped && !output.IsJSON() {
				output.Println()
				if len(skippedDays) == 0 {
					output.Dim("No skipped days in run %d", run.ID)
					return nil
				}
				output.Bold("Skipped days")
				table := NewTable(output, "Date", "Reason")
				for _, d := range skippedDays {
					table.AddRow(utils.FormatDate(d.Date), string(d.Reason))
				}
				table.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default from config)")
	cmd.Flags().Int64Var(&runID, "run", 0, "run ID (default: latest)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the aligned series to this CSV")
	cmd.Flags().IntVar(&shift, "shift", 0, "shift in trading days (default: the run's target)")
	cmd.Flags().BoolVar(&skipped, "skipped", false, "also list the run's skipped days")

	return cmd
}

type alignedRow struct {
	Date               string  `json:"date"`
	CNVIX              float64 `json:"cnvix"`
	RealizedVolShifted float64 `json:"realized_vol_shifted"`
}

func alignedJSON(points []models.AlignedPoint) []alignedRow {
	rows := make([]alignedRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, alignedRow{
			Date:               utils.FormatDate(p.Date),
			CNVIX:              index.Round(p.CNVIX),
			RealizedVolShifted: index.Round(p.RealizedVolShifted),
		})
	}
	return rows
}

type skippedRow struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type alignReport struct {
	Aligned []alignedRow `json:"aligned"`
	Skipped []skippedRow `json:"skipped"`
}

func skippedJSON(days []models.SkippedDay) []skippedRow {
	rows := make([]skippedRow, 0, len(days))
	for _, d := range days {
		rows = append(rows, skippedRow{Date: utils.FormatDate(d.Date), Reason: string(d.Reason)})
	}
	return rows
}

func lookupRun(cmd *cobra.Command, s store.SeriesStore, id int64) (*store.Run, error) {
	if id > 0 {
		return s.GetRun(cmd.Context(), id)
	}
	return s.LatestRun(cmd.Context())
}

func newRunsCmd(app *App) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			s, err := app.openStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No runs stored")
				return nil
			}

			table := NewTable(output, "ID", "Created", "Source", "Rate", "Target", "Days", "Points", "Skipped").Numeric(0, 3, 4, 5, 6)
			for _, r := range runs {
				table.AddRow(
					strconv.FormatInt(r.ID, 10),
					r.CreatedAt.Format("2006-01-02 15:04"),
					r.Source,
					fmt.Sprintf("%g", r.RiskFreeRate),
					strconv.Itoa(r.TargetTradingDays),
					strconv.Itoa(r.Days),
					strconv.Itoa(r.Points),
					FormatReasons(r.Skipped),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")

	return cmd
}
