package cli

import (
	"github.com/spf13/cobra"

	"cnvix/internal/compare"
	"cnvix/internal/csvio"
)

func newStatsCmd(app *App) *cobra.Command {
	var (
		alignedPath string
		bins        int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compare the index with realized volatility",
		Long: `Read an aligned series and report the Pearson correlation between the
index and shifted realized volatility, and the KL divergence between their
distributions in both directions.`,
		Example: `  cnvix stats --aligned CNVIX_vs_realized.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if alignedPath == "" {
				alignedPath = app.Config.Output.AlignedPath
			}

			points, err := csvio.ReadAlignedFile(alignedPath)
			if err != nil {
				return err
			}
			report, err := compare.Analyze(points, bins)
			if err != nil {
				return err
			}
			app.Logger.Info().
				Str("aligned", alignedPath).
				Int("n", report.Correlation.N).
				Float64("r", report.Correlation.R).
				Msg("Comparison done")

			if output.IsJSON() {
				return output.JSON(report)
			}

			c, d := report.Correlation, report.Divergence
			output.Bold("CNVIX vs realized volatility (%d pairs)", c.N)
			output.Printf("  Pearson r:        %.4f\n", c.R)
			output.Printf("  p-value:          %.4e\n", c.PValue)
			output.Printf("  KL(CNVIX||RV):    %.4f\n", d.PQ)
			output.Printf("  KL(RV||CNVIX):    %.4f\n", d.QP)
			output.Dim("  %d histogram bins", d.Bins)
			return nil
		},
	}

	cmd.Flags().StringVarP(&alignedPath, "aligned", "a", "", "aligned series CSV (default from config)")
	cmd.Flags().IntVar(&bins, "bins", compare.DefaultEdges, "histogram edges shared by both series")

	return cmd
}
