package index

import "cnvix/internal/models"

// Align pairs each index value with the realized volatility recorded shift
// points later in the series, so the value on day t sits next to the
// realized volatility of the window it forecasts. The last shift points have
// no future value and are dropped, as are pairs whose future realized
// volatility is missing.
func Align(points []models.IndexPoint, shift int) []models.AlignedPoint {
	if shift < 0 {
		shift = 0
	}
	if len(points) <= shift {
		return nil
	}

	aligned := make([]models.AlignedPoint, 0, len(points)-shift)
	for i := 0; i+shift < len(points); i++ {
		future := points[i+shift].RealizedVol
		if future == nil {
			continue
		}
		aligned = append(aligned, models.AlignedPoint{
			Date:               points[i].Date,
			CNVIX:              points[i].CNVIX,
			RealizedVolShifted: *future,
		})
	}
	return aligned
}
