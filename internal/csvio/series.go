package csvio

import (
	"io"
	"os"

	"github.com/gocarina/gocsv"

	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
	"cnvix/pkg/utils"
)

type indexRecord struct {
	Date        string `csv:"date"`
	CNVIX       string `csv:"CNVIX"`
	RealizedVol string `csv:"underlyinghisvol_30d"`
}

type alignedRecord struct {
	Date               string `csv:"date"`
	CNVIX              string `csv:"CNVIX"`
	RealizedVolShifted string `csv:"underlyinghisvol_30d_shifted"`
}

// WriteIndex writes the daily series with four-decimal values. Days
// without a realized volatility leave that column blank.
func WriteIndex(w io.Writer, points []models.IndexPoint) error {
	records := make([]*indexRecord, 0, len(points))
	for _, p := range points {
		rec := &indexRecord{
			Date:  utils.FormatDate(p.Date),
			CNVIX: utils.FormatDecimal(p.CNVIX),
		}
		if p.RealizedVol != nil {
			rec.RealizedVol = utils.FormatDecimal(*p.RealizedVol)
		}
		records = append(records, rec)
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return apperrors.NewDataError("index", "writing csv", err)
	}
	return nil
}

// WriteAligned writes the series aligned against forward realized volatility.
func WriteAligned(w io.Writer, points []models.AlignedPoint) error {
	records := make([]*alignedRecord, 0, len(points))
	for _, p := range points {
		records = append(records, &alignedRecord{
			Date:               utils.FormatDate(p.Date),
			CNVIX:              utils.FormatDecimal(p.CNVIX),
			RealizedVolShifted: utils.FormatDecimal(p.RealizedVolShifted),
		})
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return apperrors.NewDataError("aligned", "writing csv", err)
	}
	return nil
}

// ReadAligned parses a file written by WriteAligned. Rows with a missing
// or malformed value are skipped.
func ReadAligned(r io.Reader) ([]models.AlignedPoint, error) {
	var records []alignedRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, apperrors.NewDataError("aligned", "parsing csv", err)
	}

	points := make([]models.AlignedPoint, 0, len(records))
	for _, rec := range records {
		date, err := utils.ParseDate(rec.Date)
		if err != nil {
			continue
		}
		cnvix := utils.ParseOptionalFloat(rec.CNVIX)
		rv := utils.ParseOptionalFloat(rec.RealizedVolShifted)
		if cnvix == nil || rv == nil {
			continue
		}
		points = append(points, models.AlignedPoint{
			Date:               date,
			CNVIX:              *cnvix,
			RealizedVolShifted: *rv,
		})
	}
	return points, nil
}

// WriteFile creates path and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewDataError(path, "creating file", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadAlignedFile parses the aligned series at path.
func ReadAlignedFile(path string) ([]models.AlignedPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError(path, "opening aligned series", err)
	}
	defer f.Close()
	return ReadAligned(f)
}
