// Package csvio reads option quote datasets and writes index series as CSV.
package csvio

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
	"cnvix/pkg/utils"
)

// quoteRecord is one input row. Fields stay strings so that blank or
// malformed values reach preprocessing as missing instead of failing the file.
type quoteRecord struct {
	Date        string `csv:"date"`
	Expiry      string `csv:"exe_enddate"`
	Right       string `csv:"exe_mode"`
	Strike      string `csv:"exe_price"`
	Price       string `csv:"close"`
	Days        string `csv:"ptmday"`
	RealizedVol string `csv:"underlyinghisvol_30d"`
}

// headerAliases maps descriptive column names onto the vendor names.
var headerAliases = map[string]string{
	"expiry":           "exe_enddate",
	"right":            "exe_mode",
	"type":             "exe_mode",
	"strike":           "exe_price",
	"price":            "close",
	"days_to_expiry":   "ptmday",
	"realized_vol_30d": "underlyinghisvol_30d",
}

var requiredColumns = []string{"date", "exe_enddate", "exe_mode", "exe_price", "close", "ptmday"}

// ReadQuotes parses a quote dataset. Only a malformed file or a missing
// required column is an error; bad values inside a row are passed on as
// missing fields.
func ReadQuotes(r io.Reader) ([]models.RawQuote, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, apperrors.NewDataError("quotes", "reading header", err)
	}
	header, err = normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	var records []quoteRecord
	// Short rows leave trailing fields empty; preprocessing drops them.
	cr := csv.NewReader(io.MultiReader(strings.NewReader(header+"\n"), br))
	cr.FieldsPerRecord = -1
	if err := gocsv.UnmarshalCSV(cr, &records); err != nil {
		return nil, apperrors.NewDataError("quotes", "parsing csv", err)
	}

	quotes := make([]models.RawQuote, 0, len(records))
	for _, rec := range records {
		quotes = append(quotes, rec.toRaw())
	}
	return quotes, nil
}

// ReadQuotesFile parses the quote dataset at path.
func ReadQuotesFile(path string) ([]models.RawQuote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError(path, "opening quotes", err)
	}
	defer f.Close()
	return ReadQuotes(f)
}

func (rec quoteRecord) toRaw() models.RawQuote {
	q := models.RawQuote{
		Right:           rec.Right,
		Strike:          utils.ParseOptionalFloat(rec.Strike),
		Price:           utils.ParseOptionalFloat(rec.Price),
		RawDaysToExpiry: utils.ParseOptionalFloat(rec.Days),
		RealizedVol:     utils.ParseOptionalFloat(rec.RealizedVol),
	}
	if d, err := utils.ParseDate(rec.Date); err == nil {
		q.Date = d
	}
	if d, err := utils.ParseDate(rec.Expiry); err == nil {
		q.Expiry = d
	}
	return q
}

// normalizeHeader lowercases column names, strips a byte order mark,
// resolves aliases and checks the required columns are present.
func normalizeHeader(line string) (string, error) {
	line = strings.TrimPrefix(line, "\ufeff")
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return "", apperrors.NewDataError("quotes", "empty header", apperrors.ErrInputFormat)
	}

	cols := strings.Split(line, ",")
	present := make(map[string]bool, len(cols))
	for i, c := range cols {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(c), `"`))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		cols[i] = name
		present[name] = true
	}
	for _, req := range requiredColumns {
		if !present[req] {
			return "", apperrors.NewDataError("quotes", "missing column "+req, apperrors.ErrInputFormat)
		}
	}
	return strings.Join(cols, ","), nil
}
