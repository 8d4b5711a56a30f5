package chain

import (
	"math"
	"testing"
	"time"

	"cnvix/internal/calendar"
	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func f(v float64) *float64 { return &v }

func raw(date, expiry, right string, strike, price float64) models.RawQuote {
	return models.RawQuote{
		Date:            d(date),
		Expiry:          d(expiry),
		Right:           right,
		Strike:          f(strike),
		Price:           f(price),
		RawDaysToExpiry: f(10),
	}
}

func TestValidate(t *testing.T) {
	good := raw("2024-01-02", "2024-01-05", "CALL", 100, 2.5)

	tests := []struct {
		name   string
		mutate func(*models.RawQuote)
		wantOK bool
	}{
		{"valid", func(*models.RawQuote) {}, true},
		{"unknown right", func(r *models.RawQuote) { r.Right = "future" }, false},
		{"padded right", func(r *models.RawQuote) { r.Right = " Call " }, true},
		{"abbreviated right", func(r *models.RawQuote) { r.Right = "c" }, false},
		{"exchange suffix right", func(r *models.RawQuote) { r.Right = "CE" }, false},
		{"abbreviated put", func(r *models.RawQuote) { r.Right = "P" }, false},
		{"missing strike", func(r *models.RawQuote) { r.Strike = nil }, false},
		{"missing price", func(r *models.RawQuote) { r.Price = nil }, false},
		{"missing day count", func(r *models.RawQuote) { r.RawDaysToExpiry = nil }, false},
		{"zero strike", func(r *models.RawQuote) { r.Strike = f(0) }, false},
		{"negative price", func(r *models.RawQuote) { r.Price = f(-1) }, false},
		{"nan price", func(r *models.RawQuote) { r.Price = f(math.NaN()) }, false},
		{"missing expiry", func(r *models.RawQuote) { r.Expiry = time.Time{} }, false},
		{"zero price kept", func(r *models.RawQuote) { r.Price = f(0) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			tt.mutate(&r)
			q, ok := Validate(r)
			if ok != tt.wantOK {
				t.Fatalf("Validate() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && q.Right != models.Call {
				t.Errorf("Right = %q, want call", q.Right)
			}
		})
	}
}

func TestPreprocess_GroupsAndCounts(t *testing.T) {
	rows := []models.RawQuote{
		raw("2024-01-02", "2024-01-04", "call", 100, 3),
		raw("2024-01-02", "2024-01-04", "put", 100, 2),
		raw("2024-01-02", "2024-01-06", "call", 100, 4), // Saturday resolves to 2024-01-08
		raw("2024-01-03", "2024-01-04", "put", 100, 1),
		raw("2024-01-04", "2024-01-04", "call", 100, 1), // expires today
		raw("2024-01-08", "2024-02-01", "call", 100, 5), // beyond calendar
		raw("2024-01-08", "2024-01-08", "put", 100, 5),
		raw("2024-01-02", "2024-01-04", "warrant", 100, 1),
	}
	rows[0].RealizedVol = f(0.2)
	rows[1].RealizedVol = f(0.4)

	res, err := Preprocess(rows)
	if err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}

	want := Stats{Input: 8, Skipped: 1, Unresolvable: 1, Expired: 2, Kept: 4, Days: 2, Groups: 3}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}
	if res.Calendar.Len() != 4 {
		t.Errorf("calendar length = %d, want 4", res.Calendar.Len())
	}

	first := res.Snapshots[0]
	if !first.Date.Equal(d("2024-01-02")) {
		t.Fatalf("first snapshot date = %s", first.Date)
	}
	if len(first.Groups) != 2 {
		t.Fatalf("groups on first day = %d, want 2", len(first.Groups))
	}
	if first.Groups[0].TradingDaysToExpiry != 2 || first.Groups[1].TradingDaysToExpiry != 3 {
		t.Errorf("trading days = %d,%d want 2,3",
			first.Groups[0].TradingDaysToExpiry, first.Groups[1].TradingDaysToExpiry)
	}
	if first.RealizedVol == nil || math.Abs(*first.RealizedVol-0.3) > 1e-12 {
		t.Errorf("realized vol = %v, want 0.3", first.RealizedVol)
	}
	if res.Snapshots[1].RealizedVol != nil {
		t.Error("second day carries no realized vol")
	}
}

func TestPreprocess_NothingUsable(t *testing.T) {
	rows := []models.RawQuote{
		raw("2024-01-02", "2024-01-02", "call", 100, 1),
		{Right: "call"},
	}
	_, err := Preprocess(rows)
	if !apperrors.Is(err, apperrors.ErrNoTradingDays) {
		t.Fatalf("error = %v, want ErrNoTradingDays", err)
	}

	_, err = Preprocess(nil)
	if !apperrors.Is(err, apperrors.ErrNoTradingDays) {
		t.Fatalf("error = %v, want ErrNoTradingDays", err)
	}
}

func TestTradingDaysToExpiry(t *testing.T) {
	cal := calendar.Build([]time.Time{d("2024-01-02"), d("2024-01-03"), d("2024-01-05"), d("2024-01-08")})

	tests := []struct {
		name    string
		date    string
		expiry  string
		want    int
		wantErr error
	}{
		{"trading day expiry", "2024-01-02", "2024-01-05", 2, nil},
		{"weekend expiry rolls forward", "2024-01-02", "2024-01-06", 3, nil},
		{"same day", "2024-01-03", "2024-01-03", 0, nil},
		{"already expired", "2024-01-05", "2024-01-03", -1, nil},
		{"past the calendar", "2024-01-02", "2024-01-09", 0, apperrors.ErrUnresolvableExpiry},
		{"date off calendar", "2024-01-04", "2024-01-08", 0, apperrors.ErrInputFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := models.Quote{Date: d(tt.date), Expiry: d(tt.expiry)}
			got, err := TradingDaysToExpiry(cal, q)
			if tt.wantErr != nil {
				if !apperrors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("days = %d, want %d", got, tt.want)
			}
		})
	}
}
