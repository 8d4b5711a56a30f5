package calendar

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuild_SortsAndDeduplicates(t *testing.T) {
	cal := Build([]time.Time{
		d("2024-01-04"),
		d("2024-01-02"),
		d("2024-01-04").Add(15 * time.Hour),
		d("2024-01-03"),
	})

	if cal.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cal.Len())
	}
	want := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	for i, w := range want {
		if got := cal.Date(i).Format("2006-01-02"); got != w {
			t.Errorf("Date(%d) = %s, want %s", i, got, w)
		}
		idx, ok := cal.Index(d(w))
		if !ok || idx != i {
			t.Errorf("Index(%s) = %d,%v want %d,true", w, idx, ok, i)
		}
	}
}

func TestResolve(t *testing.T) {
	// Friday, Monday, Tuesday with a weekend gap.
	cal := Build([]time.Time{d("2024-03-01"), d("2024-03-04"), d("2024-03-05")})

	tests := []struct {
		name   string
		date   string
		want   int
		wantOK bool
	}{
		{"exact first", "2024-03-01", 0, true},
		{"exact last", "2024-03-05", 2, true},
		{"weekend maps to next trading day", "2024-03-02", 1, true},
		{"before calendar maps to first", "2024-02-20", 0, true},
		{"after calendar is unresolvable", "2024-03-06", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cal.Resolve(d(tt.date))
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%s) ok = %v, want %v", tt.date, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Resolve(%s) = %d, want %d", tt.date, got, tt.want)
			}
		})
	}
}

func TestEmptyCalendar(t *testing.T) {
	cal := Build(nil)
	if cal.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", cal.Len())
	}
	if _, ok := cal.Resolve(d("2024-01-01")); ok {
		t.Error("Resolve on empty calendar should fail")
	}
	if !cal.First().IsZero() || !cal.Last().IsZero() {
		t.Error("First/Last on empty calendar should be zero")
	}
}

func TestProperty_IndicesDenseAndIncreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	base := d("2020-01-01")

	properties.Property("calendar dates strictly increase and indices are dense", prop.ForAll(
		func(offsets []int) bool {
			dates := make([]time.Time, len(offsets))
			for i, o := range offsets {
				dates[i] = base.AddDate(0, 0, o)
			}
			cal := Build(dates)
			for i := 0; i < cal.Len(); i++ {
				if i > 0 && !cal.Date(i).After(cal.Date(i-1)) {
					return false
				}
				if idx, ok := cal.Index(cal.Date(i)); !ok || idx != i {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 400)),
	))

	properties.Property("resolve never maps a date to an earlier trading day", prop.ForAll(
		func(offsets []int, probe int) bool {
			if len(offsets) == 0 {
				return true
			}
			dates := make([]time.Time, len(offsets))
			for i, o := range offsets {
				dates[i] = base.AddDate(0, 0, o)
			}
			cal := Build(dates)
			date := base.AddDate(0, 0, probe)
			i, ok := cal.Resolve(date)
			if !ok {
				return date.After(cal.Last())
			}
			if cal.Date(i).Before(date) {
				return false
			}
			return i == 0 || cal.Date(i-1).Before(date)
		},
		gen.SliceOfN(20, gen.IntRange(0, 100)),
		gen.IntRange(-10, 110),
	))

	properties.TestingRun(t)
}
