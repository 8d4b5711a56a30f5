package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"cnvix/internal/models"
	"cnvix/internal/store"
	"cnvix/internal/testutil"
	"cnvix/pkg/utils"
)

const quietConfig = `
[log]
console = false
`

// newWorkspace returns a temp dir holding a quiet config directory.
func newWorkspace(t *testing.T) (dir, configDir string) {
	t.Helper()
	dir = t.TempDir()
	configDir = filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(quietConfig), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, configDir
}

func run(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// writeQuotes writes a vendor-format quote file with 30 computable days
// followed by 30 days that only carry same-day expiries.
func writeQuotes(t *testing.T, path string) {
	t.Helper()
	var days []time.Time
	for d := testutil.Date("2024-01-01"); len(days) < 60; d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
	}

	var rows []models.RawQuote
	for i, day := range days {
		rv := 0.1 + 0.001*float64(i)
		if i+30 < len(days) {
			rows = append(rows, testutil.RawRows(testutil.FlatGroup(day, days[i+10], 10, 0.04, 0.03, 252), &rv)...)
			rows = append(rows, testutil.RawRows(testutil.FlatGroup(day, days[i+30], 30, 0.04, 0.03, 252), &rv)...)
			continue
		}
		rows = append(rows, testutil.RawRows(testutil.FlatGroup(day, day, 1, 0.04, 0, 252), &rv)...)
	}

	var b strings.Builder
	b.WriteString("date,exe_enddate,exe_mode,exe_price,close,ptmday,underlyinghisvol_30d\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s,%s\n",
			utils.FormatDate(r.Date), utils.FormatDate(r.Expiry), r.Right,
			formatFloat(r.Strike), formatFloat(r.Price), formatFloat(r.RawDaysToExpiry), formatFloat(r.RealizedVol))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestComputeCommand(t *testing.T) {
	dir, configDir := newWorkspace(t)
	input := filepath.Join(dir, "quotes.csv")
	indexPath := filepath.Join(dir, "CNVIX_daily.csv")
	alignedPath := filepath.Join(dir, "CNVIX_vs_realized.csv")
	dbPath := filepath.Join(dir, "cnvix.db")
	writeQuotes(t, input)

	out, err := run(t, configDir, "compute",
		"--input", input, "--output", indexPath, "--aligned", alignedPath,
		"--db", dbPath, "--target", "10", "--workers", "2", "--json")
	if err != nil {
		t.Fatalf("compute: %v\n%s", err, out)
	}

	var result computeResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decoding JSON output: %v\n%s", err, out)
	}
	if result.Stats.Points != 30 {
		t.Errorf("points = %d, want 30", result.Stats.Points)
	}
	if result.Aligned != 20 {
		t.Errorf("aligned = %d, want 20", result.Aligned)
	}
	if result.RunID == 0 {
		t.Error("run was not stored")
	}
	if result.Params.TargetTradingDays != 10 {
		t.Errorf("target = %d, want 10", result.Params.TargetTradingDays)
	}

	lines := readLines(t, indexPath)
	if len(lines) != 31 {
		t.Fatalf("index file has %d lines, want 31", len(lines))
	}
	if !strings.HasPrefix(lines[1], "2024-01-01,20.0000,") {
		t.Errorf("first index row = %q", lines[1])
	}

	lines = readLines(t, alignedPath)
	if len(lines) != 21 {
		t.Fatalf("aligned file has %d lines, want 21", len(lines))
	}
	if lines[0] != "date,CNVIX,underlyinghisvol_30d_shifted" {
		t.Errorf("aligned header = %q", lines[0])
	}
	// Day 0 pairs with the realized value ten trading days later.
	if lines[1] != "2024-01-01,20.0000,0.1100" {
		t.Errorf("first aligned row = %q", lines[1])
	}

	// The stored run re-aligns to the same rows.
	out, err = run(t, configDir, "align", "--db", dbPath, "--json")
	if err != nil {
		t.Fatalf("align: %v\n%s", err, out)
	}
	var rows []alignedRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decoding align output: %v", err)
	}
	if len(rows) != 20 || rows[0].RealizedVolShifted != 0.11 {
		t.Errorf("align rows = %d, first = %+v", len(rows), rows[0])
	}

	out, err = run(t, configDir, "runs", "--db", dbPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "quotes.csv") {
		t.Errorf("runs output missing source:\n%s", out)
	}
}

func TestComputeRequiresInput(t *testing.T) {
	_, configDir := newWorkspace(t)
	if _, err := run(t, configDir, "compute"); err != errNoInput {
		t.Errorf("got %v, want errNoInput", err)
	}
}

func TestAlignRequiresDatabase(t *testing.T) {
	_, configDir := newWorkspace(t)
	if _, err := run(t, configDir, "align"); err != errNoDatabase {
		t.Errorf("got %v, want errNoDatabase", err)
	}
}

func TestAlignListsSkippedDays(t *testing.T) {
	dir, configDir := newWorkspace(t)
	dbPath := filepath.Join(dir, "cnvix.db")

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	var points []models.IndexPoint
	for i, d := range []string{"2024-01-02", "2024-01-03", "2024-01-05", "2024-01-08"} {
		rv := 0.2 + 0.01*float64(i)
		points = append(points, models.IndexPoint{Date: testutil.Date(d), CNVIX: 20, RealizedVol: &rv})
	}
	skipped := []models.SkippedDay{
		{Date: testutil.Date("2024-01-04"), Reason: models.SkipInsufficientMaturities},
	}
	stored := &store.Run{Source: "quotes.csv", TradingDaysPerYear: 252, TargetTradingDays: 2, Days: 5, Points: 4}
	if _, err := s.SaveRun(context.Background(), stored, points, skipped); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	s.Close()

	out, err := run(t, configDir, "align", "--db", dbPath, "--skipped", "--json")
	if err != nil {
		t.Fatalf("align: %v\n%s", err, out)
	}
	var report alignReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding align output: %v\n%s", err, out)
	}
	if len(report.Aligned) != 2 || report.Aligned[0].RealizedVolShifted != 0.22 {
		t.Errorf("aligned = %+v", report.Aligned)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != (skippedRow{Date: "2024-01-04", Reason: "insufficient_maturities"}) {
		t.Errorf("skipped = %+v", report.Skipped)
	}

	out, err = run(t, configDir, "align", "--db", dbPath, "--skipped")
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if !strings.Contains(out, "Skipped days") || !strings.Contains(out, "insufficient_maturities") {
		t.Errorf("text output missing skipped days:\n%s", out)
	}
}

func TestStatsCommand(t *testing.T) {
	dir, configDir := newWorkspace(t)
	path := filepath.Join(dir, "aligned.csv")

	var b strings.Builder
	b.WriteString("date,CNVIX,underlyinghisvol_30d_shifted\n")
	start := testutil.Date("2024-01-01")
	for i := 0; i < 40; i++ {
		v := 15 + float64(i%9)
		fmt.Fprintf(&b, "%s,%.4f,%.4f\n", utils.FormatDate(start.AddDate(0, 0, i)), v, 0.8*v+2)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, configDir, "stats", "--aligned", path)
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Pearson r:        1.0000") {
		t.Errorf("unexpected stats output:\n%s", out)
	}
	if !strings.Contains(out, "99 histogram bins") {
		t.Errorf("missing bin count:\n%s", out)
	}
}

func TestConfigCommands(t *testing.T) {
	_, configDir := newWorkspace(t)

	out, err := run(t, configDir, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != filepath.Join(configDir, "config.toml") {
		t.Errorf("config path = %q", out)
	}

	out, err = run(t, configDir, "config", "validate")
	if err != nil || !strings.Contains(out, "Configuration is valid") {
		t.Errorf("config validate: %v\n%s", err, out)
	}

	out, err = run(t, configDir, "config", "show")
	if err != nil || !strings.Contains(out, "Target days:      30") {
		t.Errorf("config show: %v\n%s", err, out)
	}
}

func TestVersionCommand(t *testing.T) {
	_, configDir := newWorkspace(t)
	out, err := run(t, configDir, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil || v["version"] != Version {
		t.Errorf("version output = %q (%v)", out, err)
	}
}

func TestFormatReasons(t *testing.T) {
	got := FormatReasons(map[models.SkipReason]int{
		models.SkipNegativeVariance:       2,
		models.SkipInsufficientMaturities: 5,
	})
	want := "insufficient_maturities=5 negative_variance=2"
	if got != want {
		t.Errorf("FormatReasons = %q, want %q", got, want)
	}
	if FormatReasons(nil) != "none" {
		t.Error("empty reasons should render as none")
	}
}

func TestFormatOptional(t *testing.T) {
	v := 18.123456
	if got := FormatOptional(&v); got != "18.1235" {
		t.Errorf("FormatOptional = %q", got)
	}
	if FormatOptional(nil) != "-" {
		t.Error("nil should render as -")
	}
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	output := &Output{writer: &buf}
	table := NewTable(output, "Date", "CNVIX").Numeric(1)
	table.AddRow("2024-01-02", "20.0000")
	table.AddRow("2024-01-03", "9.5000", "ignored")
	table.Render()

	want := "Date          CNVIX\n" +
		"----------  -------\n" +
		"2024-01-02  20.0000\n" +
		"2024-01-03   9.5000\n"
	if buf.String() != want {
		t.Errorf("table =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestStripANSI(t *testing.T) {
	if got := stripANSI("\x1b[32mok\x1b[0m done"); got != "ok done" {
		t.Errorf("stripANSI = %q", got)
	}
}
