package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if ValidLevel(tt.in) != (tt.in != "bogus") {
			t.Errorf("ValidLevel(%q) wrong", tt.in)
		}
	}
}

func TestNewLoggerWithConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cnvix.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level:    "debug",
		File:     true,
		FilePath: path,
		MaxSize:  1,
	})
	logger.Debug().Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestNewLoggerWithConfig_LevelFilters(t *testing.T) {
	logger := NewLoggerWithConfig(LogConfig{Level: "warn"})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}
}

func TestHelpers(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	LogSkippedDay(WithDate(logger, date), date, "negative_variance", 2)
	entry := decode(t, &buf)
	if entry["date"] != "2024-01-02" || entry["reason"] != "negative_variance" || entry["level"] != "debug" {
		t.Errorf("skipped day entry = %v", entry)
	}

	buf.Reset()
	LogIndexPoint(WithOperation(logger, "compute"), date, 20, 20, 40)
	entry = decode(t, &buf)
	if entry["operation"] != "compute" || entry["cnvix"] != 20.0 || entry["event"] != "index_point" {
		t.Errorf("index point entry = %v", entry)
	}

	buf.Reset()
	LogUnusableMaturity(logger, date, errors.New("no puts"))
	entry = decode(t, &buf)
	if entry["error"] != "no puts" || entry["expiry"] != "2024-01-02" {
		t.Errorf("unusable maturity entry = %v", entry)
	}

	buf.Reset()
	LogRunSummary(logger, 10, 8, 2, 3, 4, 10, time.Second)
	entry = decode(t, &buf)
	if entry["level"] != "info" || entry["points"] != 8.0 || entry["skipped_days"] != 2.0 || entry["tasks"] != 10.0 {
		t.Errorf("summary entry = %v", entry)
	}

	buf.Reset()
	LogPreprocess(logger, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), 100, 1, 2, 3, 94, 5)
	entry = decode(t, &buf)
	if entry["kept"] != 94.0 || entry["days"] != 5.0 || entry["first"] != "2024-01-02" || entry["last"] != "2024-01-08" {
		t.Errorf("preprocess entry = %v", entry)
	}
}
