// Package store persists index runs and their series.
package store

import (
	"context"
	"time"

	"cnvix/internal/models"
)

// Run describes one engine execution and its parameters.
type Run struct {
	ID                 int64                     `json:"id"`
	CreatedAt          time.Time                 `json:"created_at"`
	Source             string                    `json:"source"`
	RiskFreeRate       float64                   `json:"risk_free_rate"`
	TradingDaysPerYear float64                   `json:"trading_days_per_year"`
	TargetTradingDays  int                       `json:"target_trading_days"`
	Days               int                       `json:"days"`
	Points             int                       `json:"points"`
	UnusableMaturities int                       `json:"unusable_maturities"`
	InputRows          int                       `json:"input_rows"`
	SkippedRows        int                       `json:"skipped_rows"`
	Skipped            map[models.SkipReason]int `json:"skipped"`
}

// DateRange bounds a point query; zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// SeriesStore defines the interface for index persistence.
type SeriesStore interface {
	SaveRun(ctx context.Context, run *Run, points []models.IndexPoint, skipped []models.SkippedDay) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetPoints(ctx context.Context, runID int64, dateRange DateRange) ([]models.IndexPoint, error)
	GetSkippedDays(ctx context.Context, runID int64) ([]models.SkippedDay, error)
	Close() error
}
