package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "cnvix/internal/errors"
	"cnvix/internal/models"
	"cnvix/internal/performance"
	"cnvix/pkg/utils"
)

const insertBatchSize = 200

// SQLiteStore implements SeriesStore using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry utils.RetryConfig
}

var _ SeriesStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	retry := utils.DefaultRetryConfig()
	retry.Retryable = isBusy

	store := &SQLiteStore{db: db, retry: retry}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		source TEXT,
		risk_free_rate REAL NOT NULL,
		trading_days_per_year REAL NOT NULL,
		target_trading_days INTEGER NOT NULL,
		days INTEGER NOT NULL,
		points INTEGER NOT NULL,
		unusable_maturities INTEGER NOT NULL,
		input_rows INTEGER NOT NULL,
		skipped_rows INTEGER NOT NULL,
		skipped TEXT
	);

	CREATE TABLE IF NOT EXISTS index_points (
		run_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		cnvix REAL NOT NULL,
		realized_vol REAL,
		PRIMARY KEY (run_id, date),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS skipped_days (
		run_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (run_id, date),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_index_points_date ON index_points(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a run with its points and skipped days in one
// transaction and returns the new run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, points []models.IndexPoint, skipped []models.SkippedDay) (int64, error) {
	var id int64
	err := utils.Retry(ctx, s.retry, func() error {
		var err error
		id, err = s.saveRun(ctx, run, points, skipped)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err)
	}
	run.ID = id
	return id, nil
}

func (s *SQLiteStore) saveRun(ctx context.Context, run *Run, points []models.IndexPoint, skipped []models.SkippedDay) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	skippedJSON, _ := json.Marshal(run.Skipped)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (created_at, source, risk_free_rate, trading_days_per_year, target_trading_days,
			days, points, unusable_maturities, input_rows, skipped_rows, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.CreatedAt.Format(time.RFC3339Nano), run.Source, run.RiskFreeRate, run.TradingDaysPerYear,
		run.TargetTradingDays, run.Days, run.Points, run.UnusableMaturities, run.InputRows, run.SkippedRows,
		string(skippedJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	pointBatch := performance.NewBatchProcessor(insertBatchSize, func(batch []models.IndexPoint) error {
		return insertPoints(ctx, tx, id, batch)
	})
	for _, p := range points {
		if err := pointBatch.Add(p); err != nil {
			return 0, err
		}
	}
	if err := pointBatch.Flush(); err != nil {
		return 0, err
	}

	skipBatch := performance.NewBatchProcessor(insertBatchSize, func(batch []models.SkippedDay) error {
		return insertSkipped(ctx, tx, id, batch)
	})
	for _, d := range skipped {
		if err := skipBatch.Add(d); err != nil {
			return 0, err
		}
	}
	if err := skipBatch.Flush(); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, runID int64, batch []models.IndexPoint) error {
	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*4)
	for _, p := range batch {
		placeholders = append(placeholders, "(?, ?, ?, ?)")
		var rv interface{}
		if p.RealizedVol != nil {
			rv = *p.RealizedVol
		}
		args = append(args, runID, utils.FormatDate(p.Date), p.CNVIX, rv)
	}
	query := "INSERT INTO index_points (run_id, date, cnvix, realized_vol) VALUES " + strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert index points: %w", err)
	}
	return nil
}

func insertSkipped(ctx context.Context, tx *sql.Tx, runID int64, batch []models.SkippedDay) error {
	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*3)
	for _, d := range batch {
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, runID, utils.FormatDate(d.Date), string(d.Reason))
	}
	query := "INSERT INTO skipped_days (run_id, date, reason) VALUES " + strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert skipped days: %w", err)
	}
	return nil
}

const runColumns = `id, created_at, source, risk_free_rate, trading_days_per_year, target_trading_days,
	days, points, unusable_maturities, input_rows, skipped_rows, skipped`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var createdAt string
	var source, skipped sql.NullString
	if err := row.Scan(&r.ID, &createdAt, &source, &r.RiskFreeRate, &r.TradingDaysPerYear,
		&r.TargetTradingDays, &r.Days, &r.Points, &r.UnusableMaturities, &r.InputRows,
		&r.SkippedRows, &skipped); err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.Source = source.String
	r.Skipped = make(map[models.SkipReason]int)
	if skipped.Valid && skipped.String != "" {
		_ = json.Unmarshal([]byte(skipped.String), &r.Skipped)
	}
	return &r, nil
}

// GetRun returns the run with the given ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrapf(apperrors.ErrRunNotFound, "run %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently stored run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT 1")
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrap(apperrors.ErrRunNotFound, "no runs stored")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns stored runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetPoints returns a run's index points in date order.
func (s *SQLiteStore) GetPoints(ctx context.Context, runID int64, dateRange DateRange) ([]models.IndexPoint, error) {
	query := "SELECT date, cnvix, realized_vol FROM index_points WHERE run_id = ?"
	args := []interface{}{runID}
	if !dateRange.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, utils.FormatDate(dateRange.From))
	}
	if !dateRange.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, utils.FormatDate(dateRange.To))
	}
	query += " ORDER BY date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index points: %w", err)
	}
	defer rows.Close()

	var points []models.IndexPoint
	for rows.Next() {
		var date string
		var p models.IndexPoint
		var rv sql.NullFloat64
		if err := rows.Scan(&date, &p.CNVIX, &rv); err != nil {
			return nil, fmt.Errorf("failed to scan index point: %w", err)
		}
		if p.Date, err = utils.ParseDate(date); err != nil {
			return nil, fmt.Errorf("corrupt index point date: %w", err)
		}
		if rv.Valid {
			v := rv.Float64
			p.RealizedVol = &v
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index points: %w", err)
	}
	return points, nil
}

// GetSkippedDays returns the days a run produced no index value for.
func (s *SQLiteStore) GetSkippedDays(ctx context.Context, runID int64) ([]models.SkippedDay, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, reason FROM skipped_days WHERE run_id = ? ORDER BY date ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped days: %w", err)
	}
	defer rows.Close()

	var days []models.SkippedDay
	for rows.Next() {
		var date, reason string
		if err := rows.Scan(&date, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan skipped day: %w", err)
		}
		d, err := utils.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("corrupt skipped day date: %w", err)
		}
		days = append(days, models.SkippedDay{Date: d, Reason: models.SkipReason(reason)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skipped days: %w", err)
	}
	return days, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isBusy reports whether err is SQLite lock contention worth retrying.
func isBusy(err error) bool {
	var e sqlite3.Error
	return errors.As(err, &e) && (e.Code == sqlite3.ErrBusy || e.Code == sqlite3.ErrLocked)
}
