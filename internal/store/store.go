// Package store keeps the accuracy summary and forecast series in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"forecast-dashboard/internal/models"
	"forecast-dashboard/internal/services"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store implements services.SummarySource and services.SeriesLoader.
type Store struct {
	db *sql.DB
}

var (
	_ services.SummarySource = (*Store)(nil)
	_ services.SeriesLoader  = (*Store)(nil)
)

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accuracy_summary (
			position INTEGER NOT NULL,
			store_id INTEGER NOT NULL,
			dept_id INTEGER NOT NULL,
			mape REAL NOT NULL,
			rmse REAL NOT NULL,
			PRIMARY KEY (store_id, dept_id)
		);`,
		`CREATE TABLE IF NOT EXISTS forecast_points (
			store_id INTEGER NOT NULL,
			dept_id INTEGER NOT NULL,
			ds TEXT NOT NULL,
			actual REAL,
			forecast REAL NOT NULL,
			PRIMARY KEY (store_id, dept_id, ds)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadSummary returns the summary rows in the order they were stored.
func (s *Store) LoadSummary(ctx context.Context) ([]models.AccuracySummaryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id, dept_id, mape, rmse FROM accuracy_summary ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AccuracySummaryRow
	for rows.Next() {
		var r models.AccuracySummaryRow
		if err := rows.Scan(&r.StoreID, &r.DeptID, &r.MAPE, &r.RMSE); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LoadSeries(ctx context.Context, storeID, deptID int) (models.ForecastSeries, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ds, actual, forecast FROM forecast_points
		 WHERE store_id = ? AND dept_id = ?
		 ORDER BY ds`, storeID, deptID)
	if err != nil {
		return models.ForecastSeries{}, err
	}
	defer rows.Close()

	var points []models.ForecastPoint
	for rows.Next() {
		var (
			ds     string
			actual sql.NullFloat64
			p      models.ForecastPoint
		)
		if err := rows.Scan(&ds, &actual, &p.Forecast); err != nil {
			return models.ForecastSeries{}, err
		}
		p.Date, err = models.ParseDate(ds)
		if err != nil {
			return models.ForecastSeries{}, fmt.Errorf("%w: store %d dept %d: %v", services.ErrMalformedData, storeID, deptID, err)
		}
		if actual.Valid {
			v := actual.Float64
			p.Actual = &v
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return models.ForecastSeries{}, err
	}

	if len(points) == 0 {
		return models.ForecastSeries{}, fmt.Errorf("%w: no series for store %d dept %d", services.ErrNotFound, storeID, deptID)
	}

	points, err = services.NormalizePoints(points)
	if err != nil {
		return models.ForecastSeries{}, err
	}
	return models.ForecastSeries{StoreID: storeID, DeptID: deptID, Points: points}, nil
}

// ReplaceSummary swaps the whole summary table in one transaction.
func (s *Store) ReplaceSummary(ctx context.Context, rows []models.AccuracySummaryRow) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM accuracy_summary`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO accuracy_summary (position, store_id, dept_id, mape, rmse) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err = stmt.ExecContext(ctx, i, r.StoreID, r.DeptID, r.MAPE, r.RMSE); err != nil {
			return fmt.Errorf("insert summary %s: %w", r.Key(), err)
		}
	}
	return tx.Commit()
}

// ReplaceSeries swaps the stored points of one pair in one transaction.
func (s *Store) ReplaceSeries(ctx context.Context, series models.ForecastSeries) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM forecast_points WHERE store_id = ? AND dept_id = ?`,
		series.StoreID, series.DeptID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO forecast_points (store_id, dept_id, ds, actual, forecast) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range series.Points {
		var actual sql.NullFloat64
		if p.Actual != nil {
			actual = sql.NullFloat64{Float64: *p.Actual, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, series.StoreID, series.DeptID,
			p.Date.Format(models.DateLayout), actual, p.Forecast); err != nil {
			return fmt.Errorf("insert point %s: %w", p.Date.Format(models.DateLayout), err)
		}
	}
	return tx.Commit()
}
