package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"forecastd/internal/forecast"
)

// ErrNotFound is returned when no record exists for the requested date.
var ErrNotFound = errors.New("no forecast record for date")

const schemaSQL = `CREATE TABLE IF NOT EXISTS forecast (
	date           INTEGER PRIMARY KEY,
	condition_code INTEGER NOT NULL,
	min_temp_c     REAL NOT NULL,
	max_temp_c     REAL NOT NULL,
	humidity       REAL NOT NULL,
	wind_speed     REAL NOT NULL,
	wind_deg       REAL NOT NULL,
	pressure       REAL NOT NULL
)`

type Config struct {
	Path string
}

// SQLiteStore is the durable forecast store, one row per normalized date.
// The date column holds the Unix seconds of the record's midnight-UTC key.
type SQLiteStore struct {
	db *sql.DB
}

var _ forecast.Store = (*SQLiteStore)(nil)

func New(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: database path is empty")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// BulkInsert writes all records in one transaction with insert-or-replace
// semantics, so a record sharing a date with an existing row overwrites it.
func (s *SQLiteStore) BulkInsert(ctx context.Context, records []forecast.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO forecast
		(date, condition_code, min_temp_c, max_temp_c, humidity, wind_speed, wind_deg, pressure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	for _, r := range records {
		key := forecast.NormalizeDate(r.Date).Unix()
		if _, err := stmt.ExecContext(ctx, key, r.ConditionCode, r.MinTempC, r.MaxTempC,
			r.Humidity, r.WindSpeed, r.WindDeg, r.Pressure); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("sqlite: insert record %s: %w", r.Date.Format("2006-01-02"), err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// DeleteBefore removes records dated strictly earlier than date and reports
// how many were removed.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, date time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forecast WHERE date < ?`,
		forecast.NormalizeDate(date).Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete before: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CountFrom(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forecast WHERE date >= ?`,
		forecast.NormalizeDate(date).Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count from: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetByDate(ctx context.Context, date time.Time) (forecast.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT date, condition_code, min_temp_c, max_temp_c,
		humidity, wind_speed, wind_deg, pressure FROM forecast WHERE date = ?`,
		forecast.NormalizeDate(date).Unix())

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return forecast.Record{}, ErrNotFound
	}
	if err != nil {
		return forecast.Record{}, fmt.Errorf("sqlite: get by date: %w", err)
	}
	return rec, nil
}

// GetFrom returns records dated at or after date, ascending by date.
func (s *SQLiteStore) GetFrom(ctx context.Context, date time.Time) ([]forecast.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, condition_code, min_temp_c, max_temp_c,
		humidity, wind_speed, wind_deg, pressure FROM forecast WHERE date >= ? ORDER BY date ASC`,
		forecast.NormalizeDate(date).Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite: get from: %w", err)
	}
	defer rows.Close()

	var records []forecast.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows err: %w", err)
	}
	return records, nil
}

func scanRecord(scan func(dest ...any) error) (forecast.Record, error) {
	var rec forecast.Record
	var unix int64
	if err := scan(&unix, &rec.ConditionCode, &rec.MinTempC, &rec.MaxTempC,
		&rec.Humidity, &rec.WindSpeed, &rec.WindDeg, &rec.Pressure); err != nil {
		return forecast.Record{}, err
	}
	rec.Date = time.Unix(unix, 0).UTC()
	return rec, nil
}
