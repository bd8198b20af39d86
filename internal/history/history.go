// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package history records backup runs in a SQL database through Bun.
// SQLite (modernc), PostgreSQL (pgx) and MySQL are supported. Device
// passwords and backup passwords are never stored.
package history // import "github.com/toeirei/mikrobak/internal/history"

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/toeirei/mikrobak/internal/logging"
	"github.com/toeirei/mikrobak/internal/model"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrUnsupportedType is returned by Open for an unknown database type.
var ErrUnsupportedType = errors.New("unsupported history database type")

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

// Store persists runs and their per-device results.
type Store struct {
	db     *bun.DB
	dbType string
}

// Open connects to the database and creates the history tables when they
// do not exist yet.
func Open(ctx context.Context, dbType, dsn string) (*Store, error) {
	var driverName string
	switch dbType {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		// The pgx stdlib registers driver name "pgx".
		driverName = "pgx"
	case "mysql":
		driverName = "mysql"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, dbType)
	}

	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// In-memory SQLite databases exist per connection.
	if dbType == "sqlite" && (dsn == ":memory:" || strings.Contains(dsn, "mode=memory")) {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	s := &Store{db: createBunDB(sqlDB, dbType), dbType: dbType}
	if err := s.createSchema(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	logging.Debugf("history: opened %s database", dbType)
	return s, nil
}

func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, m := range []any{(*runModel)(nil), (*resultModel)(nil)} {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the report and all of its results in one transaction.
func (s *Store) Record(ctx context.Context, r model.Report) error {
	run := runFromReport(r)
	results := make([]resultModel, len(r.Results))
	for i, res := range r.Results {
		results[i] = resultFromModel(r.ID, i, res)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&run).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
		}
		if len(results) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&results).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert results for run %s: %w", r.ID, err)
		}
		return nil
	})
}

// Recent returns up to limit runs, newest first. A limit below 1 returns
// every run.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	var rows []runModel
	q := s.db.NewSelect().Model(&rows).OrderExpr("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]Run, len(rows))
	for i, row := range rows {
		out[i] = row.toRun()
	}
	return out, nil
}

// Results returns the device results of one run in dispatch order. Passwords
// are never stored, so the returned params carry empty password fields.
func (s *Store) Results(ctx context.Context, runID string) ([]model.Result, error) {
	var rows []resultModel
	err := s.db.NewSelect().Model(&rows).Where("run_id = ?", runID).OrderExpr("seq ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load results for run %s: %w", runID, err)
	}
	out := make([]model.Result, len(rows))
	for i, row := range rows {
		out[i] = row.toResult()
	}
	return out, nil
}

// Run summarizes one recorded run.
type Run struct {
	ID          string
	Selection   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Devices     int
	Succeeded   int
	Failed      int
	GroupErrors []string
}
