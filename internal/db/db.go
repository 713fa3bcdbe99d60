// Package db opens the configuration database and makes sure its schema and
// default rows exist.
package db

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver: sqlite
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const defaultSQLiteDSN = "file:edurating.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ParseDriver maps a configuration value to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case DriverSQLite:
		return DriverSQLite, nil
	case DriverPostgres, "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, s)
}

// Open connects, ensures the schema and seeds default rows into empty tables.
func Open(ctx context.Context, driver Driver, dsn string) (*sqlx.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			return nil, fmt.Errorf("%w: postgres requires a dsn", ErrMissingDSN)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	conn, err := sqlx.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// every pooled connection would get its own empty database
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := Migrate(ctx, conn, driver); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := Seed(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates missing tables. It is safe to run repeatedly.
func Migrate(ctx context.Context, conn *sqlx.DB, driver Driver) error {
	var stmts []string
	switch driver {
	case DriverSQLite:
		stmts = schemaSQLite
	case DriverPostgres:
		stmts = schemaPostgres
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Seed inserts the default growth thresholds and the default survey
// response workflow when they are missing.
func Seed(ctx context.Context, conn *sqlx.DB) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM growth_bonus_configs`); err != nil {
		return fmt.Errorf("seed: count growth rules: %w", err)
	}
	if n == 0 {
		for _, r := range defaultGrowthRows {
			if _, err := tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO growth_bonus_configs (threshold_min, threshold_max, bonus_score, is_active) VALUES (?, ?, ?, ?)`),
				r.min, r.max, r.bonus, true); err != nil {
				return fmt.Errorf("seed: growth rule: %w", err)
			}
		}
	}

	if err := tx.GetContext(ctx, &n, tx.Rebind(
		`SELECT COUNT(*) FROM approval_workflows WHERE workflow_type = ?`), defaultWorkflowType); err != nil {
		return fmt.Errorf("seed: count workflows: %w", err)
	}
	if n == 0 {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO approval_workflows (workflow_type, name, status, approval_chain, workflow_config) VALUES (?, ?, ?, ?, ?)`),
			defaultWorkflowType, defaultWorkflowName, "active", defaultWorkflowChain, defaultWorkflowConfig); err != nil {
			return fmt.Errorf("seed: workflow: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}
