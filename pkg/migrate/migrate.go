package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where the parkpass schema migrations ship.
const DefaultDir = "pkg/migrate/migrations"

// ParkPass runs on Postgres; sqlite appears only in package tests, which
// build their schema by hand.
const dialect = "postgres"

// Apply runs every pending migration in order.
func Apply(ctx context.Context, db *sql.DB, dir string) error {
	return run(ctx, db, dir, "up")
}

// Rollback undoes the most recently applied migration.
func Rollback(ctx context.Context, db *sql.DB, dir string) error {
	return run(ctx, db, dir, "down")
}

// Status prints applied and pending migrations to stdout (goose internal).
func Status(ctx context.Context, db *sql.DB, dir string) error {
	return run(ctx, db, dir, "status")
}

func run(ctx context.Context, db *sql.DB, dir string, command string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, dir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// To migrates up or down until the schema sits at the target version.
func To(ctx context.Context, db *sql.DB, dir string, target int64) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}
