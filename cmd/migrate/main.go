package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/parkpass/parkpass-backend/pkg/config"
	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/logger"
	"github.com/parkpass/parkpass-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// create and validate work on the migration files alone.
	switch *cmd {
	case "create":
		if *name == "" {
			exitUsage("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exitErr("create migration", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exitErr("validate migrations", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to access sql database", err)
		os.Exit(1)
	}

	logg.Info(ctx, "running migration command")
	if err := dispatch(ctx, sqlDB, *cmd, *dir, *version); err != nil {
		exitErr(*cmd, err)
	}
}

func dispatch(ctx context.Context, sqlDB *sql.DB, cmd, dir, version string) error {
	switch cmd {
	case "up":
		return migrate.Apply(ctx, sqlDB, dir)
	case "down":
		return migrate.Rollback(ctx, sqlDB, dir)
	case "status":
		return migrate.Status(ctx, sqlDB, dir)
	case "version":
		if version == "" {
			exitUsage("missing -version for version command")
		}
		target, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
		}
		return migrate.To(ctx, sqlDB, dir, target)
	default:
		exitUsage("unknown -cmd value: " + cmd)
		return nil
	}
}

func exitUsage(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func exitErr(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", action, err)
	os.Exit(1)
}
