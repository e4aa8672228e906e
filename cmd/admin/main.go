package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/parkpass/parkpass-backend/internal/ledger"
	"github.com/parkpass/parkpass-backend/internal/qrcodes"
	"github.com/parkpass/parkpass-backend/internal/reconcile"
	"github.com/parkpass/parkpass-backend/internal/roles"
	"github.com/parkpass/parkpass-backend/internal/users"
	"github.com/parkpass/parkpass-backend/pkg/config"
	"github.com/parkpass/parkpass-backend/pkg/db"
	pkgerrors "github.com/parkpass/parkpass-backend/pkg/errors"
	"github.com/parkpass/parkpass-backend/pkg/logger"
)

// admin runs one idempotent administrative operation and exits. These commands
// bypass the authorization engine; deployment tooling must gate who can invoke
// them.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "admin"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "", "operation: role-seed|role-delete|reconcile|qr-allocate|qr-wipe|balance-audit")
	roleID := flag.String("role-id", "", "role uuid (for role-delete)")
	userID := flag.String("user-id", "", "user uuid (for balance-audit)")
	count := flag.Int("count", 1, "number of codes (for qr-allocate)")
	confirm := flag.Bool("confirm", false, "required for qr-wipe")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	usersRepo := users.NewRepository(dbClient.DB())
	rolesRepo := roles.NewRepository(dbClient.DB())
	rolesvc, err := roles.NewService(dbClient, rolesRepo, usersRepo, logg)
	requireResource(ctx, logg, "roles service", err)

	switch *cmd {
	case "role-seed":
		if err := rolesvc.SeedSystemRoles(ctx); err != nil {
			fail(ctx, logg, "seeding system roles", err)
		}
		fmt.Println("system roles seeded")

	case "role-delete":
		id, err := uuid.Parse(*roleID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -role-id:", err)
			os.Exit(1)
		}
		detached, err := rolesvc.DeleteRole(ctx, id)
		if err != nil {
			fail(ctx, logg, "deleting role", err)
		}
		fmt.Printf("role deleted, %d users detached\n", detached)

	case "reconcile":
		job, err := reconcile.NewJob(usersRepo, rolesRepo, rolesvc, nil, logg, cfg.Reconcile)
		requireResource(ctx, logg, "reconcile job", err)
		result, err := job.Reconcile(ctx)
		if err != nil {
			fail(ctx, logg, "reconciling orphans", err)
		}
		fmt.Printf("linked=%d still_orphaned=%d\n", result.Linked, result.StillOrphaned)

	case "qr-allocate":
		svc := newQRService(ctx, logg, dbClient, cfg)
		codes, err := svc.AllocateBatch(ctx, *count)
		if err != nil {
			fail(ctx, logg, "allocating codes", err)
		}
		for _, code := range codes {
			fmt.Println(code.Serial)
		}

	case "qr-wipe":
		if !*confirm {
			fmt.Fprintln(os.Stderr, "qr-wipe destroys the entire inventory; pass -confirm to proceed")
			os.Exit(1)
		}
		svc := newQRService(ctx, logg, dbClient, cfg)
		wiped, err := svc.WipeAll(ctx)
		if err != nil {
			fail(ctx, logg, "wiping inventory", err)
		}
		fmt.Printf("wiped %d codes, serials restart at 1\n", wiped)

	case "balance-audit":
		id, err := uuid.Parse(*userID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -user-id:", err)
			os.Exit(1)
		}
		ledgerRepo := ledger.NewRepository(dbClient.DB())
		svc, err := ledger.NewService(dbClient, ledgerRepo, usersRepo, nil, nil, logg, cfg.Ledger)
		requireResource(ctx, logg, "ledger service", err)
		result, err := svc.RecomputeBalance(ctx, id)
		if err != nil {
			fail(ctx, logg, "auditing balance", err)
		}
		fmt.Printf("balance=%d previous=%d drift=%d\n", result.Balance, result.Previous, result.Drift)

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func newQRService(ctx context.Context, logg *logger.Logger, dbClient *db.Client, cfg *config.Config) qrcodes.Service {
	repo := qrcodes.NewRepository(dbClient.DB())
	if err := repo.EnsureSequence(ctx); err != nil {
		fail(ctx, logg, "ensuring serial sequence", err)
	}
	svc, err := qrcodes.NewService(dbClient, repo, nil, logg, cfg.QR)
	requireResource(ctx, logg, "qr service", err)
	return svc
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(withDiagnostics(ctx, logg, err), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func fail(ctx context.Context, logg *logger.Logger, action string, err error) {
	logg.Error(withDiagnostics(ctx, logg, err), action+" failed", err)
	os.Exit(1)
}

// withDiagnostics flattens the error chain into log fields, surfacing the
// postgres constraint details an operator needs to triage a failed command.
func withDiagnostics(ctx context.Context, logg *logger.Logger, err error) context.Context {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{"chain": dump.Chain}
	if dump.Code != "" {
		fields["code"] = string(dump.Code)
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_constraint"] = dump.PGConstraint
		fields["pg_table"] = dump.PGTable
		fields["pg_detail"] = dump.PGDetail
	}
	return logg.WithFields(ctx, fields)
}
