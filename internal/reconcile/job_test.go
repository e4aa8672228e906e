package reconcile

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/parkpass/parkpass-backend/internal/authz"
	"github.com/parkpass/parkpass-backend/internal/roles"
	"github.com/parkpass/parkpass-backend/internal/users"
	"github.com/parkpass/parkpass-backend/pkg/config"
	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	"github.com/parkpass/parkpass-backend/pkg/enums"
)

func rolesWithName(name string) []models.AccessRole {
	return []models.AccessRole{{Name: name}}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	stmts := []string{
		`CREATE TABLE access_roles (
    id text PRIMARY KEY,
    name text NOT NULL,
    description text,
    is_system boolean NOT NULL DEFAULT false,
    created_at datetime,
    updated_at datetime
);`,
		`CREATE UNIQUE INDEX uq_access_roles_name ON access_roles (name);`,
		`CREATE TABLE permissions (
    id text PRIMARY KEY,
    access_role_id text NOT NULL,
    resource text NOT NULL,
    actions text NOT NULL,
    created_at datetime,
    updated_at datetime
);`,
		`CREATE UNIQUE INDEX uq_permissions_role_resource ON permissions (access_role_id, resource);`,
		`CREATE TABLE users (
    id text PRIMARY KEY,
    email text NOT NULL UNIQUE,
    display_name text NOT NULL,
    base_role text NOT NULL DEFAULT 'standard',
    access_role_id text,
    credit_balance integer NOT NULL DEFAULT 0,
    created_at datetime,
    updated_at datetime
);`,
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	return conn
}

type fixture struct {
	conn      *gorm.DB
	usersRepo *users.Repository
	rolesRepo *roles.Repository
	rolesvc   roles.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := newTestDB(t)
	usersRepo := users.NewRepository(conn)
	rolesRepo := roles.NewRepository(conn)
	rolesvc, err := roles.NewService(db.NewFromConn(conn), rolesRepo, usersRepo, nil)
	if err != nil {
		t.Fatalf("roles service: %v", err)
	}
	return fixture{conn: conn, usersRepo: usersRepo, rolesRepo: rolesRepo, rolesvc: rolesvc}
}

func newJob(t *testing.T, f fixture, cfg config.ReconcileConfig) *Job {
	t.Helper()
	job, err := NewJob(f.usersRepo, f.rolesRepo, f.rolesvc, nil, nil, cfg)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func TestReconcileLinksByDisplayName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.rolesvc.CreateRole(ctx, roles.CreateRoleInput{Name: "Jane Ops Custom"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if _, err := f.rolesvc.GrantPermission(ctx, roles.GrantPermissionInput{
		RoleID:   role.ID,
		Resource: "qrcodes",
		Actions:  []string{"read"},
	}); err != nil {
		t.Fatalf("grant permission: %v", err)
	}

	jane, err := f.usersRepo.Create(ctx, users.CreateUserDTO{
		Email:       "jane@example.com",
		DisplayName: "Jane (Ops)",
		BaseRole:    enums.BaseRoleElevated,
	})
	if err != nil {
		t.Fatalf("create orphan: %v", err)
	}

	job := newJob(t, f, config.ReconcileConfig{BatchLimit: 100})
	result, err := job.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Linked != 1 || result.StillOrphaned != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	// The linked user now answers through the role's actual permission set,
	// not implicit elevation.
	authzSvc, err := authz.NewService(f.usersRepo, f.rolesRepo, nil)
	if err != nil {
		t.Fatalf("authz service: %v", err)
	}
	decision, err := authzSvc.Authorize(ctx, jane.ID, "qrcodes", "read")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow after linking, got %+v", decision)
	}
	decision, err = authzSvc.Authorize(ctx, jane.ID, "qrcodes", "wipe")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected deny for ungranted action, got %+v", decision)
	}

	// Re-running is a no-op for linked users.
	result, err = job.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if result.Linked != 0 || result.StillOrphaned != 0 {
		t.Fatalf("expected idempotent rerun, got %+v", result)
	}
}

func TestReconcileIgnoresSystemRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.rolesvc.CreateRole(ctx, roles.CreateRoleInput{Name: "Jane Platform", IsSystem: true}); err != nil {
		t.Fatalf("create system role: %v", err)
	}
	if _, err := f.usersRepo.Create(ctx, users.CreateUserDTO{
		Email:       "jane@example.com",
		DisplayName: "Jane (Ops)",
		BaseRole:    enums.BaseRoleElevated,
	}); err != nil {
		t.Fatalf("create orphan: %v", err)
	}

	job := newJob(t, f, config.ReconcileConfig{BatchLimit: 100})
	result, err := job.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Linked != 0 || result.StillOrphaned != 1 {
		t.Fatalf("system roles must not match, got %+v", result)
	}
}

func TestReconcileFallbackRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unmatched, err := f.usersRepo.Create(ctx, users.CreateUserDTO{
		Email:       "ghost@example.com",
		DisplayName: "Ghost Operator",
		BaseRole:    enums.BaseRoleElevated,
	})
	if err != nil {
		t.Fatalf("create orphan: %v", err)
	}

	// Without a configured fallback the user stays orphaned.
	job := newJob(t, f, config.ReconcileConfig{BatchLimit: 100})
	result, err := job.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.StillOrphaned != 1 {
		t.Fatalf("expected still orphaned, got %+v", result)
	}

	// With a fallback, the role is created lazily with zero permissions.
	job = newJob(t, f, config.ReconcileConfig{BatchLimit: 100, FallbackRole: "quarantine"})
	result, err = job.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile with fallback: %v", err)
	}
	if result.Linked != 1 || result.StillOrphaned != 0 {
		t.Fatalf("expected fallback link, got %+v", result)
	}

	fallback, err := f.rolesRepo.FindByName(ctx, "quarantine")
	if err != nil {
		t.Fatalf("find fallback: %v", err)
	}
	permissions, err := f.rolesRepo.ListPermissions(ctx, fallback.ID)
	if err != nil {
		t.Fatalf("list permissions: %v", err)
	}
	if len(permissions) != 0 {
		t.Fatalf("fallback role must hold zero permissions, got %d", len(permissions))
	}

	// Zero permissions means still denied everything.
	authzSvc, err := authz.NewService(f.usersRepo, f.rolesRepo, nil)
	if err != nil {
		t.Fatalf("authz service: %v", err)
	}
	decision, err := authzSvc.Authorize(ctx, unmatched.ID, "ledger", "read")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("fallback-bound user must still be denied, got %+v", decision)
	}
}

func TestMatchRole(t *testing.T) {
	candidates := []struct {
		display string
		role    string
		match   bool
	}{
		{"Jane (Ops)", "Jane Ops Custom", true},
		{"JANE", "jane ops", true},
		{"Operations Team Lead", "operations", true},
		{"Bob", "warehouse", false},
		{"(all parenthetical)", "anything", false},
	}
	for _, tc := range candidates {
		roleModels := rolesWithName(tc.role)
		got := matchRole(tc.display, roleModels)
		if tc.match && got == nil {
			t.Fatalf("expected %q to match %q", tc.display, tc.role)
		}
		if !tc.match && got != nil {
			t.Fatalf("expected %q to not match %q", tc.display, tc.role)
		}
	}
}
