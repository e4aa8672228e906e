package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	ddl := `
CREATE TABLE users (
    id text PRIMARY KEY,
    email text NOT NULL UNIQUE,
    display_name text NOT NULL,
    base_role text NOT NULL DEFAULT 'standard',
    access_role_id text,
    credit_balance integer NOT NULL DEFAULT 0,
    created_at datetime,
    updated_at datetime
);`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return conn
}

func TestRepositoryCreateAndFind(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:       "driver@example.com",
		DisplayName: "Driver One",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.BaseRole != enums.BaseRoleStandard {
		t.Fatalf("expected default base role, got %s", created.BaseRole)
	}

	byID, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != "driver@example.com" {
		t.Fatalf("unexpected email %s", byID.Email)
	}

	byEmail, err := repo.FindByEmail(ctx, "driver@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Fatalf("expected same user, got %s", byEmail.ID)
	}

	if _, err := repo.FindByEmail(ctx, "missing@example.com"); !db.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	if _, err := repo.Create(ctx, CreateUserDTO{
		Email:       "driver@example.com",
		DisplayName: "Dup",
	}); !db.IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestRepositoryOrphanLifecycle(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	roleID := uuid.New()
	orphan, err := repo.Create(ctx, CreateUserDTO{
		Email:       "ops@example.com",
		DisplayName: "Jane (Ops)",
		BaseRole:    enums.BaseRoleElevated,
	})
	if err != nil {
		t.Fatalf("create orphan: %v", err)
	}
	if _, err := repo.Create(ctx, CreateUserDTO{
		Email:       "standard@example.com",
		DisplayName: "Standard",
	}); err != nil {
		t.Fatalf("create standard: %v", err)
	}
	bound, err := repo.Create(ctx, CreateUserDTO{
		Email:        "bound@example.com",
		DisplayName:  "Bound Admin",
		BaseRole:     enums.BaseRoleElevated,
		AccessRoleID: &roleID,
	})
	if err != nil {
		t.Fatalf("create bound: %v", err)
	}

	orphans, err := repo.ListOrphans(ctx, 0)
	if err != nil {
		t.Fatalf("list orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != orphan.ID {
		t.Fatalf("expected single orphan %s, got %+v", orphan.ID, orphans)
	}

	if err := repo.BindRole(ctx, orphan.ID, roleID); err != nil {
		t.Fatalf("bind role: %v", err)
	}
	orphans, err = repo.ListOrphans(ctx, 0)
	if err != nil {
		t.Fatalf("list orphans after bind: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("expected no orphans, got %d", len(orphans))
	}

	cleared, err := repo.ClearRoleRefs(ctx, roleID)
	if err != nil {
		t.Fatalf("clear role refs: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared bindings, got %d", cleared)
	}
	refetched, err := repo.FindByID(ctx, bound.ID)
	if err != nil {
		t.Fatalf("refetch bound: %v", err)
	}
	if refetched.AccessRoleID != nil {
		t.Fatal("expected binding removed")
	}
	if !refetched.IsOrphan() {
		t.Fatal("expected degraded user to read as orphan")
	}
}

func TestRepositoryUpdateBalance(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:       "wallet@example.com",
		DisplayName: "Wallet",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := repo.UpdateBalance(ctx, user.ID, 150); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	locked, err := repo.LockByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("lock by id: %v", err)
	}
	if locked.CreditBalance != 150 {
		t.Fatalf("expected balance 150, got %d", locked.CreditBalance)
	}
}
