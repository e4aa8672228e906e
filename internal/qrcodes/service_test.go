package qrcodes

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/parkpass/parkpass-backend/pkg/config"
	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/enums"
	pkgerrors "github.com/parkpass/parkpass-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	stmts := []string{
		`CREATE TABLE qr_codes (
    id text PRIMARY KEY,
    serial_no integer NOT NULL UNIQUE,
    serial text NOT NULL UNIQUE,
    status text NOT NULL DEFAULT 'unused',
    owner_id text,
    activated_at datetime,
    revoked_at datetime,
    created_at datetime,
    updated_at datetime
);`,
		`CREATE TABLE qr_sequences (
    id integer PRIMARY KEY,
    last_serial integer NOT NULL DEFAULT 0,
    updated_at datetime
);`,
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}

	// Every pooled connection would otherwise open its own empty in-memory
	// database; a single connection also serializes concurrent transactions.
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return conn
}

func defaultQRConfig() config.QRConfig {
	return config.QRConfig{SerialPrefix: "SR", SerialWidth: 6}
}

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	if err := repo.EnsureSequence(context.Background()); err != nil {
		t.Fatalf("ensure sequence: %v", err)
	}
	svc, err := NewService(db.NewFromConn(conn), repo, nil, nil, defaultQRConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestRenderSerial(t *testing.T) {
	cfg := defaultQRConfig()
	if got := RenderSerial(cfg, 1); got != "SR000001" {
		t.Fatalf("expected SR000001, got %s", got)
	}
	if got := RenderSerial(cfg, 123456); got != "SR123456" {
		t.Fatalf("expected SR123456, got %s", got)
	}
	// Numbers wider than the pad are not truncated.
	if got := RenderSerial(config.QRConfig{SerialPrefix: "SR", SerialWidth: 2}, 150); got != "SR150" {
		t.Fatalf("expected SR150, got %s", got)
	}
}

func TestParseSerial(t *testing.T) {
	cfg := defaultQRConfig()

	n, err := ParseSerial(cfg, "SR000042")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}

	// Overflowed serials still round-trip.
	n, err = ParseSerial(cfg, "SR1000000")
	if err != nil {
		t.Fatalf("parse overflow: %v", err)
	}
	if n != 1000000 {
		t.Fatalf("expected 1000000, got %d", n)
	}

	for _, bad := range []string{"", "SR", "000042", "SR42", "SR0000042", "XX000042", "SR00004x", "SR000000", "SR-00001"} {
		if _, err := ParseSerial(cfg, bad); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected VALIDATION_ERROR for %q, got %v", bad, err)
		}
	}
}

func TestAllocateIsContiguous(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	want := []string{"SR000001", "SR000002", "SR000003"}
	for _, expected := range want {
		code, err := svc.Allocate(ctx)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if code.Serial != expected {
			t.Fatalf("expected serial %s, got %s", expected, code.Serial)
		}
		if code.Status != enums.QRStatusUnused {
			t.Fatalf("expected unused status, got %s", code.Status)
		}
	}
}

func TestAllocateConcurrentCallersStayContiguous(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	serials := make(chan string, callers)
	failures := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := svc.Allocate(ctx)
			if err != nil {
				failures <- err
				return
			}
			serials <- code.Serial
		}()
	}
	wg.Wait()
	close(serials)
	close(failures)

	for err := range failures {
		t.Fatalf("concurrent allocate: %v", err)
	}

	seen := make(map[string]struct{}, callers)
	for serial := range serials {
		seen[serial] = struct{}{}
	}
	if len(seen) != callers {
		t.Fatalf("expected %d distinct serials, got %d", callers, len(seen))
	}
	for n := 1; n <= callers; n++ {
		serial := RenderSerial(defaultQRConfig(), int64(n))
		if _, ok := seen[serial]; !ok {
			t.Fatalf("gap in serials: missing %s", serial)
		}
	}
}

func TestAllocateBatch(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	codes, err := svc.AllocateBatch(ctx, 5)
	if err != nil {
		t.Fatalf("allocate batch: %v", err)
	}
	if len(codes) != 5 {
		t.Fatalf("expected 5 codes, got %d", len(codes))
	}
	for i, code := range codes {
		if code.SerialNo != int64(i+1) {
			t.Fatalf("expected serial_no %d, got %d", i+1, code.SerialNo)
		}
	}

	unused, err := repo.CountByStatus(ctx, enums.QRStatusUnused)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if unused != 5 {
		t.Fatalf("expected 5 unused, got %d", unused)
	}

	if _, err := svc.AllocateBatch(ctx, 0); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for zero count, got %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ownerID := uuid.New()

	code, err := svc.Allocate(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Revoking before activation is disallowed.
	if _, err := svc.Revoke(ctx, code.Serial); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE revoking unused, got %v", err)
	}

	activated, err := svc.Activate(ctx, code.Serial, ownerID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != enums.QRStatusActive || activated.OwnerID == nil || *activated.OwnerID != ownerID {
		t.Fatalf("unexpected activated code %+v", activated)
	}
	if activated.ActivatedAt == nil {
		t.Fatal("expected activation timestamp")
	}

	if _, err := svc.Activate(ctx, code.Serial, ownerID); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE on double activate, got %v", err)
	}

	revoked, err := svc.Revoke(ctx, code.Serial)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked.Status != enums.QRStatusRevoked || revoked.RevokedAt == nil {
		t.Fatalf("unexpected revoked code %+v", revoked)
	}
	if !revoked.Status.IsTerminal() {
		t.Fatal("revoked must be terminal")
	}

	if _, err := svc.Revoke(ctx, code.Serial); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE on double revoke, got %v", err)
	}
	if _, err := svc.Activate(ctx, code.Serial, ownerID); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE activating revoked, got %v", err)
	}

	if _, err := svc.Activate(ctx, "SR999999", ownerID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown serial, got %v", err)
	}
	if _, err := svc.Activate(ctx, "", ownerID); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for blank serial, got %v", err)
	}
	if _, err := svc.Activate(ctx, code.Serial, uuid.Nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for nil owner, got %v", err)
	}
}

func TestWipeAllRestartsSequence(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AllocateBatch(ctx, 3); err != nil {
		t.Fatalf("allocate batch: %v", err)
	}

	wiped, err := svc.WipeAll(ctx)
	if err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if wiped != 3 {
		t.Fatalf("expected 3 wiped, got %d", wiped)
	}

	remaining, err := repo.CountByStatus(ctx, enums.QRStatusUnused)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected empty inventory, got %d", remaining)
	}

	// The sequence starts over after a wipe; this is the only serial reuse.
	code, err := svc.Allocate(ctx)
	if err != nil {
		t.Fatalf("allocate after wipe: %v", err)
	}
	if code.Serial != "SR000001" {
		t.Fatalf("expected SR000001 after wipe, got %s", code.Serial)
	}
}

func TestAllocateRetriesOnStaleSequence(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first, err := svc.Allocate(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Rewind the counter behind the allocator's back so the next increment
	// collides with an issued serial. The retry lands on the free slot.
	if err := repo.ResetSequence(ctx); err != nil {
		t.Fatalf("reset sequence: %v", err)
	}
	if first.SerialNo != 1 {
		t.Fatalf("expected first serial_no 1, got %d", first.SerialNo)
	}

	second, err := svc.Allocate(ctx)
	if err != nil {
		t.Fatalf("allocate after rewind: %v", err)
	}
	if second.Serial != "SR000002" {
		t.Fatalf("expected retry to land on SR000002, got %s", second.Serial)
	}
}
