package postgres

import (
	"context"
	"testing"
	"time"
)

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := store.MigrateDown(ctx, 100); err != nil {
		t.Fatalf("migrate down reset: %v", err)
	}
	assertMigrationStatus(t, store, MigrationStatus{Version: 0, Applied: 0, Pending: 2})

	if err := store.MigrateUp(ctx, 1); err != nil {
		t.Fatalf("migrate up one step: %v", err)
	}
	assertMigrationStatus(t, store, MigrationStatus{Version: 1, Applied: 1, Pending: 1})

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up all: %v", err)
	}
	assertMigrationStatus(t, store, MigrationStatus{Version: 2, Applied: 2, Pending: 0})

	// Повторный up ничего не меняет.
	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("idempotent migrate up: %v", err)
	}
	assertMigrationStatus(t, store, MigrationStatus{Version: 2, Applied: 2, Pending: 0})

	if err := store.MigrateDown(ctx, 0); err != nil {
		t.Fatalf("migrate down default step: %v", err)
	}
	assertMigrationStatus(t, store, MigrationStatus{Version: 1, Applied: 1, Pending: 1})

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up restore: %v", err)
	}
}

func assertMigrationStatus(t *testing.T, store *Store, want MigrationStatus) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := store.Status(ctx)
	if err != nil {
		t.Fatalf("migration status: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected migration status: got=%+v want=%+v", got, want)
	}
}
