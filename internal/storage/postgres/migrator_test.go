package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrations_Embedded(t *testing.T) {
	t.Parallel()

	migrations, err := parseMigrations(embeddedMigrations)
	if err != nil {
		t.Fatalf("parse embedded migrations: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 embedded migrations, got %d", len(migrations))
	}
	if migrations[0].String() != "0001_create_orders" {
		t.Fatalf("unexpected first migration: %s", migrations[0])
	}
	if !strings.Contains(migrations[0].Up, "order_items") {
		t.Fatal("first migration must create order_items")
	}
	if migrations[1].String() != "0002_create_idempotency_keys" {
		t.Fatalf("unexpected second migration: %s", migrations[1])
	}
}

func TestParseMigrations_SortsByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0010_later.up.sql":   {Data: []byte("CREATE TABLE b (id INT);")},
		"sql/migrations/0010_later.down.sql": {Data: []byte("DROP TABLE b;")},
		"sql/migrations/0002_first.up.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
		"sql/migrations/0002_first.down.sql": {Data: []byte("DROP TABLE a;")},
	}

	migrations, err := parseMigrations(fsys)
	if err != nil {
		t.Fatalf("parseMigrations failed: %v", err)
	}
	if migrations[0].Version != 2 || migrations[1].Version != 10 {
		t.Fatalf("unexpected order: %v", migrations)
	}
}

func TestParseMigrations_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name: "missing down",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
			},
			wantErr: "both up and down",
		},
		{
			name: "invalid file name",
			fsys: fstest.MapFS{
				"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("   \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE a;")},
			},
			wantErr: "empty",
		},
		{
			name: "name conflict",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("CREATE TABLE a (id INT);")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("DROP TABLE a;")},
			},
			wantErr: "conflicting names",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseMigrations(tt.fsys)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
