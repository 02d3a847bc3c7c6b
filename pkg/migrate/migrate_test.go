package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/001_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);")},
		"sql/001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"sql/002_add_size.up.sql":       {Data: []byte("ALTER TABLE items ADD COLUMN size INTEGER;")},
		"sql/002_add_size.down.sql":     {Data: []byte("ALTER TABLE items DROP COLUMN size;")},
		"sql/README.md":                 {Data: []byte("not a migration")},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFSProviderMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testFS(), "sql", "").Migrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, expected 2", len(migrations))
	}
	for _, m := range migrations {
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d missing a direction", m.Version)
		}
		if m.Version == 2 && m.Name != "add size" {
			t.Errorf("name = %q, expected %q", m.Name, "add size")
		}
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "sql", ""), nil)

	pending, err := m.Pending(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, expected 2", len(pending))
	}

	if err := m.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	if v, _ := m.Version(ctx); v != 2 {
		t.Errorf("version = %d, expected 2", v)
	}
	if _, err := db.Exec("INSERT INTO items (name, size) VALUES ('a', 3)"); err != nil {
		t.Errorf("schema not migrated: %v", err)
	}

	// Applying again is a no-op.
	if err := m.Up(ctx); err != nil {
		t.Fatalf("second up: %v", err)
	}

	if err := m.To(ctx, 1); err != nil {
		t.Fatalf("down: %v", err)
	}
	if v, _ := m.Version(ctx); v != 1 {
		t.Errorf("version = %d, expected 1", v)
	}
	if _, err := db.Exec("INSERT INTO items (name, size) VALUES ('b', 4)"); err == nil {
		t.Error("expected size column to be gone")
	}

	if err := m.To(ctx, 0); err != nil {
		t.Fatalf("down to 0: %v", err)
	}
	if v, _ := m.Version(ctx); v != 0 {
		t.Errorf("version = %d, expected 0", v)
	}
}

func TestMigrateMissingDown(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"sql/001_only_up.up.sql": {Data: []byte("CREATE TABLE t (id INTEGER);")},
	}
	m := NewMigrator(openDB(t), NewFSProvider(fsys, "sql", "versions"), nil)
	if err := m.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := m.To(ctx, 0); err == nil {
		t.Error("expected an error rolling back a migration without down SQL")
	}
}
