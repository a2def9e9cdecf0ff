package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/robalobadob/catcatch/assets"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(conn, assets.Migrations()); err != nil {
			t.Fatalf("migrate pass %d: %v", i+1, err)
		}
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("recorded %d migrations", n)
	}
	if _, err := conn.Exec(`INSERT INTO kv(owner, key, value) VALUES ('o','k','v')`); err != nil {
		t.Fatalf("kv table missing: %v", err)
	}
}

func TestMigrateRollsBackBrokenFile(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	broken := fstest.MapFS{
		"001_ok.sql":  {Data: []byte(`CREATE TABLE a (x INTEGER);`)},
		"002_bad.sql": {Data: []byte(`CREATE TABLE oops (`)},
	}
	if err := Migrate(conn, broken); err == nil {
		t.Fatal("expected error from broken migration")
	}
	var n int
	_ = conn.QueryRow(`SELECT COUNT(1) FROM _migrations WHERE name='002_bad.sql'`).Scan(&n)
	if n != 0 {
		t.Fatal("broken migration recorded")
	}
}
