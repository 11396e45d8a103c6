package database

import (
	"testing"
	"testing/fstest"
)

func TestListMigrationFilesSortsUpOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_b.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/0001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/0001_a.down.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":       {Data: []byte("notes")},
	}
	got := listMigrationFiles(fsys, "migrations")
	want := []string{"0001_a.up.sql", "0002_b.up.sql"}
	if len(got) != len(want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("files[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}
	got := selectApplied(files, 1, 3)
	if len(got) != 2 || got[0] != "0002_b.up.sql" || got[1] != "0003_c.up.sql" {
		t.Fatalf("selectApplied = %v", got)
	}
	if got := selectApplied(files, 3, 3); got != nil {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Driver: "sqlite", MaxConnections: 10}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize sqlite: %v", err)
	}
	if cfg.Driver != DriverSQLite || cfg.Path != "fruitbot.db" || cfg.MaxConnections != 1 {
		t.Fatalf("unexpected sqlite config: %+v", cfg)
	}
	if got := cfg.MigrateURL(); got != "sqlite3://fruitbot.db" {
		t.Fatalf("migrate url = %s", got)
	}

	pg := Config{Host: "db"}
	if err := pg.Normalize(); err != nil {
		t.Fatalf("normalize postgres: %v", err)
	}
	if pg.Driver != DriverPostgres || pg.Port != "5432" || pg.SSLMode != "disable" || pg.MaxConnections != 5 {
		t.Fatalf("unexpected postgres config: %+v", pg)
	}

	if err := (&Config{Driver: "mysql"}).Normalize(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if err := (&Config{Driver: "postgres"}).Normalize(); err == nil {
		t.Fatal("expected error for missing host")
	}
}
