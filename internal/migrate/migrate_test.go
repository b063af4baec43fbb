package migrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_embeddedSchema(t *testing.T) {
	db := openMemory(t)

	if err := Run(db); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&n); err != nil {
		t.Fatalf("analyses table missing: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = '0001'`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("0001 recorded %d times; want 1", n)
	}
}

func TestRun_idempotent(t *testing.T) {
	db := openMemory(t)

	if err := Run(db); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("second Run: %v", err)
	}
}

func TestRunFS_ordersAndSkipsUnrelatedFiles(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte(`INSERT INTO log (step) VALUES ('second');`)},
		"m/0001_first.sql":  {Data: []byte(`CREATE TABLE log (step TEXT); INSERT INTO log (step) VALUES ('first');`)},
		"m/README.md":       {Data: []byte("ignored")},
		"m/abc_bad.sql":     {Data: []byte("ignored")},
	}

	if err := RunFS(db, fsys, "m"); err != nil {
		t.Fatalf("RunFS: %v", err)
	}

	rows, err := db.Query(`SELECT step FROM log ORDER BY rowid`)
	if err != nil {
		t.Fatalf("query log: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var steps []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("scan: %v", err)
		}
		steps = append(steps, s)
	}
	if len(steps) != 2 || steps[0] != "first" || steps[1] != "second" {
		t.Errorf("steps = %v; want [first second]", steps)
	}
}

func TestRunFS_failedMigrationIsNotRecorded(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"m/0001_broken.sql": {Data: []byte(`CREATE TABLE ok (id INTEGER); THIS IS NOT SQL;`)},
	}

	if err := RunFS(db, fsys, "m"); err == nil {
		t.Fatal("RunFS = nil; want error for broken migration")
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("schema_migrations has %d rows; want 0", n)
	}
}

func TestRunFS_duplicateVersion(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"m/0001_a.sql": {Data: []byte(`SELECT 1;`)},
		"m/0001_b.sql": {Data: []byte(`SELECT 1;`)},
	}
	if err := RunFS(db, fsys, "m"); err == nil {
		t.Fatal("RunFS = nil; want duplicate version error")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{in: "0001_analyses.sql", wantVersion: "0001", wantName: "analyses", wantOK: true},
		{in: "0010_add_index.sql", wantVersion: "0010", wantName: "add_index", wantOK: true},
		{in: "1_short.sql", wantOK: false},
		{in: "0001_name.txt", wantOK: false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if ok != tt.wantOK || v != tt.wantVersion || n != tt.wantName {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v); want (%q, %q, %v)",
				tt.in, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
		}
	}
}
