package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestSQLiteFileDSN_CreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "app.db")

	dsn, err := SQLiteFileDSN(path)
	if err != nil {
		t.Fatalf("dsn error: %v", err)
	}
	if !strings.HasPrefix(dsn, "file:") || !strings.HasSuffix(dsn, "?_pragma=busy_timeout(5000)") {
		t.Fatalf("unexpected dsn %q", dsn)
	}

	db, err := OpenSQLite(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("pragma query: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected WAL journal mode, got %q", mode)
	}
}
