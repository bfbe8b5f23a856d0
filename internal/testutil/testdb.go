package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"winsbygroup.com/licverify/internal/license"
	"winsbygroup.com/licverify/internal/sqlite"
)

func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return NewTestDBAt(t, filepath.Join(t.TempDir(), "test.db"))
}

func NewTestDBAt(t *testing.T, dbPath string) *sqlx.DB {
	t.Helper()

	// busy_timeout lets concurrent writers in race tests wait for the lock
	db, err := sqlx.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		t.Fatalf("set journal mode: %v", err)
	}

	if err := sqlite.RunMigrations(db.DB, zerolog.Nop()); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}

	return db
}

// Seed inserts licenses through the SQLite store and fails the test on error.
func Seed(t *testing.T, db *sqlx.DB, lics ...*license.License) {
	t.Helper()
	store := license.New(db)
	for _, lic := range lics {
		if err := store.Create(context.Background(), lic); err != nil {
			t.Fatalf("seed license %q: %v", lic.LicenseKey, err)
		}
	}
}

// StrPtr returns a pointer to s, for populating License.BoundHWID.
func StrPtr(s string) *string {
	return &s
}
