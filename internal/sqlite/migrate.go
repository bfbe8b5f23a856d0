package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/GuiaBolso/darwin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ApplicationID is the SQLite application_id for licverify databases.
// "LICV" in ASCII: L=0x4C, I=0x49, C=0x43, V=0x56
const ApplicationID = 0x4C494356

// ErrInvalidDatabase is returned when the database is not a valid licverify database.
var ErrInvalidDatabase = errors.New("not a valid 'licverify' database")

// defineMigrations returns a slice of database migrations
// comments must only appear after sql on a line and cannot span lines (comments are stripped before checksum calc)
// *NEVER* change/remove a step once released! (because a checksum of the script is saved with the migration)
func defineMigrations() []darwin.Migration {
	m := []darwin.Migration{

		// Major version per database release, minor number per step. Versions must be ascending.

		{Version: 1.00, Description: "Set application_id", Script: `
		PRAGMA application_id = 0x4C494356;`},

		// hwid is NULL until the first successful activation binds it
		{Version: 1.01, Description: "Create Table 'license'", Script: `
		CREATE TABLE IF NOT EXISTS license (
			license_key VARCHAR(64) PRIMARY KEY,
			product_type VARCHAR(64) NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0 CHECK (is_active IN (0,1)),
			hwid VARCHAR(255) CHECK (hwid IS NULL OR hwid <> ''),
			created_at VARCHAR(25) NOT NULL,
			bound_at VARCHAR(25)
		);`},

		{Version: 1.02, Description: "Create Index 'idx_license_product_type'", Script: `
		CREATE INDEX IF NOT EXISTS idx_license_product_type ON license (product_type ASC);`},
	}
	return m
}

// applied reports how many migrations are recorded and the highest version.
// A database darwin has never touched has neither.
func applied(db *sql.DB) (steps int, version float64, err error) {
	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'darwin_migrations'`).Scan(&tables)
	if err != nil || tables == 0 {
		return 0, 0, err
	}
	err = db.QueryRow(`SELECT COUNT(*), COALESCE(MAX(version), 0) FROM darwin_migrations`).Scan(&steps, &version)
	return steps, version, err
}

// normalized returns the migrations with comments and layout stripped, so
// reformatting a script does not change its stored checksum.
func normalized() []darwin.Migration {
	migrations := defineMigrations()
	for i := range migrations {
		migrations[i].Script = normalize(migrations[i].Script)
	}
	return migrations
}

func normalize(script string) string {
	lines := strings.Split(strings.ReplaceAll(script, "/*", "--"), "\n")
	for i, line := range lines {
		if j := strings.Index(line, "--"); j >= 0 {
			lines[i] = line[:j]
		}
	}
	return strings.ToLower(strings.Join(strings.Fields(strings.Join(lines, " ")), " "))
}

// logSteps writes one event per migration darwin attempted.
func logSteps(log zerolog.Logger, ch <-chan darwin.MigrationInfo) {
	for info := range ch {
		ev := log.Debug()
		if info.Error != nil {
			ev = log.Error().Err(info.Error)
		}
		ev.Float64("version", info.Migration.Version).
			Str("description", info.Migration.Description).
			Str("status", info.Status.String()).
			Msg("migration step")
	}
}

// Schema returns the sqlite definitions as a string for display
func Schema() string {
	var b strings.Builder

	for _, m := range defineMigrations() {
		_, _ = fmt.Fprintf(&b, "-- %s (%.2f)\n%s\n\n", m.Description, m.Version, strings.TrimSpace(m.Script))
	}
	return b.String()
}

// VerifyApplicationID checks that the database has the correct application_id.
// Returns ErrInvalidDatabase if the database belongs to a different application.
// Empty databases (application_id = 0, no tables) are accepted.
func VerifyApplicationID(db *sql.DB) error {
	var appID int
	if err := db.QueryRow("PRAGMA application_id;").Scan(&appID); err != nil {
		return fmt.Errorf("read application_id: %w", err)
	}

	if appID == ApplicationID {
		return nil
	}

	if appID != 0 {
		return fmt.Errorf("%w (application_id 0x%X)", ErrInvalidDatabase, appID)
	}

	var tableCount int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check tables: %w", err)
	}
	if tableCount > 0 {
		return fmt.Errorf("%w (has tables but no application_id)", ErrInvalidDatabase)
	}

	return nil
}

// RunMigrations applies all migrations to an already-open *sql.DB.
func RunMigrations(db *sql.DB, log zerolog.Logger) error {
	if err := VerifyApplicationID(db); err != nil {
		return err
	}

	steps, from, err := applied(db)
	if err != nil {
		return fmt.Errorf("read migration state: %w", err)
	}

	migrations := normalized()
	latest := migrations[len(migrations)-1].Version
	if steps == len(migrations) && from == latest {
		log.Debug().Float64("version", from).Msg("database schema is current")
		return nil
	}

	infoChan := make(chan darwin.MigrationInfo, len(migrations))
	d := darwin.New(darwin.NewGenericDriver(db, darwin.SqliteDialect{}), migrations, infoChan)
	migrateErr := d.Migrate()
	close(infoChan)
	logSteps(log, infoChan)

	_, to, err := applied(db)
	if migrateErr != nil {
		log.Error().Err(migrateErr).Float64("from", from).Float64("to", to).Msg("migration failed")
		return fmt.Errorf("migrate from %.2f: %w", from, migrateErr)
	}
	if err != nil {
		return fmt.Errorf("read migration state: %w", err)
	}

	log.Info().Float64("from", from).Float64("to", to).Msg("database schema migrated")
	return nil
}
