// Package backup writes gzip-compressed SQL dumps of the SQLite license store.
package backup

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const (
	dumpSuffix = "_licdump.sql.gz"
	// millisecond resolution, fixed width so names sort chronologically
	stampLayout = "2006-01-02_15.04.05.000"
)

type Service struct {
	mu     sync.Mutex // one VACUUM INTO at a time
	db     *sqlx.DB
	dbPath string
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(db *sqlx.DB, dbPath string, log zerolog.Logger) *Service {
	return &Service{
		db:     db,
		dbPath: dbPath,
		log:    log.With().Str("component", "backup").Logger(),
		now:    time.Now,
	}
}

// Result describes a completed backup
type Result struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Rows     int    `json:"rows"`
}

// Dir is where dumps are written: a "backups" directory next to the database.
func (s *Service) Dir() string {
	return filepath.Join(filepath.Dir(s.dbPath), "backups")
}

// CreateBackup snapshots the database with VACUUM INTO and writes it out
// as a compressed SQL script that can be replayed into an empty database.
func (s *Service) CreateBackup(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupDir := s.Dir()
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	now := s.now()
	file, filename, err := createDumpFile(backupDir, now)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	backupPath := filepath.Join(backupDir, filename)

	// VACUUM INTO gives a consistent copy while the server keeps writing.
	// It refuses to overwrite, so the reserved temp name is freed first.
	tmp, err := os.CreateTemp(backupDir, "snapshot-*.db")
	if err != nil {
		_ = os.Remove(backupPath)
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	tempPath := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(tempPath)
	defer os.Remove(tempPath)

	var appID int
	if err := s.db.GetContext(ctx, &appID, `PRAGMA application_id;`); err != nil {
		_ = os.Remove(backupPath)
		return nil, fmt.Errorf("read application_id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, tempPath); err != nil {
		_ = os.Remove(backupPath)
		return nil, fmt.Errorf("vacuum into temp: %w", err)
	}

	snap, err := sqlx.Open("sqlite3", tempPath+"?mode=ro")
	if err != nil {
		_ = os.Remove(backupPath)
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()

	gz := gzip.NewWriter(file)
	w := bufio.NewWriter(gz)
	rows, err := writeDump(ctx, snap, w, now, appID)
	if err != nil {
		_ = os.Remove(backupPath)
		return nil, fmt.Errorf("write dump: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush dump: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}

	s.log.Info().Str("path", backupPath).Int64("size", info.Size()).Int("rows", rows).Msg("database backup written")

	return &Result{
		Filename: filename,
		Path:     backupPath,
		Size:     info.Size(),
		Rows:     rows,
	}, nil
}

// createDumpFile creates a dump file named after now without replacing an
// existing one; on a name clash the stamp moves forward a millisecond.
func createDumpFile(dir string, now time.Time) (*os.File, string, error) {
	for i := 0; i < 1000; i++ {
		name := now.Add(time.Duration(i)*time.Millisecond).Format(stampLayout) + dumpSuffix
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create backup file: %w", err)
		}
		return f, name, nil
	}
	return nil, "", fmt.Errorf("create backup file: no free name near %s", now.Format(stampLayout))
}

// Prune removes all but the newest keep dumps and returns how many were deleted.
func (s *Service) Prune(keep int) (int, error) {
	entries, err := os.ReadDir(s.Dir())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list backups: %w", err)
	}

	var dumps []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), dumpSuffix) {
			dumps = append(dumps, e.Name())
		}
	}
	if len(dumps) <= keep {
		return 0, nil
	}

	// timestamp prefix sorts chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(dumps)))
	removed := 0
	for _, name := range dumps[keep:] {
		if err := os.Remove(filepath.Join(s.Dir(), name)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func writeDump(ctx context.Context, db *sqlx.DB, w io.Writer, now time.Time, appID int) (int, error) {
	fmt.Fprintf(w, "-- licverify database backup\n-- Generated: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprint(w, "BEGIN TRANSACTION;\n\n")

	schemas, err := getSchemas(ctx, db)
	if err != nil {
		return 0, err
	}
	for _, schema := range schemas {
		fmt.Fprintf(w, "%s;\n", schema.SQL)
	}
	fmt.Fprintln(w)

	tables, err := getUserTables(ctx, db)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, table := range tables {
		n, err := writeInserts(ctx, db, w, table)
		if err != nil {
			return total, fmt.Errorf("dump table %s: %w", table, err)
		}
		total += n
	}

	fmt.Fprint(w, "\nCOMMIT;\n")
	fmt.Fprintf(w, "PRAGMA application_id = %d;\n", appID)
	_, err = fmt.Fprint(w, "PRAGMA journal_mode=WAL;\n")
	return total, err
}

type schemaObject struct {
	Type string `db:"type"`
	Name string `db:"name"`
	SQL  string `db:"sql"`
}

func getSchemas(ctx context.Context, db *sqlx.DB) ([]schemaObject, error) {
	var schemas []schemaObject
	query := `
		SELECT type, name, sql
		FROM sqlite_master
		WHERE sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY
			CASE type
				WHEN 'table' THEN 1
				WHEN 'index' THEN 2
				WHEN 'trigger' THEN 3
				WHEN 'view' THEN 4
			END,
			name
	`
	if err := db.SelectContext(ctx, &schemas, query); err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	return schemas, nil
}

func getUserTables(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var tables []string
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	if err := db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return tables, nil
}

func writeInserts(ctx context.Context, db *sqlx.DB, w io.Writer, table string) (int, error) {
	rows, err := db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return 0, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("get columns: %w", err)
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}
	prefix := fmt.Sprintf("INSERT INTO %q (%s) VALUES (", table, strings.Join(quoted, ", "))

	n := 0
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return n, fmt.Errorf("scan row: %w", err)
		}
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = formatValue(v)
		}
		if _, err := fmt.Fprintf(w, "%s%s);\n", prefix, strings.Join(values, ", ")); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate rows: %w", err)
	}
	return n, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return quote(string(val))
	case string:
		return quote(val)
	case int64, float64:
		return fmt.Sprintf("%v", val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return quote(val.UTC().Format(time.RFC3339))
	default:
		return quote(fmt.Sprintf("%v", val))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
