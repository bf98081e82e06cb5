// Package audit keeps a SQLite record of sandbox decisions so that denied
// and allowed accesses can be inspected after the fact.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/pathguard/internal/sandbox"
)

// DefaultRetention is how long entries are kept when no retention is given.
const DefaultRetention = 30 * 24 * time.Hour

const maxDetail = 500

// timeLayout has a fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one stored decision.
type Entry struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Requested string    `json:"requested"`
	Path      string    `json:"path,omitempty"`
	Allowed   bool      `json:"allowed"`
	Kind      string    `json:"kind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store writes sandbox decisions to the decisions table. It implements
// sandbox.Auditor.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

var _ sandbox.Auditor = (*Store)(nil)

// Open opens or creates the audit database at dbPath and removes entries
// older than retention. A zero retention means DefaultRetention.
func Open(dbPath string, retention time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// Decisions arrive from concurrent requests; one connection keeps SQLite
	// writers from tripping over each other.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	if n, err := s.Prune(retention); err != nil {
		logger.Warn("audit prune failed", "err", err)
	} else if n > 0 {
		logger.Info("audit log pruned", "removed", n)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		operation TEXT NOT NULL,
		requested TEXT NOT NULL,
		path TEXT,
		allowed BOOLEAN NOT NULL,
		kind TEXT,
		detail TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_allowed ON decisions(allowed);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Record stores d. Failures are logged, never returned: an unavailable audit
// log must not change the sandbox decision.
func (s *Store) Record(d sandbox.Decision) {
	kind := ""
	if !d.Allowed {
		kind = d.Kind.String()
	}
	detail := d.Detail
	if len(detail) > maxDetail {
		detail = detail[:maxDetail] + "...[truncated]"
	}

	_, err := s.db.Exec(`
		INSERT INTO decisions (id, operation, requested, path, allowed, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), d.Operation, d.Requested, d.Path, d.Allowed, kind, detail,
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		s.logger.Warn("failed to write audit entry", "operation", d.Operation, "path", d.Requested, "err", err)
	}
}

// Recent returns the last n entries, newest first. deniedOnly restricts the
// result to rejected decisions.
func (s *Store) Recent(n int, deniedOnly bool) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `SELECT id, operation, requested, path, allowed, kind, detail, created_at FROM decisions`
	if deniedOnly {
		query += ` WHERE allowed = 0`
	}
	query += ` ORDER BY seq DESC LIMIT ?`

	rows, err := s.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			path, kind, detail sql.NullString
			createdAt          string
		)
		if err := rows.Scan(&e.ID, &e.Operation, &e.Requested, &path, &e.Allowed, &kind, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Path = path.String
		e.Kind = kind.String
		e.Detail = detail.String
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM decisions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).UTC().Format(timeLayout)
	result, err := s.db.Exec("DELETE FROM decisions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
