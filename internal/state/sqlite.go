package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrNotOpened is returned by every operation before Open succeeds.
var ErrNotOpened = errors.New("database not opened")

// NotFoundError is returned by Get for an unknown id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transform not found: %s", e.ID)
}

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance. A nil logger
// discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path and migrates it. Use ":memory:" for an
// in-memory database. Missing parent directories are created.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection keeps in-memory databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened history store", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the path passed to Open.
func (s *SQLiteStore) Path() string { return s.path }

// Record stores rec. An empty ID is generated and a zero CreatedAt is set
// to now; both are written back to rec.
func (s *SQLiteStore) Record(ctx context.Context, rec *Record) error {
	if s.db == nil {
		return ErrNotOpened
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transforms (id, manifest_hash, sql, rewritten_sql, error, duration_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ManifestHash, rec.SQL, rec.Rewritten, rec.Error,
		rec.Duration.Microseconds(), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record transform: %w", err)
	}
	s.logger.Debug("recorded transform", slog.String("id", rec.ID), slog.Bool("failed", rec.Failed()))
	return nil
}

const selectColumns = `SELECT id, manifest_hash, sql, rewritten_sql, error, duration_us, created_at FROM transforms`

// Get returns the record with id, or a *NotFoundError.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transform: %w", err)
	}
	return rec, nil
}

// List returns records newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	var where []string
	var args []any
	if opts.ManifestHash != "" {
		where = append(where, "manifest_hash = ?")
		args = append(args, opts.ManifestHash)
	}
	if opts.FailedOnly {
		where = append(where, "error <> ''")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transforms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transform: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transforms: %w", err)
	}
	return out, nil
}

// Clear deletes every record and returns how many there were.
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpened
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM transforms`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear transforms: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var durationUS, createdMS int64
	if err := row.Scan(&rec.ID, &rec.ManifestHash, &rec.SQL, &rec.Rewritten, &rec.Error, &durationUS, &createdMS); err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationUS) * time.Microsecond
	rec.CreatedAt = time.UnixMilli(createdMS).UTC()
	return &rec, nil
}

var _ Store = (*SQLiteStore)(nil)
