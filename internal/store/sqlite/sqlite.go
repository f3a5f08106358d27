// Package sqlite implements store.Store on an embedded SQLite database using
// the pure-Go modernc.org/sqlite driver. It backs single-node deployments
// and the service tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// Config holds SQLite configuration.
type Config struct {
	Path string
	// Timeout bounds every store operation. Zero disables it.
	Timeout time.Duration
}

// TxQuerier is satisfied by both *sql.DB and *sql.Tx.
type TxQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite conversation repository.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  *logger.Logger

	clockMu sync.Mutex
	last    int64
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at cfg.Path. It does not
// provision the schema; see EnsureSchema.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := cfg.Path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; this also serializes the get-or-create race
	db.SetMaxOpenConns(1)

	s := &Store{db: db, timeout: cfg.Timeout, logger: log}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("opened SQLite database", zap.String("path", cfg.Path))
	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return classify("failed to ping database", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("failed to close SQLite database", zap.Error(err))
	}
}

// EnsureSchema creates missing tables, indices, and the summary view.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		for i, stmt := range store.SplitStatements(schemaSQL) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return classify("failed to ensure schema", err)
	}

	s.logger.Info("messaging schema ensured")
	return nil
}

// CheckSchema reports a KindSchemaMissing error naming every absent object.
func (s *Store) CheckSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var missing []string
	for _, name := range store.SchemaObjects {
		var n int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", name,
		).Scan(&n)
		if err != nil {
			return classify("failed to check schema", err)
		}
		if n == 0 {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return apperror.New(apperror.KindSchemaMissing, "missing storage objects: "+strings.Join(missing, ", "))
	}
	return nil
}

// now returns a strictly increasing unix-nanosecond timestamp.
func (s *Store) now() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	n := time.Now().UnixNano()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return
}

// classify converts a driver error into an *apperror.Error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return apperror.Wrap(apperror.KindNotFound, op, err)
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
			return apperror.Wrap(apperror.KindStorageUnavailable, op, err)
		case sqlite3.SQLITE_ERROR:
			msg := sqlErr.Error()
			if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") {
				return apperror.Wrap(apperror.KindSchemaMissing, op, err)
			}
		}
		return apperror.Wrap(apperror.KindInternal, op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, sql.ErrConnDone) {
		return apperror.Wrap(apperror.KindStorageUnavailable, op, err)
	}

	return apperror.Wrap(apperror.KindInternal, op, err)
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
