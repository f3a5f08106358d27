// Package postgres implements store.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// schemaLockKey serializes concurrent schema provisioning across instances.
const schemaLockKey int64 = 0x6361726d7367 // "carmsg"

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string
	MaxConns int32
	// Timeout bounds every store operation. Zero disables it.
	Timeout time.Duration
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL conversation repository.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *logger.Logger
}

var _ store.Store = (*Store)(nil)

// Connect opens a connection pool and verifies connectivity. It does not
// provision the schema; see EnsureSchema.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &Store{pool: pool, timeout: cfg.Timeout, logger: log}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("connected to PostgreSQL", zap.Int32("max_conns", poolCfg.MaxConns))
	return s, nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return classify("failed to ping database", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates missing tables, indices, and the summary view. It
// holds a transaction-scoped advisory lock so concurrent instances do not
// race on catalog inserts.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockKey); err != nil {
			return err
		}
		for i, stmt := range store.SplitStatements(schemaSQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
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
		var exists bool
		if err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", name).Scan(&exists); err != nil {
			return classify("failed to check schema", err)
		}
		if !exists {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return apperror.New(apperror.KindSchemaMissing, "missing storage objects: "+strings.Join(missing, ", "))
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify converts a pgx error into an *apperror.Error. Errors that are
// already typed pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.Wrap(apperror.KindNotFound, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01", // undefined_table
			pgErr.Code == "42703", // undefined_column
			pgErr.Code == "3F000": // invalid_schema_name
			return apperror.Wrap(apperror.KindSchemaMissing, op, err)
		case strings.HasPrefix(pgErr.Code, "08"), // connection_exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient_resources
			strings.HasPrefix(pgErr.Code, "57P"): // operator_intervention
			return apperror.Wrap(apperror.KindStorageUnavailable, op, err)
		}
		return apperror.Wrap(apperror.KindInternal, op, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) ||
		errors.As(err, &connectErr) ||
		errors.As(err, &netErr) {
		return apperror.Wrap(apperror.KindStorageUnavailable, op, err)
	}

	return apperror.Wrap(apperror.KindInternal, op, err)
}
