// Package sqlstore implements storage.Repository on database/sql for SQLite
// and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/storage"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and tunes the backing database.
type Options struct {
	Driver string
	// DSN is a file path for SQLite or a connection URL for PostgreSQL.
	DSN      string
	MaxConns int32
	Logger   *zap.Logger
}

// Store owns the database handle.
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect *dialect
	logger  *zap.SugaredLogger
}

var _ storage.Repository = (*Store)(nil)

// Open connects to the configured database. Call Init before use.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger.Sugar().With("component", "sqlstore", "driver", opts.Driver)}
	switch opts.Driver {
	case DriverSQLite, "":
		if err := s.openSQLite(opts.DSN); err != nil {
			return nil, err
		}
	case DriverPostgres:
		if err := s.openPostgres(ctx, opts); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}
	return s, nil
}

// OpenSQLite opens a SQLite database file, creating its directory.
func OpenSQLite(path string) (*Store, error) {
	return Open(context.Background(), Options{Driver: DriverSQLite, DSN: path})
}

func (s *Store) openSQLite(path string) error {
	if path == "" {
		return errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	// A single connection serializes every transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db
	s.dialect = sqliteDialect
	return nil
}

func (s *Store) openPostgres(ctx context.Context, opts Options) error {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	s.pool = pool
	s.db = stdlib.OpenDBFromPool(pool)
	s.dialect = postgresDialect
	return nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// Init applies pragmas and schema.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	for _, stmt := range s.dialect.pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.logger.Infow("schema ready")
	return nil
}

// WithTx runs fn inside one transaction. fn's error is returned as is; a
// panic in fn rolls back and is re-raised.
func (s *Store) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", core.ErrPersistence, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warnw("rollback failed", "error", rbErr)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, d: s.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrPersistence, err)
	}
	committed = true
	return nil
}
