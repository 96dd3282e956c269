package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps blobs in a table of (path, data, updated_at) rows.
type PostgresStore struct {
	db      querier
	pool    *pgxpool.Pool
	table   string
	builder sq.StatementBuilderType
}

// NewPostgresStore opens a pool for dsn and creates the blob table if it does not exist.
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := newPostgresStore(pool, table)
	s.pool = pool
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newPostgresStore(db querier, table string) *PostgresStore {
	return &PostgresStore{
		db:      db,
		table:   pgx.Identifier{table}.Sanitize(),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the blob table.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	path       TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create blob table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) ([]byte, error) {
	query, args, err := s.selectQuery(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.QueryRow(ctx, query, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("select blob %s: %w", path, err)
	}
	return data, nil
}

func (s *PostgresStore) Put(ctx context.Context, data []byte, path string) error {
	query, args, err := s.upsertQuery(data, path)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert blob %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) selectQuery(path string) (string, []any, error) {
	query, args, err := s.builder.
		Select("data").
		From(s.table).
		Where(sq.Eq{"path": path}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build select: %w", err)
	}
	return query, args, nil
}

func (s *PostgresStore) upsertQuery(data []byte, path string) (string, []any, error) {
	query, args, err := s.builder.
		Insert(s.table).
		Columns("path", "data", "updated_at").
		Values(path, data, sq.Expr("now()")).
		Suffix("ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert: %w", err)
	}
	return query, args, nil
}
