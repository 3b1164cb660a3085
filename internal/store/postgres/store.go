// Package postgres implements core.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"field-dispatch/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ core.Store = (*Store)(nil)

const uniqueViolation = "23505"

// wrapErr maps driver errors onto the core error kinds: missing rows become
// ErrNotFound, constraint violations pass through, everything else is
// ErrStorageUnavailable.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: duplicate %s: %w", op, pgErr.ConstraintName, err)
	}
	return fmt.Errorf("%s: %w: %v", op, core.ErrStorageUnavailable, err)
}

// execOne runs an UPDATE that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, op string, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return wrapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
