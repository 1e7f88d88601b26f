package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSerialization marks a transaction that lost a serialization
// conflict. Callers may retry the whole unit of work a bounded number
// of times before giving up.
var ErrSerialization = errors.New("transaction serialization conflict")

// InSerializableTx runs fn inside a SERIALIZABLE transaction.
// A commit or statement failure caused by a serialization conflict
// (SQLSTATE 40001 or 40P01) is reported as ErrSerialization.
func InSerializableTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin serializable tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
