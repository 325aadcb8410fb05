package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executa uma função dentro de uma transação explicita.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pctx context.Context, tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// IsUniqueViolation identifica violação de unicidade (23505).
func IsUniqueViolation(err error, constraint string) bool {
	pgErr := asPgError(err)
	if pgErr == nil || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsCheckViolation identifica violação de CHECK (23514).
func IsCheckViolation(err error) bool {
	pgErr := asPgError(err)
	return pgErr != nil && pgErr.Code == "23514"
}

// IsForeignKeyViolation identifica referência inexistente (23503).
func IsForeignKeyViolation(err error, constraint string) bool {
	pgErr := asPgError(err)
	if pgErr == nil || pgErr.Code != "23503" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
