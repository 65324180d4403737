package postgres

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"genstudio-backend/internal/domain/ports/repository"
)

// execSQL runs a statement on the transaction handle when one is present and
// falls back to the pool otherwise. All repositories route writes through it
// so they behave the same inside and outside WithTx.
func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...any) (pgconn.CommandTag, error) {
	switch v := tx.(type) {
	case pgx.Tx:
		return v.Exec(ctx, sql, args...)
	case *pgxpool.Conn:
		return v.Exec(ctx, sql, args...)
	default:
		return pool.Exec(ctx, sql, args...)
	}
}

func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...any) pgx.Row {
	switch v := tx.(type) {
	case pgx.Tx:
		return v.QueryRow(ctx, sql, args...)
	case *pgxpool.Conn:
		return v.QueryRow(ctx, sql, args...)
	default:
		return pool.QueryRow(ctx, sql, args...)
	}
}

func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...any) (pgx.Rows, error) {
	switch v := tx.(type) {
	case pgx.Tx:
		return v.Query(ctx, sql, args...)
	case *pgxpool.Conn:
		return v.Query(ctx, sql, args...)
	default:
		return pool.Query(ctx, sql, args...)
	}
}
