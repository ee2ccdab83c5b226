package rowstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads rows straight from the Postgres database behind the
// hosted project, bypassing the REST layer.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool and pings it.
func NewPostgresStore(ctx context.Context, connURL string, connectTimeout time.Duration) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("rowstore: invalid postgres config: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	ctxTimeout := ctx
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		ctxTimeout, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctxTimeout, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("rowstore: create postgres pool: %w", err)
	}
	if err := pool.Ping(ctxTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rowstore: ping failed: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Select runs q as a single SQL statement.
func (s *PostgresStore) Select(ctx context.Context, q Query) (*Response, error) {
	sql, args := buildSelect(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}

	data := make([]Row, 0, len(maps))
	for _, m := range maps {
		for k, v := range m {
			m[k] = normalizeValue(v)
		}
		data = append(data, m)
	}
	return &Response{Data: data, FetchedAt: time.Now()}, nil
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// buildSelect renders q with quoted identifiers and a positional bound.
func buildSelect(q Query) (string, []any) {
	cols := "*"
	if !q.AllColumns() {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = pgx.Identifier{c}.Sanitize()
		}
		cols = strings.Join(quoted, ", ")
	}

	table := pgx.Identifier(strings.Split(q.Table, ".")).Sanitize()
	sql := "SELECT " + cols + " FROM " + table

	var args []any
	if !q.Since.IsZero() {
		sql += " WHERE " + pgx.Identifier{ColumnDatetime}.Sanitize() + " > $1"
		args = append(args, q.Since.UTC())
	}
	return sql, args
}

// normalizeValue turns driver-specific types into the plain values the
// cleaner understands.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}
