// Package postgres provides a PostgreSQL implementation of metadata.Provider
// backed by pgxpool.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datapilot/reportgate/internal/errs"
	"github.com/datapilot/reportgate/internal/metadata"
)

// Provider is a PostgreSQL implementation of metadata.Provider.
// It is safe for concurrent use by multiple goroutines.
type Provider struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// New connects to PostgreSQL using the provided Config and returns a Provider.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *metadata.Config) (*Provider, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	p := &Provider{pool: pool, queryTimeout: cfg.QueryTimeout}

	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

// --- metadata.Provider implementation ---

// Ping verifies the database is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (p *Provider) Close() error {
	p.pool.Close()
	return nil
}

// Describe returns the current metadata for table in the public schema.
//
// The column listing decides existence; the row count and last-updated
// lookups run independently and degrade to 0 / unknown on failure.
func (p *Provider) Describe(ctx context.Context, table string) (*metadata.TableMetadata, error) {
	if p.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.queryTimeout)
		defer cancel()
	}

	columns, err := p.listColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return &metadata.TableMetadata{Columns: []string{}, Exists: false}, nil
	}

	meta := &metadata.TableMetadata{
		Columns: columns,
		Exists:  true,
	}

	if rows, err := p.countRows(ctx, table); err == nil {
		meta.Rows = rows
	}
	if ts, err := p.lastUpdated(ctx, table); err == nil && !ts.IsZero() {
		meta.LastUpdated = ts.UTC().Format(time.RFC3339)
	}

	return meta, nil
}

// listColumns returns the column names of table in ordinal order.
func (p *Provider) listColumns(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public'
		  AND table_name   = $1
		ORDER BY ordinal_position`

	rows, err := p.pool.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to list columns of %q", table))
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan column name")
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	return columns, nil
}

// countRows returns the exact row count of table.
func (p *Provider) countRows(ctx context.Context, table string) (int64, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))

	var count int64
	if err := p.pool.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, mapError(err, fmt.Sprintf("failed to count rows of %q", table))
	}
	return count, nil
}

// lastUpdated returns the most recent statistics timestamp Postgres tracked
// for table. Returns the zero time when the planner has never analyzed it.
func (p *Provider) lastUpdated(ctx context.Context, table string) (time.Time, error) {
	const q = `
		SELECT GREATEST(
			COALESCE(last_vacuum,      'epoch'::timestamptz),
			COALESCE(last_autovacuum,  'epoch'::timestamptz),
			COALESCE(last_analyze,     'epoch'::timestamptz),
			COALESCE(last_autoanalyze, 'epoch'::timestamptz)
		)
		FROM pg_stat_user_tables
		WHERE schemaname = 'public'
		  AND relname    = $1`

	var ts time.Time
	err := p.pool.QueryRow(ctx, q, table).Scan(&ts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, mapError(err, fmt.Sprintf("failed to read last-updated of %q", table))
	}
	if ts.Unix() <= 0 {
		return time.Time{}, nil
	}
	return ts, nil
}

// quoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// This safely handles reserved words and mixed-case names.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
