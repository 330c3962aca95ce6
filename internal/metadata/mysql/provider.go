// Package mysql provides a MySQL implementation of metadata.Provider
// backed by database/sql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datapilot/reportgate/internal/errs"
	"github.com/datapilot/reportgate/internal/metadata"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
)

// Provider is a MySQL implementation of metadata.Provider.
// It is safe for concurrent use by multiple goroutines.
type Provider struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// New opens a MySQL connection pool using the provided Config and returns a
// Provider. It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *metadata.Config) (*Provider, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	p := &Provider{db: db, queryTimeout: cfg.QueryTimeout}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := p.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return p, nil
}

// --- metadata.Provider implementation ---

func (p *Provider) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (p *Provider) Close() error {
	return p.db.Close()
}

// Describe returns the current metadata for table in the connected database.
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

func (p *Provider) listColumns(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		ORDER BY ordinal_position`

	rows, err := p.db.QueryContext(ctx, q, table)
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

func (p *Provider) countRows(ctx context.Context, table string) (int64, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))

	var count int64
	if err := p.db.QueryRowContext(ctx, q).Scan(&count); err != nil {
		return 0, mapError(err, fmt.Sprintf("failed to count rows of %q", table))
	}
	return count, nil
}

// lastUpdated reads UPDATE_TIME from information_schema. MySQL only tracks it
// for some storage engines; a NULL value degrades to the zero time.
func (p *Provider) lastUpdated(ctx context.Context, table string) (time.Time, error) {
	const q = `
		SELECT UPDATE_TIME
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name   = ?`

	// Scanned as a string so the provider works with or without the
	// driver's parseTime DSN option.
	var raw sql.NullString
	err := p.db.QueryRowContext(ctx, q, table).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, mapError(err, fmt.Sprintf("failed to read last-updated of %q", table))
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	ts, err := metadata.ParseLastUpdated(raw.String)
	if err != nil {
		return time.Time{}, nil
	}
	return ts, nil
}

// quoteIdent wraps a SQL identifier in backticks (MySQL style).
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
