// Package genie adapts the Genie conversational query service into a
// metadata.Provider.
//
// Unlike the SQL-backed providers, there is no information_schema to read.
// The provider asks Genie to run three plain statements per table — DESCRIBE,
// COUNT(*), SHOW TBLPROPERTIES — and scrapes the answers out of the returned
// result tables.
package genie

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/datapilot/reportgate/internal/errs"
	gc "github.com/datapilot/reportgate/internal/genie"
	"github.com/datapilot/reportgate/internal/metadata"
)

// Provider implements metadata.Provider over a Genie space.
type Provider struct {
	client *gc.Client

	// now is injectable for tests; the timestamp fallback depends on it.
	now func() time.Time
}

// New wraps an existing Genie client.
func New(client *gc.Client) *Provider {
	return &Provider{client: client, now: time.Now}
}

// Ping verifies the Genie space answers at all by running a trivial statement.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.client.StartConversation(ctx, "SELECT 1")
	return err
}

// Close is a no-op — the Genie client holds no persistent connections.
func (p *Provider) Close() error {
	return nil
}

// Describe returns the current metadata for table.
//
// The DESCRIBE answer decides existence; the row count and the table
// properties run independently and degrade to 0 / current time on failure.
func (p *Provider) Describe(ctx context.Context, table string) (*metadata.TableMetadata, error) {
	columns, err := p.describeColumns(ctx, table)
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
	meta.Rows = p.countRows(ctx, table)
	meta.LastUpdated = p.lastUpdated(ctx, table)
	return meta, nil
}

// describeColumns runs DESCRIBE TABLE and reads the col_name column of the
// first query attachment.
func (p *Provider) describeColumns(ctx context.Context, table string) ([]string, error) {
	msg, err := p.client.StartConversation(ctx, fmt.Sprintf("DESCRIBE TABLE %s", table))
	if err != nil {
		return nil, err
	}

	result, err := p.firstResultTable(ctx, msg)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errs.New(errs.ErrKindQueryFailed,
			fmt.Sprintf("genie returned no result table for DESCRIBE %s", table))
	}

	nameIdx := columnIndex(result, "col_name")
	if nameIdx < 0 {
		return nil, nil
	}

	var columns []string
	for _, row := range result.Rows {
		if nameIdx >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[nameIdx])
		// DESCRIBE appends partition and detail sections after a blank line.
		if name == "" || strings.HasPrefix(name, "#") {
			break
		}
		columns = append(columns, name)
	}
	return columns, nil
}

// countRows runs SELECT COUNT(*) and returns 0 on any failure.
func (p *Provider) countRows(ctx context.Context, table string) int64 {
	msg, err := p.client.StartConversation(ctx,
		fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s", table))
	if err != nil {
		return 0
	}
	result, err := p.firstResultTable(ctx, msg)
	if err != nil || result == nil || len(result.Rows) == 0 {
		return 0
	}

	idx := columnIndex(result, "row_count")
	if idx < 0 || idx >= len(result.Rows[0]) {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(result.Rows[0][idx]), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// lastUpdated scans SHOW TBLPROPERTIES for a lastDdlTime key (a unix epoch).
// When the property is missing or anything fails, the current time is
// reported — the table answered, so it is at least as fresh as this call.
func (p *Provider) lastUpdated(ctx context.Context, table string) string {
	fallback := p.now().UTC().Format(time.RFC3339)

	msg, err := p.client.StartConversation(ctx, fmt.Sprintf("SHOW TBLPROPERTIES %s", table))
	if err != nil {
		return fallback
	}
	result, err := p.firstResultTable(ctx, msg)
	if err != nil || result == nil {
		return fallback
	}

	keyIdx := columnIndex(result, "key")
	valIdx := columnIndex(result, "value")
	if keyIdx < 0 || valIdx < 0 {
		return fallback
	}

	for _, row := range result.Rows {
		if keyIdx >= len(row) || valIdx >= len(row) {
			continue
		}
		if !strings.Contains(strings.ToLower(row[keyIdx]), "lastddltime") {
			continue
		}
		epoch, err := strconv.ParseInt(strings.TrimSpace(row[valIdx]), 10, 64)
		if err != nil {
			return fallback
		}
		return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
	}
	return fallback
}

// firstResultTable fetches the result of the first query attachment in msg.
// Returns nil when the answer carried no query.
func (p *Provider) firstResultTable(ctx context.Context, msg *gc.Message) (*gc.Table, error) {
	for _, att := range msg.Attachments {
		if att.Query == nil || att.Query.StatementID == "" {
			continue
		}
		return p.client.GetQueryResult(ctx, att.Query.StatementID)
	}
	return nil, nil
}

// columnIndex returns the index of name in the result's columns, or -1.
func columnIndex(t *gc.Table, name string) int {
	for i, col := range t.Columns {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}
