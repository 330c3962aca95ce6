// Package dataagent collects table metadata across one or more logical data
// domains and derives aggregate quality statistics from it.
//
// The agent is stateless: every call queries the backing providers fresh,
// with no caching and no retries beyond the per-table catch-and-mark-failed.
package dataagent

import (
	"context"

	"github.com/datapilot/reportgate/internal/logger"
	"github.com/datapilot/reportgate/internal/metadata"
)

// Agent orchestrates metadata providers for the gate.
type Agent struct {
	log *logger.Logger
}

// New creates a Data Agent. A nil logger falls back to the default.
func New(log *logger.Logger) *Agent {
	if log == nil {
		log = logger.New(nil)
	}
	return &Agent{log: log}
}

// CollectMetadata describes each table through the given provider.
//
// A failure for one table never aborts the batch: the error is recorded on
// that table's entry (Exists=false) and collection continues.
func (a *Agent) CollectMetadata(ctx context.Context, p metadata.Provider, tables []string) metadata.Map {
	out := make(metadata.Map, len(tables))

	for _, table := range tables {
		meta, err := p.Describe(ctx, table)
		if err != nil {
			a.log.With().Str("table", table).Err(err).Logger().
				Warn("table metadata fetch failed")
			out[table] = metadata.Failed(err)
			continue
		}
		out[table] = meta
	}

	return out
}

// CollectFromDomains collects metadata for tables across several domains and
// merges the results.
//
// Domains are visited in caller-supplied order, and the order is the
// tie-break: once a table has an Exists=true entry it is never overwritten by
// a later domain, while a later success does replace an earlier failure.
// A domain whose provider cannot be resolved is logged and skipped; the
// remaining domains still run.
func (a *Agent) CollectFromDomains(ctx context.Context, domains, tables []string, resolve metadata.Resolver) metadata.Map {
	merged := make(metadata.Map, len(tables))

	for _, domain := range domains {
		provider, err := resolve(domain)
		if err != nil {
			a.log.With().Str("domain", domain).Err(err).Logger().
				Warn("skipping domain: provider resolution failed")
			continue
		}

		domainMeta := a.CollectMetadata(ctx, provider, tables)

		for table, meta := range domainMeta {
			existing, seen := merged[table]
			if !seen {
				merged[table] = meta
				continue
			}
			// First successful domain wins.
			if existing == nil || !existing.Exists {
				merged[table] = meta
			}
		}
	}

	return merged
}
