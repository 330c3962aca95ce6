// Package gateagent decides whether a report can be generated from the data
// that is currently available.
//
// Validation is a pure, side-effect-free pass over a metadata map against one
// catalog condition. Degraded data never surfaces as an error: it becomes a
// BLOCKED or PARTIAL verdict with itemized reasons.
package gateagent

import (
	"fmt"
	"strings"
	"time"

	"github.com/datapilot/reportgate/internal/catalog"
	"github.com/datapilot/reportgate/internal/metadata"
)

// Status is the gate's pass/warn/block decision.
type Status string

const (
	// StatusReady means every condition is met.
	StatusReady Status = "READY"

	// StatusPartial means the report can be generated with caveats.
	StatusPartial Status = "PARTIAL"

	// StatusBlocked means required data is missing.
	StatusBlocked Status = "BLOCKED"
)

// unknownReportType is the sentinel missing-item for a report type that has
// no catalog condition. Callers check for it instead of catching an error.
const unknownReportType = "unknown_report_type"

// Details records which check groups passed.
type Details struct {
	TablesValidated    bool `json:"tables_validated"`
	ColumnsValidated   bool `json:"columns_validated"`
	RowsValidated      bool `json:"rows_validated"`
	FreshnessValidated bool `json:"freshness_validated"`
}

// ValidationResult is the outcome of one gate evaluation. It is returned
// synchronously and never persisted.
type ValidationResult struct {
	ReportType string   `json:"report_type"`
	Status     Status   `json:"status"`
	Missing    []string `json:"missing"`
	Warnings   []string `json:"warnings"`
	Message    string   `json:"message"`
	Details    Details  `json:"details"`

	// Condition echoes the matched catalog entry for caller display.
	// Nil when the report type is unknown.
	Condition *catalog.Condition `json:"condition,omitempty"`

	// LLMGuidance is the optional narrative explanation attached by
	// ValidateWithGuidance. On LLM failure it carries the error text.
	LLMGuidance string `json:"llm_guidance,omitempty"`
}

// Ready reports whether the gate allows report generation without caveats.
func (r *ValidationResult) Ready() bool {
	return r.Status == StatusReady
}

// Agent evaluates metadata maps against the condition catalog.
type Agent struct {
	catalog *catalog.Catalog

	// now is injectable for freshness tests.
	now func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New creates a Gate Agent over a loaded condition catalog.
func New(cat *catalog.Catalog, opts ...Option) *Agent {
	a := &Agent{catalog: cat, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ReportTypes returns the available report types in catalog order.
func (a *Agent) ReportTypes() []string {
	return a.catalog.ReportTypes()
}

// Condition returns the catalog condition for reportType, if defined.
func (a *Agent) Condition(reportType string) (*catalog.Condition, bool) {
	return a.catalog.Condition(reportType)
}

// Validate evaluates meta against the condition registered for reportType.
//
// Checks run in a fixed order: tables, columns, row counts, freshness.
// Missing tables or columns block; row-count and freshness findings only
// warn. Missing strictly dominates warnings in the final status.
func (a *Agent) Validate(reportType string, meta metadata.Map) *ValidationResult {
	cond, ok := a.catalog.Condition(reportType)
	if !ok {
		return &ValidationResult{
			ReportType: reportType,
			Status:     StatusBlocked,
			Missing:    []string{unknownReportType},
			Warnings:   []string{},
			Message:    fmt.Sprintf("No condition is defined for report type %q.", reportType),
		}
	}

	missing := []string{}
	warnings := []string{}
	var details Details

	// 1. Required tables must all be present. A nil entry carries no
	// metadata and counts as absent.
	for _, table := range cond.RequiredTables {
		if m, ok := meta[table]; !ok || m == nil {
			missing = append(missing, table)
		}
	}
	details.TablesValidated = len(missing) == 0

	// 2. Required columns, per table. Tables already flagged as missing are
	// skipped so they are not reported twice. Column requirements for tables
	// that are not required are ignored.
	columnMisses := 0
	for _, table := range cond.RequiredTables {
		required, ok := cond.RequiredColumns[table]
		if !ok {
			continue
		}
		tableMeta, ok := meta[table]
		if !ok || tableMeta == nil {
			continue
		}

		available := make(map[string]struct{}, len(tableMeta.Columns))
		for _, col := range tableMeta.Columns {
			available[col] = struct{}{}
		}

		var missingCols []string
		for _, col := range required {
			if _, ok := available[col]; !ok {
				missingCols = append(missingCols, col)
			}
		}
		if len(missingCols) > 0 {
			missing = append(missing, fmt.Sprintf("%s: %s", table, strings.Join(missingCols, ", ")))
			columnMisses++
		}
	}
	details.ColumnsValidated = columnMisses == 0

	// 3. Row counts warn below the threshold.
	rowWarnings := 0
	for _, table := range cond.RequiredTables {
		tableMeta, ok := meta[table]
		if !ok || tableMeta == nil {
			continue
		}
		if tableMeta.Rows < cond.MinRows {
			warnings = append(warnings,
				fmt.Sprintf("%s: %d rows (minimum: %d)", table, tableMeta.Rows, cond.MinRows))
			rowWarnings++
		}
	}
	details.RowsValidated = rowWarnings == 0

	// 4. Freshness, only when the condition sets a window. The boundary is
	// exclusive: a table exactly freshness_days old is still fresh.
	freshnessWarnings := 0
	if cond.FreshnessDays > 0 {
		threshold := a.now().UTC().AddDate(0, 0, -cond.FreshnessDays)

		for _, table := range cond.RequiredTables {
			tableMeta, ok := meta[table]
			if !ok || tableMeta == nil || tableMeta.LastUpdated == "" {
				continue
			}

			updated, err := metadata.ParseLastUpdated(tableMeta.LastUpdated)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: Invalid timestamp format", table))
				freshnessWarnings++
				continue
			}
			if updated.Before(threshold) {
				warnings = append(warnings,
					fmt.Sprintf("%s: Last updated %s (older than %d days)",
						table, updated.Format("2006-01-02"), cond.FreshnessDays))
				freshnessWarnings++
			}
		}
	}
	details.FreshnessValidated = freshnessWarnings == 0

	// 5. Missing dominates warnings.
	var status Status
	var message string
	switch {
	case len(missing) > 0:
		status = StatusBlocked
		message = fmt.Sprintf("Cannot generate the %s report: required data is missing.", cond.Description)
	case len(warnings) > 0:
		status = StatusPartial
		message = fmt.Sprintf("The %s report can be generated, but some data quality issues were found.", cond.Description)
	default:
		status = StatusReady
		message = fmt.Sprintf("All conditions for the %s report are met.", cond.Description)
	}

	return &ValidationResult{
		ReportType: reportType,
		Status:     status,
		Missing:    missing,
		Warnings:   warnings,
		Message:    message,
		Details:    details,
		Condition:  cond,
	}
}
