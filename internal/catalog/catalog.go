// Package catalog loads and exposes the report-condition catalog.
//
// The catalog is a static YAML document mapping each report type to the data
// requirements that must hold before the report may be generated. It is
// loaded once at process start and treated as immutable afterwards; a
// document that fails to parse is a startup error, not a runtime one.
//
// Document shape:
//
//	report_conditions:
//	  monthly_sales:
//	    description: "Monthly sales performance"
//	    required_tables: [sales_summary, profit_margin]
//	    required_columns:
//	      sales_summary: [region, amount]
//	    min_rows: 10
//	    freshness_days: 7
//	    genie_domains: [SALES]
package catalog

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/datapilot/reportgate/internal/errs"
)

// Condition is the full requirement set for one report type.
// Instances are shared and must not be mutated after loading.
type Condition struct {
	// ReportType is the unique catalog key. Filled in by the loader.
	ReportType string `yaml:"-" json:"report_type"`

	// Description is the human-readable report label.
	Description string `yaml:"description" json:"description"`

	// RequiredTables must all be present and non-empty.
	RequiredTables []string `yaml:"required_tables" json:"required_tables"`

	// RequiredColumns maps a table name to the columns it must expose.
	// Keys that are not required tables are ignored by the gate.
	RequiredColumns map[string][]string `yaml:"required_columns" json:"required_columns,omitempty"`

	// MinRows is the row-count threshold. Tables below it warn, not block.
	MinRows int64 `yaml:"min_rows" json:"min_rows"`

	// FreshnessDays, when > 0, warns on tables last updated more than
	// this many days ago.
	FreshnessDays int `yaml:"freshness_days" json:"freshness_days,omitempty"`

	// GenieDomains lists the logical data domains this report draws from.
	GenieDomains []string `yaml:"genie_domains" json:"genie_domains,omitempty"`
}

// Catalog holds all report conditions, keyed by report type.
type Catalog struct {
	order      []string
	conditions map[string]*Condition
}

// document is the top-level YAML shape. The conditions mapping is kept as a
// raw node so declaration order survives decoding.
type document struct {
	ReportConditions yaml.Node `yaml:"report_conditions"`
}

// Load reads and parses the catalog file at path.
// Any failure here must abort process startup.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfigInvalid, fmt.Sprintf("cannot read conditions file %s", path), err)
	}
	return Parse(data)
}

// Parse parses a catalog document from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfigInvalid, "failed to parse conditions YAML", err)
	}

	c := &Catalog{conditions: make(map[string]*Condition)}

	if doc.ReportConditions.Kind == 0 || doc.ReportConditions.Tag == "!!null" {
		// An empty catalog is legal; every lookup simply misses.
		return c, nil
	}
	if doc.ReportConditions.Kind != yaml.MappingNode {
		return nil, errs.New(errs.ErrKindConfigInvalid, "report_conditions must be a mapping")
	}

	// Mapping nodes store key/value pairs as alternating content entries.
	content := doc.ReportConditions.Content
	for i := 0; i+1 < len(content); i += 2 {
		keyNode, valNode := content[i], content[i+1]

		cond := &Condition{ReportType: keyNode.Value}
		if err := valNode.Decode(cond); err != nil {
			return nil, errs.Wrap(errs.ErrKindConfigInvalid,
				fmt.Sprintf("invalid condition for report type %q", keyNode.Value), err)
		}

		if _, dup := c.conditions[cond.ReportType]; dup {
			return nil, errs.New(errs.ErrKindConfigInvalid,
				fmt.Sprintf("duplicate report type %q", cond.ReportType))
		}

		c.order = append(c.order, cond.ReportType)
		c.conditions[cond.ReportType] = cond
	}

	return c, nil
}

// ReportTypes returns all known report-type keys in declaration order.
func (c *Catalog) ReportTypes() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Condition returns the condition for reportType.
// The second return value is false when the report type is unknown — the
// absence itself is the signal consumers use to short-circuit to BLOCKED.
func (c *Catalog) Condition(reportType string) (*Condition, bool) {
	cond, ok := c.conditions[reportType]
	return cond, ok
}

// Len returns the number of report types in the catalog.
func (c *Catalog) Len() int {
	return len(c.order)
}
