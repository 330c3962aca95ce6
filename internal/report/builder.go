// Package report assembles a business report document from a gate verdict,
// a data-quality summary, and analysis sections collected during a chat
// session. The output is self-contained HTML; PDF conversion is left to
// downstream tooling.
package report

import (
	"bytes"
	"html/template"
	"time"

	"github.com/datapilot/reportgate/internal/dataagent"
	"github.com/datapilot/reportgate/internal/errs"
	"github.com/datapilot/reportgate/internal/gateagent"
)

// SectionKind distinguishes narrative sections from tabular ones.
type SectionKind string

const (
	SectionText  SectionKind = "text"
	SectionTable SectionKind = "table"
)

// Table is tabular section content.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Section is one titled block of the report body.
type Section struct {
	Title string
	Kind  SectionKind
	Body  string // narrative content for SectionText
	Table *Table // tabular content for SectionTable
}

// Report is a complete document ready to render.
type Report struct {
	Title       string
	Author      string
	GeneratedAt time.Time

	// Verdict is the gate evaluation the report was generated under.
	Verdict *gateagent.ValidationResult

	// Quality is the aggregate data-quality summary, when collected.
	Quality *dataagent.QualitySummary

	Sections []Section
}

// New creates a report shell with the generation time stamped.
func New(title, author string) *Report {
	return &Report{
		Title:       title,
		Author:      author,
		GeneratedAt: time.Now().UTC(),
	}
}

// AddText appends a narrative section.
func (r *Report) AddText(title, body string) {
	r.Sections = append(r.Sections, Section{Title: title, Kind: SectionText, Body: body})
}

// AddTable appends a tabular section.
func (r *Report) AddTable(title string, columns []string, rows [][]string) {
	r.Sections = append(r.Sections, Section{
		Title: title,
		Kind:  SectionTable,
		Table: &Table{Columns: columns, Rows: rows},
	})
}

// RenderHTML produces the self-contained HTML document.
func (r *Report) RenderHTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, r); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "render report", err)
	}
	return buf.Bytes(), nil
}

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string { return t.Format("2006-01-02 15:04 UTC") },
	"statusClass": func(s gateagent.Status) string {
		switch s {
		case gateagent.StatusReady:
			return "ready"
		case gateagent.StatusPartial:
			return "partial"
		default:
			return "blocked"
		}
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem auto; max-width: 960px; color: #1a1a2e; }
  header { border-bottom: 2px solid #16213e; padding-bottom: 0.75rem; margin-bottom: 1.5rem; }
  header .meta { color: #666; font-size: 0.9rem; }
  .verdict { border-radius: 6px; padding: 0.75rem 1rem; margin-bottom: 1.5rem; }
  .verdict.ready { background: #e7f6ec; border: 1px solid #2e8b57; }
  .verdict.partial { background: #fff6e0; border: 1px solid #c98a00; }
  .verdict.blocked { background: #fdecec; border: 1px solid #c0392b; }
  table { border-collapse: collapse; width: 100%; margin: 0.75rem 0; }
  th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
  th { background: #f2f2f7; }
  section { margin-bottom: 1.5rem; }
</style>
</head>
<body>
<header>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Author}} · {{fmtTime .GeneratedAt}}</div>
</header>

{{with .Verdict}}
<div class="verdict {{statusClass .Status}}">
  <strong>{{.Status}}</strong> — {{.Message}}
  {{if .Missing}}
  <p>Missing:</p>
  <ul>{{range .Missing}}<li>{{.}}</li>{{end}}</ul>
  {{end}}
  {{if .Warnings}}
  <p>Warnings:</p>
  <ul>{{range .Warnings}}<li>{{.}}</li>{{end}}</ul>
  {{end}}
</div>
{{end}}

{{with .Quality}}
<section>
  <h2>Data Quality Summary</h2>
  <table>
    <tr><th>Tables</th><th>Valid</th><th>Total rows</th><th>Avg rows/table</th><th>With data</th><th>Empty</th><th>Fresh</th></tr>
    <tr>
      <td>{{.TotalTables}}</td><td>{{.ValidTables}}</td><td>{{.TotalRows}}</td>
      <td>{{.AverageRowsPerTable}}</td><td>{{.TablesWithData}}</td><td>{{.EmptyTables}}</td>
      <td>{{if .FreshnessOK}}yes{{else}}no{{end}}</td>
    </tr>
  </table>
</section>
{{end}}

{{range .Sections}}
<section>
  <h2>{{.Title}}</h2>
  {{if eq .Kind "text"}}
  <p>{{.Body}}</p>
  {{else if .Table}}
  <table>
    <tr>{{range .Table.Columns}}<th>{{.}}</th>{{end}}</tr>
    {{range .Table.Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
  </table>
  {{end}}
</section>
{{end}}
</body>
</html>
`))
