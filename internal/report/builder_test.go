package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/reportgate/internal/dataagent"
	"github.com/datapilot/reportgate/internal/gateagent"
)

func TestRenderHTML(t *testing.T) {
	r := New("Monthly Sales Report", "DataPilot")
	r.Verdict = &gateagent.ValidationResult{
		ReportType: "monthly_sales",
		Status:     gateagent.StatusPartial,
		Missing:    []string{},
		Warnings:   []string{"profit_margin: 5 rows (minimum: 10)"},
		Message:    "The monthly_sales report can be generated, but some data quality issues were found.",
	}
	r.Quality = &dataagent.QualitySummary{
		TotalTables:         2,
		ValidTables:         2,
		TotalRows:           105,
		AverageRowsPerTable: 52.5,
		TablesWithData:      2,
		FreshnessOK:         true,
	}
	r.AddText("Summary", "Sales grew 12% month over month.")
	r.AddTable("Top Regions", []string{"region", "amount"}, [][]string{
		{"EMEA", "1,200,000"},
		{"APAC", "950,000"},
	})

	html, err := r.RenderHTML()
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "<title>Monthly Sales Report</title>")
	assert.Contains(t, out, "DataPilot")
	assert.Contains(t, out, `class="verdict partial"`)
	assert.Contains(t, out, "PARTIAL")
	assert.Contains(t, out, "profit_margin: 5 rows (minimum: 10)")
	assert.Contains(t, out, "Data Quality Summary")
	assert.Contains(t, out, "52.5")
	assert.Contains(t, out, "Sales grew 12% month over month.")
	assert.Contains(t, out, "<th>region</th>")
	assert.Contains(t, out, "<td>EMEA</td>")
}

func TestRenderHTML_VerdictClasses(t *testing.T) {
	tests := []struct {
		status    gateagent.Status
		wantClass string
	}{
		{gateagent.StatusReady, `class="verdict ready"`},
		{gateagent.StatusPartial, `class="verdict partial"`},
		{gateagent.StatusBlocked, `class="verdict blocked"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			r := New("t", "a")
			r.Verdict = &gateagent.ValidationResult{Status: tt.status}

			html, err := r.RenderHTML()
			require.NoError(t, err)
			assert.Contains(t, string(html), tt.wantClass)
		})
	}
}

func TestRenderHTML_Minimal(t *testing.T) {
	html, err := New("Bare", "nobody").RenderHTML()
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "<title>Bare</title>")
	assert.NotContains(t, out, `class="verdict`)
	assert.NotContains(t, out, "Data Quality Summary")
}

func TestRenderHTML_EscapesContent(t *testing.T) {
	r := New("Report <script>alert(1)</script>", "a")
	r.AddText("Notes", "value is <b>bold</b>")

	html, err := r.RenderHTML()
	require.NoError(t, err)

	out := string(html)
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.NotContains(t, out, "<b>bold</b>")
	assert.Contains(t, out, "&lt;b&gt;bold&lt;/b&gt;")
}
