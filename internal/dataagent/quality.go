package dataagent

import (
	"math"
	"time"

	"github.com/datapilot/reportgate/internal/metadata"
)

// qualityFreshnessWindow is the fixed staleness window AnalyzeQuality uses.
// It is independent of any per-report freshness_days threshold.
const qualityFreshnessWindow = 30 * 24 * time.Hour

// QualitySummary aggregates data-quality statistics over a metadata map.
type QualitySummary struct {
	TotalTables         int     `json:"total_tables"`
	ValidTables         int     `json:"valid_tables"`
	TotalRows           int64   `json:"total_rows"`
	AverageRowsPerTable float64 `json:"average_rows_per_table"`
	TablesWithData      int     `json:"tables_with_data"`
	EmptyTables         int     `json:"empty_tables"`
	FreshnessOK         bool    `json:"freshness_ok"`
}

// AnalyzeQuality derives aggregate statistics from a metadata map.
//
// FreshnessOK is false as soon as any table's parseable LastUpdated is older
// than the 30-day window; tables without a timestamp, or with one that does
// not parse, are not counted against freshness.
func (a *Agent) AnalyzeQuality(meta metadata.Map) *QualitySummary {
	s := &QualitySummary{
		TotalTables: len(meta),
		FreshnessOK: true,
	}

	cutoff := time.Now().UTC().Add(-qualityFreshnessWindow)

	for _, m := range meta {
		// Entries decoded from JSON nulls carry no metadata at all.
		if m == nil {
			continue
		}
		if m.Exists {
			s.ValidTables++
		}
		s.TotalRows += m.Rows
		if m.Rows > 0 {
			s.TablesWithData++
		}

		if m.LastUpdated == "" {
			continue
		}
		updated, err := metadata.ParseLastUpdated(m.LastUpdated)
		if err != nil {
			continue
		}
		if updated.Before(cutoff) {
			s.FreshnessOK = false
		}
	}

	s.EmptyTables = s.ValidTables - s.TablesWithData

	if s.ValidTables > 0 {
		avg := float64(s.TotalRows) / float64(s.ValidTables)
		s.AverageRowsPerTable = math.Round(avg*100) / 100
	}

	return s
}
