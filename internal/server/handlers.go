package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/datapilot/reportgate/internal/dataagent"
	"github.com/datapilot/reportgate/internal/errs"
	"github.com/datapilot/reportgate/internal/exportstore"
	"github.com/datapilot/reportgate/internal/gateagent"
	"github.com/datapilot/reportgate/internal/logger"
	"github.com/datapilot/reportgate/internal/metadata"
	"github.com/datapilot/reportgate/internal/report"
	"github.com/datapilot/reportgate/internal/route"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20 // 1MB

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListReportTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"report_types": s.gate.ReportTypes(),
	})
}

func (s *Server) handleGetReportType(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")
	cond, ok := s.gate.Condition(reportType)
	if !ok {
		writeError(w, errs.New(errs.ErrKindNotFound, "unknown report type"))
		return
	}
	writeJSON(w, http.StatusOK, cond)
}

// validateRequest is the POST /validate body. Either Metadata is supplied
// inline, or the server collects it from Domains (defaulting to the
// condition's genie_domains).
type validateRequest struct {
	Domains  []string     `json:"domains,omitempty"`
	Metadata metadata.Map `json:"metadata,omitempty"`
	Guidance bool         `json:"guidance,omitempty"`
}

// validateResponse pairs the verdict with the quality summary.
type validateResponse struct {
	*gateagent.ValidationResult
	Quality *dataagent.QualitySummary `json:"quality"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")

	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	meta, err := s.collectMetadata(r, reportType, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		ValidationResult: s.validate(r, reportType, meta, req.Guidance),
		Quality:          s.data.AnalyzeQuality(meta),
	})
}

// collectMetadata returns the metadata for a validation request: the inline
// map when supplied, otherwise a fresh collection from the request's domains
// (defaulting to the condition's genie_domains). An unknown report type
// yields an empty map so the gate can produce its canonical verdict.
func (s *Server) collectMetadata(r *http.Request, reportType string, req *validateRequest) (metadata.Map, error) {
	if req.Metadata != nil {
		return req.Metadata, nil
	}

	cond, ok := s.gate.Condition(reportType)
	if !ok {
		return metadata.Map{}, nil
	}
	if s.resolver == nil {
		return nil, errs.New(errs.ErrKindInvalidInput,
			"no metadata supplied and no domain resolver configured")
	}

	domains := req.Domains
	if len(domains) == 0 {
		domains = cond.GenieDomains
	}
	logger.FromContext(r.Context()).With().
		Str("report_type", reportType).Any("domains", domains).Logger().
		Info("collecting metadata")
	return s.data.CollectFromDomains(r.Context(), domains, cond.RequiredTables, s.resolver), nil
}

func (s *Server) validate(r *http.Request, reportType string, meta metadata.Map, guidance bool) *gateagent.ValidationResult {
	if guidance && s.guidance != nil {
		return s.gate.ValidateWithGuidance(r.Context(), reportType, meta, s.guidance)
	}
	return s.gate.Validate(reportType, meta)
}

// reportRequest is the POST /report body: a validation request plus the
// document metadata.
type reportRequest struct {
	validateRequest
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// handleBuildReport validates, renders the report document and either
// archives it to the export store or serves the HTML inline.
func (s *Server) handleBuildReport(w http.ResponseWriter, r *http.Request) {
	reportType := chi.URLParam(r, "type")

	var req reportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	meta, err := s.collectMetadata(r, reportType, &req.validateRequest)
	if err != nil {
		writeError(w, err)
		return
	}

	result := s.validate(r, reportType, meta, req.Guidance)
	quality := s.data.AnalyzeQuality(meta)

	// A blocked verdict means there is no report to build.
	if result.Status == gateagent.StatusBlocked {
		writeJSON(w, http.StatusConflict, validateResponse{
			ValidationResult: result,
			Quality:          quality,
		})
		return
	}

	title := req.Title
	if title == "" {
		title = result.Condition.Description
	}
	author := req.Author
	if author == "" {
		author = "reportgate"
	}

	doc := report.New(title, author)
	doc.Verdict = result
	doc.Quality = quality
	doc.AddTable("Table Inventory",
		[]string{"table", "rows", "last updated"},
		tableInventory(result.Condition.RequiredTables, meta))

	html, err := doc.RenderHTML()
	if err != nil {
		writeError(w, err)
		return
	}

	if s.export == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(html)
		return
	}

	key := exportstore.ReportKey(reportType, doc.GeneratedAt)
	if _, err := s.export.Put(r.Context(), s.exportBucket, key,
		bytes.NewReader(html), int64(len(html)), "text/html"); err != nil {
		writeError(w, err)
		return
	}
	url, err := s.export.PresignGet(r.Context(), s.exportBucket, key, 24*time.Hour)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.FromContext(r.Context()).With().
		Str("report_type", reportType).Str("key", key).Logger().
		Info("report archived")
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": result.Status,
		"key":    key,
		"url":    url,
	})
}

// tableInventory renders the collected metadata as report table rows.
func tableInventory(tables []string, meta metadata.Map) [][]string {
	rows := make([][]string, 0, len(tables))
	for _, table := range tables {
		m, ok := meta[table]
		if !ok || m == nil || !m.Exists {
			rows = append(rows, []string{table, "-", "missing"})
			continue
		}
		updated := m.LastUpdated
		if updated == "" {
			updated = "unknown"
		}
		rows = append(rows, []string{table, strconv.FormatInt(m.Rows, 10), updated})
	}
	return rows
}

type routeRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Question == "" {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "question must not be empty"))
		return
	}
	writeJSON(w, http.StatusOK, route.Classify(req.Question))
}

// --- helpers ---

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty body is fine for optional payloads
		}
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to an HTTP status and emits a JSON body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case errs.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errs.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errs.IsConnectionFailed(err):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
