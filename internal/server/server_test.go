package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/reportgate/internal/catalog"
	"github.com/datapilot/reportgate/internal/dataagent"
	"github.com/datapilot/reportgate/internal/errs"
	"github.com/datapilot/reportgate/internal/exportstore"
	"github.com/datapilot/reportgate/internal/gateagent"
	"github.com/datapilot/reportgate/internal/llm"
	"github.com/datapilot/reportgate/internal/metadata"
)

const serverConditions = `
report_conditions:
  monthly_sales:
    description: "Monthly sales performance"
    required_tables: [sales_summary]
    required_columns:
      sales_summary: [region, amount]
    min_rows: 10
    genie_domains: [SALES]
  contract_overview:
    description: "Contract portfolio overview"
    required_tables: [contracts]
`

// stubProvider answers Describe from a fixed map.
type stubProvider struct {
	tables map[string]*metadata.TableMetadata
}

func (p *stubProvider) Describe(_ context.Context, table string) (*metadata.TableMetadata, error) {
	meta, ok := p.tables[table]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such table")
	}
	return meta, nil
}

func (p *stubProvider) Ping(context.Context) error { return nil }
func (p *stubProvider) Close() error               { return nil }

type guidanceStub struct{ content string }

func (g *guidanceStub) Chat(context.Context, string, string) (*llm.Response, error) {
	return &llm.Response{Content: g.content}, nil
}

// exportStub keeps archived reports in memory.
type exportStub struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newExportStub() *exportStub {
	return &exportStub{objects: make(map[string][]byte)}
}

func (e *exportStub) Ping(context.Context) error { return nil }
func (e *exportStub) Close() error               { return nil }

func (e *exportStub) Put(_ context.Context, _, key string, body io.Reader, size int64, contentType string) (*exportstore.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.objects[key] = data
	e.mu.Unlock()
	return &exportstore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (e *exportStub) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	e.mu.Lock()
	data, ok := e.objects[key]
	e.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (e *exportStub) Stat(_ context.Context, _, key string) (*exportstore.ObjectInfo, error) {
	e.mu.Lock()
	data, ok := e.objects[key]
	e.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "object not found")
	}
	return &exportstore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (e *exportStub) PresignGet(_ context.Context, _, key string, _ time.Duration) (string, error) {
	return "https://archive.local/" + key, nil
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()

	cat, err := catalog.Parse([]byte(serverConditions))
	require.NoError(t, err)

	resolver := func(domain string) (metadata.Provider, error) {
		if domain != "SALES" {
			return nil, errs.New(errs.ErrKindConnectionFailed, "unknown domain")
		}
		return &stubProvider{tables: map[string]*metadata.TableMetadata{
			"sales_summary": {
				Columns:     []string{"region", "amount"},
				Rows:        120,
				LastUpdated: time.Now().UTC().Format(time.RFC3339),
				Exists:      true,
			},
		}}, nil
	}

	srv := httptest.NewServer(New(gateagent.New(cat), dataagent.New(nil), resolver, opts...).Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func postJSON(t *testing.T, url string, body, out any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, srv.URL+"/healthz", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestListReportTypes(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		ReportTypes []string `json:"report_types"`
	}
	resp := getJSON(t, srv.URL+"/v1/report-types", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"monthly_sales", "contract_overview"}, body.ReportTypes)
}

func TestGetReportType(t *testing.T) {
	srv := newTestServer(t)

	var cond catalog.Condition
	resp := getJSON(t, srv.URL+"/v1/report-types/monthly_sales", &cond)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "monthly_sales", cond.ReportType)
	assert.Equal(t, []string{"sales_summary"}, cond.RequiredTables)
}

func TestGetReportType_Unknown(t *testing.T) {
	srv := newTestServer(t)

	resp := getJSON(t, srv.URL+"/v1/report-types/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidate_InlineMetadata(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status   string                    `json:"status"`
		Missing  []string                  `json:"missing"`
		Warnings []string                  `json:"warnings"`
		Quality  *dataagent.QualitySummary `json:"quality"`
	}
	resp := postJSON(t, srv.URL+"/v1/report-types/monthly_sales/validate", map[string]any{
		"metadata": metadata.Map{
			"sales_summary": {
				Columns: []string{"region", "amount"},
				Rows:    3,
				Exists:  true,
			},
		},
	}, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PARTIAL", body.Status)
	assert.Empty(t, body.Missing)
	assert.Equal(t, []string{"sales_summary: 3 rows (minimum: 10)"}, body.Warnings)

	require.NotNil(t, body.Quality)
	assert.Equal(t, 1, body.Quality.TotalTables)
	assert.Equal(t, int64(3), body.Quality.TotalRows)
}

// Explicit JSON nulls in the metadata map must come back as a BLOCKED
// verdict, not a 500 from the recoverer.
func TestValidate_NullMetadataEntries(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status  string   `json:"status"`
		Missing []string `json:"missing"`
	}
	resp := postJSON(t, srv.URL+"/v1/report-types/monthly_sales/validate", map[string]any{
		"metadata": map[string]any{
			"sales_summary": nil,
		},
	}, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BLOCKED", body.Status)
	assert.Equal(t, []string{"sales_summary"}, body.Missing)
}

func TestValidate_CollectsFromDomains(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status string `json:"status"`
	}
	// Empty body: domains default to the condition's genie_domains and the
	// stub resolver serves the metadata.
	resp := postJSON(t, srv.URL+"/v1/report-types/monthly_sales/validate", map[string]any{}, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "READY", body.Status)
}

func TestValidate_UnknownType(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status  string   `json:"status"`
		Missing []string `json:"missing"`
	}
	resp := postJSON(t, srv.URL+"/v1/report-types/nope/validate", map[string]any{}, &body)

	// The verdict itself is the answer; the request did not fail.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BLOCKED", body.Status)
	assert.Equal(t, []string{"unknown_report_type"}, body.Missing)
}

func TestValidate_WithGuidance(t *testing.T) {
	srv := newTestServer(t, WithGuidanceClient(&guidanceStub{content: "Backfill the contracts table."}))

	var body struct {
		Status      string `json:"status"`
		LLMGuidance string `json:"llm_guidance"`
	}
	resp := postJSON(t, srv.URL+"/v1/report-types/contract_overview/validate", map[string]any{
		"metadata": metadata.Map{},
		"guidance": true,
	}, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BLOCKED", body.Status)
	assert.Equal(t, "Backfill the contracts table.", body.LLMGuidance)
}

func TestValidate_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/report-types/monthly_sales/validate",
		"application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoute(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Intents []string `json:"intents"`
		Domains []string `json:"domains"`
	}
	resp := postJSON(t, srv.URL+"/v1/route", map[string]string{
		"question": "Plot revenue by branch",
	}, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"DATA_RETRIEVAL", "VISUALIZATION"}, body.Intents)
	assert.Equal(t, []string{"SALES", "REGION"}, body.Domains)
}

func TestRoute_EmptyQuestion(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/route", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBuildReport_InlineHTML(t *testing.T) {
	srv := newTestServer(t)

	payload, err := json.Marshal(map[string]any{
		"title": "August Sales",
		"metadata": metadata.Map{
			"sales_summary": {
				Columns: []string{"region", "amount"},
				Rows:    120,
				Exists:  true,
			},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/report-types/monthly_sales/report",
		"application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>August Sales</title>")
	assert.Contains(t, string(html), "Table Inventory")
	assert.Contains(t, string(html), "sales_summary")
}

func TestBuildReport_BlockedVerdict(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status  string   `json:"status"`
		Missing []string `json:"missing"`
	}
	resp := postJSON(t, srv.URL+"/v1/report-types/monthly_sales/report", map[string]any{
		"metadata": metadata.Map{},
	}, &body)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "BLOCKED", body.Status)
	assert.Equal(t, []string{"sales_summary"}, body.Missing)
}

func TestBuildReport_Archived(t *testing.T) {
	store := newExportStub()
	srv := newTestServer(t, WithExportStore(store, "reports"))

	var body struct {
		Status string `json:"status"`
		Key    string `json:"key"`
		URL    string `json:"url"`
	}
	resp := postJSON(t, srv.URL+"/v1/report-types/monthly_sales/report", map[string]any{
		"metadata": metadata.Map{
			"sales_summary": {
				Columns: []string{"region", "amount"},
				Rows:    120,
				Exists:  true,
			},
		},
	}, &body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "READY", body.Status)
	assert.Contains(t, body.Key, "monthly_sales")
	assert.Equal(t, "https://archive.local/"+body.Key, body.URL)

	// The archived object is the rendered document.
	store.mu.Lock()
	html, ok := store.objects[body.Key]
	store.mu.Unlock()
	require.True(t, ok)
	assert.Contains(t, string(html), "Monthly sales performance")
}

func TestRequestID_Propagated(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
}
