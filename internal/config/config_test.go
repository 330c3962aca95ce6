package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/reportgate/internal/errs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reportgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "config/report_conditions.yaml", cfg.Catalog.Path)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Empty(t, cfg.Domains)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
log:
  level: debug
catalog:
  path: /etc/reportgate/conditions.yaml
domains:
  SALES:
    provider: postgres
    dsn: "postgres://u@localhost:5432/warehouse"
  REGION:
    provider: genie
    space_id: "space-7"
llm:
  provider: serving
  base_url: "https://llm.example.com/serving-endpoints"
  model: guidance-model
export:
  enabled: true
  endpoint: "localhost:9000"
  bucket: archive
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/etc/reportgate/conditions.yaml", cfg.Catalog.Path)

	require.Len(t, cfg.Domains, 2)
	assert.Equal(t, "postgres", cfg.Domains["SALES"].Provider)
	assert.Equal(t, "space-7", cfg.Domains["REGION"].SpaceID)

	assert.Equal(t, "serving", cfg.LLM.Provider)
	assert.Equal(t, "guidance-model", cfg.LLM.Model)
	// Values the file does not set keep their defaults.
	assert.Equal(t, 500, cfg.LLM.MaxTokens)

	assert.True(t, cfg.Export.Enabled)
	assert.Equal(t, "archive", cfg.Export.Bucket)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REPORTGATE_ADDR", ":7070")
	t.Setenv("REPORTGATE_LOG_LEVEL", "warn")
	t.Setenv("REPORTGATE_LLM_API_KEY", "secret-key")

	path := writeConfig(t, `
server:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "secret-key", cfg.LLM.APIKey)
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")

	cfg, err := Load(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, errs.IsConfigInvalid(err))
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown domain provider",
			content: `
domains:
  SALES:
    provider: oracle
    dsn: "oracle://x"
`,
			wantErr: "unknown provider",
		},
		{
			name: "sql provider without dsn",
			content: `
domains:
  SALES:
    provider: postgres
`,
			wantErr: "dsn is required",
		},
		{
			name: "genie provider without space",
			content: `
domains:
  REGION:
    provider: genie
`,
			wantErr: "space_id is required",
		},
		{
			name: "unknown llm provider",
			content: `
llm:
  provider: chatbot9000
`,
			wantErr: "llm.provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, errs.IsConfigInvalid(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenie(t *testing.T) {
	t.Setenv("DATABRICKS_HOST", "https://dbc-123.cloud.databricks.com")
	t.Setenv("DATABRICKS_TOKEN", "dapi-token")

	g := Genie()
	assert.Equal(t, "https://dbc-123.cloud.databricks.com", g.BaseURL)
	assert.Equal(t, "dapi-token", g.Token)
}
