// Package config loads the application configuration: a YAML file plus a
// small set of environment overrides for the secrets that should not live
// in the file.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/datapilot/reportgate/internal/errs"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig            `yaml:"server"`
	Log     LogConfig               `yaml:"log"`
	Catalog CatalogConfig           `yaml:"catalog"`
	Domains map[string]DomainConfig `yaml:"domains"`
	LLM     LLMConfig               `yaml:"llm"`
	Export  ExportConfig            `yaml:"export"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CatalogConfig points at the report-condition catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// DomainConfig describes the metadata backend for one logical data domain.
type DomainConfig struct {
	// Provider selects the backend: "postgres", "mysql" or "genie".
	Provider string `yaml:"provider"`

	// DSN is the connection string for SQL-backed providers.
	DSN string `yaml:"dsn"`

	// SpaceID is the Genie space for genie-backed providers.
	SpaceID string `yaml:"space_id"`
}

// LLMConfig configures the optional guidance client.
type LLMConfig struct {
	// Provider selects the client: "serving", "anthropic" or "" (disabled).
	Provider string `yaml:"provider"`

	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ExportConfig configures the report archive.
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// GenieConfig holds the shared Genie workspace connection, applied to every
// genie-backed domain.
type GenieConfig struct {
	BaseURL string
	Token   string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Catalog: CatalogConfig{Path: "config/report_conditions.yaml"},
		Domains: map[string]DomainConfig{},
		LLM:     LLMConfig{Temperature: 0.3, MaxTokens: 500},
		Export:  ExportConfig{Bucket: "reports"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is fine; a malformed one is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrKindConfigInvalid, fmt.Sprintf("cannot read config %s", path), err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfigInvalid, fmt.Sprintf("failed to parse config %s", path), err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values.
// Secrets are expected here rather than in the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("REPORTGATE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("REPORTGATE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REPORTGATE_CONDITIONS"); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv("REPORTGATE_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("REPORTGATE_EXPORT_ACCESS_KEY"); v != "" {
		c.Export.AccessKey = v
	}
	if v := os.Getenv("REPORTGATE_EXPORT_SECRET_KEY"); v != "" {
		c.Export.SecretKey = v
	}
}

// Genie reads the shared Genie workspace settings from the environment.
func Genie() GenieConfig {
	return GenieConfig{
		BaseURL: os.Getenv("DATABRICKS_HOST"),
		Token:   os.Getenv("DATABRICKS_TOKEN"),
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return errs.New(errs.ErrKindConfigInvalid, "server.addr must not be empty")
	}
	if c.Catalog.Path == "" {
		return errs.New(errs.ErrKindConfigInvalid, "catalog.path must not be empty")
	}
	for name, d := range c.Domains {
		switch d.Provider {
		case "postgres", "mysql":
			if d.DSN == "" {
				return errs.New(errs.ErrKindConfigInvalid,
					fmt.Sprintf("domain %s: dsn is required for provider %s", name, d.Provider))
			}
		case "genie":
			if d.SpaceID == "" {
				return errs.New(errs.ErrKindConfigInvalid,
					fmt.Sprintf("domain %s: space_id is required for provider genie", name))
			}
		default:
			return errs.New(errs.ErrKindConfigInvalid,
				fmt.Sprintf("domain %s: unknown provider %q", name, d.Provider))
		}
	}
	switch c.LLM.Provider {
	case "", "serving", "anthropic":
	default:
		return errs.New(errs.ErrKindConfigInvalid,
			fmt.Sprintf("llm.provider must be serving, anthropic or empty, got %q", c.LLM.Provider))
	}
	return nil
}
