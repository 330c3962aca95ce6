// Command reportgate runs the report-readiness gate as an HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"

	"github.com/datapilot/reportgate/internal/catalog"
	"github.com/datapilot/reportgate/internal/config"
	"github.com/datapilot/reportgate/internal/dataagent"
	"github.com/datapilot/reportgate/internal/exportstore"
	miniostore "github.com/datapilot/reportgate/internal/exportstore/minio"
	"github.com/datapilot/reportgate/internal/gateagent"
	"github.com/datapilot/reportgate/internal/genie"
	"github.com/datapilot/reportgate/internal/llm"
	"github.com/datapilot/reportgate/internal/logger"
	"github.com/datapilot/reportgate/internal/metadata"
	genieprovider "github.com/datapilot/reportgate/internal/metadata/genie"
	"github.com/datapilot/reportgate/internal/metadata/mysql"
	"github.com/datapilot/reportgate/internal/metadata/postgres"
	"github.com/datapilot/reportgate/internal/server"
)

func main() {
	configPath := flag.String("config", "config/reportgate.yaml", "path to the application config")
	flag.Parse()

	// Local development keeps secrets in .env; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reportgate: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Fatalf("reportgate: %v", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A catalog that does not parse is a startup failure, never a runtime one.
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	log.With().Int("report_types", cat.Len()).Logger().Info("condition catalog loaded")

	providers, err := buildProviders(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, p := range providers {
			_ = p.Close()
		}
	}()

	resolver := func(domain string) (metadata.Provider, error) {
		p, ok := providers[domain]
		if !ok {
			return nil, fmt.Errorf("no provider configured for domain %q", domain)
		}
		return p, nil
	}

	gate := gateagent.New(cat)
	data := dataagent.New(log)

	opts := []server.Option{server.WithLogger(log)}
	if guidance := buildGuidanceClient(cfg); guidance != nil {
		opts = append(opts, server.WithGuidanceClient(guidance))
	}
	if cfg.Export.Enabled {
		store, err := miniostore.New(ctx, &exportstore.Config{
			Endpoint:  cfg.Export.Endpoint,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
			UseSSL:    cfg.Export.UseSSL,
			Bucket:    cfg.Export.Bucket,
		})
		if err != nil {
			return fmt.Errorf("export store: %w", err)
		}
		defer store.Close()
		opts = append(opts, server.WithExportStore(store, cfg.Export.Bucket))
		log.With().Str("endpoint", cfg.Export.Endpoint).Str("bucket", cfg.Export.Bucket).Logger().
			Info("report archive ready")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(gate, data, resolver, opts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.With().Str("addr", cfg.Server.Addr).Logger().Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildProviders connects a metadata provider per configured domain.
func buildProviders(ctx context.Context, cfg *config.Config, log *logger.Logger) (map[string]metadata.Provider, error) {
	providers := make(map[string]metadata.Provider, len(cfg.Domains))
	genieCfg := config.Genie()

	for name, d := range cfg.Domains {
		var (
			p   metadata.Provider
			err error
		)
		switch d.Provider {
		case "postgres":
			p, err = postgres.New(ctx, metadata.DefaultConfig(d.DSN))
		case "mysql":
			p, err = mysql.New(ctx, metadata.DefaultConfig(d.DSN))
		case "genie":
			p = genieprovider.New(genie.New(genie.Config{
				BaseURL: genieCfg.BaseURL,
				Token:   genieCfg.Token,
				SpaceID: d.SpaceID,
			}))
		}
		if err != nil {
			for _, open := range providers {
				_ = open.Close()
			}
			return nil, fmt.Errorf("domain %s: %w", name, err)
		}

		providers[name] = p
		log.With().Str("domain", name).Str("provider", d.Provider).Logger().
			Info("metadata provider ready")
	}

	return providers, nil
}

// buildGuidanceClient returns nil when guidance is disabled.
func buildGuidanceClient(cfg *config.Config) llm.Client {
	switch cfg.LLM.Provider {
	case "serving":
		return llm.NewServingClient(llm.ServingConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
	case "anthropic":
		return llm.NewAnthropicClient(anthropic.Model(cfg.LLM.Model), int64(cfg.LLM.MaxTokens))
	default:
		return nil
	}
}
