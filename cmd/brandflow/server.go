package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/catalog"
	"github.com/brandflow/brandflow/internal/config"
	"github.com/brandflow/brandflow/internal/engine"
	"github.com/brandflow/brandflow/internal/flow"
	"github.com/brandflow/brandflow/internal/gemini"
	"github.com/brandflow/brandflow/internal/leads"
	"github.com/brandflow/brandflow/internal/ollama"
	"github.com/brandflow/brandflow/internal/scrape"
	"github.com/brandflow/brandflow/internal/storage"
	"github.com/brandflow/brandflow/internal/telemetry"
)

const (
	shutdownTimeout = 5 * time.Second
	mcpEndpoint     = "/mcp"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the brandflow server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(stdio)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show brandflow system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP")
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "brandflow version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Setup(telemetry.Options{
		Metrics:     cfg.Telemetry.MetricsEnabled,
		TraceStdout: cfg.Telemetry.TraceStdout,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	store, err := storage.Open(ctx, cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing storage", zap.Error(err))
		}
	}()
	log.Info("storage ready", zap.String("backend", cfg.Storage.Backend))

	cat, err := catalog.Load(cfg.Flows.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading flow catalog: %w", err)
	}

	eng, err := engine.Detect(ctx, engine.DetectConfig{
		Backend: cfg.Engine.Backend,
		Timeout: cfg.Engine.Timeout,
		Gemini: gemini.Config{
			APIKey:   cfg.Gemini.APIKey,
			Project:  cfg.Gemini.VertexProject,
			Location: cfg.Gemini.VertexLocation,
		},
		OpenRouterAPIKey:  cfg.OpenRouter.APIKey,
		OpenRouterBaseURL: cfg.OpenRouter.BaseURL,
		OllamaBaseURL:     cfg.Ollama.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("detecting generation engine: %w", err)
	}
	if oe, ok := eng.(*engine.OllamaEngine); ok {
		for _, model := range catalogModels(cat, cfg.Engine.Model) {
			if err := ollama.EnsureReady(ctx, oe.Client(), model, os.Stderr); err != nil {
				return err
			}
		}
	}
	log.Info("engine ready", zap.String("backend", eng.Name()), zap.String("model", cfg.Engine.Model))

	flows := api.NewFlows(cat, cfg.Engine.Model, flow.Deps{
		Engine:  eng,
		Store:   store,
		Logger:  logger,
		Metrics: provider.Recorder,
		Dedupe:  cfg.Flows.Dedupe,
	}, scrape.New(nil, logger))

	leadURL := cfg.Leads.FunctionURL
	if leadURL == "" && cfg.Leads.ProjectID != "" {
		leadURL = leads.FunctionURL(cfg.Leads.ProjectID)
	}
	if leadURL == "" {
		log.Warn("lead forwarding not configured; set leads.function_url or leads.project_id")
	}
	forwarder := leads.NewForwarder(leadURL, &http.Client{Timeout: 30 * time.Second}, logger, provider.Recorder)

	if cfg.API.Token == "" {
		log.Warn("BRANDFLOW_API_TOKEN is not set; admin routes will reject every request")
	}

	handler := api.NewHandler(api.Deps{
		Flows:        flows,
		Catalog:      cat,
		DefaultModel: cfg.Engine.Model,
		Store:        store,
		Leads:        forwarder,
		Token:        cfg.API.Token,
		Logger:       logger,
		Metrics:      provider.Handler(),
	})

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	mcpSrv := api.NewMCPServer(flows, version, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printStep("brandflow listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var mcpHTTP *http.Server
	if mcpStdio {
		g.Go(func() error {
			log.Info("MCP server started", zap.String("transport", "stdio"))
			err := server.NewStdioServer(mcpSrv).Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp stdio: %w", err)
			}
			return nil
		})
	} else {
		mux := http.NewServeMux()
		mux.Handle(mcpEndpoint, server.NewStreamableHTTPServer(mcpSrv, server.WithEndpointPath(mcpEndpoint)))
		mcpAddr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.MCPPort))
		mcpHTTP = &http.Server{
			Addr:              mcpAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			printStep("MCP listening on http://%s%s", mcpAddr, mcpEndpoint)
			if err := mcpHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mcp http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs := []error{srv.Shutdown(shutdownCtx)}
		if mcpHTTP != nil {
			errs = append(errs, mcpHTTP.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// catalogModels lists the distinct models of enabled flows.
func catalogModels(cat *catalog.Catalog, defaultModel string) []string {
	seen := make(map[string]bool)
	var models []string
	for _, e := range cat.Entries(defaultModel) {
		if !e.Enabled || seen[e.Model] {
			continue
		}
		seen[e.Model] = true
		models = append(models, e.Model)
	}
	return models
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := cfg.ServerURL()

	running := false
	if resp, err := statusGet(ctx, client, serverURL+"/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		running = resp.StatusCode == http.StatusOK
		if running {
			printStatus("Server", "running on %s", serverURL)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}
	if running {
		if resp, err := statusGet(ctx, client, serverURL+"/ready"); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				printStatus("Storage", "%s (ready)", cfg.Storage.Backend)
			} else {
				printStatus("Storage", "%s (not ready, HTTP %d)", cfg.Storage.Backend, resp.StatusCode)
			}
		}
	} else {
		printStatus("Storage", "%s", cfg.Storage.Backend)
	}

	printStatus("Engine", "%s", cfg.Engine.Backend)
	printStatus("Model", "%s", cfg.Engine.Model)
	if cfg.Engine.Backend == engine.BackendOllama {
		if ollama.New(cfg.Ollama.BaseURL, 2*time.Second).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
	}

	if running && cfg.API.Token != "" {
		c := &apiClient{baseURL: serverURL, token: cfg.API.Token, httpClient: client}
		if resp, err := c.get(ctx, "/v1/flows"); err == nil {
			var entries []catalog.Entry
			if decodeJSON(resp, &entries) == nil {
				enabled := 0
				for _, e := range entries {
					if e.Enabled {
						enabled++
					}
				}
				printStatus("Flows", "%d enabled of %d", enabled, len(entries))
			}
		}
	}

	if cfg.Storage.Backend == "sqlite" {
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
	}
	printStatus("MCP", "http://%s:%d%s", cfg.Server.Host, cfg.Server.MCPPort, mcpEndpoint)
	return nil
}

func statusGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}
