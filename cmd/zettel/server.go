package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jeastham1993/zettel-system/internal/api"
	"github.com/jeastham1993/zettel-system/internal/config"
	"github.com/jeastham1993/zettel-system/internal/embedding"
	"github.com/jeastham1993/zettel-system/internal/enrich"
	"github.com/jeastham1993/zettel-system/internal/generate"
	"github.com/jeastham1993/zettel-system/internal/importer"
	"github.com/jeastham1993/zettel-system/internal/notes"
	"github.com/jeastham1993/zettel-system/internal/ollama"
	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/proxy"
	"github.com/jeastham1993/zettel-system/internal/retrieval"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the zettel server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running zettel server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show zettel system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// pipelineSet is one background pipeline fully assembled: its queue, its
// poller scanning the persisted status, and its worker draining the queue.
type pipelineSet struct {
	queue  *outbox.Queue
	poller *outbox.Poller
	worker *outbox.Worker
}

func newPipeline(name string, store outbox.Store, exec outbox.Executor, cfg config.PipelineConfig) pipelineSet {
	queue := outbox.NewQueue(cfg.QueueCapacity)
	return pipelineSet{
		queue:  queue,
		poller: outbox.NewPoller(name, store, queue, cfg.PollInterval(), cfg.Grace(), cfg.Batch),
		worker: outbox.NewWorker(name, store, exec, queue, cfg.ItemTimeout()),
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "zettel version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	if cfg.Server.APIKey == "" {
		return fmt.Errorf("no API key configured: set server.api_key or ZETTEL_API_KEY")
	}

	// Refuse to start twice. The health endpoint is the source of truth; a
	// stale PID file alone does not block startup.
	healthURL := fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(cfg.Server.PIDFile); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(cfg.Server.PIDFile); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(cfg.Server.PIDFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Database.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	ollamaClient := ollama.New(cfg.Ollama.BaseURL, time.Duration(cfg.Ollama.ChatTimeoutSeconds)*time.Second)
	defer ollamaClient.Close()
	if !ollamaClient.IsRunning(ctx) {
		slog.Warn("ollama not reachable, embedding and local generation will fail until it is up", "base_url", cfg.Ollama.BaseURL)
	} else if !ollamaClient.HasModel(ctx, cfg.Embedding.Model) {
		slog.Warn("embedding model not present locally", "model", cfg.Embedding.Model)
	}

	// Retrieval stack.
	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Embedding.Model, cfg.Embedding.MaxChars)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore)

	// Embedding pipeline.
	embedOutbox := store.EmbeddingOutbox(cfg.Embedding.MaxRetries)
	embedExec := embedding.NewExecutor(store, vectorStore, embedder, slog.Default())
	embedPipe := newPipeline("embedding", embedOutbox, embedExec, cfg.Embedding.PipelineConfig)

	// Enrichment pipeline.
	enrichOutbox := store.EnrichmentOutbox(cfg.Enrichment.MaxRetries)
	fetchClient := enrich.NewFetchClient(time.Duration(cfg.Enrichment.FetchTimeoutSeconds) * time.Second)
	enrichExec := enrich.NewExecutor(store, fetchClient, cfg.Enrichment.MaxBodyBytes, slog.Default())
	enrichPipe := newPipeline("enrichment", enrichOutbox, enrichExec, cfg.Enrichment.PipelineConfig)

	// Generation pipeline.
	genOutbox := store.GenerationOutbox(cfg.Generation.MaxRetries)
	var chat generate.ChatClient
	if cfg.Generation.Provider == "openrouter" {
		proxyClient := proxy.NewClient(cfg.Generation.OpenRouterAPIKey)
		defer proxyClient.Close()
		chat = &generate.ProxyChat{Client: proxyClient, Model: cfg.Generation.Model, MaxTokens: cfg.Generation.MaxTokens}
	} else {
		chat = &generate.OllamaChat{Client: ollamaClient, Model: cfg.Generation.Model, MaxTokens: cfg.Generation.MaxTokens}
	}
	composer := generate.NewComposer(store, retriever, 0)
	genExec := generate.NewExecutor(store, composer, chat, slog.Default())
	genPipe := newPipeline("generation", genOutbox, genExec, cfg.Generation.PipelineConfig)

	// Notes service and HTTP API.
	noteSvc := notes.NewService(store, vectorStore, retriever, embedPipe.queue, enrichPipe.queue, slog.Default())
	imp := importer.New(noteSvc)
	handler := api.NewHandler(api.Deps{
		Notes:    noteSvc,
		Store:    store,
		Importer: imp,
		GenQueue: genPipe.queue,
		Outboxes: []api.StuckSource{
			{Outbox: embedOutbox, Grace: cfg.Embedding.Grace()},
			{Outbox: enrichOutbox, Grace: cfg.Enrichment.Grace()},
			{Outbox: genOutbox, Grace: cfg.Generation.Grace()},
		},
		Token: cfg.Server.APIKey,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start the three pipelines. Pollers run their first pass immediately so
	// items abandoned by a previous process are recovered at startup.
	var wg sync.WaitGroup
	for _, p := range []pipelineSet{embedPipe, enrichPipe, genPipe} {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.poller.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			p.worker.Run(ctx)
		}()
	}

	// MCP server on stdio.
	mcpSrv := api.NewMCPServer(api.MCPDeps{Notes: noteSvc})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		slog.Info("zettel listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Workers finish their in-flight item before returning; their terminal
	// status writes are detached from ctx cancellation.
	wg.Wait()
	return nil
}

func stopServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pid, err := readPIDFile(cfg.Server.PIDFile)
	if err != nil {
		printError("zettel is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop zettel (PID %d): %v", pid, err)
		removePIDFile(cfg.Server.PIDFile)
		return err
	}

	printSuccess("Sent stop signal to zettel (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Embed model", "%s", cfg.Embedding.Model)
	printStatus("Generation", "%s via %s", cfg.Generation.Model, cfg.Generation.Provider)
	printStatus("Data dir", "%s", cfg.Database.DataDir)
	return nil
}
