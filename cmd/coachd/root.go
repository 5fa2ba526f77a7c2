package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lumohealth/coachd/internal/agent"
	"github.com/lumohealth/coachd/internal/api"
	"github.com/lumohealth/coachd/internal/config"
	"github.com/lumohealth/coachd/internal/llm"
	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/worker"
	"github.com/lumohealth/coachd/internal/writeback"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "coachd",
	Short: "Coachd - AI Coaching Assistant Backend",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(newLogHandler(cfg.Log))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize chat generator
	gen := llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model)
	slog.Info("generator initialized", "model", cfg.LLM.Model)

	// 6. Writeback pipeline: reconciliation engine, audit recorder, commit coordinator
	engine := writeback.NewEngine(db)
	recorder := writeback.NewRecorder(db)
	commits := writeback.NewCoordinator(db, engine, recorder,
		time.Duration(cfg.Commit.PendingGrace))
	slog.Info("writeback coordinator initialized",
		"pending_grace", time.Duration(cfg.Commit.PendingGrace).String())

	// 7. Agent: delegate, tool dispatcher, turn controller
	delegate := agent.NewDelegate(gen)
	dispatcher := agent.NewDispatcher(db, delegate)
	turns := agent.NewController(db, gen, dispatcher, commits,
		cfg.Turn.MaxToolRounds, time.Duration(cfg.Turn.Timeout))
	slog.Info("turn controller initialized",
		"max_tool_rounds", cfg.Turn.MaxToolRounds,
		"timeout", time.Duration(cfg.Turn.Timeout).String())

	// 8. Initialize HTTP router
	handler := api.NewHandler(db, commits, turns, gen, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 9. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 10. Background workers
	var wg sync.WaitGroup
	pruner := worker.NewAuditPruneWorker(db,
		time.Duration(cfg.Worker.AuditPruneInterval),
		time.Duration(cfg.Worker.AuditRetention))
	startWorker(ctx, &wg, "audit-prune", pruner.Run)

	// 11. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 12. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 13. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 13a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 13b. Wait for workers to complete
	wg.Wait()

	// 13c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogHandler(cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
