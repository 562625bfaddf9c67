package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumenlearn/lumen/api"
	"github.com/lumenlearn/lumen/internal/auth"
	"github.com/lumenlearn/lumen/internal/config"
	"github.com/lumenlearn/lumen/internal/conversation"
	"github.com/lumenlearn/lumen/internal/mcp"
	"github.com/lumenlearn/lumen/internal/provider"
	"github.com/lumenlearn/lumen/internal/quota"
	"github.com/lumenlearn/lumen/internal/ratelimit"
	"github.com/lumenlearn/lumen/internal/retrieval"
	"github.com/lumenlearn/lumen/internal/server"
	"github.com/lumenlearn/lumen/internal/service/assistant"
	"github.com/lumenlearn/lumen/internal/storage"
	"github.com/lumenlearn/lumen/internal/telemetry"
	"github.com/lumenlearn/lumen/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("LUMEN_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("lumen starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Create JWT manager.
	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// Create the completion provider. A missing API key is not fatal: the
	// service starts degraded, generation endpoints reject fast, and health
	// reports the condition so operators can see it.
	var client provider.Client
	openAI, err := provider.NewOpenAI(cfg.OpenAIAPIKey, cfg.CompletionModel, cfg.ProviderTimeout, logger)
	switch {
	case errors.Is(err, provider.ErrNotConfigured):
		logger.Warn("completion provider: not configured, starting degraded (set OPENAI_API_KEY)")
	case err != nil:
		return fmt.Errorf("provider: %w", err)
	default:
		client = openAI
		logger.Info("completion provider: openai", "model", openAI.ModelName())
	}

	// Quota ledger backed by Postgres so limits hold across replicas.
	ledger := quota.NewPostgresLedger(db)

	// Knowledge retrieval over recent org corpus entries.
	index := retrieval.New(db, cfg.CandidateLimit, logger)

	// Append-only conversation log.
	log := conversation.NewLog(db)

	// Assistant service (shared by HTTP and MCP handlers).
	svc := assistant.New(db, ledger, index, log, client, logger)

	// MCP server exposing assistant tools over streamable HTTP.
	mcpSrv := mcp.New(svc, index, version, logger)

	// Create rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = limiter.Close() }()
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Create and start HTTP server (MCP mounted at /mcp).
	srv := server.New(server.ServerConfig{
		DB:                  db,
		JWTMgr:              jwtMgr,
		Assistant:           svc,
		Index:               index,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown: stop accepting new requests and drain in-flight
	// completions. The budget exceeds the provider timeout so a generation
	// that already spent quota is not cut off mid-flight.
	slog.Info("lumen shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout+10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("lumen stopped")
	return nil
}
