// Package lumen is the public API for embedding the Lumen assistant server.
//
// Platform consumers import this package to construct and extend the server
// without forking it:
//
//	app, err := lumen.New(
//	    lumen.WithVersion(version),
//	    lumen.WithLogger(logger),
//	    lumen.WithExtraRoutes(myPlatformRoutes),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: lumen (root) imports
// internal/*, but internal/* never imports lumen (root). Public types
// (CompletionRequest, Completion) are standalone structs with no internal
// imports; conversion adapters live here because this is the only file that
// sees both sides of the boundary.
package lumen

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumenlearn/lumen/api"
	"github.com/lumenlearn/lumen/internal/auth"
	"github.com/lumenlearn/lumen/internal/config"
	"github.com/lumenlearn/lumen/internal/conversation"
	"github.com/lumenlearn/lumen/internal/mcp"
	"github.com/lumenlearn/lumen/internal/model"
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

// App is the Lumen server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the Lumen server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("lumen starting", "version", version, "port", cfg.Port)

	ctx := context.Background()

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("storage: %w", err)
	}

	fail := func(err error) (*App, error) {
		db.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	migrationSets := append([]fs.FS{migrations.FS}, o.extraMigrations...)
	for _, set := range migrationSets {
		if err := db.RunMigrations(ctx, set); err != nil {
			return fail(fmt.Errorf("migrations: %w", err))
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fail(fmt.Errorf("auth: %w", err))
	}

	client, err := newCompletionClient(cfg, o, logger)
	if err != nil {
		return fail(fmt.Errorf("provider: %w", err))
	}

	ledger := quota.NewPostgresLedger(db)
	index := retrieval.New(db, cfg.CandidateLimit, logger)
	log := conversation.NewLog(db)
	svc := assistant.New(db, ledger, index, log, client, logger)
	mcpSrv := mcp.New(svc, index, version, logger)

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
	}

	extraRoutes := make([]func(mux *http.ServeMux), 0, len(o.routeRegistrars))
	for _, fn := range o.routeRegistrars {
		extraRoutes = append(extraRoutes, fn)
	}
	middlewares := make([]func(http.Handler) http.Handler, 0, len(o.middlewares))
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	srv := server.New(server.ServerConfig{
		DB:                  db,
		JWTMgr:              jwtMgr,
		Assistant:           svc,
		Index:               index,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		ExtraRoutes:         extraRoutes,
		Middlewares:         middlewares,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. On cancellation it performs a graceful shutdown and releases all
// resources; the App cannot be reused afterwards.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	a.logger.Info("lumen shutting down")

	// Shutdown budget exceeds the provider timeout so an in-flight generation
	// that already spent quota is not cut off.
	httpCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ProviderTimeout+10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	a.logger.Info("lumen stopped")
	return nil
}

// Handler returns the root HTTP handler without starting a listener.
// Intended for embedding tests that drive the server with httptest.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

func (a *App) close() {
	_ = a.limiter.Close()
	a.db.Close()
	_ = a.otelShutdown(context.Background())
}

// newCompletionClient selects the completion client: an embedder-supplied
// provider wins, then OpenAI if a key is configured, else nil (degraded).
func newCompletionClient(cfg config.Config, o resolvedOptions, logger *slog.Logger) (provider.Client, error) {
	if o.completion != nil {
		logger.Info("completion provider: custom", "model", o.completion.ModelName())
		return providerAdapter{o.completion}, nil
	}

	client, err := provider.NewOpenAI(cfg.OpenAIAPIKey, cfg.CompletionModel, cfg.ProviderTimeout, logger)
	if errors.Is(err, provider.ErrNotConfigured) {
		logger.Warn("completion provider: not configured, starting degraded (set OPENAI_API_KEY)")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("completion provider: openai", "model", client.ModelName())
	return client, nil
}

// providerAdapter bridges the public CompletionProvider interface to the
// internal provider.Client without exposing internal types to embedders.
type providerAdapter struct {
	p CompletionProvider
}

func (a providerAdapter) Complete(ctx context.Context, req provider.Request) (provider.Completion, error) {
	turns := make([]Turn, 0, len(req.Turns))
	for _, t := range req.Turns {
		turns = append(turns, Turn{Role: TurnRole(t.Role), Content: t.Content})
	}

	out, err := a.p.Complete(ctx, CompletionRequest{
		System:    req.System,
		Turns:     turns,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return provider.Completion{}, err
	}
	return provider.Completion{
		Text: out.Text,
		Usage: model.TokenUsage{
			PromptTokens:     out.PromptTokens,
			CompletionTokens: out.CompletionTokens,
		},
	}, nil
}

func (a providerAdapter) ModelName() string {
	return a.p.ModelName()
}
