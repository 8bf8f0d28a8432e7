package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/identity"
	"github.com/jonathan/resume-optimizer/internal/jobs"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/server"
	"github.com/jonathan/resume-optimizer/internal/server/ratelimit"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/spf13/cobra"
)

const (
	serviceName        = "resume-optimizer"
	serviceVersion     = "0.1.0"
	dbConnectMaxWait   = 30 * time.Second
	backendTimeout     = 60 * time.Second
	importCacheSize    = 256
	importCacheTTL     = 15 * time.Minute
	browserTimeout     = 30 * time.Second
	tracingFlushWindow = 5 * time.Second
)

var (
	servePort       string
	serveMigrate    bool
	serveUseBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web application",
	Long: `Start the HTTP server: marketing pages, the signed-in workspace and its JSON API.

Configuration is read from the environment (and a .env file). Without DATABASE_URL
users and state are kept in memory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
	serveCmd.Flags().BoolVar(&serveUseBrowser, "use-browser", false, "Render script-heavy job boards with headless Chrome when importing")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.NewServerConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}

	logger, err := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Exporter:       cfg.TracingExporter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	closers = append(closers, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracingFlushWindow)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	})

	deps, err := buildServerDeps(ctx, cfg, logger, &closers)
	if err != nil {
		closeAll()
		return err
	}
	deps.JWTConfig = jwtCfg
	deps.Close = closeAll

	srv, err := server.New(*deps)
	if err != nil {
		closeAll()
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run(ctx)
}

// buildServerDeps wires storage, the backend client and the optional services.
// Anything that must be released later is appended to closers.
func buildServerDeps(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger, closers *[]func()) (*server.Deps, error) {
	metrics := observability.NewMetrics()

	var sealer state.Sealer
	if cfg.SealingKey != "" {
		s, err := config.NewSealer(cfg.SealingKey)
		if err != nil {
			return nil, fmt.Errorf("invalid STATE_SEALING_KEY: %w", err)
		}
		sealer = s
	} else {
		logger.Warn("STATE_SEALING_KEY not set; provider keys are stored unsealed")
	}

	deps := &server.Deps{
		Config:  cfg,
		Metrics: metrics,
		Logger:  logger,
	}

	var stateBackend state.Backend
	if cfg.DatabaseURL != "" {
		database, err := db.ConnectWithRetry(ctx, cfg.DatabaseURL, db.ConnectOptions{MaxElapsed: dbConnectMaxWait})
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, database.Close)

		if serveMigrate {
			applied, err := database.Migrate(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			logger.Info("database migrated", "applied", len(applied))
		}
		stateBackend = database.StateBackend()
		deps.Users = database
		deps.Ping = database.Ping
	} else {
		logger.Warn("DATABASE_URL not set; users and state are kept in memory")
		stateBackend = state.NewMemoryBackend()
		deps.Users = server.NewMemoryUsers()
	}

	deps.Store = state.NewStore(stateBackend, state.Options{
		Sealer:           sealer,
		MaxTemplates:     cfg.MaxTemplates,
		MaxTemplateBytes: cfg.MaxTemplateBytes,
		Logger:           logger,
	})

	client, err := backend.New(cfg.BackendURL, backend.Options{
		Timeout:  backendTimeout,
		Breaker:  backend.DefaultBreakerConfig(),
		Logger:   logger,
		Observer: metrics,
	})
	if err != nil {
		return nil, err
	}
	deps.Backend = client

	events, err := analytics.New(cfg.PostHogKey, cfg.PostHogEndpoint, logger)
	if err != nil {
		return nil, err
	}
	deps.Analytics = events

	deps.Jobs, err = jobs.NewService(client, deps.Store, jobs.Config{
		PollInterval: cfg.PollInterval,
		Analytics:    events,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	importerCfg := fetch.ImporterConfig{Options: fetch.DefaultOptions(), Logger: logger}
	if serveUseBrowser {
		importerCfg.Render = fetch.BrowserRenderer(browserTimeout, false, logger)
	}
	importer, err := fetch.NewCachedImporter(fetch.NewImporter(importerCfg), importCacheSize, importCacheTTL)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, importer.Close)
	deps.Importer = importer

	if cfg.Google.Enabled() {
		google, err := identity.NewGoogle(cfg.Google)
		if err != nil {
			return nil, fmt.Errorf("failed to configure Google sign-in: %w", err)
		}
		deps.Google = google
	}
	if cfg.DevAuthBypass {
		logger.Warn("AUTH_DEV_BYPASS is enabled; anyone can sign in as the development user")
	}

	deps.Limiter = ratelimit.NewLimiter(ratelimit.LoadConfig())
	return deps, nil
}
