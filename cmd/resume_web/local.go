package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/jobs"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// localOwner is the state document key of the single CLI user.
const localOwner = "local"

const (
	localRequestTimeout = 60 * time.Second
	localPollInterval   = 3 * time.Second
)

var (
	cliConfigPath string
	cliBackendURL string
	cliStatePath  string
	cliToken      string
	cliVerbose    bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cliConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	pf.StringVar(&cliBackendURL, "backend-url", "", "Optimization backend URL (defaults to BACKEND_URL)")
	pf.StringVar(&cliStatePath, "state", "", "Local state file (defaults to the user config directory)")
	pf.StringVar(&cliToken, "token", "", "Backend session token (defaults to BACKEND_TOKEN)")
	pf.BoolVarP(&cliVerbose, "verbose", "v", false, "Print detailed debug information")
}

// localEnv is everything a local command needs.
type localEnv struct {
	cfg     config.Config
	fs      afero.Fs
	out     io.Writer
	printer *observability.Printer
	logger  *slog.Logger
	store   *state.Store
	backend *backend.Client
	jobs    *jobs.Service
	// importer is created on first use.
	importer fetch.JobImporter
	closers  []func()
}

// localOptions are the resolved inputs of a local environment.
type localOptions struct {
	Config config.Config
	Token  string
	FS     afero.Fs
	Out    io.Writer
	// StateBackend replaces the SQLite file.
	StateBackend state.Backend
	PollInterval time.Duration
}

// loadLocalConfig merges the global flags over the optional config file.
func loadLocalConfig() (config.Config, error) {
	cfg := config.Config{
		BackendURL: cliBackendURL,
		StatePath:  cliStatePath,
		Verbose:    cliVerbose,
	}

	if cliConfigPath != "" {
		loaded, err := config.LoadConfig(cliConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = cfg.MergeWithDefaults(*loaded)
		cfg.Verbose = cfg.Verbose || loaded.Verbose
		cfg.CoverLetter = loaded.CoverLetter
		cfg.ColdEmail = loaded.ColdEmail
		cfg.UseBrowser = loaded.UseBrowser
	}

	if cfg.BackendURL == "" {
		cfg.BackendURL = os.Getenv("BACKEND_URL")
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = config.DefaultBackendURL
	}
	if cfg.StatePath == "" {
		path, err := defaultStatePath()
		if err != nil {
			return cfg, err
		}
		cfg.StatePath = path
	}
	return cfg, nil
}

func defaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "resume-optimizer", "state.db"), nil
}

// openLocalFromFlags builds the environment of a local command.
func openLocalFromFlags(cmd *cobra.Command) (*localEnv, error) {
	cfg, err := loadLocalConfig()
	if err != nil {
		return nil, err
	}
	token := cliToken
	if token == "" {
		token = os.Getenv("BACKEND_TOKEN")
	}
	return openLocal(cmd.Context(), localOptions{
		Config: cfg,
		Token:  token,
		FS:     afero.NewOsFs(),
		Out:    cmd.OutOrStdout(),
	})
}

func openLocal(ctx context.Context, opts localOptions) (*localEnv, error) {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = localPollInterval
	}

	level := "warn"
	if opts.Config.Verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(os.Stderr, level, "text")
	if err != nil {
		return nil, err
	}

	env := &localEnv{
		cfg:     opts.Config,
		fs:      opts.FS,
		out:     opts.Out,
		printer: observability.NewPrinter(opts.Out),
		logger:  logger,
	}

	sealer, err := config.LoadOrCreateSealer()
	if err != nil {
		return nil, err
	}

	stateBackend := opts.StateBackend
	if stateBackend == nil {
		if err := os.MkdirAll(filepath.Dir(opts.Config.StatePath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		sqlite, err := state.OpenSQLite(ctx, opts.Config.StatePath)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = sqlite.Close() })
		stateBackend = sqlite
	}

	env.store = state.NewStore(stateBackend, state.Options{
		Sealer:           sealer,
		MaxTemplates:     config.DefaultMaxTemplates,
		MaxTemplateBytes: config.DefaultMaxTemplateBytes,
		Logger:           logger,
	})

	env.backend, err = backend.New(opts.Config.BackendURL, backend.Options{
		Timeout: localRequestTimeout,
		Breaker: backend.DefaultBreakerConfig(),
		Logger:  logger,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	if opts.Token != "" {
		if err := env.store.SetSession(ctx, localOwner, opts.Token); err != nil {
			env.Close()
			return nil, err
		}
	}

	env.jobs, err = jobs.NewService(env.backend, env.store, jobs.Config{
		PollInterval: opts.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, env.jobs.Close)
	return env, nil
}

// Close releases the environment in reverse order of acquisition.
func (e *localEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// jobImporter returns the importer for job posting URLs.
func (e *localEnv) jobImporter() fetch.JobImporter {
	if e.importer == nil {
		// The CLI fetches as the local user, so private hosts are allowed.
		opts := fetch.DefaultOptions()
		opts.AllowPrivateNetworks = true
		cfg := fetch.ImporterConfig{Options: opts, Logger: e.logger}
		if e.cfg.UseBrowser {
			cfg.Render = fetch.BrowserRenderer(localRequestTimeout, true, e.logger)
		}
		e.importer = fetch.NewImporter(cfg)
	}
	return e.importer
}

func (e *localEnv) document(ctx context.Context) (*state.Document, error) {
	return e.store.Get(ctx, localOwner)
}

// localCommand adapts a function over a local environment to cobra.
func localCommand(fn func(ctx context.Context, env *localEnv, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := openLocalFromFlags(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		return fn(cmd.Context(), env, args)
	}
}
