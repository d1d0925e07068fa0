package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/studydb/internal/blob"
	"github.com/roach88/studydb/internal/config"
	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/store"
)

// env is an initialized store plus everything a command needs around it.
type env struct {
	cfg   config.Config
	blob  blob.Store
	store *store.Store
	out   *OutputFormatter
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openEnv configures logging, opens the blob backend and initializes the
// store.
func openEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.Level(),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	b, err := blob.New(cfg.Backend, cfg.DataDir, cfg.QuotaBytes)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open blob store", err)
	}

	st, err := store.New(store.Options{
		Blob:        b,
		Namespace:   cfg.Namespace,
		LegacyKeys:  cfg.LegacyKeys,
		Debounce:    time.Duration(cfg.Debounce),
		AutoMigrate: cfg.AutoMigrate,
		Logger:      logger,
	})
	if err != nil {
		b.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create store", err)
	}

	if _, err := st.Initialize(commandContext(cmd)); err != nil {
		st.Close()
		b.Close()
		return nil, storeError("failed to initialize store", err)
	}

	return &env{
		cfg:   cfg,
		blob:  b,
		store: st,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// save flushes the active engine now. Commands exit right after mutating, so
// they cannot wait for a debounced save.
func (e *env) save(ctx context.Context) error {
	res := e.store.Flush(ctx)
	if res.Err != nil {
		return storeError("failed to persist changes", res.Err)
	}
	slog.Debug("changes persisted", "key", res.Key, "bytes", res.Bytes)
	return nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
	if err := e.blob.Close(); err != nil {
		slog.Error("error closing blob store", "error", err)
	}
}

// storeError maps store failures to exit codes. Misuse of the store is a
// command error; everything else is a failure.
func storeError(message string, err error) *ExitError {
	if engine.IsNotReady(err) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
