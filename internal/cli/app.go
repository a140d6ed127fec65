// Package cli wires configuration, logging and browser sessions for the
// command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/bnema/browserbridge/internal/cli/styles"
	"github.com/bnema/browserbridge/internal/domain/build"
	"github.com/bnema/browserbridge/internal/infrastructure/config"
	"github.com/bnema/browserbridge/internal/logging"
)

// App holds CLI dependencies.
type App struct {
	Config    *config.Config
	Manager   *config.Manager
	Theme     *styles.Theme
	BuildInfo build.Info

	// Context with logger
	ctx context.Context
}

// NewApp loads .env files and the configuration from configDir (the XDG
// config directory when empty) and builds the logger.
func NewApp(configDir string) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		mgr *config.Manager
		err error
	)
	if configDir == "" {
		mgr, err = config.NewManager()
	} else {
		mgr, err = config.NewManagerAt(configDir)
	}
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	logger := NewLogger(cfg.Logging, os.Stderr)
	logger.Debug().Str("config_file", mgr.GetConfigFile()).Msg("configuration loaded")

	return &App{
		Config:  cfg,
		Manager: mgr,
		Theme:   styles.NewTheme(),
		ctx:     logging.WithContext(context.Background(), logger),
	}, nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	return logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.Level),
		Format:     cfg.Format,
		TimeFormat: "15:04:05",
		Output:     out,
	})
}

// Ctx returns the application context with logger.
func (a *App) Ctx() context.Context {
	return a.ctx
}
