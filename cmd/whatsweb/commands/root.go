// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the whatsweb CLI command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tileo/whatsweb/client"
	"github.com/tileo/whatsweb/cmd/whatsweb/cli"
	"github.com/tileo/whatsweb/lib/config"
	"github.com/tileo/whatsweb/pairing"
	"github.com/tileo/whatsweb/session"
	"github.com/tileo/whatsweb/store"
	"github.com/tileo/whatsweb/transport"
)

// Version is stamped by the build via -ldflags.
var Version = "devel"

// Root builds the whatsweb command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "whatsweb",
		Summary: "Session-based WhatsApp Web automation client",
		Description: "whatsweb manages WhatsApp Web sessions: create a session,\n" +
			"connect and scan the pairing code, then send messages and\n" +
			"inspect conversations. Session state persists across runs in\n" +
			"the configured store backend (file, SQLite, or MySQL).",
		Subcommands: []*cli.Command{
			createCommand(),
			connectCommand(),
			authenticateCommand(),
			sendCommand(),
			sendImageCommand(),
			sendDocumentCommand(),
			chatsCommand(),
			messagesCommand(),
			statusCommand(),
			disconnectCommand(),
			sessionsCommand(),
			deleteCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the whatsweb version",
		Run: func(args []string) error {
			fmt.Println("whatsweb", Version)
			return nil
		},
	}
}

// env is the shared runtime of one command invocation: configuration,
// logger, the opened store behind a manager, and a cancellation context
// wired to SIGINT and SIGTERM.
type env struct {
	ctx     context.Context
	stop    context.CancelFunc
	cfg     *config.Config
	logger  *slog.Logger
	manager *session.Manager
}

// setup loads configuration, opens the store backend, and builds the
// session manager. Callers must defer e.close().
func setup(configPath string) (*env, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	logger := cli.NewCommandLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	backend, err := store.Open(ctx, store.Config{
		Kind: store.Kind(cfg.Store.Backend),
		File: store.FileConfig{
			Dir: cfg.Store.File.Dir,
		},
		SQLite: store.SQLiteConfig{
			Path:     cfg.Store.SQLite.Path,
			PoolSize: cfg.Store.SQLite.PoolSize,
		},
		MySQL: store.MySQLConfig{
			Host:     cfg.Store.MySQL.Host,
			Port:     cfg.Store.MySQL.Port,
			User:     cfg.Store.MySQL.User,
			Password: cfg.Store.MySQL.Password,
			Database: cfg.Store.MySQL.Database,
		},
		Logger: logger,
	})
	if err != nil {
		stop()
		return nil, err
	}

	generator, err := pairing.NewGenerator(pairing.GeneratorConfig{
		Dir:     cfg.Pairing.Dir,
		Encoder: &pairing.QREncoder{Size: cfg.Pairing.ImageSize},
		Logger:  logger,
	})
	if err != nil {
		stop()
		backend.Close()
		return nil, err
	}

	manager, err := session.NewManager(session.ManagerConfig{
		Store:   backend,
		Pairing: generator,
		Logger:  logger,
	})
	if err != nil {
		stop()
		backend.Close()
		return nil, err
	}

	return &env{
		ctx:     ctx,
		stop:    stop,
		cfg:     cfg,
		logger:  logger,
		manager: manager,
	}, nil
}

// openClient builds the client façade for one session.
func (e *env) openClient(sessionID string) (*client.Client, error) {
	return client.New(e.ctx, client.Config{
		SessionID:    sessionID,
		Manager:      e.manager,
		Transport:    transport.Null(e.logger),
		Logger:       e.logger,
		PollInterval: e.cfg.PollInterval(),
	})
}

func (e *env) close() {
	if err := e.manager.Close(); err != nil {
		e.logger.Warn("store close failed", "error", err)
	}
	e.stop()
}

// requireSession fails with a usage error when --session was not given.
func requireSession(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("--session is required")
	}
	return nil
}

// printDomainError writes a session error to stderr and maps it to a
// distinct exit code, so scripts can branch on the failure class
// without parsing output. Non-session errors pass through unchanged.
func printDomainError(err error) error {
	var sessionErr *session.Error
	if !errors.As(err, &sessionErr) {
		return err
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", sessionErr)
	switch sessionErr.Code {
	case session.CodeUnknownSession, session.CodeDuplicateSession, session.CodeInvalidSession:
		return &cli.ExitError{Code: 2}
	case session.CodeAuthenticationTimeout:
		return &cli.ExitError{Code: 3}
	default:
		return &cli.ExitError{Code: 1}
	}
}
