// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI command
// operations at the configured level and format. Format "text" renders
// human-readable output; "json" renders machine-parseable output for
// scripts and CI. An empty format picks text when stderr is a terminal
// and JSON when it is piped or redirected.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := cli.NewCommandLogger(level, format).With(
//	    "command", "send",
//	    "session_id", sessionID,
//	)
func NewCommandLogger(level, format string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLevel(level)}

	useText := format == "text"
	if format == "" {
		useText = term.IsTerminal(int(os.Stderr.Fd()))
	}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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
