// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the abstract wire capability the client
// calls into. The real WebSocket/browser-automation layer that speaks
// the messaging service's protocol lives outside this module; hosts
// plug their implementation in through the Transport interface.
//
// The Null transport succeeds at everything without touching the
// network. It is the default for hosts that only exercise the session
// lifecycle, and the reason the client's precondition checks — not
// the wire — are the authority on whether a send is allowed.
package transport

import (
	"context"
	"log/slog"

	"github.com/tileo/whatsweb/session"
)

// Message is the outbound payload handed to the wire layer.
type Message struct {
	// To is the recipient number.
	To string
	// Kind is the payload type.
	Kind session.MessageKind
	// Content is the text body or file reference.
	Content string
	// Caption is optional media caption text.
	Caption string
}

// Transport is the abstract network layer. Implementations must be
// safe for concurrent use across sessions.
type Transport interface {
	// Connect establishes the wire connection for a session.
	Connect(ctx context.Context, sessionID string) error

	// Send delivers one message on an established connection.
	Send(ctx context.Context, sessionID string, message Message) error

	// Disconnect tears down the session's wire connection. Idempotent.
	Disconnect(ctx context.Context, sessionID string) error
}

// Null returns a Transport that performs no network I/O and succeeds
// at every operation.
func Null(logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return nullTransport{logger: logger}
}

type nullTransport struct {
	logger *slog.Logger
}

func (t nullTransport) Connect(ctx context.Context, sessionID string) error {
	t.logger.Debug("null transport connect", "session_id", sessionID)
	return nil
}

func (t nullTransport) Send(ctx context.Context, sessionID string, message Message) error {
	t.logger.Debug("null transport send",
		"session_id", sessionID,
		"to", message.To,
		"kind", string(message.Kind),
	)
	return nil
}

func (t nullTransport) Disconnect(ctx context.Context, sessionID string) error {
	t.logger.Debug("null transport disconnect", "session_id", sessionID)
	return nil
}
