// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "context"

// Store is the durable persistence capability behind a Manager. Three
// backends ship with this module (file, embedded SQLite, networked
// MySQL); all satisfy the same contract.
//
// Implementations must be safe for concurrent use by multiple Managers
// pointing at the same backing data. Absence is not an error: GetSession
// returns (nil, nil) for an unknown id.
type Store interface {
	// PutSession writes the record, replacing any previous version.
	PutSession(ctx context.Context, record *Record) error

	// GetSession reads the record for a session id. Returns (nil, nil)
	// when the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*Record, error)

	// DeleteSession removes the record and its messages. Deleting a
	// session that does not exist is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// ListSessions enumerates all stored session ids. Ordering is
	// backend-defined.
	ListSessions(ctx context.Context) ([]string, error)

	// PutMessage appends a message record. Message ids are unique;
	// writing the same id twice is a backend error.
	PutMessage(ctx context.Context, message *Message) error

	// ListMessages returns messages for a session, most recent first.
	// chatNumber, when non-empty, restricts the result to messages to
	// or from that number. limit caps the result; limit <= 0 means no
	// cap.
	ListMessages(ctx context.Context, sessionID, chatNumber string, limit int) ([]Message, error)

	// Close releases backend resources. Idempotent.
	Close() error
}
