// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitestore persists sessions and messages in an embedded
// SQLite database file, using the WhatsWeb-standard connection pool.
// One file can be shared by multiple processes; SQLite's WAL mode and
// the pool's busy timeout handle the contention.
package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/tileo/whatsweb/lib/sqlitepool"
	"github.com/tileo/whatsweb/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id      TEXT PRIMARY KEY,
    phone_number    TEXT NOT NULL DEFAULT '',
    pairing_payload TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    authenticated   INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    extra_blob      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS messages (
    message_id  TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    from_number TEXT NOT NULL DEFAULT '',
    to_number   TEXT NOT NULL,
    kind        TEXT NOT NULL,
    content     TEXT NOT NULL,
    caption     TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    timestamp   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session
    ON messages(session_id, timestamp);
`

// Config holds the parameters for opening a SQLite store.
type Config struct {
	// Path is the database file path. Required.
	Path string

	// PoolSize is passed through to the connection pool.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is a session.Store backed by an embedded SQLite file. Safe for
// concurrent use.
type Store struct {
	pool *sqlitepool.Pool
}

var _ session.Store = (*Store)(nil)

// Open opens the database file, creating it and the schema if needed.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitestore: Path is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}
	return &Store{pool: pool}, nil
}

// PutSession upserts the session row.
func (s *Store) PutSession(ctx context.Context, record *session.Record) error {
	extraBlob := ""
	if len(record.Extra) > 0 {
		data, err := json.Marshal(record.Extra)
		if err != nil {
			return fmt.Errorf("sqlitestore: encoding extra for %s: %w", record.SessionID, err)
		}
		extraBlob = string(data)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO sessions
		    (session_id, phone_number, pairing_payload, status, authenticated,
		     created_at, updated_at, extra_blob)
		VALUES
		    (:session_id, :phone_number, :pairing_payload, :status, :authenticated,
		     :created_at, :updated_at, :extra_blob)
		ON CONFLICT(session_id) DO UPDATE SET
		    phone_number    = excluded.phone_number,
		    pairing_payload = excluded.pairing_payload,
		    status          = excluded.status,
		    authenticated   = excluded.authenticated,
		    updated_at      = excluded.updated_at,
		    extra_blob      = excluded.extra_blob`,
		&sqlitex.ExecOptions{
			Named: map[string]any{
				":session_id":      record.SessionID,
				":phone_number":    record.PhoneNumber,
				":pairing_payload": record.PairingPayload,
				":status":          string(record.Status),
				":authenticated":   boolToInt(record.Authenticated),
				":created_at":      record.CreatedAt.UTC().Format(time.RFC3339Nano),
				":updated_at":      record.UpdatedAt.UTC().Format(time.RFC3339Nano),
				":extra_blob":      extraBlob,
			},
		})
	if err != nil {
		return fmt.Errorf("sqlitestore: putting session %s: %w", record.SessionID, err)
	}
	return nil
}

// GetSession reads the session row. Returns (nil, nil) when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*session.Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var record *session.Record
	var scanErr error
	err = sqlitex.Execute(conn, `
		SELECT phone_number, pairing_payload, status, authenticated,
		       created_at, updated_at, extra_blob
		FROM sessions WHERE session_id = :session_id`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":session_id": sessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, scanErr = scanSession(sessionID, stmt)
				return scanErr
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: getting session %s: %w", sessionID, err)
	}
	return record, nil
}

// DeleteSession removes the session row; messages cascade.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM sessions WHERE session_id = :session_id`,
		&sqlitex.ExecOptions{Named: map[string]any{":session_id": sessionID}})
	if err != nil {
		return fmt.Errorf("sqlitestore: deleting session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions enumerates all session ids.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var ids []string
	err = sqlitex.Execute(conn, `SELECT session_id FROM sessions`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing sessions: %w", err)
	}
	return ids, nil
}

// PutMessage inserts the message row.
func (s *Store) PutMessage(ctx context.Context, message *session.Message) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO messages
		    (message_id, session_id, from_number, to_number, kind, content,
		     caption, status, timestamp)
		VALUES
		    (:message_id, :session_id, :from_number, :to_number, :kind, :content,
		     :caption, :status, :timestamp)`,
		&sqlitex.ExecOptions{
			Named: map[string]any{
				":message_id":  message.MessageID,
				":session_id":  message.SessionID,
				":from_number": message.FromNumber,
				":to_number":   message.ToNumber,
				":kind":        string(message.Kind),
				":content":     message.Content,
				":caption":     message.Caption,
				":status":      string(message.Status),
				":timestamp":   message.Timestamp.UTC().Format(time.RFC3339Nano),
			},
		})
	if err != nil {
		return fmt.Errorf("sqlitestore: putting message %s: %w", message.MessageID, err)
	}
	return nil
}

// ListMessages returns the session's messages, most recent first.
func (s *Store) ListMessages(ctx context.Context, sessionID, chatNumber string, limit int) ([]session.Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	query := `
		SELECT message_id, from_number, to_number, kind, content, caption,
		       status, timestamp
		FROM messages
		WHERE session_id = :session_id`
	named := map[string]any{":session_id": sessionID}
	if chatNumber != "" {
		query += ` AND (to_number = :chat_number OR from_number = :chat_number)`
		named[":chat_number"] = chatNumber
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT :limit`
		named[":limit"] = limit
	}

	var messages []session.Message
	var scanErr error
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Named: named,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			timestamp, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(7))
			if err != nil {
				scanErr = fmt.Errorf("sqlitestore: parsing timestamp for %s: %w", stmt.ColumnText(0), err)
				return scanErr
			}
			messages = append(messages, session.Message{
				MessageID:  stmt.ColumnText(0),
				SessionID:  sessionID,
				FromNumber: stmt.ColumnText(1),
				ToNumber:   stmt.ColumnText(2),
				Kind:       session.MessageKind(stmt.ColumnText(3)),
				Content:    stmt.ColumnText(4),
				Caption:    stmt.ColumnText(5),
				Status:     session.MessageStatus(stmt.ColumnText(6)),
				Timestamp:  timestamp,
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing messages for %s: %w", sessionID, err)
	}
	return messages, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.pool.Close() }

func scanSession(sessionID string, stmt *sqlite.Stmt) (*session.Record, error) {
	status, err := session.ParseStatus(stmt.ColumnText(2))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: session %s: %w", sessionID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(4))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: parsing created_at for %s: %w", sessionID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(5))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: parsing updated_at for %s: %w", sessionID, err)
	}

	record := &session.Record{
		SessionID:      sessionID,
		PhoneNumber:    stmt.ColumnText(0),
		PairingPayload: stmt.ColumnText(1),
		Status:         status,
		Authenticated:  stmt.ColumnInt(3) != 0,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if extraBlob := stmt.ColumnText(6); extraBlob != "" {
		if err := json.Unmarshal([]byte(extraBlob), &record.Extra); err != nil {
			return nil, fmt.Errorf("sqlitestore: decoding extra for %s: %w", sessionID, err)
		}
	}
	return record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
