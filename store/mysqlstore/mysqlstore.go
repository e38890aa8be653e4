// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package mysqlstore persists sessions and messages on a networked
// MySQL server, for deployments where several hosts share one session
// database. Connection parameters come from the caller; the schema is
// created on open.
package mysqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tileo/whatsweb/session"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
	    session_id      VARCHAR(255) NOT NULL,
	    phone_number    VARCHAR(32)  NOT NULL DEFAULT '',
	    pairing_payload TEXT,
	    status          VARCHAR(32)  NOT NULL,
	    authenticated   TINYINT(1)   NOT NULL DEFAULT 0,
	    created_at      DATETIME(6)  NOT NULL,
	    updated_at      DATETIME(6)  NOT NULL,
	    extra_blob      TEXT,
	    PRIMARY KEY (session_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
	    message_id  VARCHAR(255) NOT NULL,
	    session_id  VARCHAR(255) NOT NULL,
	    from_number VARCHAR(32)  NOT NULL DEFAULT '',
	    to_number   VARCHAR(32)  NOT NULL,
	    kind        VARCHAR(32)  NOT NULL,
	    content     TEXT         NOT NULL,
	    caption     TEXT,
	    status      VARCHAR(32)  NOT NULL,
	    timestamp   DATETIME(6)  NOT NULL,
	    PRIMARY KEY (message_id),
	    KEY idx_messages_session (session_id, timestamp),
	    CONSTRAINT fk_messages_session FOREIGN KEY (session_id)
	        REFERENCES sessions (session_id) ON DELETE CASCADE
	)`,
}

// Config holds the connection parameters for a MySQL store.
type Config struct {
	// Host is the server hostname or address. Required.
	Host string
	// Port is the server port. Zero defaults to 3306.
	Port int
	// User and Password authenticate the connection.
	User     string
	Password string
	// Database is the schema name. Required.
	Database string
	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is a session.Store backed by a networked MySQL server. Safe
// for concurrent use; database/sql pools connections internally.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ session.Store = (*Store)(nil)

// Open connects to the server, verifies reachability, and creates the
// schema if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mysqlstore: Host is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mysqlstore: Database is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	driverConfig := mysql.NewConfig()
	driverConfig.User = cfg.User
	driverConfig.Passwd = cfg.Password
	driverConfig.Net = "tcp"
	driverConfig.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	driverConfig.DBName = cfg.Database
	driverConfig.ParseTime = true
	driverConfig.Loc = time.UTC

	db, err := sql.Open("mysql", driverConfig.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: opening %s: %w", driverConfig.Addr, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysqlstore: connecting to %s: %w", driverConfig.Addr, err)
	}

	for _, statement := range schema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			db.Close()
			return nil, fmt.Errorf("mysqlstore: creating schema: %w", err)
		}
	}

	logger.Info("mysql store opened",
		"addr", driverConfig.Addr,
		"database", cfg.Database,
	)
	return &Store{db: db, logger: logger}, nil
}

// PutSession upserts the session row.
func (s *Store) PutSession(ctx context.Context, record *session.Record) error {
	extraBlob := ""
	if len(record.Extra) > 0 {
		data, err := json.Marshal(record.Extra)
		if err != nil {
			return fmt.Errorf("mysqlstore: encoding extra for %s: %w", record.SessionID, err)
		}
		extraBlob = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		    (session_id, phone_number, pairing_payload, status, authenticated,
		     created_at, updated_at, extra_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    phone_number    = VALUES(phone_number),
		    pairing_payload = VALUES(pairing_payload),
		    status          = VALUES(status),
		    authenticated   = VALUES(authenticated),
		    updated_at      = VALUES(updated_at),
		    extra_blob      = VALUES(extra_blob)`,
		record.SessionID, record.PhoneNumber, record.PairingPayload,
		string(record.Status), record.Authenticated,
		record.CreatedAt.UTC(), record.UpdatedAt.UTC(), extraBlob)
	if err != nil {
		return fmt.Errorf("mysqlstore: putting session %s: %w", record.SessionID, err)
	}
	return nil
}

// GetSession reads the session row. Returns (nil, nil) when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*session.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT phone_number, pairing_payload, status, authenticated,
		       created_at, updated_at, extra_blob
		FROM sessions WHERE session_id = ?`, sessionID)

	var (
		record    = session.Record{SessionID: sessionID}
		rawStatus string
		extraBlob string
	)
	err := row.Scan(&record.PhoneNumber, &record.PairingPayload, &rawStatus,
		&record.Authenticated, &record.CreatedAt, &record.UpdatedAt, &extraBlob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: getting session %s: %w", sessionID, err)
	}

	record.Status, err = session.ParseStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: session %s: %w", sessionID, err)
	}
	if extraBlob != "" {
		if err := json.Unmarshal([]byte(extraBlob), &record.Extra); err != nil {
			return nil, fmt.Errorf("mysqlstore: decoding extra for %s: %w", sessionID, err)
		}
	}
	return &record, nil
}

// DeleteSession removes the session row; messages cascade.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("mysqlstore: deleting session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions enumerates all session ids.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("mysqlstore: scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysqlstore: listing sessions: %w", err)
	}
	return ids, nil
}

// PutMessage inserts the message row.
func (s *Store) PutMessage(ctx context.Context, message *session.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
		    (message_id, session_id, from_number, to_number, kind, content,
		     caption, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, message.FromNumber,
		message.ToNumber, string(message.Kind), message.Content,
		message.Caption, string(message.Status), message.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("mysqlstore: putting message %s: %w", message.MessageID, err)
	}
	return nil
}

// ListMessages returns the session's messages, most recent first.
func (s *Store) ListMessages(ctx context.Context, sessionID, chatNumber string, limit int) ([]session.Message, error) {
	query := `
		SELECT message_id, from_number, to_number, kind, content, caption,
		       status, timestamp
		FROM messages
		WHERE session_id = ?`
	args := []any{sessionID}
	if chatNumber != "" {
		query += ` AND (to_number = ? OR from_number = ?)`
		args = append(args, chatNumber, chatNumber)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: listing messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []session.Message
	for rows.Next() {
		message := session.Message{SessionID: sessionID}
		var kind, status string
		err := rows.Scan(&message.MessageID, &message.FromNumber, &message.ToNumber,
			&kind, &message.Content, &message.Caption, &status, &message.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("mysqlstore: scanning message: %w", err)
		}
		message.Kind = session.MessageKind(kind)
		message.Status = session.MessageStatus(status)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysqlstore: listing messages for %s: %w", sessionID, err)
	}
	return messages, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("mysqlstore: close: %w", err)
	}
	return nil
}
