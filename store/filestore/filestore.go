// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package filestore persists sessions as one JSON document per session
// under a configurable directory, with messages in a per-session
// subdirectory. Writes go through a temp file and rename so concurrent
// readers — including other processes sharing the directory — never
// observe a partially written record.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tileo/whatsweb/session"
)

// Config holds the parameters for opening a file store.
type Config struct {
	// Dir is the root directory. Created if it does not exist. If
	// empty, DefaultDir() is used.
	Dir string

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// DefaultDir returns the per-user default session directory,
// ~/.whatsweb/sessions.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".whatsweb", "sessions")
	}
	return filepath.Join(home, ".whatsweb", "sessions")
}

// Store is a session.Store backed by the filesystem. Safe for
// concurrent use; atomicity of individual records is provided by the
// rename step, not locking, so multiple processes may share one
// directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

var _ session.Store = (*Store)(nil)

// Open creates the directory layout and returns the store.
func Open(cfg Config) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Join(dir, "messages"), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: creating %s: %w", dir, err)
	}

	logger.Info("file store opened", "dir", dir)
	return &Store{dir: dir, logger: logger}, nil
}

// PutSession writes the session document atomically.
func (s *Store) PutSession(ctx context.Context, record *session.Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encoding session %s: %w", record.SessionID, err)
	}
	return s.writeAtomic(s.sessionPath(record.SessionID), data)
}

// GetSession reads the session document. Returns (nil, nil) when the
// session does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*session.Record, error) {
	data, err := os.ReadFile(s.sessionPath(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: reading session %s: %w", sessionID, err)
	}

	var record session.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("filestore: decoding session %s: %w", sessionID, err)
	}
	if normalized, err := session.ParseStatus(string(record.Status)); err == nil {
		record.Status = normalized
	}
	return &record, nil
}

// DeleteSession removes the session document and its message
// directory. Deleting an absent session is not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := os.Remove(s.sessionPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: deleting session %s: %w", sessionID, err)
	}
	if err := os.RemoveAll(s.messageDir(sessionID)); err != nil {
		return fmt.Errorf("filestore: deleting messages for %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions enumerates session ids from the document file names.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: listing %s: %w", s.dir, err)
	}

	var ids []string
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// PutMessage appends a message document under the owning session's
// message directory.
func (s *Store) PutMessage(ctx context.Context, message *session.Message) error {
	dir := s.messageDir(message.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(message, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encoding message %s: %w", message.MessageID, err)
	}
	return s.writeAtomic(filepath.Join(dir, message.MessageID+".json"), data)
}

// ListMessages returns the session's messages, most recent first.
func (s *Store) ListMessages(ctx context.Context, sessionID, chatNumber string, limit int) ([]session.Message, error) {
	dir := s.messageDir(sessionID)
	dirEntries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: listing messages for %s: %w", sessionID, err)
	}

	var messages []session.Message
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, dirEntry.Name()))
		if err != nil {
			return nil, fmt.Errorf("filestore: reading message %s: %w", dirEntry.Name(), err)
		}
		var message session.Message
		if err := json.Unmarshal(data, &message); err != nil {
			return nil, fmt.Errorf("filestore: decoding message %s: %w", dirEntry.Name(), err)
		}
		if chatNumber != "" && message.ToNumber != chatNumber && message.FromNumber != chatNumber {
			continue
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// Close is a no-op for the file backend; it exists to satisfy the
// store contract.
func (s *Store) Close() error { return nil }

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *Store) messageDir(sessionID string) string {
	return filepath.Join(s.dir, "messages", sessionID)
}

// writeAtomic writes data to path via a temp file in the same
// directory followed by a rename.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".write-*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("filestore: writing %s: %w", path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("filestore: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("filestore: renaming to %s: %w", path, err)
	}

	success = true
	return nil
}
