// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/tileo/whatsweb/session"
	"github.com/tileo/whatsweb/store/filestore"
	"github.com/tileo/whatsweb/store/sqlitestore"
)

func TestKindValid(t *testing.T) {
	for _, kind := range []Kind{KindFile, KindSQLite, KindMySQL} {
		if !kind.Valid() {
			t.Errorf("%q.Valid() = false", kind)
		}
	}
	for _, kind := range []Kind{"", "redis", "FILE"} {
		if kind.Valid() {
			t.Errorf("%q.Valid() = true", kind)
		}
	}
}

func TestOpenFile(t *testing.T) {
	backend, err := Open(context.Background(), Config{
		Kind:   KindFile,
		File:   FileConfig{Dir: t.TempDir()},
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	if _, ok := backend.(*filestore.Store); !ok {
		t.Errorf("Open(file) = %T", backend)
	}
}

func TestOpenDefaultsToFile(t *testing.T) {
	backend, err := Open(context.Background(), Config{
		File:   FileConfig{Dir: t.TempDir()},
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	if _, ok := backend.(*filestore.Store); !ok {
		t.Errorf("Open with empty kind = %T, want file store", backend)
	}
}

func TestOpenSQLite(t *testing.T) {
	backend, err := Open(context.Background(), Config{
		Kind:   KindSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	if _, ok := backend.(*sqlitestore.Store); !ok {
		t.Errorf("Open(sqlite) = %T", backend)
	}

	// The opened store satisfies the session contract end to end.
	ctx := context.Background()
	if err := backend.PutSession(ctx, &session.Record{
		SessionID: "smoke",
		Status:    session.StatusCreated,
	}); err != nil {
		t.Fatal(err)
	}
	record, err := backend.GetSession(ctx, "smoke")
	if err != nil {
		t.Fatal(err)
	}
	if record == nil || record.Status != session.StatusCreated {
		t.Errorf("round trip through dispatched store: %+v", record)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), Config{Kind: "redis"}); err == nil {
		t.Fatal("Open accepted an unknown backend kind")
	}
}
