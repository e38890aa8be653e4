// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitestore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/tileo/whatsweb/session"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{
		Path:   filepath.Join(t.TempDir(), "whatsweb.db"),
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	record := &session.Record{
		SessionID:      "work",
		PhoneNumber:    "+5511999990000",
		PairingPayload: "whatsweb://session/work",
		Status:         session.StatusAuthenticated,
		Authenticated:  true,
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC),
		UpdatedAt:      time.Date(2026, 3, 1, 10, 5, 0, 987654321, time.UTC),
		Extra:          map[string]string{"device": "pixel", "città": "São Paulo"},
	}
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("session not found after put")
	}
	if got.SessionID != record.SessionID ||
		got.PhoneNumber != record.PhoneNumber ||
		got.PairingPayload != record.PairingPayload ||
		got.Status != record.Status ||
		got.Authenticated != record.Authenticated {
		t.Errorf("got %+v, want %+v", got, record)
	}
	// RFC3339Nano storage keeps sub-second precision.
	if !got.CreatedAt.Equal(record.CreatedAt) || !got.UpdatedAt.Equal(record.UpdatedAt) {
		t.Errorf("timestamps: got %v/%v, want %v/%v",
			got.CreatedAt, got.UpdatedAt, record.CreatedAt, record.UpdatedAt)
	}
	if got.Extra["città"] != "São Paulo" {
		t.Errorf("non-ASCII extra lost: %+v", got.Extra)
	}
}

func TestPutSessionUpserts(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	record := &session.Record{SessionID: "work", Status: session.StatusCreated}
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatal(err)
	}
	record.Status = session.StatusReady
	record.Authenticated = true
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != session.StatusReady || !got.Authenticated {
		t.Errorf("got %+v", got)
	}

	ids, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("upsert created %d rows, want 1", len(ids))
	}
}

func TestGetSessionAbsent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	got, err := store.GetSession(ctx, "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestDeleteSessionCascadesToMessages(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.PutSession(ctx, &session.Record{SessionID: "work", Status: session.StatusReady}); err != nil {
		t.Fatal(err)
	}
	if err := store.PutMessage(ctx, &session.Message{
		MessageID: "msg_1_work",
		SessionID: "work",
		ToNumber:  "+5511988887777",
		Kind:      session.KindText,
		Content:   "hello",
		Status:    session.MessageSent,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteSession(ctx, "work"); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("session still present after delete")
	}
	messages, err := store.ListMessages(ctx, "work", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 0 {
		t.Errorf("messages after delete = %d, want 0 (cascade)", len(messages))
	}
}

func TestListMessagesFilterLimitOrder(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.PutSession(ctx, &session.Record{SessionID: "work", Status: session.StatusReady}); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, to := range []string{"+551100000001", "+551100000002", "+551100000001"} {
		message := &session.Message{
			MessageID: session.MessageID(session.KindText, int64(i), "work"),
			SessionID: "work",
			ToNumber:  to,
			Kind:      session.KindText,
			Content:   "hello",
			Status:    session.MessageSent,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.PutMessage(ctx, message); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListMessages(ctx, "work", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Error("messages not sorted newest first")
		}
	}

	filtered, err := store.ListMessages(ctx, "work", "+551100000002", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 {
		t.Errorf("filtered len = %d, want 1", len(filtered))
	}

	limited, err := store.ListMessages(ctx, "work", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "whatsweb.db")

	first, err := Open(Config{Path: path, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.PutSession(ctx, &session.Record{
		SessionID: "durable",
		Status:    session.StatusDisconnected,
	}); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(Config{Path: path, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	got, err := second.GetSession(ctx, "durable")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != session.StatusDisconnected {
		t.Errorf("got %+v after reopen", got)
	}
}
