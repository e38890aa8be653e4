// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tileo/whatsweb/lib/clock"
	"github.com/tileo/whatsweb/session"
	"github.com/tileo/whatsweb/store/filestore"
	"github.com/tileo/whatsweb/transport"
)

// fakeTransport records calls and injects failures.
type fakeTransport struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	sends       []transport.Message
	failConnect error
	failSend    error
}

func (f *fakeTransport) Connect(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failConnect != nil {
		return f.failConnect
	}
	f.connects++
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, sessionID string, message transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return f.failSend
	}
	f.sends = append(f.sends, message)
	return nil
}

func (f *fakeTransport) Disconnect(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) sent() []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Message(nil), f.sends...)
}

type fixture struct {
	manager   *session.Manager
	transport *fakeTransport
	clock     *clock.FakeClock
	client    *Client
}

func newFixture(t *testing.T, sessionID string) *fixture {
	t.Helper()
	ctx := context.Background()

	backend, err := filestore.Open(filestore.Config{
		Dir:    t.TempDir(),
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	manager, err := session.NewManager(session.ManagerConfig{
		Store:  backend,
		Logger: slog.New(slog.DiscardHandler),
		Clock:  fakeClock,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { manager.Close() })

	fake := &fakeTransport{}
	c, err := New(ctx, Config{
		SessionID:    sessionID,
		Manager:      manager,
		Transport:    fake,
		Logger:       slog.New(slog.DiscardHandler),
		Clock:        fakeClock,
		PollInterval: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{manager: manager, transport: fake, clock: fakeClock, client: c}
}

// authenticate drives the session to the authenticated state the way
// the transport does when the device confirms the pairing scan.
func (f *fixture) authenticate(t *testing.T, phone string) {
	t.Helper()
	if err := f.manager.AuthenticateSession(context.Background(), f.client.SessionID(), phone); err != nil {
		t.Fatal(err)
	}
}

func TestNewCreatesSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	record, err := f.manager.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if record == nil {
		t.Fatal("New did not create the session")
	}
	if record.Status != session.StatusCreated {
		t.Errorf("status = %s, want %s", record.Status, session.StatusCreated)
	}
}

func TestNewKeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")
	f.authenticate(t, "+5511999990000")

	// A second client over the same session must not reset its state.
	other, err := New(ctx, Config{
		SessionID: "work",
		Manager:   f.manager,
		Transport: &fakeTransport{},
		Logger:    slog.New(slog.DiscardHandler),
		Clock:     f.clock,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close(ctx)

	record, err := f.manager.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if !record.Authenticated {
		t.Error("existing session state was reset")
	}
}

func TestConnectGeneratesPairing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	info, err := f.client.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Payload != "whatsweb://session/work" {
		t.Errorf("payload = %q", info.Payload)
	}
	if f.transport.connects != 1 {
		t.Errorf("transport connects = %d, want 1", f.transport.connects)
	}

	record, err := f.manager.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != session.StatusPairing {
		t.Errorf("status = %s, want %s", record.Status, session.StatusPairing)
	}
	if record.PairingPayload != info.Payload {
		t.Errorf("stored payload = %q", record.PairingPayload)
	}
}

func TestConnectTransportFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")
	f.transport.failConnect = errors.New("network down")

	_, err := f.client.Connect(ctx)
	if !session.IsCode(err, session.CodeConnectionFailure) {
		t.Fatalf("err = %v, want %s", err, session.CodeConnectionFailure)
	}

	record, getErr := f.manager.GetSession(ctx, "work")
	if getErr != nil {
		t.Fatal(getErr)
	}
	if record.Status != session.StatusError {
		t.Errorf("status = %s, want %s", record.Status, session.StatusError)
	}
}

func TestSendRequiresAuthentication(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := f.client.SendMessage(ctx, "11987654321", "hello")
	if !session.IsCode(err, session.CodeAuthenticationRequired) {
		t.Fatalf("err = %v, want %s", err, session.CodeAuthenticationRequired)
	}
	if len(f.transport.sent()) != 0 {
		t.Error("transport saw a send before authentication")
	}

	messages, err := f.manager.Store().ListMessages(ctx, "work", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 0 {
		t.Error("a failed send left a message record")
	}
}

func TestChatsRequireAuthentication(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Chats(ctx); !session.IsCode(err, session.CodeAuthenticationRequired) {
		t.Errorf("Chats err = %v, want %s", err, session.CodeAuthenticationRequired)
	}
	if _, err := f.client.Messages(ctx, "", 0); !session.IsCode(err, session.CodeAuthenticationRequired) {
		t.Errorf("Messages err = %v, want %s", err, session.CodeAuthenticationRequired)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")
	f.authenticate(t, "+5511999990000")

	_, err := f.client.SendMessage(ctx, "11987654321", "hello")
	if !session.IsCode(err, session.CodeConnectionRequired) {
		t.Fatalf("err = %v, want %s", err, session.CodeConnectionRequired)
	}
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")

	message, err := f.client.SendMessage(ctx, "(11) 98765-4321", "  hello\x00 there  ")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(message.MessageID, "msg_") {
		t.Errorf("message id = %q, want msg_ prefix", message.MessageID)
	}
	if message.ToNumber != "+5511987654321" {
		t.Errorf("to = %q", message.ToNumber)
	}
	if message.Content != "hello there" {
		t.Errorf("content = %q", message.Content)
	}
	if message.Status != session.MessageSent {
		t.Errorf("status = %s", message.Status)
	}

	sent := f.transport.sent()
	if len(sent) != 1 || sent[0].To != "+5511987654321" {
		t.Errorf("transport sends = %+v", sent)
	}

	messages, err := f.client.Messages(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].MessageID != message.MessageID {
		t.Errorf("persisted messages = %+v", messages)
	}
}

func TestSendTransportFailureLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")
	f.transport.failSend = errors.New("socket reset")

	_, err := f.client.SendMessage(ctx, "11987654321", "hello")
	if !session.IsCode(err, session.CodeMessageDelivery) {
		t.Fatalf("err = %v, want %s", err, session.CodeMessageDelivery)
	}

	messages, listErr := f.client.Messages(ctx, "", 0)
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(messages) != 0 {
		t.Error("undelivered message was persisted")
	}
}

func TestSendImageMissingFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")

	_, err := f.client.SendImage(ctx, "11987654321", "/no/such/file.png", "")
	if err == nil {
		t.Fatal("SendImage accepted a missing file")
	}
	if len(f.transport.sent()) != 0 {
		t.Error("transport saw a send for a missing file")
	}
}

func TestSendImageAndDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")

	imagePath := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(imagePath, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	image, err := f.client.SendImage(ctx, "11987654321", imagePath, "holiday")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(image.MessageID, "img_") {
		t.Errorf("image id = %q, want img_ prefix", image.MessageID)
	}
	if image.Caption != "holiday" {
		t.Errorf("caption = %q", image.Caption)
	}

	document, err := f.client.SendDocument(ctx, "11987654321", imagePath, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(document.MessageID, "doc_") {
		t.Errorf("document id = %q, want doc_ prefix", document.MessageID)
	}
}

func TestConcurrentSendsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")

	const sends = 16
	ids := make(chan string, sends)
	var group sync.WaitGroup
	for i := 0; i < sends; i++ {
		group.Add(1)
		go func() {
			defer group.Done()
			message, err := f.client.SendMessage(ctx, "11987654321", "hello")
			if err != nil {
				t.Errorf("send: %v", err)
				return
			}
			ids <- message.MessageID
		}()
	}
	group.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate message id %s", id)
		}
		seen[id] = true
	}
}

func TestWaitForAuthenticationSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")

	if err := f.client.WaitForAuthentication(ctx, time.Minute); err != nil {
		t.Fatal(err)
	}

	record, err := f.manager.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != session.StatusReady {
		t.Errorf("status = %s, want %s", record.Status, session.StatusReady)
	}
}

func TestWaitForAuthenticationTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	result := make(chan error, 1)
	go func() {
		result <- f.client.WaitForAuthentication(ctx, 5*time.Second)
	}()

	// Three two-second polls pass the five-second deadline. Wait for
	// the loop to park on the fake clock before each advance.
	for i := 0; i < 3; i++ {
		waitForWaiter(t, f.clock)
		f.clock.Advance(2 * time.Second)
	}

	select {
	case err := <-result:
		if !session.IsCode(err, session.CodeAuthenticationTimeout) {
			t.Fatalf("err = %v, want %s", err, session.CodeAuthenticationTimeout)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForAuthentication did not return after the deadline passed")
	}
}

func TestWaitForAuthenticationContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, "work")

	result := make(chan error, 1)
	go func() {
		result <- f.client.WaitForAuthentication(ctx, time.Hour)
	}()

	waitForWaiter(t, f.clock)
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForAuthentication did not return after cancel")
	}
}

func waitForWaiter(t *testing.T, fakeClock *clock.FakeClock) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for fakeClock.Waiters() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("wait loop never parked on the clock")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestChatsGrouping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")

	// Two messages to the first peer, then one to the second. The fake
	// clock advances between sends so activity order is deterministic.
	if _, err := f.client.SendMessage(ctx, "11900000001", "first"); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.client.SendMessage(ctx, "11900000001", "second"); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.client.SendMessage(ctx, "11900000002", "third"); err != nil {
		t.Fatal(err)
	}

	chats, err := f.client.Chats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("chats = %d, want 2", len(chats))
	}
	if chats[0].Number != "+5511900000002" {
		t.Errorf("most recent chat = %s, want +5511900000002", chats[0].Number)
	}
	if chats[1].Number != "+5511900000001" || chats[1].MessageCount != 2 {
		t.Errorf("second chat = %+v", chats[1])
	}
	if chats[1].LastMessage.Content != "second" {
		t.Errorf("last message = %q, want %q", chats[1].LastMessage.Content, "second")
	}
}

func TestStatusReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	report := f.client.Status(ctx)
	if report.Status != string(session.StatusCreated) {
		t.Errorf("status = %q, want %q", report.Status, session.StatusCreated)
	}
	if report.Connected {
		t.Error("connected before Connect")
	}

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	f.authenticate(t, "+5511999990000")

	report = f.client.Status(ctx)
	if !report.Connected || !report.Authenticated {
		t.Errorf("report = %+v", report)
	}
	if report.PhoneNumber != "+5511999990000" {
		t.Errorf("phone = %q", report.PhoneNumber)
	}
}

func TestStatusUnknownSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if err := f.manager.DeleteSession(ctx, "work"); err != nil {
		t.Fatal(err)
	}

	report := f.client.Status(ctx)
	if report.Status != "unknown" {
		t.Errorf("status = %q, want unknown", report.Status)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.client.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.client.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}
	if f.transport.disconnects != 1 {
		t.Errorf("transport disconnects = %d, want 1", f.transport.disconnects)
	}

	record, err := f.manager.GetSession(ctx, "work")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != session.StatusDisconnected {
		t.Errorf("status = %s, want %s", record.Status, session.StatusDisconnected)
	}
}

func TestCloseDisconnects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "work")

	if _, err := f.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.client.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.client.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if f.transport.disconnects != 1 {
		t.Errorf("transport disconnects = %d, want 1", f.transport.disconnects)
	}
}
