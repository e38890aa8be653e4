// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the high-level façade over the session manager and
// the transport. One Client drives one session through its lifecycle:
// connect, pair, wait for authentication, send messages, disconnect.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tileo/whatsweb/lib/clock"
	"github.com/tileo/whatsweb/session"
	"github.com/tileo/whatsweb/transport"
)

// defaultPollInterval is how often WaitForAuthentication re-checks the
// session state.
const defaultPollInterval = 2 * time.Second

// Config holds configuration for creating a Client.
type Config struct {
	// SessionID identifies the session this client drives. Required.
	SessionID string

	// PhoneNumber optionally pre-fills the session's phone number at
	// creation time.
	PhoneNumber string

	// Manager owns the session state. Required.
	Manager *session.Manager

	// Transport carries the wire protocol. Required.
	Transport transport.Transport

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Clock drives the authentication wait loop and message timestamps.
	// If nil, the real clock is used.
	Clock clock.Clock

	// PollInterval overrides how often the authentication wait loop
	// re-checks the session. Zero means the default of two seconds.
	PollInterval time.Duration
}

// PairingInfo is the result of a successful Connect: the payload the
// linked device scans, and the rendered image when a pairing generator
// is configured (empty path otherwise).
type PairingInfo struct {
	Payload   string
	ImagePath string
}

// Chat is one conversation, projected from the persisted messages of a
// session.
type Chat struct {
	// Number is the peer's phone number.
	Number string
	// LastMessage is the most recent message exchanged with the peer.
	LastMessage session.Message
	// MessageCount is the number of persisted messages with the peer.
	MessageCount int
}

// StatusReport is a point-in-time snapshot of the session, safe to
// render to users. Status is "unknown" when the session record is
// missing or unreadable.
type StatusReport struct {
	SessionID     string
	Status        string
	Authenticated bool
	Connected     bool
	PhoneNumber   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Client drives one session. It is safe for concurrent use; sends from
// multiple goroutines get distinct, ordered message ids.
type Client struct {
	sessionID string
	manager   *session.Manager
	transport transport.Transport
	logger    *slog.Logger
	clock     clock.Clock
	poll      time.Duration

	connected atomic.Bool
	lastStamp atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// New creates a Client for the configured session, creating the session
// record if it does not exist yet.
func New(ctx context.Context, config Config) (*Client, error) {
	if config.SessionID == "" {
		return nil, fmt.Errorf("client: SessionID is required")
	}
	if config.Manager == nil {
		return nil, fmt.Errorf("client: Manager is required")
	}
	if config.Transport == nil {
		return nil, fmt.Errorf("client: Transport is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	poll := config.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	record, err := config.Manager.GetSession(ctx, config.SessionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		if _, err := config.Manager.CreateSession(ctx, config.SessionID, config.PhoneNumber); err != nil {
			return nil, err
		}
	}

	return &Client{
		sessionID: config.SessionID,
		manager:   config.Manager,
		transport: config.Transport,
		logger:    logger.With("session_id", config.SessionID),
		clock:     clk,
		poll:      poll,
	}, nil
}

// SessionID returns the session this client drives.
func (c *Client) SessionID() string { return c.sessionID }

// Connect opens the transport and generates the pairing payload. On
// failure the session is moved to the error status and the returned
// error carries CodeConnectionFailure. Connect does not wait for the
// linked device; call WaitForAuthentication afterwards.
func (c *Client) Connect(ctx context.Context) (*PairingInfo, error) {
	if err := c.manager.SetStatus(ctx, c.sessionID, session.StatusConnecting); err != nil {
		return nil, err
	}

	if err := c.transport.Connect(ctx, c.sessionID); err != nil {
		c.markError(ctx)
		return nil, &session.Error{
			Code: session.CodeConnectionFailure, Op: "connect",
			SessionID: c.sessionID, Err: err,
		}
	}
	c.connected.Store(true)

	payload, imagePath, err := c.manager.GeneratePairing(ctx, c.sessionID)
	if err != nil {
		c.markError(ctx)
		return nil, err
	}

	c.logger.Info("connected, pairing payload ready", "image_path", imagePath)
	return &PairingInfo{Payload: payload, ImagePath: imagePath}, nil
}

// WaitForAuthentication polls the session until it is authenticated,
// then moves it to the ready status. Fails with
// CodeAuthenticationTimeout when the timeout passes first, or with the
// context error when ctx is cancelled. A timeout of zero or less waits
// only as long as ctx allows.
func (c *Client) WaitForAuthentication(ctx context.Context, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = c.clock.Now().Add(timeout)
	}

	for {
		if c.manager.IsAuthenticated(ctx, c.sessionID) {
			if err := c.manager.SetStatus(ctx, c.sessionID, session.StatusReady); err != nil {
				return err
			}
			c.logger.Info("session ready")
			return nil
		}
		if !deadline.IsZero() && !c.clock.Now().Before(deadline) {
			return &session.Error{
				Code: session.CodeAuthenticationTimeout, Op: "wait for authentication",
				SessionID: c.sessionID,
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.poll):
		}
	}
}

// SendMessage sends a text message. The body is stripped of control
// characters and truncated to the service's length cap; the recipient
// number is normalized to international form.
func (c *Client) SendMessage(ctx context.Context, to, content string) (*session.Message, error) {
	return c.send(ctx, session.KindText, to, sanitizeContent(content), "")
}

// SendImage sends an image file with an optional caption. The file
// must exist before the send starts.
func (c *Client) SendImage(ctx context.Context, to, imagePath, caption string) (*session.Message, error) {
	if err := statFile(imagePath); err != nil {
		return nil, fmt.Errorf("client: image: %w", err)
	}
	return c.send(ctx, session.KindImage, to, imagePath, caption)
}

// SendDocument sends a document file with an optional caption. The
// file must exist before the send starts.
func (c *Client) SendDocument(ctx context.Context, to, documentPath, caption string) (*session.Message, error) {
	if err := statFile(documentPath); err != nil {
		return nil, fmt.Errorf("client: document: %w", err)
	}
	return c.send(ctx, session.KindDocument, to, documentPath, caption)
}

// send runs the shared precondition checks, delivers via the
// transport, and persists the message record. The transport send runs
// first: a message the store failed to record was still delivered, and
// the returned error says so.
func (c *Client) send(ctx context.Context, kind session.MessageKind, to, content, caption string) (*session.Message, error) {
	if err := c.requireAuthentication(ctx, "send "+string(kind)); err != nil {
		return nil, err
	}
	if !c.connected.Load() {
		return nil, &session.Error{
			Code: session.CodeConnectionRequired, Op: "send " + string(kind),
			SessionID: c.sessionID,
		}
	}

	number, err := normalizeNumber(to)
	if err != nil {
		return nil, &session.Error{
			Code: session.CodeMessageDelivery, Op: "send " + string(kind),
			SessionID: c.sessionID, Err: err,
		}
	}

	now := c.clock.Now()
	message := &session.Message{
		MessageID: session.MessageID(kind, c.nextStamp(now), c.sessionID),
		SessionID: c.sessionID,
		ToNumber:  number,
		Kind:      kind,
		Content:   content,
		Caption:   caption,
		Status:    session.MessageSent,
		Timestamp: now,
	}

	if err := c.transport.Send(ctx, c.sessionID, transport.Message{
		To:      number,
		Kind:    kind,
		Content: content,
		Caption: caption,
	}); err != nil {
		return nil, &session.Error{
			Code: session.CodeMessageDelivery, Op: "send " + string(kind),
			SessionID: c.sessionID, Err: err,
		}
	}

	if err := c.manager.Store().PutMessage(ctx, message); err != nil {
		return nil, &session.Error{
			Code: session.CodeMessageDelivery, Op: "record " + string(kind),
			SessionID: c.sessionID, Err: fmt.Errorf("delivered but not recorded: %w", err),
		}
	}

	c.logger.Info("message sent",
		"message_id", message.MessageID,
		"kind", kind,
		"to", number,
	)
	return message, nil
}

// nextStamp returns a millisecond stamp strictly greater than every
// stamp this client handed out before, so concurrent sends in the same
// millisecond still get distinct message ids.
func (c *Client) nextStamp(now time.Time) int64 {
	milli := now.UnixMilli()
	for {
		last := c.lastStamp.Load()
		stamp := milli
		if stamp <= last {
			stamp = last + 1
		}
		if c.lastStamp.CompareAndSwap(last, stamp) {
			return stamp
		}
	}
}

// requireAuthentication guards the read-side operations, which serve
// conversation data only for a paired session.
func (c *Client) requireAuthentication(ctx context.Context, op string) error {
	if !c.manager.IsAuthenticated(ctx, c.sessionID) {
		return &session.Error{
			Code: session.CodeAuthenticationRequired, Op: op,
			SessionID: c.sessionID,
		}
	}
	return nil
}

// Chats projects the persisted messages into conversations, one per
// peer number, most recently active first.
func (c *Client) Chats(ctx context.Context) ([]Chat, error) {
	if err := c.requireAuthentication(ctx, "list chats"); err != nil {
		return nil, err
	}
	messages, err := c.manager.Store().ListMessages(ctx, c.sessionID, "", 0)
	if err != nil {
		return nil, &session.Error{
			Code: session.CodeStoreFailure, Op: "list chats",
			SessionID: c.sessionID, Err: err,
		}
	}

	byPeer := make(map[string]*Chat)
	for _, message := range messages {
		peer := message.ToNumber
		if peer == "" {
			peer = message.FromNumber
		}
		chat, ok := byPeer[peer]
		if !ok {
			chat = &Chat{Number: peer}
			byPeer[peer] = chat
		}
		chat.MessageCount++
		if message.Timestamp.After(chat.LastMessage.Timestamp) {
			chat.LastMessage = message
		}
	}

	chats := make([]Chat, 0, len(byPeer))
	for _, chat := range byPeer {
		chats = append(chats, *chat)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessage.Timestamp.After(chats[j].LastMessage.Timestamp)
	})
	return chats, nil
}

// Messages returns the persisted messages of the session, newest
// first. A non-empty chatNumber restricts to one conversation; a
// positive limit caps the result.
func (c *Client) Messages(ctx context.Context, chatNumber string, limit int) ([]session.Message, error) {
	if err := c.requireAuthentication(ctx, "list messages"); err != nil {
		return nil, err
	}
	if chatNumber != "" {
		normalized, err := normalizeNumber(chatNumber)
		if err == nil {
			chatNumber = normalized
		}
	}
	messages, err := c.manager.Store().ListMessages(ctx, c.sessionID, chatNumber, limit)
	if err != nil {
		return nil, &session.Error{
			Code: session.CodeStoreFailure, Op: "list messages",
			SessionID: c.sessionID, Err: err,
		}
	}
	return messages, nil
}

// Status reports the session's current state. It never fails: when
// the record is missing or the store is unreachable, the report says
// status "unknown".
func (c *Client) Status(ctx context.Context) StatusReport {
	report := StatusReport{
		SessionID: c.sessionID,
		Status:    "unknown",
		Connected: c.connected.Load(),
	}
	record, err := c.manager.GetSession(ctx, c.sessionID)
	if err != nil || record == nil {
		return report
	}
	report.Status = string(record.Status)
	report.Authenticated = record.Authenticated
	report.PhoneNumber = record.PhoneNumber
	report.CreatedAt = record.CreatedAt
	report.UpdatedAt = record.UpdatedAt
	return report
}

// Disconnect closes the transport and moves the session to the
// disconnected status. Idempotent: the transport is closed at most
// once, but the status is set on every call.
func (c *Client) Disconnect(ctx context.Context) error {
	var transportErr error
	if c.connected.CompareAndSwap(true, false) {
		transportErr = c.transport.Disconnect(ctx, c.sessionID)
		if transportErr != nil {
			c.logger.Warn("transport disconnect failed", "error", transportErr)
		}
	}
	// The session reads as disconnected even when the transport close
	// misbehaved; the record tracks intent, not wire state.
	if err := c.manager.SetStatus(ctx, c.sessionID, session.StatusDisconnected); err != nil {
		return err
	}

	c.logger.Info("session disconnected")
	return transportErr
}

// Close disconnects and removes the client's callback registrations.
// Idempotent. The manager and its store stay open: they may serve
// other clients.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Disconnect(ctx)
		c.manager.SetPairingCallback(c.sessionID, nil)
		c.manager.SetStatusCallback(c.sessionID, nil)
	})
	return c.closeErr
}

// markError best-effort moves the session to the error status after a
// connect failure. The original failure is what the caller sees.
func (c *Client) markError(ctx context.Context) {
	if err := c.manager.SetStatus(ctx, c.sessionID, session.StatusError); err != nil {
		c.logger.Warn("failed to record error status", "error", err)
	}
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
