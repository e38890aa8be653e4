// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tileo/whatsweb/lib/clock"
)

// PairingGenerator renders a pairing payload into a scannable image.
// The concrete implementation lives in the pairing package; the
// Manager only depends on the capability.
type PairingGenerator interface {
	// Generate encodes the payload and writes the image, returning the
	// image path.
	Generate(payload, sessionID string) (imagePath string, err error)
}

// PairingCallback is invoked when a pairing payload is generated for a
// session. A failing callback is logged and isolated — it never aborts
// the state transition that triggered it.
type PairingCallback func(payload, imagePath string) error

// StatusCallback is invoked when a session's status changes through
// AuthenticateSession. Same fault isolation as PairingCallback.
type StatusCallback func(status Status) error

// ManagerConfig holds configuration for creating a Manager.
type ManagerConfig struct {
	// Store is the durable backend. Required.
	Store Store
	// Pairing renders pairing payloads into images. If nil,
	// GeneratePairing produces a payload with no image path.
	Pairing PairingGenerator
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Clock supplies timestamps. If nil, the real clock is used.
	Clock clock.Clock
}

// Manager owns the authoritative in-memory cache of active session
// records and mediates every read and write against the Store. All
// mutations of one session are serialized by a per-session lock;
// operations on different sessions never block each other.
//
// Manager is safe for concurrent use.
type Manager struct {
	store   Store
	pairing PairingGenerator
	logger  *slog.Logger
	clock   clock.Clock

	mu        sync.Mutex
	entries   map[string]*entry
	pairingCB map[string]PairingCallback
	statusCB  map[string]StatusCallback

	closeOnce sync.Once
	closeErr  error
}

// entry is one cached session. Its mutex serializes read-modify-persist
// cycles so concurrent mutators of the same session never lose updates.
type entry struct {
	mu     sync.Mutex
	record *Record
}

// NewManager creates a Manager over the given store.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("session: Store is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{
		store:     config.Store,
		pairing:   config.Pairing,
		logger:    logger,
		clock:     clk,
		entries:   make(map[string]*entry),
		pairingCB: make(map[string]PairingCallback),
		statusCB:  make(map[string]StatusCallback),
	}, nil
}

// CreateSession initializes a new session in status "created" and
// persists it immediately. Fails with CodeDuplicateSession when a
// session with this id is already active in memory.
func (m *Manager) CreateSession(ctx context.Context, sessionID, phoneNumber string) (*Record, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, &Error{Code: CodeInvalidSession, Op: "create", SessionID: sessionID, Err: err}
	}

	now := m.clock.Now()
	record := &Record{
		SessionID:   sessionID,
		PhoneNumber: phoneNumber,
		Status:      StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	if _, active := m.entries[sessionID]; active {
		m.mu.Unlock()
		return nil, &Error{Code: CodeDuplicateSession, Op: "create", SessionID: sessionID}
	}
	cached := &entry{record: record}
	cached.mu.Lock()
	m.entries[sessionID] = cached
	m.mu.Unlock()
	defer cached.mu.Unlock()

	if err := m.store.PutSession(ctx, record); err != nil {
		// The create never happened as far as callers are concerned:
		// evict the cache entry so memory and store agree.
		m.mu.Lock()
		delete(m.entries, sessionID)
		m.mu.Unlock()
		return nil, &Error{Code: CodeStoreFailure, Op: "create", SessionID: sessionID, Err: err}
	}

	m.logger.Info("session created", "session_id", sessionID)
	return record.Clone(), nil
}

// GetSession returns the session record, reading through to the store
// and populating the cache on a miss. Returns (nil, nil) when the
// session exists in neither cache nor store.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Record, error) {
	m.mu.Lock()
	cached, ok := m.entries[sessionID]
	m.mu.Unlock()
	if ok {
		cached.mu.Lock()
		record := cached.record
		cached.mu.Unlock()
		// A tombstoned entry means a concurrent delete won; fall
		// through to the store, which is the surviving authority.
		if record != nil {
			return record.Clone(), nil
		}
	}

	record, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, &Error{Code: CodeStoreFailure, Op: "get", SessionID: sessionID, Err: err}
	}
	if record == nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have populated the entry while the store
	// read was in flight; its copy wins.
	if cached, ok := m.entries[sessionID]; ok {
		cached.mu.Lock()
		defer cached.mu.Unlock()
		return cached.record.Clone(), nil
	}
	m.entries[sessionID] = &entry{record: record}
	return record.Clone(), nil
}

// Update describes a partial mutation of a session record. Nil fields
// are left unchanged; Extra entries are merged key by key.
type Update struct {
	Status         *Status
	PhoneNumber    *string
	PairingPayload *string
	Authenticated  *bool
	Extra          map[string]string
}

// UpdateSession merges the update into the cached record, bumps
// UpdatedAt, and persists synchronously before returning. Fails with
// CodeUnknownSession when the session is not cached — mutation never
// auto-creates. The returned record is the post-update state.
func (m *Manager) UpdateSession(ctx context.Context, sessionID string, update Update) (*Record, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, &Error{
			Code: CodeUnknownSession, Op: "update", SessionID: sessionID,
			Err: fmt.Errorf("invalid status %q", *update.Status),
		}
	}

	m.mu.Lock()
	cached, ok := m.entries[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, &Error{Code: CodeUnknownSession, Op: "update", SessionID: sessionID}
	}

	cached.mu.Lock()
	defer cached.mu.Unlock()
	// A concurrent DeleteSession may have tombstoned the entry after
	// the map lookup above.
	if cached.record == nil {
		return nil, &Error{Code: CodeUnknownSession, Op: "update", SessionID: sessionID}
	}

	// Mutate a clone and persist it first; the cache only sees the new
	// state once the store write succeeded, so memory and store never
	// disagree past the end of this call.
	next := cached.record.Clone()
	if update.Status != nil {
		next.Status = *update.Status
	}
	if update.PhoneNumber != nil {
		next.PhoneNumber = *update.PhoneNumber
	}
	if update.PairingPayload != nil {
		next.PairingPayload = *update.PairingPayload
	}
	if update.Authenticated != nil {
		next.Authenticated = *update.Authenticated
	}
	if len(update.Extra) > 0 {
		if next.Extra == nil {
			next.Extra = make(map[string]string, len(update.Extra))
		}
		for key, value := range update.Extra {
			next.Extra[key] = value
		}
	}

	now := m.clock.Now()
	if now.Before(next.UpdatedAt) {
		now = next.UpdatedAt
	}
	next.UpdatedAt = now

	if err := m.store.PutSession(ctx, next); err != nil {
		return nil, &Error{Code: CodeStoreFailure, Op: "update", SessionID: sessionID, Err: err}
	}
	cached.record = next
	return next.Clone(), nil
}

// GeneratePairing builds the deterministic pairing payload for a
// session, renders it to an image via the configured generator, moves
// the session to the pairing status, and fires the registered pairing
// callback. Fails with CodeUnknownSession when the session is not
// cached.
//
// The image path is empty when no PairingGenerator is configured.
func (m *Manager) GeneratePairing(ctx context.Context, sessionID string) (payload, imagePath string, err error) {
	m.mu.Lock()
	_, active := m.entries[sessionID]
	m.mu.Unlock()
	if !active {
		return "", "", &Error{Code: CodeUnknownSession, Op: "generate pairing", SessionID: sessionID}
	}

	payload = PairingPayload(sessionID)

	if m.pairing != nil {
		imagePath, err = m.pairing.Generate(payload, sessionID)
		if err != nil {
			return "", "", &Error{Code: CodeConnectionFailure, Op: "generate pairing", SessionID: sessionID, Err: err}
		}
	}

	status := StatusPairing
	if _, err := m.UpdateSession(ctx, sessionID, Update{
		Status:         &status,
		PairingPayload: &payload,
	}); err != nil {
		return "", "", err
	}

	m.mu.Lock()
	callback := m.pairingCB[sessionID]
	m.mu.Unlock()
	if callback != nil {
		m.invokeIsolated("pairing", sessionID, func() error {
			return callback(payload, imagePath)
		})
	}

	m.logger.Info("pairing payload generated",
		"session_id", sessionID,
		"image_path", imagePath,
	)
	return payload, imagePath, nil
}

// AuthenticateSession marks the session authenticated, recording the
// phone number when given, and fires the registered status callback.
// Fails with CodeUnknownSession when the session is not cached.
func (m *Manager) AuthenticateSession(ctx context.Context, sessionID, phoneNumber string) error {
	status := StatusAuthenticated
	authenticated := true
	update := Update{Status: &status, Authenticated: &authenticated}
	if phoneNumber != "" {
		update.PhoneNumber = &phoneNumber
	}
	if _, err := m.UpdateSession(ctx, sessionID, update); err != nil {
		return err
	}

	m.mu.Lock()
	callback := m.statusCB[sessionID]
	m.mu.Unlock()
	if callback != nil {
		m.invokeIsolated("status", sessionID, func() error {
			return callback(StatusAuthenticated)
		})
	}

	m.logger.Info("session authenticated", "session_id", sessionID)
	return nil
}

// SetStatus is the administrative status override used by disconnect
// and error reporting. It may move the session to any valid status
// regardless of the transition table.
func (m *Manager) SetStatus(ctx context.Context, sessionID string, status Status) error {
	_, err := m.UpdateSession(ctx, sessionID, Update{Status: &status})
	return err
}

// IsAuthenticated reports whether the session is authenticated. It
// never errors: an absent session or a failing store both read as
// not authenticated.
func (m *Manager) IsAuthenticated(ctx context.Context, sessionID string) bool {
	record, err := m.GetSession(ctx, sessionID)
	if err != nil {
		m.logger.Warn("authentication check failed",
			"session_id", sessionID,
			"error", err,
		)
		return false
	}
	return record != nil && record.Authenticated
}

// DeleteSession removes the session from the cache and the store. The
// cache removal is a no-op when the session is not cached; the store
// result is returned.
//
// The delete holds the entry lock, so a read-modify-persist cycle
// already in flight finishes before the record disappears, and any
// mutator arriving after the delete fails CodeUnknownSession instead
// of writing the record back.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	cached, active := m.entries[sessionID]
	delete(m.entries, sessionID)
	delete(m.pairingCB, sessionID)
	delete(m.statusCB, sessionID)
	m.mu.Unlock()

	if active {
		// Tombstone the evicted entry. Taking its lock waits out any
		// mutator mid-persist; a mutator that still holds the old
		// pointer and locks afterwards observes the nil record and
		// reports the session unknown rather than writing it back.
		cached.mu.Lock()
		cached.record = nil
		cached.mu.Unlock()
	}

	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return &Error{Code: CodeStoreFailure, Op: "delete", SessionID: sessionID, Err: err}
	}
	m.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// ListSessions enumerates the store's session ids. Ordering is
// store-defined.
func (m *Manager) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, &Error{Code: CodeStoreFailure, Op: "list", Err: err}
	}
	return ids, nil
}

// SetPairingCallback registers the observer invoked when a pairing
// payload is generated for the session. Passing nil removes it.
func (m *Manager) SetPairingCallback(sessionID string, callback PairingCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if callback == nil {
		delete(m.pairingCB, sessionID)
		return
	}
	m.pairingCB[sessionID] = callback
}

// SetStatusCallback registers the observer invoked when the session
// authenticates. Passing nil removes it.
func (m *Manager) SetStatusCallback(sessionID string, callback StatusCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if callback == nil {
		delete(m.statusCB, sessionID)
		return
	}
	m.statusCB[sessionID] = callback
}

// Store exposes the underlying store for message persistence by the
// client façade.
func (m *Manager) Store() Store { return m.store }

// Close releases the store. Idempotent — repeated calls return the
// first close result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.store.Close()
	})
	return m.closeErr
}

// invokeIsolated runs a registered callback, logging and swallowing
// any failure or panic. A broken observer must not be mistaken for a
// state-machine failure.
func (m *Manager) invokeIsolated(name, sessionID string, callback func() error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger.Error("session callback panicked",
				"callback", name,
				"session_id", sessionID,
				"panic", recovered,
			)
		}
	}()
	if err := callback(); err != nil {
		m.logger.Warn("session callback failed",
			"callback", name,
			"session_id", sessionID,
			"error", err,
		)
	}
}

// PairingPayload returns the deterministic pairing payload for a
// session id. The payload is the URI the linked device scans to bind
// itself to the session.
func PairingPayload(sessionID string) string {
	return "whatsweb://session/" + sessionID
}
