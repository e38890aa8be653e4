// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a session. The zero value is not a
// valid status — records always carry one of the enumerated constants.
type Status string

// Session lifecycle states. A session starts in StatusCreated and moves
// through StatusConnecting and StatusPairing to StatusAuthenticated and
// StatusReady. StatusDisconnected and StatusError are re-entrant: a new
// Connect call revives the session through StatusConnecting.
const (
	StatusCreated       Status = "created"
	StatusConnecting    Status = "connecting"
	StatusPairing       Status = "pairing"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
	StatusDisconnected  Status = "disconnected"
	StatusError         Status = "error"
)

// Valid reports whether s is one of the enumerated lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusConnecting, StatusPairing,
		StatusAuthenticated, StatusReady, StatusDisconnected, StatusError:
		return true
	}
	return false
}

// ParseStatus normalizes a stored status string to a Status. Earlier
// releases persisted the pairing state under the spellings "qr_ready"
// and "qr_generated"; both normalize to StatusPairing so old store
// records keep loading.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "qr_ready", "qr_generated":
		return StatusPairing, nil
	}
	status := Status(raw)
	if !status.Valid() {
		return "", fmt.Errorf("session: unknown status %q", raw)
	}
	return status, nil
}

// canTransition describes the nominal pairing lifecycle: which status
// follows which when a session moves through connect, pairing, and
// authentication. The manager does not enforce it; status writes go
// through UpdateSession, which accepts any valid status so that
// administrative overrides (disconnect, error reporting) and external
// authentication confirmations stay possible from any state.
func canTransition(from, to Status) bool {
	switch from {
	case StatusCreated, StatusDisconnected, StatusError:
		return to == StatusConnecting
	case StatusConnecting:
		return to == StatusPairing || to == StatusError || to == StatusDisconnected
	case StatusPairing:
		return to == StatusAuthenticated || to == StatusError || to == StatusDisconnected
	case StatusAuthenticated:
		return to == StatusReady || to == StatusDisconnected
	case StatusReady:
		return to == StatusDisconnected
	}
	return false
}

// Record is the persisted state of one session. Records are owned by
// the Manager: callers receive copies and mutate only through Manager
// methods, never by writing fields directly.
type Record struct {
	// SessionID uniquely identifies the session. Immutable after
	// creation.
	SessionID string `json:"session_id"`

	// PhoneNumber is the linked device's number. Set only after
	// successful authentication.
	PhoneNumber string `json:"phone_number,omitempty"`

	// PairingPayload is the opaque QR content, present while the
	// session is in the pairing state.
	PairingPayload string `json:"pairing_payload,omitempty"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Authenticated is true once the session has reached the
	// authenticated state in its current lifetime and has not since
	// been explicitly logged out.
	Authenticated bool `json:"authenticated"`

	// CreatedAt is set once at creation and never changes.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is bumped on every mutation and never decreases.
	UpdatedAt time.Time `json:"updated_at"`

	// Extra carries forward-compatible metadata. The core round-trips
	// it without interpreting the contents.
	Extra map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy of the record. The Manager hands out
// clones so callers cannot race against its cached state.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Extra != nil {
		clone.Extra = make(map[string]string, len(r.Extra))
		for key, value := range r.Extra {
			clone.Extra[key] = value
		}
	}
	return &clone
}

// ValidateSessionID rejects session ids that are empty or would escape
// a per-session file path. Stores name files and rows by session id,
// so the id must be a plain name.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session: session id is empty")
	}
	if strings.ContainsAny(sessionID, "/\\") || sessionID == "." || sessionID == ".." {
		return fmt.Errorf("session: invalid session id %q", sessionID)
	}
	return nil
}
