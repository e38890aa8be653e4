// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"time"
)

// MessageKind is the payload type of a message.
type MessageKind string

// Message payload kinds. Text carries the body inline; image and
// document carry a file reference the caller has already validated.
const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindDocument MessageKind = "document"
)

// Valid reports whether k is one of the enumerated kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindDocument:
		return true
	}
	return false
}

// idPrefix returns the message-id prefix for this kind.
func (k MessageKind) idPrefix() string {
	switch k {
	case KindImage:
		return "img"
	case KindDocument:
		return "doc"
	default:
		return "msg"
	}
}

// MessageStatus is the delivery state of a message. This core only
// ever writes StatusSent; delivery receipts are a transport concern.
type MessageStatus string

// Message delivery states.
const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// Message is one outbound or inbound message tied to a session.
// Messages are append-only: created at send time, persisted
// immediately, never mutated afterwards by this core.
type Message struct {
	// MessageID uniquely identifies the message. Format:
	// <kind-prefix>_<monotonic-timestamp>_<session-id>.
	MessageID string `json:"message_id"`

	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// FromNumber is the sender. Empty for outbound messages until
	// inbound receive support fills it in.
	FromNumber string `json:"from_number,omitempty"`

	// ToNumber is the recipient. Required for outbound messages.
	ToNumber string `json:"to_number"`

	// Kind is the payload type.
	Kind MessageKind `json:"kind"`

	// Content is the text body, or a file reference for image and
	// document messages.
	Content string `json:"content"`

	// Caption is optional media caption text.
	Caption string `json:"caption,omitempty"`

	// Status is the delivery state.
	Status MessageStatus `json:"status"`

	// Timestamp records when the message was created.
	Timestamp time.Time `json:"timestamp"`
}

// MessageID builds a message id from a kind, a monotonic millisecond
// stamp, and the owning session id.
func MessageID(kind MessageKind, stamp int64, sessionID string) string {
	return fmt.Sprintf("%s_%d_%s", kind.idPrefix(), stamp, sessionID)
}
