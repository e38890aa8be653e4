// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
)

// Code classifies a session error. Every public operation in this
// module fails with exactly one code — there are no unlabelled
// failures. Callers use errors.As to extract the structured form:
//
//	var sessionErr *session.Error
//	if errors.As(err, &sessionErr) {
//	    if sessionErr.Code == session.CodeUnknownSession { ... }
//	}
//
// or the shorthand [IsCode].
type Code string

// Error codes.
const (
	// CodeDuplicateSession: creating a session id already active in memory.
	CodeDuplicateSession Code = "duplicate_session"
	// CodeUnknownSession: operating on a session absent from cache and store.
	CodeUnknownSession Code = "unknown_session"
	// CodeInvalidSession: a session id that is malformed (empty, or
	// containing path separators). Raised before any state changes.
	CodeInvalidSession Code = "invalid_session"
	// CodeConnectionFailure: the transport or pairing-generation step failed.
	CodeConnectionFailure Code = "connection_failure"
	// CodeAuthenticationTimeout: the authentication wait deadline passed.
	CodeAuthenticationTimeout Code = "authentication_timeout"
	// CodeAuthenticationRequired: a messaging operation ran before authentication.
	CodeAuthenticationRequired Code = "authentication_required"
	// CodeConnectionRequired: a messaging operation ran while disconnected.
	CodeConnectionRequired Code = "connection_required"
	// CodeMessageDelivery: a send failed in the transport or persistence step.
	CodeMessageDelivery Code = "message_delivery_failure"
	// CodeStoreFailure: the store backend is unreachable or errored.
	// Distinguished from domain errors so callers can decide retry vs abort.
	CodeStoreFailure Code = "store_failure"
)

// Error is a structured session error carrying the failure code, the
// operation that failed, and the session it concerns.
type Error struct {
	// Code is the failure classification.
	Code Code
	// Op is the operation that failed (e.g., "create", "send message").
	Op string
	// SessionID is the session the operation targeted.
	SessionID string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session %s: %s: %s: %v", e.SessionID, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("session %s: %s: %s", e.SessionID, e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCode checks whether err is a *Error with the given code.
func IsCode(err error, code Code) bool {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr.Code == code
	}
	return false
}
