// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package session implements the session lifecycle for WhatsWeb: the
// pairing state machine, the persisted session and message records,
// and the Manager that owns them.
//
// A session ties one local client instance to one linked device. Its
// lifecycle is a small state machine:
//
//	created      --connect-----------> connecting
//	connecting   --pairing generated-> pairing
//	connecting   --failure-----------> error
//	pairing      --auth confirmed----> authenticated --> ready
//	any active   --disconnect--------> disconnected
//	disconnected --connect-----------> connecting
//
// The error state is recoverable only through an explicit new connect;
// the Manager never retries on its own.
//
// [Manager] is the single owner of the in-memory record cache. Every
// mutation goes through it: the record is cloned, modified, persisted
// to the [Store], and only then swapped into the cache, all under a
// per-session lock. Concurrent mutators of the same session serialize;
// sessions never block each other. Callers always receive clones and
// cannot race against the cache.
//
// Persistence is a capability: [Store] is a small get/put/delete/list
// contract with three shipped backends (filestore, sqlitestore,
// mysqlstore). Absence is (nil, nil), not an error — only backend
// failures surface, classified as CodeStoreFailure so callers can
// distinguish "retry the store" from domain errors.
//
// Pairing and status observers are registered per session with
// [Manager.SetPairingCallback] and [Manager.SetStatusCallback]. A
// failing or panicking callback is logged and isolated; it can never
// abort the state transition that triggered it.
//
// All errors carry a [Code] from a closed set; see [Error] and
// [IsCode].
package session
