// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree, flag parsing, help rendering,
// and exit-code conventions shared by all whatsweb subcommands.
package cli
