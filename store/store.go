// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package store resolves a backend configuration into a concrete
// session.Store. The backend set is closed — file, sqlite, mysql —
// and the choice is made once at startup from typed configuration,
// not dispatched on strings at call sites.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tileo/whatsweb/session"
	"github.com/tileo/whatsweb/store/filestore"
	"github.com/tileo/whatsweb/store/mysqlstore"
	"github.com/tileo/whatsweb/store/sqlitestore"
)

// Kind selects a storage backend.
type Kind string

// The closed set of backend kinds.
const (
	// KindFile stores one JSON document per session on the local
	// filesystem. The default.
	KindFile Kind = "file"
	// KindSQLite stores sessions in an embedded SQLite database file.
	KindSQLite Kind = "sqlite"
	// KindMySQL stores sessions on a networked MySQL server.
	KindMySQL Kind = "mysql"
)

// Valid reports whether k names a supported backend.
func (k Kind) Valid() bool {
	switch k {
	case KindFile, KindSQLite, KindMySQL:
		return true
	}
	return false
}

// Config is the tagged-variant backend configuration. Kind selects the
// backend; only the matching section is read.
type Config struct {
	Kind Kind

	// File configures KindFile.
	File FileConfig
	// SQLite configures KindSQLite.
	SQLite SQLiteConfig
	// MySQL configures KindMySQL.
	MySQL MySQLConfig

	// Logger is passed through to the backend. If nil, backends use a
	// no-op logger.
	Logger *slog.Logger
}

// FileConfig configures the filesystem backend.
type FileConfig struct {
	// Dir is the session directory. Empty means the per-user default.
	Dir string
}

// SQLiteConfig configures the embedded SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string
	// PoolSize is the connection pool size; zero means the default.
	PoolSize int
}

// MySQLConfig configures the networked MySQL backend.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Open resolves the configuration into a concrete store. ctx bounds
// the connection check for networked backends.
func Open(ctx context.Context, cfg Config) (session.Store, error) {
	switch cfg.Kind {
	case KindFile, "":
		return filestore.Open(filestore.Config{
			Dir:    cfg.File.Dir,
			Logger: cfg.Logger,
		})
	case KindSQLite:
		return sqlitestore.Open(sqlitestore.Config{
			Path:     cfg.SQLite.Path,
			PoolSize: cfg.SQLite.PoolSize,
			Logger:   cfg.Logger,
		})
	case KindMySQL:
		return mysqlstore.Open(ctx, mysqlstore.Config{
			Host:     cfg.MySQL.Host,
			Port:     cfg.MySQL.Port,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			Database: cfg.MySQL.Database,
			Logger:   cfg.Logger,
		})
	}
	return nil, fmt.Errorf("store: unsupported backend kind %q", cfg.Kind)
}
