// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

// Package pairing renders session pairing payloads into scannable QR
// images. The payload itself is built by the session package; this
// package only encodes it and writes the image file the user scans
// with the linked device.
package pairing

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder turns a payload string into image bytes. The shipped
// implementation is QREncoder; tests substitute a fake.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

// QREncoder encodes payloads as PNG QR codes.
type QREncoder struct {
	// Size is the image edge length in pixels. Zero defaults to 256.
	Size int
}

// Encode renders the payload as a PNG QR code with medium error
// correction.
func (e QREncoder) Encode(payload string) ([]byte, error) {
	size := e.Size
	if size == 0 {
		size = 256
	}
	data, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("pairing: encoding QR: %w", err)
	}
	return data, nil
}

// GeneratorConfig holds the parameters for creating a Generator.
type GeneratorConfig struct {
	// Dir is where images are written. Created if absent. If empty,
	// DefaultDir() is used.
	Dir string

	// Encoder renders payloads. If nil, a QREncoder with defaults is
	// used.
	Encoder Encoder

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// DefaultDir returns the per-user default image directory,
// ~/.whatsweb/qr_codes.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".whatsweb", "qr_codes")
	}
	return filepath.Join(home, ".whatsweb", "qr_codes")
}

// Generator writes pairing images to disk. It satisfies the session
// package's PairingGenerator capability.
type Generator struct {
	dir     string
	encoder Encoder
	logger  *slog.Logger
}

// NewGenerator creates the image directory and returns the generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	encoder := cfg.Encoder
	if encoder == nil {
		encoder = QREncoder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pairing: creating %s: %w", dir, err)
	}
	return &Generator{dir: dir, encoder: encoder, logger: logger}, nil
}

// Generate encodes the payload and writes <session_id>_qr.png,
// returning the image path.
func (g *Generator) Generate(payload, sessionID string) (string, error) {
	data, err := g.encoder.Encode(payload)
	if err != nil {
		return "", err
	}

	path := filepath.Join(g.dir, sessionID+"_qr.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("pairing: writing %s: %w", path, err)
	}

	g.logger.Info("pairing image written",
		"session_id", sessionID,
		"path", path,
	)
	return path, nil
}
