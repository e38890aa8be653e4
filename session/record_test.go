// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "created", want: StatusCreated},
		{raw: "connecting", want: StatusConnecting},
		{raw: "pairing", want: StatusPairing},
		{raw: "authenticated", want: StatusAuthenticated},
		{raw: "ready", want: StatusReady},
		{raw: "disconnected", want: StatusDisconnected},
		{raw: "error", want: StatusError},
		// Legacy spellings from earlier store formats.
		{raw: "qr_ready", want: StatusPairing},
		{raw: "qr_generated", want: StatusPairing},
		{raw: "", wantErr: true},
		{raw: "QR_READY", wantErr: true},
		{raw: "banana", wantErr: true},
	}

	for _, test := range tests {
		got, err := ParseStatus(test.raw)
		if test.wantErr {
			if err == nil {
				t.Errorf("ParseStatus(%q) = %q, want error", test.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", test.raw, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", test.raw, got, test.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, status := range []Status{
		StatusCreated, StatusConnecting, StatusPairing,
		StatusAuthenticated, StatusReady, StatusDisconnected, StatusError,
	} {
		if !status.Valid() {
			t.Errorf("%q.Valid() = false, want true", status)
		}
	}
	for _, status := range []Status{"", "qr_ready", "Created", "unknown"} {
		if status.Valid() {
			t.Errorf("%q.Valid() = true, want false", status)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusCreated, StatusConnecting},
		{StatusDisconnected, StatusConnecting},
		{StatusError, StatusConnecting},
		{StatusConnecting, StatusPairing},
		{StatusConnecting, StatusError},
		{StatusPairing, StatusAuthenticated},
		{StatusPairing, StatusDisconnected},
		{StatusAuthenticated, StatusReady},
		{StatusReady, StatusDisconnected},
	}
	for _, transition := range allowed {
		if !canTransition(transition.from, transition.to) {
			t.Errorf("canTransition(%s, %s) = false, want true", transition.from, transition.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusCreated, StatusReady},
		{StatusCreated, StatusAuthenticated},
		{StatusPairing, StatusReady},
		{StatusReady, StatusConnecting},
		{StatusReady, StatusAuthenticated},
		{StatusDisconnected, StatusPairing},
		{StatusAuthenticated, StatusConnecting},
	}
	for _, transition := range denied {
		if canTransition(transition.from, transition.to) {
			t.Errorf("canTransition(%s, %s) = true, want false", transition.from, transition.to)
		}
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	record := &Record{
		SessionID: "alpha",
		Status:    StatusReady,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Extra:     map[string]string{"device": "pixel"},
	}

	clone := record.Clone()
	clone.Status = StatusError
	clone.Extra["device"] = "iphone"
	clone.Extra["added"] = "yes"

	if record.Status != StatusReady {
		t.Error("mutating the clone changed the original status")
	}
	if record.Extra["device"] != "pixel" {
		t.Error("mutating the clone changed the original extra map")
	}
	if _, ok := record.Extra["added"]; ok {
		t.Error("adding to the clone's extra map changed the original")
	}
}

func TestValidateSessionID(t *testing.T) {
	for _, id := range []string{"work", "a", "user-42", "Ünïcode", "with space"} {
		if err := ValidateSessionID(id); err != nil {
			t.Errorf("ValidateSessionID(%q): %v", id, err)
		}
	}
	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "/etc"} {
		if err := ValidateSessionID(id); err == nil {
			t.Errorf("ValidateSessionID(%q) accepted, want error", id)
		}
	}
}

func TestMessageID(t *testing.T) {
	tests := []struct {
		kind MessageKind
		want string
	}{
		{KindText, "msg_1700000000000_work"},
		{KindImage, "img_1700000000000_work"},
		{KindDocument, "doc_1700000000000_work"},
	}
	for _, test := range tests {
		got := MessageID(test.kind, 1700000000000, "work")
		if got != test.want {
			t.Errorf("MessageID(%s) = %q, want %q", test.kind, got, test.want)
		}
	}
}

func TestPairingPayload(t *testing.T) {
	if got := PairingPayload("work"); got != "whatsweb://session/work" {
		t.Errorf("PairingPayload = %q", got)
	}
}
