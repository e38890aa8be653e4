// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"strings"
	"unicode"
)

// maxMessageRunes caps message bodies the way the service does.
const maxMessageRunes = 4096

// normalizeNumber validates a phone number and formats it to the
// international form the service expects. Numbers without a country
// code get the Brazilian +55 prefix, matching the service's home
// market default.
func normalizeNumber(raw string) (string, error) {
	var digits strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			digits.WriteRune(r)
		}
	}

	number := digits.String()
	stripped := strings.TrimPrefix(number, "+")
	if len(stripped) < 10 {
		return "", fmt.Errorf("client: phone number %q too short", raw)
	}

	switch {
	case strings.HasPrefix(number, "+"):
		return number, nil
	case strings.HasPrefix(number, "55"):
		return "+" + number, nil
	default:
		return "+55" + number, nil
	}
}

// sanitizeContent strips control characters from a message body and
// truncates it to the service's length cap.
func sanitizeContent(content string) string {
	var cleaned strings.Builder
	cleaned.Grow(len(content))
	for _, r := range content {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		cleaned.WriteRune(r)
	}

	runes := []rune(cleaned.String())
	if len(runes) > maxMessageRunes {
		runes = append(runes[:maxMessageRunes-3], '.', '.', '.')
	}
	return strings.TrimSpace(string(runes))
}
