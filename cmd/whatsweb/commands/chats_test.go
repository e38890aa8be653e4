// Copyright 2026 The WhatsWeb Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateDisplay(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 60, "short"},
		{strings.Repeat("a", 60), 60, strings.Repeat("a", 60)},
		{strings.Repeat("a", 61), 60, strings.Repeat("a", 57) + "..."},
		{strings.Repeat("é", 61), 60, strings.Repeat("é", 57) + "..."},
		{strings.Repeat("日", 80), 10, strings.Repeat("日", 7) + "..."},
	}
	for _, test := range tests {
		got := truncateDisplay(test.in, test.max)
		if got != test.want {
			t.Errorf("truncateDisplay(%d-rune input, %d) = %q, want %q",
				utf8.RuneCountInString(test.in), test.max, got, test.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateDisplay produced invalid UTF-8: %q", got)
		}
	}
}
