package tui

import (
	"strings"
	"testing"
)

func TestEditRuneAddCharacters(t *testing.T) {
	tests := []struct {
		name  string
		start string
		key   string
		want  string
	}{
		{"append to empty", "", "a", "a"},
		{"append letter", "ada@", "x", "ada@x"},
		{"append digit", "abc", "1", "abc1"},
		{"append special", "abc", "!", "abc!"},
		{"multi-rune key ignored", "abc", "enter", "abc"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := editRune(tc.start, tc.key)
			if got != tc.want {
				t.Errorf("editRune(%q, %q) = %q, want %q", tc.start, tc.key, got, tc.want)
			}
		})
	}
}

func TestEditRuneBackspace(t *testing.T) {
	tests := []struct {
		start string
		want  string
	}{
		{"a", ""},
		{"hello", "hell"},
		{"", ""},
		{"naïra₦", "naïra"},
	}
	for _, tc := range tests {
		if got := editRune(tc.start, "backspace"); got != tc.want {
			t.Errorf("editRune(%q, backspace) = %q, want %q", tc.start, got, tc.want)
		}
	}
}

func TestEditRuneClamp(t *testing.T) {
	full := strings.Repeat("x", maxInputLen)
	if got := editRune(full, "y"); got != full {
		t.Errorf("editRune at max length grew to %d runes", len(got))
	}
}

func TestMask(t *testing.T) {
	if got := mask("pässword"); got != strings.Repeat("•", 8) {
		t.Errorf("mask() = %q", got)
	}
	if got := mask(""); got != "" {
		t.Errorf("mask(\"\") = %q", got)
	}
}
