package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		check func(any) bool
	}{
		{"strips newlines", "name", "Jane\r\nINFO forged", func(v any) bool { return v == "JaneINFO forged" }},
		{"redacts password", "db_password", "hunter2", func(v any) bool { return v == "[REDACTED]" }},
		{"hashes email", "teacher_email", "t@school.test", func(v any) bool {
			s, ok := v.(string)
			return ok && strings.HasPrefix(s, "hash:") && !strings.Contains(s, "school")
		}},
		{"keeps numbers", "count", 3, func(v any) bool { return v == 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := sanitizeKVs([]any{tt.key, tt.value})
			if len(out) != 2 {
				t.Fatalf("expected 2 elements, got %d", len(out))
			}
			if !tt.check(out[1]) {
				t.Errorf("unexpected sanitized value %v", out[1])
			}
		})
	}
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]any{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Errorf("expected dangling key to be preserved, got %v", out)
	}
}

func TestHashValue_CaseInsensitive(t *testing.T) {
	if hashValue("A@B.test") != hashValue("a@b.test") {
		t.Error("expected email hashes to ignore case")
	}
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", mode, err)
		}
		l.With("component", "test").Debug("hello", "k", "v")
	}
}
