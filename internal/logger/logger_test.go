package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"google_api_key", "abc123", "rows", 4, "DATABASE_URL", "postgres://u:p@h/db"})
	if got[1] != "[REDACTED]" {
		t.Fatalf("api key not redacted: %#v", got)
	}
	if got[3] != 4 {
		t.Fatalf("plain value changed: %#v", got)
	}
	if got[5] != "[REDACTED]" {
		t.Fatalf("database url not redacted: %#v", got)
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	got := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(got) != 3 || got[2] != "dangling" {
		t.Fatalf("unexpected: %#v", got)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production", "test"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("component", "test").Debug("hello", "k", "v")
	}
}
