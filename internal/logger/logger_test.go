package logger

import (
	"strings"
	"testing"
)

func TestSanitize_RedactsSecrets(t *testing.T) {
	l := &Logger{redact: true}
	out := l.sanitize([]interface{}{"webhook_token", "abc", "block", "hero"})

	if out[1] != "[REDACTED]" {
		t.Errorf("expected token to be redacted, got %v", out[1])
	}
	if out[3] != "hero" {
		t.Errorf("expected untouched value, got %v", out[3])
	}
}

func TestSanitize_HashesSessionID(t *testing.T) {
	l := &Logger{redact: true}
	out := l.sanitize([]interface{}{"session_id", "s-1"})

	s, ok := out[1].(string)
	if !ok || !strings.HasPrefix(s, "hash:") || len(s) != len("hash:")+12 {
		t.Errorf("expected 12-char hash, got %v", out[1])
	}
	if again := l.sanitize([]interface{}{"session_id", "s-1"}); again[1] != s {
		t.Error("hash should be stable")
	}
}

func TestSanitize_Disabled(t *testing.T) {
	l := &Logger{redact: false}
	out := l.sanitize([]interface{}{"password", "hunter2"})
	if out[1] != "hunter2" {
		t.Errorf("redaction disabled, got %v", out[1])
	}
}

func TestSanitize_OddPairs(t *testing.T) {
	l := &Logger{redact: true}
	out := l.sanitize([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Errorf("unexpected output %v", out)
	}
}
