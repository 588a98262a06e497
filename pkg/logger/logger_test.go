package logger

import (
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if DebugLevel.String() != "debug" || ErrorLevel.String() != "error" {
		t.Error("level string representation mismatch")
	}
}

func TestSetLevel(t *testing.T) {
	l := New(&Config{Level: InfoLevel, Format: "json", Output: "stderr"})
	defer l.Close()

	if l.Level() != InfoLevel {
		t.Fatalf("initial level = %v, want info", l.Level())
	}

	l.SetLevel(DebugLevel)
	if l.Level() != DebugLevel {
		t.Fatalf("level after SetLevel = %v, want debug", l.Level())
	}
}

func TestWith(t *testing.T) {
	l := New(&Config{Level: WarnLevel, Format: "text", Output: "stderr"})
	defer l.Close()

	derived := l.With("component", "test")
	if derived.Level() != WarnLevel {
		t.Fatalf("derived level = %v, want warn", derived.Level())
	}
}
