package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l.Info("batch settled",
		String("batch", "b-1"),
		Int("items", 3),
		Any("fallback", true),
		Duration("took", 2*time.Second),
		Err(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{`"batch":"b-1"`, `"items":3`, `"fallback":true`, `"error":"boom"`, `"message":"batch settled"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestNewConsoleLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewConsoleLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("NewConsoleLogger: %v", err)
	}

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestNewConsoleLogger_InvalidLevel(t *testing.T) {
	if _, err := NewConsoleLogger(&bytes.Buffer{}, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
