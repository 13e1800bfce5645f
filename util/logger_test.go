package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), output)
	}

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[VRB]", "[DBG]"}
	for i, prefix := range wantPrefixes {
		if !strings.Contains(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(true)

	l.Info("test")

	output := buf.String()
	// Timestamp format is "HH:MM:SS.mmm"
	if !strings.Contains(output, ":") || len(output) < 15 {
		t.Errorf("expected timestamp prefix, got %q", output)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.With("session 3").With("exec").Info("started")

	want := "[INF] session 3 exec: started\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLogger_WithSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	scoped := l.With("session 1")

	// Output changes on the parent apply to derived loggers.
	l.SetOutput(&buf)
	l.SetTimestamps(false)
	scoped.Warn("reset")

	if !strings.Contains(buf.String(), "[WRN] session 1: reset") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestChunkPool_RoundTrip(t *testing.T) {
	buf := GetChunk(DefaultChunkSize)
	if buf == nil {
		t.Fatal("GetChunk returned nil")
	}
	if len(*buf) != DefaultChunkSize {
		t.Errorf("buffer size = %d, want %d", len(*buf), DefaultChunkSize)
	}
	(*buf)[0] = 0xFF
	PutChunk(buf)

	buf2 := GetChunk(DefaultChunkSize)
	if buf2 == nil {
		t.Fatal("second GetChunk returned nil")
	}
	PutChunk(buf2)
}

func TestChunkPool_OtherSizes(t *testing.T) {
	buf := GetChunk(16)
	if len(*buf) != 16 {
		t.Errorf("buffer size = %d, want 16", len(*buf))
	}
	// Non-default sizes are not pooled; should not panic.
	PutChunk(buf)
	PutChunk(nil)
}
