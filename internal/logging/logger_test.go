package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtTrace bool
	}{
		{"info filters debug", "info", false, false},
		{"debug passes debug", "debug", true, false},
		{"trace passes trace", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Log(t.Context(), LevelTrace, "trace message")
			if got := strings.Contains(buf.String(), "trace message"); got != tt.logAtTrace {
				t.Errorf("trace message visible = %v, want %v (buf: %q)", got, tt.logAtTrace, buf.String())
			}
			if tt.logAtTrace && !strings.Contains(buf.String(), "level=TRACE") {
				t.Errorf("trace level not labeled: %q", buf.String())
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must not be nil.
	l := Discard()
	if l == nil {
		t.Fatal("Discard returned nil")
	}
	l.Info("dropped")
}

func TestNewTraceLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "info")
	if tl != nil {
		t.Error("expected nil TraceLogger at info level")
	}

	// Nil logger should still be safe to use
	tl.Log(map[string]any{"event": "transition"})

	if _, err := os.Stat(filepath.Join(dir, "trace.jsonl")); err == nil {
		t.Error("trace.jsonl should not exist at info level")
	}
}

func TestNewTraceLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(filepath.Join(dir, "nested"), "debug")
	if tl == nil {
		t.Fatal("expected non-nil TraceLogger at debug level")
	}
	defer tl.Close()

	tl.Log(map[string]any{"event": "transition", "t": 2, "bayes_experienced": 0.75})

	data, err := os.ReadFile(filepath.Join(dir, "nested", "trace.jsonl"))
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry["event"] != "transition" {
		t.Errorf("event = %v, want transition", entry["event"])
	}
	if entry["bayes_experienced"] != 0.75 {
		t.Errorf("bayes_experienced = %v, want 0.75", entry["bayes_experienced"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in trace entry")
	}

	info, err := os.Stat(filepath.Join(dir, "nested", "trace.jsonl"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestTraceLogger_NaNBecomesNull(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTraceWriter(&buf)

	tl.Log(map[string]any{"avg_belief_inexperienced": math.NaN(), "count": 0})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("NaN made the line unparseable: %v (%q)", err, buf.String())
	}
	v, ok := entry["avg_belief_inexperienced"]
	if !ok || v != nil {
		t.Errorf("avg_belief_inexperienced = %v (present=%v), want null", v, ok)
	}
}

func TestTraceLogger_DoesNotMutateCallerMap(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTraceWriter(&buf)

	event := map[string]any{"event": "test", "avg": math.NaN()}
	tl.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
	if !math.IsNaN(event["avg"].(float64)) {
		t.Error("Log() replaced the caller's NaN value")
	}
}

func TestTraceLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTraceWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tl.Log(map[string]any{"worker": i, "t": j})
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 200 {
		t.Fatalf("expected 200 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d interleaved: %v", i, err)
		}
	}
}

func TestTraceLogger_NilSafetyAndLogAfterClose(t *testing.T) {
	var nilLogger *TraceLogger
	nilLogger.Log(map[string]any{"event": "should_not_panic"})
	nilLogger.Close()

	tl := NewTraceLogger(t.TempDir(), "trace")
	tl.Log(map[string]any{"event": "before_close"})
	tl.Close()
	tl.Log(map[string]any{"event": "after_close"})
}
