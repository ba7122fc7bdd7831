package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
	}{
		{name: "debug lower", input: "debug", want: LevelDebug},
		{name: "info upper", input: "INFO", want: LevelInfo},
		{name: "warn mixed", input: "WaRn", want: LevelWarn},
		{name: "error", input: "error", want: LevelError},
		{name: "fatal", input: "fatal", want: LevelFatal},
		{name: "trim spaces", input: "  debug  ", want: LevelDebug},
		{name: "unknown fallback", input: "verbose", want: LevelInfo},
		{name: "empty fallback", input: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Fatalf("ParseLevel(%q)=%v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LevelWarn)
	l.SetOutput(&buf)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry written at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "shown 2") {
		t.Fatalf("warn entry missing: %q", out)
	}
	if !strings.Contains(out, "logger_level_test.go") {
		t.Fatalf("caller file missing: %q", out)
	}
}

func TestLogger_NamedTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LevelDebug)
	l.SetOutput(&buf)

	l.Named("pipeline").Debug("seq=%d", 3)

	if !strings.Contains(buf.String(), "[pipeline] seq=3") {
		t.Fatalf("component tag missing: %q", buf.String())
	}
}

func TestLogger_NamedSharesLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(LevelInfo)
	child := parent.Named("session")

	parent.SetOutput(&buf)
	parent.SetLevel(LevelDebug)
	child.Debug("after parent change")

	if !strings.Contains(buf.String(), "[session] after parent change") {
		t.Fatalf("child did not follow parent level and output: %q", buf.String())
	}

	buf.Reset()
	child.SetLevel(LevelError)
	parent.Warn("muted")
	if buf.Len() != 0 {
		t.Fatalf("parent ignored level set through child: %q", buf.String())
	}
}

func TestLogger_Enabled(t *testing.T) {
	l := NewLogger(LevelInfo)
	if l.Enabled(LevelDebug) {
		t.Fatal("debug enabled at info level")
	}
	if !l.Enabled(LevelInfo) || !l.Enabled(LevelError) {
		t.Fatal("info and above must be enabled at info level")
	}

	named := l.Named("x")
	l.SetLevel(LevelDebug)
	if !named.Enabled(LevelDebug) {
		t.Fatal("named logger did not see level change")
	}
}
