package debug

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func withBuffer(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		Init(LevelOff)
	})
	return &buf
}

func TestInit_OffWritesNothing(t *testing.T) {
	buf := withBuffer(t, LevelOff)
	Info("hello %d", 1)
	Error(errors.New("boom"))
	Trace("usb")
	if buf.Len() != 0 {
		t.Errorf("expected no output at level 0, got %q", buf.String())
	}
}

func TestLevels_Filtering(t *testing.T) {
	buf := withBuffer(t, LevelLive)
	Info("info line")
	Live("live line")
	Verbose("verbose line")
	Trace("trace line")

	out := buf.String()
	if !strings.Contains(out, "[INFO] info line") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "[LIVE] live line") {
		t.Errorf("missing live line in %q", out)
	}
	if strings.Contains(out, "verbose line") || strings.Contains(out, "trace line") {
		t.Errorf("verbose/trace should be filtered at level 2, got %q", out)
	}
}

func TestPrefix(t *testing.T) {
	buf := withBuffer(t, LevelInfo)
	Value("Gain", 5)
	if !strings.HasPrefix(buf.String(), "[ssag] ") {
		t.Errorf("expected [ssag] prefix, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Gain = 5") {
		t.Errorf("expected value line, got %q", buf.String())
	}
}

func TestUSB_TraceFormat(t *testing.T) {
	buf := withBuffer(t, LevelTrace)
	USB("out", 0x13, 0x05F4, 0, 18)
	want := "[USB] out req=0x13 value=0x05f4 index=0x0000 len=18"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("got %q, want substring %q", buf.String(), want)
	}
}

func TestIsEnabled(t *testing.T) {
	withBuffer(t, LevelVerbose)
	if !IsEnabled(LevelInfo) || !IsEnabled(LevelVerbose) {
		t.Error("levels <= 3 should be enabled")
	}
	if IsEnabled(LevelTrace) {
		t.Error("trace should not be enabled at level 3")
	}
	if Level() != LevelVerbose {
		t.Errorf("Level() = %d, want %d", Level(), LevelVerbose)
	}
}
