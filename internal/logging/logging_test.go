package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("channel")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("connected", "server", "spice://localhost:5900")

	out := buf.String()
	if strings.Contains(out, `msg="INFO connected`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=connected") {
		t.Fatalf("expected plain connected message, got: %s", out)
	}
	if !strings.Contains(out, "component=channel") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "server=spice://localhost:5900") {
		t.Fatalf("expected server field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("channel")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithChannelAddsFields(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger := WithChannel(L("channel"), "display", 0)
	logger.Info("ready")

	out := buf.String()
	if !strings.Contains(out, "channel=display") {
		t.Fatalf("expected channel field, got: %s", out)
	}
	if !strings.Contains(out, "channelId=0") {
		t.Fatalf("expected channelId field, got: %s", out)
	}
}
