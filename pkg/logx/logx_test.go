package logx

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLogFormat(t *testing.T) {
	buf := capture(t)

	NewLogger("negotiation").Info("Test message with %s", "formatting")

	output := buf.String()
	if !strings.Contains(output, "[negotiation] INFO: Test message with formatting") {
		t.Errorf("Expected component, level and message in output, got: %s", output)
	}
	if !strings.HasPrefix(output, "[") || !strings.Contains(output, "Z]") {
		t.Errorf("Expected UTC timestamp prefix, got: %s", output)
	}
}

func TestDebugDisabled(t *testing.T) {
	buf := capture(t)

	SetDebug(false)
	NewLogger("x").Debug("hidden")
	Debug(context.Background(), "negotiation", "hidden")

	if buf.Len() != 0 {
		t.Errorf("Expected no output with debug disabled, got: %s", buf.String())
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := capture(t)

	SetDebug(true)
	SetDebugDomains([]string{"negotiation"})
	defer func() {
		SetDebug(false)
		SetDebugDomains(nil)
	}()

	ctx := WithComponent(context.Background(), "coordinator")
	Debug(ctx, "negotiation", "round %d", 3)
	Debug(ctx, "inpaint", "should be filtered")
	DebugState(ctx, "negotiation", "speaker", "VERIFYING", "position_verifier_bot")

	output := buf.String()
	if !strings.Contains(output, "[coordinator] DEBUG: [negotiation] round 3") {
		t.Errorf("Expected negotiation debug line, got: %s", output)
	}
	if strings.Contains(output, "should be filtered") {
		t.Errorf("Expected inpaint domain to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "State speaker: VERIFYING - position_verifier_bot") {
		t.Errorf("Expected state line, got: %s", output)
	}
}

func TestWarnAndError(t *testing.T) {
	buf := capture(t)

	l := NewLogger("inpaint")
	l.Warn("retrying")
	l.Error("step %d failed", 2)

	if !strings.Contains(buf.String(), "[inpaint] WARN: retrying") || !strings.Contains(buf.String(), "[inpaint] ERROR: step 2 failed") {
		t.Errorf("Unexpected output: %s", buf.String())
	}
}
