package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestCaptured(t *testing.T) {
	Init(false)
	ResetCapture()

	Get().Info("Merged addresses", zap.Int("updated", 3))
	Get().Debug("not captured")
	Get().Warn("Duplicate address")

	got := Captured()
	for _, want := range []string{"INFO Merged addresses", `{"updated": 3}`, "WARN Duplicate address"} {
		if !strings.Contains(got, want) {
			t.Errorf("Captured() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "not captured") {
		t.Errorf("Captured() = %q, should not contain debug entries", got)
	}

	ResetCapture()
	if got := Captured(); got != "" {
		t.Errorf("Captured() after reset = %q, want empty", got)
	}
}
