package common

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestColorHandler_PlainOutputOrdersIdentifyingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewColorLoggerTo(&buf, LogLevelInfo, false)

	logger.WithScript("items_MD-242_initBatchNumber", "MD-242", "initBatchNumber").
		WithCollection("items").
		WithRun("run-1").
		Info("script executed", "elapsed_ms", 12)
	logger.Debug("hidden")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("colors should be disabled: %q", out)
	}
	run := strings.Index(out, `run_id="run-1"`)
	coll := strings.Index(out, `collection="items"`)
	id := strings.Index(out, `script_id="items_MD-242_initBatchNumber"`)
	elapsed := strings.Index(out, "elapsed_ms=12")
	if run < 0 || coll < 0 || id < 0 || elapsed < 0 {
		t.Fatalf("missing attrs: %s", out)
	}
	if !(run < coll && coll < id && id < elapsed) {
		t.Fatalf("identifying keys should lead: %s", out)
	}
	if !strings.Contains(out, "[INFO ] script executed") {
		t.Fatalf("unexpected line: %s", out)
	}
}

func TestColorHandler_ColorsOutcomesAndMasks(t *testing.T) {
	var buf bytes.Buffer
	logger := NewColorLoggerTo(&buf, LogLevelDebug, true)

	logger.Warn("run finished", "state", "aborted", "outcome", "skipped_applied",
		"error", errors.New("dial mongodb://admin:hunter2@db:27017"))

	out := buf.String()
	if !strings.Contains(out, Red+`"aborted"`+Reset) {
		t.Fatalf("aborted should be red: %q", out)
	}
	if !strings.Contains(out, Yellow+`"skipped_applied"`+Reset) {
		t.Fatalf("skip should be yellow: %q", out)
	}
	if !strings.Contains(out, Yellow+"[WARN ]"+Reset) {
		t.Fatalf("level should be colored: %q", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("credentials leaked: %q", out)
	}
}

func TestOutcomeColor(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"outcome", "executed", Green},
		{"state", "completed", Green},
		{"outcome", "skipped_environment", Yellow},
		{"outcome", "failed", Red},
		{"error", "anything", Red},
		{"collection", "items", White},
	}
	for _, tt := range tests {
		if got := outcomeColor(tt.key, tt.value); got != tt.want {
			t.Errorf("outcomeColor(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
		}
	}
}
