package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "api", "info", "json")
	logger.Info("diagram_uploaded", "diagram_id", "d-1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["service"] != "api" || record["msg"] != "diagram_uploaded" || record["diagram_id"] != "d-1" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "worker", "WARN", "text")
	logger.Info("skipped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "skipped") || !strings.Contains(out, "msg=kept") {
		t.Fatalf("unexpected output: %q", out)
	}
}
