package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestGetLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup("debug", &buf)
	defer Setup("info", nil)

	logger := GetLogger("trainer")
	logger.Info().Int(EpochKey, 3).Msg("epoch complete")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line[ComponentKey] != "trainer" {
		t.Errorf("component = %v, want trainer", line[ComponentKey])
	}
	if line[EpochKey] != float64(3) {
		t.Errorf("epoch = %v, want 3", line[EpochKey])
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup("warn", &buf)
	defer Setup("info", nil)

	logger := GetLogger("gate")
	logger.Debug().Msg("dropped")
	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("below-level lines were written: %s", buf.String())
	}

	logger.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Error("warn line was filtered")
	}
}
