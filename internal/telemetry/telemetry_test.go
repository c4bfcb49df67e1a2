package telemetry

import (
	"strings"
	"testing"
)

func TestRecordFunctionsAreNoOpsBeforeInit(t *testing.T) {
	RecordToolInvocation("rg")
	RecordToolResults("rg", 3)
	RecordCacheHits("symbol_hints", 1)
	RecordReward(0.5)
	RecordCycleLatency(12)
	RecordStageLatency("probe", 4)
}

func TestExportPrometheusBeforeInitReturnsError(t *testing.T) {
	if registry != nil {
		t.Skip("telemetry already initialized by another test in this process")
	}
	if _, err := ExportPrometheus(); err == nil {
		t.Fatal("expected an error when telemetry has not been initialized")
	}
}

func TestInitAndExportPrometheusReportsRecordedMetrics(t *testing.T) {
	disabled = false
	if err := Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	RecordToolInvocation("rg")
	RecordReward(0.75)

	text, err := ExportPrometheus()
	if err != nil {
		t.Fatalf("ExportPrometheus() error: %v", err)
	}
	if !strings.Contains(text, "cyclegrep_tool_invocations_total") {
		t.Errorf("expected exported text to contain the tool invocations metric, got:\n%s", text)
	}
}
