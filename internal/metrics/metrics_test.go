package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	// Record a single request and ensure it appears in the export.
	RecordRequest("GET", "/etl", 200, 42)

	out := Export()
	if !strings.Contains(out, "menuetl_http_requests_total{method=\"GET\",path=\"/etl\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric for GET /etl in export, got:\n%s", out)
	}
	if !strings.Contains(out, "menuetl_http_request_duration_ms_sum") || !strings.Contains(out, "menuetl_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordClassify(t *testing.T) {
	RecordClassify("o4-mini", true)
	RecordClassify("o4-mini", false)

	out := Export()
	if !strings.Contains(out, "menuetl_llm_classify_requests_total{model=\"o4-mini\",success=\"true\"}") {
		t.Fatalf("expected classify success metric, got:\n%s", out)
	}
	if !strings.Contains(out, "menuetl_llm_classify_requests_total{model=\"o4-mini\",success=\"false\"}") {
		t.Fatalf("expected classify failure metric, got:\n%s", out)
	}
}

func TestRecordRun(t *testing.T) {
	RecordRun("training", "success", 3)
	RecordRun("training", "error", 0)

	out := Export()
	if !strings.Contains(out, "menuetl_runs_total{source=\"training\",status=\"success\"}") {
		t.Fatalf("expected run success metric, got:\n%s", out)
	}
	if !strings.Contains(out, "menuetl_runs_total{source=\"training\",status=\"error\"}") {
		t.Fatalf("expected run error metric, got:\n%s", out)
	}
	if !strings.Contains(out, "menuetl_rows_processed_total{source=\"training\"} 3") {
		t.Fatalf("expected rows processed metric, got:\n%s", out)
	}
}
