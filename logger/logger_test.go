package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	path := filepath.Join(t.TempDir(), "hedgeflow.log")
	if err := log.Configure("debug", "text", path, 1); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	log.WithComponent("test").Debug("written to rotating file")
}

func TestDashboardBodyChartsHedgeMetrics(t *testing.T) {
	body, err := dashboardBody("Hedgeflow")
	if err != nil {
		t.Fatalf("dashboardBody: %v", err)
	}
	var parsed struct {
		Widgets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"widgets"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("dashboard body is not JSON: %v", err)
	}
	if len(parsed.Widgets) != 3 {
		t.Fatalf("expected 3 widgets, got %d", len(parsed.Widgets))
	}
	for _, metric := range []string{"hedges_executed", "hedge_failures", "run_duration", "HeapMB"} {
		if !strings.Contains(body, metric) {
			t.Errorf("dashboard does not chart %s", metric)
		}
	}
}

func TestJSONFieldNames(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithComponent("hedge").WithFields(Fields{"stage": "strike_selection"}).Info("selected strike")

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	for _, key := range []string{"timestamp", "level", "message", "component", "stage"} {
		if _, ok := out[key]; !ok {
			t.Errorf("missing %q in %v", key, out)
		}
	}
}

func TestWarnAndErrorCounts(t *testing.T) {
	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.WithComponent("counting").Warn("first")
	log.WithComponent("counting").Error("second")
	log.WithComponent("counting").Error("third")

	warns, errs := Counts("counting")
	if warns != 1 || errs != 2 {
		t.Fatalf("unexpected counts: warns=%d errors=%d", warns, errs)
	}
}

func TestLogPerformanceEntry(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)
	LogPerformanceEntry(log.WithFields(Fields{"run_id": "r1"}), "hedge", "order_execution", 1500*time.Microsecond, nil)

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if out["duration_ms"] != 1.5 {
		t.Errorf("unexpected duration_ms: %v", out["duration_ms"])
	}
}

func TestReportIncludesComponentCounts(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFormatter(jsonFormatter())
	log.SetLevel(logrus.InfoLevel)

	log.WithComponent("report_counts").Warn("first")
	log.WithComponent("report_counts").Error("second")
	buf.Reset()

	logReport(context.Background(), log)

	var out struct {
		Message    string                      `json:"message"`
		Components map[string]map[string]int64 `json:"components"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	got := out.Components["report_counts"]
	if out.Message != "runtime report" || got["warns"] != 1 || got["errors"] != 1 {
		t.Fatalf("unexpected report %s", buf.String())
	}
}
